package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/pulse/types"
)

// ErrNoRunsFound is returned when the dataset holds no matching run.
var ErrNoRunsFound = errors.New("no archived runs found")

// QueryLatest rebuilds the most recent archived run as a Snapshot.
// When view is non-empty only runs containing that view qualify, and the
// returned Snapshot holds just that view's result.
func QueryLatest(ctx context.Context, ds lode.Dataset, view types.ViewID) (*types.Snapshot, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, wrap(err, "read", "snapshots")
	}

	// Snapshots are ordered by creation time; walk latest first.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !hasPartition(snap, "run_id") {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, wrap(err, "read", fmt.Sprintf("snapshot/%s", snap.ID))
		}

		records, err := decodeRun(data)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			continue
		}
		if view != "" {
			records = filterView(records, view)
			if len(records) == 0 {
				continue
			}
		}
		return rebuild(records), nil
	}

	return nil, ErrNoRunsFound
}

func decodeRun(data []any) ([]viewRecord, error) {
	var records []viewRecord
	for _, item := range data {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec, ok, err := fromRecord(raw)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Position < records[j].Position })
	return records, nil
}

func filterView(records []viewRecord, view types.ViewID) []viewRecord {
	for _, rec := range records {
		if rec.Result.View == view {
			return []viewRecord{rec}
		}
	}
	return nil
}

func rebuild(records []viewRecord) *types.Snapshot {
	views := make([]types.ViewID, 0, len(records))
	results := make([]types.ViewResult, 0, len(records))
	for _, rec := range records {
		views = append(views, rec.Result.View)
		results = append(results, rec.Result)
	}
	first := records[0]
	return types.NewSnapshot(first.RunID, views, results, first.StartedAt,
		time.Duration(first.TotalElapsedMs)*time.Millisecond)
}

// hasPartition reports whether any file in the snapshot sits under a
// key=... Hive segment.
func hasPartition(snap *lode.Snapshot, key string) bool {
	for _, f := range snap.Manifest.Files {
		for _, part := range strings.Split(f.Path, "/") {
			if strings.HasPrefix(part, key+"=") {
				return true
			}
		}
	}
	return false
}

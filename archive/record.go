package archive

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/justapithecus/pulse/types"
)

// RecordKindView discriminates view result records in the dataset.
const RecordKindView = "view_result"

// dayFormat is the day partition value format.
const dayFormat = "2006-01-02"

// toRecords flattens a snapshot into one map per result. Run-level fields
// are repeated on every record so a single record is self-describing.
func toRecords(snap *types.Snapshot) []any {
	started := snap.StartedAt().UTC()
	requested := snap.RequestedViews()
	records := make([]any, 0, snap.Len())
	for pos, r := range snap.Results() {
		rec := map[string]any{
			"record_kind":      RecordKindView,
			"schema_version":   types.SchemaVersion,
			"day":              started.Format(dayFormat),
			"run_id":           snap.RunID(),
			"started_at":       started.Format(time.RFC3339Nano),
			"total_elapsed_ms": snap.TotalElapsed().Milliseconds(),
			"requested":        len(requested),
			"position":         pos,
			"view":             string(r.View),
			"state":            string(r.State),
			"status":           r.Status(),
			"elapsed_ms":       r.Elapsed.Milliseconds(),
		}
		if r.Err != nil {
			rec["error_kind"] = string(r.Err.Kind)
			rec["error_message"] = r.Err.Message
			if r.Err.RetryAfter != nil {
				rec["retry_after_ms"] = r.Err.RetryAfter.Milliseconds()
			}
		} else if r.Data != nil {
			rec["data"] = r.Data
		}
		records = append(records, rec)
	}
	return records
}

// viewRecord is one decoded record.
type viewRecord struct {
	RunID          string
	StartedAt      time.Time
	TotalElapsedMs int64
	Position       int64
	Result         types.ViewResult
}

// fromRecord decodes a record map read back from the dataset.
// Returns ok=false for records of another kind.
func fromRecord(raw map[string]any) (viewRecord, bool, error) {
	if toString(raw["record_kind"]) != RecordKindView {
		return viewRecord{}, false, nil
	}
	rec := viewRecord{
		RunID:          toString(raw["run_id"]),
		TotalElapsedMs: toInt64(raw["total_elapsed_ms"]),
		Position:       toInt64(raw["position"]),
		Result: types.ViewResult{
			View:    types.ViewID(toString(raw["view"])),
			State:   types.ViewState(toString(raw["state"])),
			Elapsed: time.Duration(toInt64(raw["elapsed_ms"])) * time.Millisecond,
		},
	}
	if s := toString(raw["started_at"]); s != "" {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return viewRecord{}, false, fmt.Errorf("run %s: started_at: %w", rec.RunID, err)
		}
		rec.StartedAt = t
	}

	kind := types.FetchErrorKind(toString(raw["error_kind"]))
	if kind == "" {
		rec.Result.Data = raw["data"]
		return rec, true, nil
	}
	if !kind.Valid() {
		return viewRecord{}, false, fmt.Errorf("run %s view %s: unknown error kind %q", rec.RunID, rec.Result.View, kind)
	}
	rec.Result.Err = &types.FetchError{Kind: kind, Message: toString(raw["error_message"])}
	if _, ok := raw["retry_after_ms"]; ok {
		d := time.Duration(toInt64(raw["retry_after_ms"])) * time.Millisecond
		rec.Result.Err.RetryAfter = &d
	}
	return rec, true, nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

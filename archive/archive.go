// Package archive keeps a history of aggregation runs in a Lode dataset.
//
// Each Snapshot becomes one JSONL write of view records partitioned by
// day and run_id. The archive is opt-in; nothing in the aggregation path
// depends on it.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/pulse/types"
)

// DefaultDataset is the dataset ID used when Config.Dataset is empty.
const DefaultDataset = "pulse"

// Backend names.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Writer persists finished snapshots.
type Writer interface {
	Write(ctx context.Context, snap *types.Snapshot) error
}

// Config selects and configures the archive backend.
type Config struct {
	// Backend is "fs" (default) or "s3".
	Backend string `yaml:"backend"`
	// Dataset is the Lode dataset ID (default "pulse").
	Dataset string `yaml:"dataset"`
	// Path is the fs root directory. Defaults to <UserCacheDir>/pulse/archive.
	Path string `yaml:"path"`
	// S3 configures the s3 backend.
	S3 S3Config `yaml:"s3"`
}

// Archive writes snapshots to a Lode dataset and reads them back.
type Archive struct {
	dataset lode.Dataset
	id      string
}

// New creates an Archive over a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func New(dataset string, factory lode.StoreFactory) (*Archive, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, wrap(err, "init", dataset)
	}
	return &Archive{dataset: ds, id: dataset}, nil
}

// NewFS creates an Archive rooted at a local directory.
func NewFS(dataset, root string) (*Archive, error) {
	if root == "" {
		return nil, errors.New("archive: fs root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, wrap(err, "init", root)
	}
	return New(dataset, lode.NewFSFactory(root))
}

// Open builds the Archive described by cfg.
func Open(ctx context.Context, cfg Config) (*Archive, error) {
	switch cfg.Backend {
	case "", BackendFS:
		root := cfg.Path
		if root == "" {
			dir, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("archive: resolve default path: %w", err)
			}
			root = filepath.Join(dir, "pulse", "archive")
		}
		return NewFS(cfg.Dataset, root)
	case BackendS3:
		return NewS3(ctx, cfg.Dataset, cfg.S3)
	default:
		return nil, fmt.Errorf("archive: unknown backend %q (want fs or s3)", cfg.Backend)
	}
}

func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("day", "run_id"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// Dataset returns the underlying Lode dataset.
func (a *Archive) Dataset() lode.Dataset { return a.dataset }

// Write stores one record per view result. A nil or empty snapshot is a no-op.
func (a *Archive) Write(ctx context.Context, snap *types.Snapshot) error {
	if snap == nil || snap.Len() == 0 {
		return nil
	}
	records := toRecords(snap)
	if _, err := a.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return wrap(err, "write", a.id+"/run_id="+snap.RunID())
	}
	return nil
}

// Latest returns the most recent archived run. See QueryLatest.
func (a *Archive) Latest(ctx context.Context, view types.ViewID) (*types.Snapshot, error) {
	return QueryLatest(ctx, a.dataset, view)
}

var _ Writer = (*Archive)(nil)

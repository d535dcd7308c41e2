package archive

import (
	"context"

	"github.com/justapithecus/pulse/metrics"
	"github.com/justapithecus/pulse/types"
)

// Instrumented wraps a Writer and counts archive writes on a collector.
type Instrumented struct {
	inner     Writer
	collector *metrics.Collector
}

// NewInstrumented wraps w. A nil collector records nothing.
func NewInstrumented(w Writer, collector *metrics.Collector) *Instrumented {
	return &Instrumented{inner: w, collector: collector}
}

// Write delegates to the inner writer and records success or failure.
func (i *Instrumented) Write(ctx context.Context, snap *types.Snapshot) error {
	err := i.inner.Write(ctx, snap)
	if err != nil {
		i.collector.IncArchiveWriteFailure()
	} else {
		i.collector.IncArchiveWriteSuccess()
	}
	return err
}

var _ Writer = (*Instrumented)(nil)

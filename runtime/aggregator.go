// Package runtime runs one aggregation: every selected view is fetched
// concurrently, each bounded by its own deadline, and the results are
// combined into an immutable Snapshot in the caller's order.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/pulse/log"
	"github.com/justapithecus/pulse/metrics"
	"github.com/justapithecus/pulse/registry"
	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// ErrInvalidTimeout is returned when the per-view timeout is not positive.
var ErrInvalidTimeout = errors.New("per-view timeout must be positive")

// AggregatorConfig configures an Aggregator. Every field is optional.
type AggregatorConfig struct {
	// Logger receives per-view debug and warning entries.
	Logger *log.Logger
	// Recorder receives one RecordView per requested view and one RecordRun per run.
	Recorder metrics.Recorder
	// NewRunID overrides run identifier generation (default uuid v4).
	NewRunID func() string
}

// Aggregator fans fetches out over a registry and fans the results back in.
// It holds no per-run state and is safe for concurrent Run calls.
type Aggregator struct {
	registry *registry.Registry
	config   AggregatorConfig
}

// NewAggregator creates an Aggregator over reg.
func NewAggregator(reg *registry.Registry, cfg AggregatorConfig) *Aggregator {
	if cfg.NewRunID == nil {
		cfg.NewRunID = func() string { return uuid.New().String() }
	}
	return &Aggregator{registry: reg, config: cfg}
}

// viewOutcome is what one view's watcher reports back to Run.
type viewOutcome struct {
	index  int
	result types.ViewResult
}

// fetchReturn is what a fetch goroutine hands its watcher.
type fetchReturn struct {
	data types.ViewData
	err  error
}

// Run fetches every view concurrently and returns one result per view in
// the order given.
//
// Every view is resolved before anything launches; an unknown view fails
// the whole run with *registry.UnknownViewError and no Snapshot. Each fetch
// gets a context derived from ctx and bounded by perViewTimeout. A view
// whose deadline passes first is recorded as timed out and its fetch is
// abandoned; a late return is discarded. Cancelling ctx ends the run at
// once with every outstanding view timed out.
func (a *Aggregator) Run(ctx context.Context, views []types.ViewID, perViewTimeout time.Duration) (*types.Snapshot, error) {
	if perViewTimeout <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidTimeout, perViewTimeout)
	}

	sources := make([]source.Source, len(views))
	for i, view := range views {
		src, err := a.registry.AdapterFor(view)
		if err != nil {
			return nil, err
		}
		sources[i] = src
	}

	runID := a.config.NewRunID()
	logger := a.config.Logger.WithRun(runID)
	started := time.Now()

	logger.Debug("run started", map[string]any{
		"views":      len(views),
		"timeout_ms": perViewTimeout.Milliseconds(),
	})

	// Sized to len(views) so watchers never block on send, even after Run
	// has stopped collecting.
	collected := make(chan viewOutcome, len(views))
	for i := range views {
		go a.watch(ctx, i, views[i], sources[i], perViewTimeout, collected, logger)
	}

	results := make([]types.ViewResult, len(views))
	filled := make([]bool, len(views))
	remaining := len(views)

	for remaining > 0 {
		select {
		case out := <-collected:
			results[out.index] = out.result
			filled[out.index] = true
			remaining--
		case <-ctx.Done():
			remaining -= drain(collected, results, filled)
			elapsed := time.Since(started)
			for i, ok := range filled {
				if ok {
					continue
				}
				results[i] = types.ViewResult{
					View:    views[i],
					State:   types.StateTimedOut,
					Err:     types.Timeout(),
					Elapsed: elapsed,
				}
				filled[i] = true
				remaining--
			}
			logger.Warn("run cancelled", map[string]any{"error": ctx.Err().Error()})
		}
	}

	total := time.Since(started)
	snap := types.NewSnapshot(runID, views, results, started, total)

	sum := snap.Summary()
	if a.config.Recorder != nil {
		for _, r := range results {
			a.config.Recorder.RecordView(string(r.View), r.Status(), r.Elapsed)
		}
		a.config.Recorder.RecordRun(sum.Total, sum.Failed, total)
	}
	logger.Debug("run finished", map[string]any{
		"total":            sum.Total,
		"failed":           sum.Failed,
		"timed_out":        sum.TimedOut,
		"total_elapsed_ms": total.Milliseconds(),
	})
	return snap, nil
}

// drain collects results already buffered without blocking and returns
// how many it took.
func drain(collected <-chan viewOutcome, results []types.ViewResult, filled []bool) int {
	n := 0
	for {
		select {
		case out := <-collected:
			results[out.index] = out.result
			filled[out.index] = true
			n++
		default:
			return n
		}
	}
}

// watch runs one view's fetch in its own goroutine and races it against
// the view deadline. Exactly one outcome is sent on out.
func (a *Aggregator) watch(
	ctx context.Context,
	index int,
	view types.ViewID,
	src source.Source,
	timeout time.Duration,
	out chan<- viewOutcome,
	logger *log.Logger,
) {
	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Debug("view launched", map[string]any{"view": string(view)})

	// Buffered so an abandoned fetch can still return and exit.
	done := make(chan fetchReturn, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fetchReturn{err: types.Unexpected(fmt.Sprintf("source panicked: %v", p), nil)}
			}
		}()
		data, err := src.Fetch(fctx)
		done <- fetchReturn{data: data, err: err}
	}()

	result := types.ViewResult{View: view, State: types.StateCompleted}
	select {
	case ret := <-done:
		if ret.err != nil {
			result.Err = source.Classify(ret.err)
			// A source that gives up on its own deadline reports the same
			// outcome as one the watcher abandons.
			if result.Err.Kind == types.KindTimeout && fctx.Err() != nil {
				result.State = types.StateTimedOut
			}
		} else {
			result.Data = ret.data
		}
	case <-fctx.Done():
		result.State = types.StateTimedOut
		result.Err = types.Timeout()
	}
	result.Elapsed = time.Since(start)

	if result.OK() {
		logger.Debug("view completed", map[string]any{
			"view":       string(view),
			"elapsed_ms": result.Elapsed.Milliseconds(),
		})
	} else {
		logger.Warn("view failed", map[string]any{
			"view":       string(view),
			"kind":       string(result.Err.Kind),
			"state":      string(result.State),
			"error":      result.Err.Error(),
			"elapsed_ms": result.Elapsed.Milliseconds(),
		})
	}

	out <- viewOutcome{index: index, result: result}
}

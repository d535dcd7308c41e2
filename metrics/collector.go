// Package metrics counts what pulse does across aggregation runs.
//
// The Collector accumulates in-process counters; the Exporter mirrors the
// view and run counters into Prometheus. Both satisfy Recorder, which the
// aggregator calls once per finished view and once per finished run. This
// package is a leaf with no internal dependencies: views and outcomes are
// plain strings.
package metrics

import (
	"sync"
	"time"
)

// OutcomeOK is the outcome label of a successful view.
// Failed views use their error kind as the outcome.
const OutcomeOK = "ok"

// Recorder receives aggregation events.
type Recorder interface {
	// RecordView is called once per requested view when its result is final.
	RecordView(view, outcome string, elapsed time.Duration)
	// RecordRun is called once per run with the view counts.
	RecordRun(total, failed int, elapsed time.Duration)
}

// ViewStats are the counters for one view.
type ViewStats struct {
	Fetches  int64
	Failures int64
	// ByOutcome counts results per outcome label.
	ByOutcome map[string]int64
	// TotalElapsed sums the per-view fetch durations.
	TotalElapsed time.Duration
}

// Snapshot is an immutable point-in-time view of every counter.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Runs
	Runs          int64
	RunsDegraded  int64 // at least one view failed
	ViewsFetched  int64
	ViewsFailed   int64
	LastRunTotal  int
	LastRunFailed int

	Views map[string]ViewStats

	// Cache
	CacheHits   int64
	CacheMisses int64
	CacheErrors int64

	// Archive (per snapshot write)
	ArchiveWriteSuccess int64
	ArchiveWriteFailure int64

	// Notifications (per publish call)
	NotifySuccess int64
	NotifyFailure int64
}

// Collector accumulates metrics across runs.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	runs          int64
	runsDegraded  int64
	viewsFetched  int64
	viewsFailed   int64
	lastRunTotal  int
	lastRunFailed int

	views map[string]*ViewStats

	cacheHits   int64
	cacheMisses int64
	cacheErrors int64

	archiveWriteSuccess int64
	archiveWriteFailure int64

	notifySuccess int64
	notifyFailure int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{views: make(map[string]*ViewStats)}
}

// --- Aggregation ---

// RecordView implements Recorder.
func (c *Collector) RecordView(view, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	vs, ok := c.views[view]
	if !ok {
		vs = &ViewStats{ByOutcome: make(map[string]int64)}
		c.views[view] = vs
	}
	vs.Fetches++
	vs.ByOutcome[outcome]++
	vs.TotalElapsed += elapsed
	c.viewsFetched++
	if outcome != OutcomeOK {
		vs.Failures++
		c.viewsFailed++
	}
}

// RecordRun implements Recorder.
func (c *Collector) RecordRun(total, failed int, _ time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runs++
	if failed > 0 {
		c.runsDegraded++
	}
	c.lastRunTotal = total
	c.lastRunFailed = failed
	c.mu.Unlock()
}

// --- Cache ---

// IncCacheHit records a fresh cache hit.
func (c *Collector) IncCacheHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// IncCacheMiss records a cache miss or a stale entry.
func (c *Collector) IncCacheMiss() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// IncCacheError records a cache store failure that was swallowed.
func (c *Collector) IncCacheError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.cacheErrors++
	c.mu.Unlock()
}

// --- Archive ---

// IncArchiveWriteSuccess records a successful archive write.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveWriteSuccess++
	c.mu.Unlock()
}

// IncArchiveWriteFailure records a failed archive write.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveWriteFailure++
	c.mu.Unlock()
}

// --- Notifications ---

// IncNotifySuccess records a delivered notification.
func (c *Collector) IncNotifySuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notifySuccess++
	c.mu.Unlock()
}

// IncNotifyFailure records a notification that could not be delivered.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notifyFailure++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make(map[string]ViewStats, len(c.views))
	for name, vs := range c.views {
		byOutcome := make(map[string]int64, len(vs.ByOutcome))
		for k, v := range vs.ByOutcome {
			byOutcome[k] = v
		}
		views[name] = ViewStats{
			Fetches:      vs.Fetches,
			Failures:     vs.Failures,
			ByOutcome:    byOutcome,
			TotalElapsed: vs.TotalElapsed,
		}
	}

	return Snapshot{
		Runs:          c.runs,
		RunsDegraded:  c.runsDegraded,
		ViewsFetched:  c.viewsFetched,
		ViewsFailed:   c.viewsFailed,
		LastRunTotal:  c.lastRunTotal,
		LastRunFailed: c.lastRunFailed,
		Views:         views,

		CacheHits:   c.cacheHits,
		CacheMisses: c.cacheMisses,
		CacheErrors: c.cacheErrors,

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,

		NotifySuccess: c.notifySuccess,
		NotifyFailure: c.notifyFailure,
	}
}

// Multi fans every event out to several recorders. Nil entries are skipped.
type Multi []Recorder

// RecordView implements Recorder.
func (m Multi) RecordView(view, outcome string, elapsed time.Duration) {
	for _, r := range m {
		if r != nil {
			r.RecordView(view, outcome, elapsed)
		}
	}
}

// RecordRun implements Recorder.
func (m Multi) RecordRun(total, failed int, elapsed time.Duration) {
	for _, r := range m {
		if r != nil {
			r.RecordRun(total, failed, elapsed)
		}
	}
}

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justapithecus/pulse/metrics"
	"github.com/justapithecus/pulse/registry"
	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// delayed returns data after d, ignoring cancellation.
func delayed(d time.Duration, data types.ViewData, err error) source.Source {
	return source.Func(func(context.Context) (types.ViewData, error) {
		time.Sleep(d)
		return data, err
	})
}

// blocking never returns until release is closed.
func blocking(release <-chan struct{}) source.Source {
	return source.Func(func(context.Context) (types.ViewData, error) {
		<-release
		return "late", nil
	})
}

func newTestAggregator(t *testing.T, cfg AggregatorConfig, entries ...registry.Entry) *Aggregator {
	t.Helper()
	reg, err := registry.New(entries...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = func() string { return "run-test" }
	}
	return NewAggregator(reg, cfg)
}

func releaseOnCleanup(t *testing.T) chan struct{} {
	t.Helper()
	ch := make(chan struct{})
	t.Cleanup(func() { close(ch) })
	return ch
}

func TestRun_OrderFollowsInputNotCompletion(t *testing.T) {
	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "a", Source: delayed(50*time.Millisecond, "A", nil)},
		registry.Entry{ID: "b", Source: delayed(5*time.Millisecond, "B", nil)},
		registry.Entry{ID: "c", Source: delayed(20*time.Millisecond, "C", nil)},
	)

	views := []types.ViewID{"a", "b", "c"}
	snap, err := agg.Run(t.Context(), views, time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	results := snap.Results()
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []string{"A", "B", "C"} {
		if results[i].View != views[i] {
			t.Errorf("result %d view = %s, want %s", i, results[i].View, views[i])
		}
		if results[i].Data != want {
			t.Errorf("result %d data = %v, want %s", i, results[i].Data, want)
		}
	}
	if snap.RunID() != "run-test" {
		t.Errorf("run id = %q", snap.RunID())
	}
}

func TestRun_RunsConcurrently(t *testing.T) {
	var entries []registry.Entry
	var views []types.ViewID
	for i := range 8 {
		id := types.ViewID(fmt.Sprintf("v%d", i))
		entries = append(entries, registry.Entry{ID: id, Source: delayed(50*time.Millisecond, i, nil)})
		views = append(views, id)
	}
	agg := newTestAggregator(t, AggregatorConfig{}, entries...)

	start := time.Now()
	snap, err := agg.Run(t.Context(), views, time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("8 x 50ms views took %s; fetches should overlap", elapsed)
	}
	if snap.Summary().Succeeded != 8 {
		t.Errorf("summary = %+v", snap.Summary())
	}
}

func TestRun_MixedOutcomes(t *testing.T) {
	release := releaseOnCleanup(t)
	retry := 30 * time.Second

	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "jira", Source: delayed(10*time.Millisecond, []string{"A-1", "A-2", "A-3"}, nil)},
		registry.Entry{ID: "gh", Source: delayed(15*time.Millisecond, nil, types.RateLimited(&retry, "secondary"))},
		registry.Entry{ID: "slack", Source: blocking(release)},
	)

	start := time.Now()
	snap, err := agg.Run(t.Context(), []types.ViewID{"jira", "gh", "slack"}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 190*time.Millisecond || elapsed > time.Second {
		t.Errorf("run took %s, want about 200ms", elapsed)
	}

	r := snap.Results()
	if !r[0].OK() || len(r[0].Data.([]string)) != 3 {
		t.Errorf("jira = %+v", r[0])
	}
	if r[1].State != types.StateCompleted || !errors.Is(r[1].Err, types.ErrRateLimited) {
		t.Errorf("gh = %+v", r[1])
	}
	if r[1].Err.RetryAfter == nil || *r[1].Err.RetryAfter != retry {
		t.Errorf("gh retry-after lost: %+v", r[1].Err)
	}
	if r[2].State != types.StateTimedOut || !errors.Is(r[2].Err, types.ErrTimeout) {
		t.Errorf("slack = %+v", r[2])
	}
}

func TestRun_FaultIsolation(t *testing.T) {
	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "ok1", Source: source.Static(1)},
		registry.Entry{ID: "bad", Source: delayed(0, nil, errors.New("boom"))},
		registry.Entry{ID: "ok2", Source: source.Static(2)},
	)

	snap, err := agg.Run(t.Context(), []types.ViewID{"ok1", "bad", "ok2"}, time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r := snap.Results()
	if !r[0].OK() || !r[2].OK() {
		t.Errorf("healthy views affected: %+v %+v", r[0], r[2])
	}
	if !errors.Is(r[1].Err, types.ErrUnexpected) {
		t.Errorf("bad = %+v, want unexpected", r[1])
	}
}

func TestRun_UnknownKindBecomesUnexpected(t *testing.T) {
	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "x", Source: delayed(0, nil, &types.FetchError{Message: "no kind"})},
	)

	snap, err := agg.Run(t.Context(), []types.ViewID{"x"}, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r := snap.Results()[0]
	if r.Err == nil || r.Err.Kind != types.KindUnexpected {
		t.Fatalf("got %v, want unexpected", r.Err)
	}
	if _, ok := snap.Summary().ByKind[""]; ok {
		t.Error("empty kind leaked into summary")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded types.Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func TestRun_SharedSourceErrorDoesNotAlterSnapshot(t *testing.T) {
	shared := types.Network("upstream down", nil)
	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "x", Source: delayed(0, nil, shared)},
	)

	snap, err := agg.Run(t.Context(), []types.ViewID{"x"}, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	shared.Kind = types.KindUnauthorized

	if got := snap.Results()[0].Err.Kind; got != types.KindNetwork {
		t.Errorf("Kind = %s, want network", got)
	}
}

func TestRun_PanicIsRecovered(t *testing.T) {
	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "panics", Source: source.Func(func(context.Context) (types.ViewData, error) {
			panic("nil map write")
		})},
		registry.Entry{ID: "fine", Source: source.Static("ok")},
	)

	snap, err := agg.Run(t.Context(), []types.ViewID{"panics", "fine"}, time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r := snap.Results()
	if !errors.Is(r[0].Err, types.ErrUnexpected) || r[0].State != types.StateCompleted {
		t.Errorf("panics = %+v", r[0])
	}
	if !r[1].OK() {
		t.Errorf("fine = %+v", r[1])
	}
}

func TestRun_UnknownViewLaunchesNothing(t *testing.T) {
	var calls atomic.Int32
	counting := source.Func(func(context.Context) (types.ViewData, error) {
		calls.Add(1)
		return nil, nil
	})
	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "jira", Source: counting},
	)

	snap, err := agg.Run(t.Context(), []types.ViewID{"jira", "jria"}, time.Second)
	if !errors.Is(err, registry.ErrUnknownView) {
		t.Fatalf("expected ErrUnknownView, got %v", err)
	}
	if snap != nil {
		t.Error("expected no snapshot")
	}
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 0 {
		t.Errorf("source called %d times, want 0", calls.Load())
	}
}

func TestRun_InvalidTimeout(t *testing.T) {
	agg := newTestAggregator(t, AggregatorConfig{}, registry.Entry{ID: "a", Source: source.Static(1)})
	for _, d := range []time.Duration{0, -time.Second} {
		if _, err := agg.Run(t.Context(), []types.ViewID{"a"}, d); !errors.Is(err, ErrInvalidTimeout) {
			t.Errorf("timeout %s: got %v, want ErrInvalidTimeout", d, err)
		}
	}
}

func TestRun_EmptySelection(t *testing.T) {
	agg := newTestAggregator(t, AggregatorConfig{}, registry.Entry{ID: "a", Source: source.Static(1)})
	snap, err := agg.Run(t.Context(), nil, time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("expected empty snapshot, got %d results", snap.Len())
	}
}

func TestRun_LateResultIsDiscarded(t *testing.T) {
	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "slow", Source: delayed(80*time.Millisecond, "late", nil)},
	)

	snap, err := agg.Run(t.Context(), []types.ViewID{"slow"}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	time.Sleep(120 * time.Millisecond)

	r, _ := snap.Result("slow")
	if r.State != types.StateTimedOut || r.Data != nil {
		t.Errorf("late completion leaked into snapshot: %+v", r)
	}
}

func TestRun_SourceHonoringDeadlineIsTimedOut(t *testing.T) {
	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "polite", Source: source.Func(func(ctx context.Context) (types.ViewData, error) {
			<-ctx.Done()
			return nil, fmt.Errorf("GET /search: %w", ctx.Err())
		})},
	)

	snap, err := agg.Run(t.Context(), []types.ViewID{"polite"}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r, _ := snap.Result("polite")
	if r.State != types.StateTimedOut || !errors.Is(r.Err, types.ErrTimeout) {
		t.Errorf("polite = %+v", r)
	}
}

func TestRun_GlobalCancelReturnsPromptly(t *testing.T) {
	release := releaseOnCleanup(t)
	agg := newTestAggregator(t, AggregatorConfig{},
		registry.Entry{ID: "fast", Source: source.Static("done")},
		registry.Entry{ID: "hung1", Source: blocking(release)},
		registry.Entry{ID: "hung2", Source: blocking(release)},
	)

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	snap, err := agg.Run(ctx, []types.ViewID{"fast", "hung1", "hung2"}, 10*time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("cancel took %s to take effect", elapsed)
	}

	r := snap.Results()
	if !r[0].OK() {
		t.Errorf("fast = %+v", r[0])
	}
	for _, hung := range r[1:] {
		if hung.State != types.StateTimedOut || !errors.Is(hung.Err, types.ErrTimeout) {
			t.Errorf("%s = %+v, want timed out", hung.View, hung)
		}
	}
}

func TestRun_RecordsEveryViewOnce(t *testing.T) {
	release := releaseOnCleanup(t)
	collector := metrics.NewCollector()
	agg := newTestAggregator(t, AggregatorConfig{Recorder: collector},
		registry.Entry{ID: "ok", Source: source.Static(1)},
		registry.Entry{ID: "hung", Source: blocking(release)},
	)

	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(20*time.Millisecond, cancel)
	if _, err := agg.Run(ctx, []types.ViewID{"ok", "hung"}, 10*time.Second); err != nil {
		t.Fatalf("run: %v", err)
	}
	// Let the abandoned watcher observe the cancellation too.
	time.Sleep(20 * time.Millisecond)

	s := collector.Snapshot()
	if s.ViewsFetched != 2 || s.ViewsFailed != 1 {
		t.Errorf("views fetched/failed = %d/%d, want 2/1", s.ViewsFetched, s.ViewsFailed)
	}
	if s.Views["hung"].ByOutcome[string(types.KindTimeout)] != 1 {
		t.Errorf("hung outcomes = %v", s.Views["hung"].ByOutcome)
	}
	if s.Runs != 1 || s.RunsDegraded != 1 {
		t.Errorf("runs = %d degraded = %d", s.Runs, s.RunsDegraded)
	}
}

func TestNewAggregator_DefaultRunIDsAreUnique(t *testing.T) {
	reg, err := registry.New(registry.Entry{ID: "a", Source: source.Static(1)})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	agg := NewAggregator(reg, AggregatorConfig{})

	s1, _ := agg.Run(t.Context(), []types.ViewID{"a"}, time.Second)
	s2, _ := agg.Run(t.Context(), []types.ViewID{"a"}, time.Second)
	if s1.RunID() == "" || s1.RunID() == s2.RunID() {
		t.Errorf("run ids %q and %q should be distinct and non-empty", s1.RunID(), s2.RunID())
	}
}

package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// ViewState is the terminal state of one view inside one aggregation run.
// A view moves NotStarted -> InFlight -> Completed | TimedOut; only the
// terminal states are ever recorded.
type ViewState string

const (
	// StateCompleted means the adapter returned, successfully or not.
	StateCompleted ViewState = "completed"
	// StateTimedOut means the view's deadline elapsed first. Late results
	// from the adapter are discarded.
	StateTimedOut ViewState = "timed_out"
)

// ViewResult is the outcome of one view in one run.
// Exactly one of Data and Err is meaningful: Err == nil means success.
type ViewResult struct {
	View    ViewID
	State   ViewState
	Data    ViewData
	Err     *FetchError
	Elapsed time.Duration
}

// OK reports whether the view succeeded.
func (r ViewResult) OK() bool {
	return r.Err == nil
}

// Status returns "ok" or the failure kind.
func (r ViewResult) Status() string {
	if r.Err == nil {
		return "ok"
	}
	return string(r.Err.Kind)
}

// clone copies r including its error. Data is opaque and shared.
func (r ViewResult) clone() ViewResult {
	r.Err = r.Err.Clone()
	return r
}

func cloneResults(results []ViewResult) []ViewResult {
	if results == nil {
		return nil
	}
	out := make([]ViewResult, len(results))
	for i, r := range results {
		out[i] = r.clone()
	}
	return out
}

// Summary counts the outcomes of one snapshot.
type Summary struct {
	Total     int                    `json:"total" yaml:"total"`
	Succeeded int                    `json:"succeeded" yaml:"succeeded"`
	Failed    int                    `json:"failed" yaml:"failed"`
	TimedOut  int                    `json:"timed_out" yaml:"timed_out"`
	ByKind    map[FetchErrorKind]int `json:"by_kind,omitempty" yaml:"by_kind,omitempty"`
}

// Snapshot is the immutable combined result of one aggregation run.
// Fields are unexported; accessors hand out copies, errors included, so a
// returned Snapshot cannot be changed by its consumers, by late adapter
// completions, or by a source that reuses one *FetchError across runs.
type Snapshot struct {
	runID          string
	requestedViews []ViewID
	results        []ViewResult
	startedAt      time.Time
	totalElapsed   time.Duration
}

// NewSnapshot assembles a Snapshot. Slices and errors are copied.
// results must already be in requested order.
func NewSnapshot(runID string, requested []ViewID, results []ViewResult, startedAt time.Time, totalElapsed time.Duration) *Snapshot {
	return &Snapshot{
		runID:          runID,
		requestedViews: append([]ViewID(nil), requested...),
		results:        cloneResults(results),
		startedAt:      startedAt,
		totalElapsed:   totalElapsed,
	}
}

// RunID identifies the aggregation run that produced the snapshot.
func (s *Snapshot) RunID() string { return s.runID }

// RequestedViews returns the views the run was asked for, in caller order.
func (s *Snapshot) RequestedViews() []ViewID {
	return append([]ViewID(nil), s.requestedViews...)
}

// Results returns one result per requested view, in caller order.
func (s *Snapshot) Results() []ViewResult {
	return cloneResults(s.results)
}

// Len returns the number of results.
func (s *Snapshot) Len() int { return len(s.results) }

// Result returns the result for a view.
func (s *Snapshot) Result(view ViewID) (ViewResult, bool) {
	for _, r := range s.results {
		if r.View == view {
			return r.clone(), true
		}
	}
	return ViewResult{}, false
}

// StartedAt is the wall-clock time the run started.
func (s *Snapshot) StartedAt() time.Time { return s.startedAt }

// TotalElapsed is the wall-clock duration of the whole run.
func (s *Snapshot) TotalElapsed() time.Duration { return s.totalElapsed }

// Summary counts successes and failures.
func (s *Snapshot) Summary() Summary {
	sum := Summary{Total: len(s.results)}
	for _, r := range s.results {
		if r.OK() {
			sum.Succeeded++
			continue
		}
		sum.Failed++
		if r.State == StateTimedOut {
			sum.TimedOut++
		}
		if sum.ByKind == nil {
			sum.ByKind = make(map[FetchErrorKind]int)
		}
		sum.ByKind[r.Err.Kind]++
	}
	return sum
}

// wireError is the serialized form of a FetchError.
type wireError struct {
	Kind         FetchErrorKind `json:"kind" yaml:"kind"`
	Message      string         `json:"message,omitempty" yaml:"message,omitempty"`
	RetryAfterMs *int64         `json:"retry_after_ms,omitempty" yaml:"retry_after_ms,omitempty"`
}

// wireResult is the serialized form of a ViewResult.
type wireResult struct {
	View      ViewID     `json:"view" yaml:"view"`
	State     ViewState  `json:"state" yaml:"state"`
	Status    string     `json:"status" yaml:"status"`
	Data      any        `json:"data,omitempty" yaml:"data,omitempty"`
	Error     *wireError `json:"error,omitempty" yaml:"error,omitempty"`
	ElapsedMs int64      `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// wireSnapshot is the serialized form of a Snapshot.
type wireSnapshot struct {
	SchemaVersion  string       `json:"schema_version" yaml:"schema_version"`
	RunID          string       `json:"run_id" yaml:"run_id"`
	StartedAt      time.Time    `json:"started_at" yaml:"started_at"`
	TotalElapsedMs int64        `json:"total_elapsed_ms" yaml:"total_elapsed_ms"`
	RequestedViews []ViewID     `json:"requested_views" yaml:"requested_views"`
	Results        []wireResult `json:"results" yaml:"results"`
	Summary        Summary      `json:"summary" yaml:"summary"`
}

func toWireResult(r ViewResult) wireResult {
	w := wireResult{
		View:      r.View,
		State:     r.State,
		Status:    "ok",
		ElapsedMs: r.Elapsed.Milliseconds(),
	}
	if r.Err == nil {
		w.Data = r.Data
		return w
	}
	w.Status = "error"
	w.Error = &wireError{Kind: r.Err.Kind, Message: r.Err.Message}
	if r.Err.RetryAfter != nil {
		ms := r.Err.RetryAfter.Milliseconds()
		w.Error.RetryAfterMs = &ms
	}
	return w
}

// MarshalJSON implements json.Marshaler.
func (r ViewResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWireResult(r))
}

func fromWireResult(w wireResult) (ViewResult, error) {
	r := ViewResult{
		View:    w.View,
		State:   w.State,
		Elapsed: time.Duration(w.ElapsedMs) * time.Millisecond,
	}
	if w.Error == nil {
		r.Data = w.Data
		return r, nil
	}
	if !w.Error.Kind.Valid() {
		return ViewResult{}, fmt.Errorf("view %s: unknown error kind %q", w.View, w.Error.Kind)
	}
	r.Err = &FetchError{Kind: w.Error.Kind, Message: w.Error.Message}
	if w.Error.RetryAfterMs != nil {
		d := time.Duration(*w.Error.RetryAfterMs) * time.Millisecond
		r.Err.RetryAfter = &d
	}
	return r, nil
}

func (s *Snapshot) wire() wireSnapshot {
	results := make([]wireResult, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, toWireResult(r))
	}
	requested := s.requestedViews
	if requested == nil {
		requested = []ViewID{}
	}
	return wireSnapshot{
		SchemaVersion:  SchemaVersion,
		RunID:          s.runID,
		StartedAt:      s.startedAt,
		TotalElapsedMs: s.totalElapsed.Milliseconds(),
		RequestedViews: requested,
		Results:        results,
		Summary:        s.Summary(),
	}
}

// MarshalJSON implements json.Marshaler.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wire())
}

// MarshalYAML implements yaml.Marshaler with the same shape as JSON.
func (s *Snapshot) MarshalYAML() (any, error) {
	return s.wire(), nil
}

// UnmarshalJSON implements json.Unmarshaler. View data decodes into
// generic JSON values since the concrete adapter types are not known here.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	results := make([]ViewResult, 0, len(w.Results))
	for _, wr := range w.Results {
		r, err := fromWireResult(wr)
		if err != nil {
			return err
		}
		results = append(results, r)
	}
	*s = Snapshot{
		runID:          w.RunID,
		requestedViews: w.RequestedViews,
		results:        results,
		startedAt:      w.StartedAt,
		totalElapsed:   time.Duration(w.TotalElapsedMs) * time.Millisecond,
	}
	return nil
}

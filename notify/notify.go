// Package notify defines the snapshot notification boundary.
//
// Notifiers publish a summary of each finished aggregation run to a
// downstream system. Delivery failures are reported to the caller and
// never change the Snapshot.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justapithecus/pulse/metrics"
	"github.com/justapithecus/pulse/types"
)

// EventTypeSnapshotCompleted is the only event type published.
const EventTypeSnapshotCompleted = "snapshot_completed"

// Failure describes one failed view in a SnapshotEvent.
type Failure struct {
	View    string `json:"view"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

// SnapshotEvent is the payload published when a run finishes.
type SnapshotEvent struct {
	SchemaVersion string    `json:"schema_version"`
	EventType     string    `json:"event_type"` // always "snapshot_completed"
	RunID         string    `json:"run_id"`
	Timestamp     string    `json:"timestamp"` // RFC 3339, run start
	DurationMs    int64     `json:"duration_ms"`
	Total         int       `json:"total"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	TimedOut      int       `json:"timed_out"`
	Failures      []Failure `json:"failures,omitempty"`
}

// Degraded reports whether any view failed.
func (e *SnapshotEvent) Degraded() bool { return e.Failed > 0 }

// NewSnapshotEvent summarizes snap. Failures keep the snapshot's view order.
func NewSnapshotEvent(snap *types.Snapshot) *SnapshotEvent {
	sum := snap.Summary()
	event := &SnapshotEvent{
		SchemaVersion: types.SchemaVersion,
		EventType:     EventTypeSnapshotCompleted,
		RunID:         snap.RunID(),
		Timestamp:     snap.StartedAt().UTC().Format(time.RFC3339),
		DurationMs:    snap.TotalElapsed().Milliseconds(),
		Total:         sum.Total,
		Succeeded:     sum.Succeeded,
		Failed:        sum.Failed,
		TimedOut:      sum.TimedOut,
	}
	for _, r := range snap.Results() {
		if r.OK() {
			continue
		}
		event.Failures = append(event.Failures, Failure{
			View:    string(r.View),
			Kind:    string(r.Err.Kind),
			Message: r.Err.Message,
		})
	}
	return event
}

// Notifier publishes snapshot events to a downstream system.
type Notifier interface {
	// Publish sends the event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SnapshotEvent) error

	// Close releases notifier resources.
	Close() error
}

// Multi publishes to every notifier in order and joins their errors.
type Multi []Notifier

// Publish delivers event to every notifier, even after a failure.
func (m Multi) Publish(ctx context.Context, event *SnapshotEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier.
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.Close())
	}
	return errors.Join(errs...)
}

// Instrumented counts deliveries on a collector.
type Instrumented struct {
	inner     Notifier
	collector *metrics.Collector
}

// NewInstrumented wraps n. A nil collector records nothing.
func NewInstrumented(n Notifier, collector *metrics.Collector) *Instrumented {
	return &Instrumented{inner: n, collector: collector}
}

// Publish delegates to the inner notifier and records success or failure.
func (i *Instrumented) Publish(ctx context.Context, event *SnapshotEvent) error {
	err := i.inner.Publish(ctx, event)
	if err != nil {
		i.collector.IncNotifyFailure()
	} else {
		i.collector.IncNotifySuccess()
	}
	return err
}

// Close delegates to the inner notifier.
func (i *Instrumented) Close() error {
	return i.inner.Close()
}

// BaseBackoff is the delay before the first retry. It doubles per attempt.
var BaseBackoff = 500 * time.Millisecond

// Permanent marks err as non-retriable for Retry.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early on success, on a Permanent error, or when ctx
// is done. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, fn func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s: non-retriable error: %w", name, perm.err)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}

var (
	_ Notifier = Multi(nil)
	_ Notifier = (*Instrumented)(nil)
)

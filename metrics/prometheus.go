package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter mirrors aggregation events into Prometheus collectors.
type Exporter struct {
	gatherer prometheus.Gatherer

	viewFetches  *prometheus.CounterVec
	viewLatency  *prometheus.HistogramVec
	runs         prometheus.Counter
	runsDegraded prometheus.Counter
	lastFailed   prometheus.Gauge
	runLatency   prometheus.Histogram
}

// NewExporter registers pulse collectors on reg. A nil reg uses a fresh
// registry so repeated construction in tests never collides.
func NewExporter(reg *prometheus.Registry) *Exporter {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	e := &Exporter{
		gatherer: reg,
		viewFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_view_fetch_total",
			Help: "View fetches by view and outcome (ok or error kind).",
		}, []string{"view", "outcome"}),
		viewLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_view_fetch_seconds",
			Help:    "Per-view fetch latency, including timed-out views.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"view"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_runs_total",
			Help: "Completed aggregation runs.",
		}),
		runsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulse_runs_degraded_total",
			Help: "Aggregation runs with at least one failed view.",
		}),
		lastFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_last_run_failed_views",
			Help: "Failed views in the most recent run.",
		}),
		runLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_run_seconds",
			Help:    "Wall-clock duration of aggregation runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	reg.MustRegister(e.viewFetches, e.viewLatency, e.runs, e.runsDegraded, e.lastFailed, e.runLatency)
	return e
}

// RecordView implements Recorder.
func (e *Exporter) RecordView(view, outcome string, elapsed time.Duration) {
	e.viewFetches.WithLabelValues(view, outcome).Inc()
	e.viewLatency.WithLabelValues(view).Observe(elapsed.Seconds())
}

// RecordRun implements Recorder.
func (e *Exporter) RecordRun(total, failed int, elapsed time.Duration) {
	e.runs.Inc()
	if failed > 0 {
		e.runsDegraded.Inc()
	}
	e.lastFailed.Set(float64(failed))
	e.runLatency.Observe(elapsed.Seconds())
}

// Handler serves the exporter's registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{})
}

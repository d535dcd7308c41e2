package cmd

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pulse/iox"
	"github.com/justapithecus/pulse/metrics"
	"github.com/justapithecus/pulse/types"
)

// MetricsAddrFlag serves Prometheus metrics while watching.
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
}

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Re-run the aggregation on an interval until interrupted",
		Flags:  append(RunFlags(), IntervalFlag, MetricsAddrFlag),
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	r, err := newRenderer(c)
	if err != nil {
		return fatal(err)
	}

	interval := c.Duration("interval")
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	opts := dashboardOptionsFrom(c)
	if addr := c.String("metrics-addr"); addr != "" {
		opts.Exporter = metrics.NewExporter(nil)
		stop, err := serveMetrics(addr, opts.Exporter)
		if err != nil {
			return fatal(err)
		}
		defer stop()
	}

	d, err := newDashboard(ctx, opts)
	if err != nil {
		return fatal(err)
	}
	defer iox.DiscardClose(d)

	last, err := watchLoop(ctx, d.Run, interval, r.Render)
	if err != nil {
		return fatal(err)
	}
	return exitWith(d.ExitCode(last))
}

// watchLoop runs immediately and then once per interval, handing each
// snapshot to emit. Returns the last snapshot once ctx is done.
func watchLoop(
	ctx context.Context,
	run func(context.Context) (*types.Snapshot, error),
	interval time.Duration,
	emit func(any) error,
) (*types.Snapshot, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *types.Snapshot
	for {
		snap, err := run(ctx)
		if err != nil {
			return last, err
		}
		last = snap
		if err := emit(snap); err != nil {
			return last, err
		}

		select {
		case <-ctx.Done():
			return last, nil
		case <-ticker.C:
		}
	}
}

// serveMetrics starts a /metrics listener and returns its shutdown func.
func serveMetrics(addr string, exporter *metrics.Exporter) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

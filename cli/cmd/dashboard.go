package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pulse/archive"
	"github.com/justapithecus/pulse/cache"
	"github.com/justapithecus/pulse/cli/config"
	"github.com/justapithecus/pulse/integration"
	"github.com/justapithecus/pulse/iox"
	"github.com/justapithecus/pulse/log"
	"github.com/justapithecus/pulse/metrics"
	"github.com/justapithecus/pulse/notify"
	"github.com/justapithecus/pulse/notify/mqtt"
	"github.com/justapithecus/pulse/notify/redis"
	"github.com/justapithecus/pulse/notify/webhook"
	"github.com/justapithecus/pulse/registry"
	"github.com/justapithecus/pulse/runtime"
	"github.com/justapithecus/pulse/types"
)

// dashboardOptions are the command-line inputs of one aggregation command.
type dashboardOptions struct {
	ConfigPath string
	Verbose    bool
	Only       []string
	Except     []string
	All        bool
	Timeout    time.Duration
	Strict     bool
	Archive    bool
	Notify     bool
	// Refresh bypasses cached view data and overwrites it.
	Refresh bool

	// Exporter mirrors run metrics into Prometheus when set.
	Exporter *metrics.Exporter
	// HTTPClient overrides the transport used by every source.
	HTTPClient *http.Client
	// Stderr receives logs (default os.Stderr).
	Stderr io.Writer
}

func dashboardOptionsFrom(c *cli.Context) dashboardOptions {
	return dashboardOptions{
		ConfigPath: c.String("config"),
		Verbose:    c.Bool("verbose"),
		Only:       c.StringSlice("only"),
		Except:     c.StringSlice("except"),
		All:        c.Bool("all"),
		Timeout:    c.Duration("timeout"),
		Strict:     c.Bool("strict"),
		Archive:    c.Bool("archive"),
		Notify:     c.Bool("notify"),
		Stderr:     c.App.ErrWriter,
	}
}

// dashboard holds everything one command needs to run aggregations.
// Build it once with newDashboard and Close it when done.
type dashboard struct {
	config     *config.Config
	logger     *log.Logger
	registry   *registry.Registry
	aggregator *runtime.Aggregator
	views      []types.ViewID
	timeout    time.Duration
	strict     bool
	collector  *metrics.Collector

	store    cache.Store
	archive  archive.Writer
	notifier notify.Notifier
	// archiveTimeout bounds one archive write (default DefaultArchiveTimeout).
	archiveTimeout time.Duration
}

// newDashboard loads config, builds the registry and resolves the view
// selection. Any error here is fatal: no run is attempted.
func newDashboard(ctx context.Context, opts dashboardOptions) (*dashboard, error) {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	level := log.WarnLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	logger := log.NewLogger(stderr, level)

	cfg, path, err := config.LoadResolved(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if path != "" {
		logger.Debug("loaded config", map[string]any{"path": path})
	}

	d := &dashboard{
		config:    cfg,
		logger:    logger,
		strict:    opts.Strict,
		collector: metrics.NewCollector(),
		timeout:   resolveTimeout(opts.Timeout, cfg.Timeout.Duration),
	}

	store, err := cache.Open(cfg.Cache.Config)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	d.store = store

	reg, err := integration.NewRegistry(cfg.Config, integration.CatalogOptions{
		Options:  integration.Options{HTTPClient: opts.HTTPClient},
		Disabled: cfg.Views.DisabledIDs(),
		Store:    store,
		CacheTTL: cfg.Cache.TTL.Duration,
		Refresh:  opts.Refresh,
		OnCacheError: func(view types.ViewID, err error) {
			logger.Warn("cache error", map[string]any{"view": string(view), "error": err.Error()})
		},
		Metrics: d.collector,
	})
	if err != nil {
		iox.DiscardClose(d)
		return nil, err
	}
	d.registry = reg

	d.views, err = selectViews(reg, opts, cfg.Views)
	if err != nil {
		iox.DiscardClose(d)
		return nil, err
	}

	recorder := metrics.Multi{d.collector}
	if opts.Exporter != nil {
		recorder = append(recorder, opts.Exporter)
	}
	d.aggregator = runtime.NewAggregator(reg, runtime.AggregatorConfig{
		Logger:   logger,
		Recorder: recorder,
	})

	if opts.Archive || cfg.Archive.Enabled {
		a, err := archive.Open(ctx, cfg.Archive.Config)
		if err != nil {
			iox.DiscardClose(d)
			return nil, err
		}
		d.archive = archive.NewInstrumented(a, d.collector)
	}

	if opts.Notify || cfg.Notify.Enabled {
		n, err := buildNotifier(cfg.Notify)
		if err != nil {
			iox.DiscardClose(d)
			return nil, err
		}
		d.notifier = notify.NewInstrumented(n, d.collector)
	}

	return d, nil
}

// DefaultArchiveTimeout bounds one archive write. Notifiers carry their own
// per-attempt timeouts.
const DefaultArchiveTimeout = 30 * time.Second

// resolveTimeout applies flag, then config, then the default.
func resolveTimeout(flag, configured time.Duration) time.Duration {
	switch {
	case flag > 0:
		return flag
	case configured > 0:
		return configured
	default:
		return config.DefaultTimeout
	}
}

// selectViews resolves the selection flags against reg. Selection flags
// replace the config's views.only and views.except entirely.
func selectViews(reg *registry.Registry, opts dashboardOptions, views config.ViewsConfig) ([]types.ViewID, error) {
	only, except := opts.Only, opts.Except
	if len(only) == 0 && len(except) == 0 && !opts.All {
		only, except = views.Only, views.Except
	}
	sel, err := registry.ParseSelection(only, except, opts.All)
	if err != nil {
		return nil, err
	}
	return sel.Resolve(reg)
}

// buildNotifier opens one notifier per configured block.
func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	if !cfg.Configured() {
		return nil, errors.New("notify: no notifier configured (add notify.webhook, notify.redis or notify.mqtt)")
	}
	var multi notify.Multi
	fail := func(err error) (notify.Notifier, error) {
		iox.DiscardClose(multi)
		return nil, err
	}
	if cfg.Webhook != nil {
		n, err := webhook.New(cfg.Webhook.Notifier())
		if err != nil {
			return fail(err)
		}
		multi = append(multi, n)
	}
	if cfg.Redis != nil {
		n, err := redis.New(cfg.Redis.Notifier())
		if err != nil {
			return fail(err)
		}
		multi = append(multi, n)
	}
	if cfg.MQTT != nil {
		n, err := mqtt.New(cfg.MQTT.Notifier())
		if err != nil {
			return fail(err)
		}
		multi = append(multi, n)
	}
	return multi, nil
}

// Run performs one aggregation, then archives and publishes the snapshot.
// Archive and notify failures are logged and never change the snapshot.
func (d *dashboard) Run(ctx context.Context) (*types.Snapshot, error) {
	snap, err := d.aggregator.Run(ctx, d.views, d.timeout)
	if err != nil {
		return nil, err
	}
	logger := d.logger.WithRun(snap.RunID())
	sum := snap.Summary()
	logger.Debug("run complete", map[string]any{
		"views":      sum.Total,
		"failed":     sum.Failed,
		"elapsed_ms": snap.TotalElapsed().Milliseconds(),
	})

	d.deliver(ctx, snap, logger)
	return snap, nil
}

// deliver archives and publishes snap. It outlives a cancelled run so the
// partial snapshot is still kept, but each step stays bounded.
func (d *dashboard) deliver(ctx context.Context, snap *types.Snapshot, logger *log.Logger) {
	deliverCtx := context.WithoutCancel(ctx)
	if d.archive != nil {
		timeout := d.archiveTimeout
		if timeout <= 0 {
			timeout = DefaultArchiveTimeout
		}
		archiveCtx, cancel := context.WithTimeout(deliverCtx, timeout)
		err := d.archive.Write(archiveCtx, snap)
		cancel()
		if err != nil {
			logger.Warn("archive write failed", map[string]any{"error": err.Error()})
		}
	}
	if d.notifier != nil {
		if err := d.notifier.Publish(deliverCtx, notify.NewSnapshotEvent(snap)); err != nil {
			logger.Warn("notify failed", map[string]any{"error": err.Error()})
		}
	}
}

// ExitCode maps a finished run to the process exit code.
func (d *dashboard) ExitCode(snap *types.Snapshot) int {
	return runtime.ExitCode(snap, d.strict)
}

// Close releases the cache store and notifiers.
func (d *dashboard) Close() error {
	var errs []error
	if d.notifier != nil {
		errs = append(errs, d.notifier.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	iox.DiscardErr(d.logger.Sync)
	return errors.Join(errs...)
}

// fatal wraps a setup error with the fatal exit code.
func fatal(err error) error {
	var unknown *registry.UnknownViewError
	if errors.As(err, &unknown) {
		return cli.Exit(unknown.Error(), runtime.ExitCodeFatal)
	}
	return cli.Exit(fmt.Sprintf("Error: %v", err), runtime.ExitCodeFatal)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

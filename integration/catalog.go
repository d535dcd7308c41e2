package integration

import (
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/pulse/cache"
	"github.com/justapithecus/pulse/metrics"
	"github.com/justapithecus/pulse/registry"
	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// Config holds one block per service.
type Config struct {
	Jira      JiraConfig      `yaml:"jira"`
	GitHub    GitHubConfig    `yaml:"github"`
	Slack     SlackConfig     `yaml:"slack"`
	PagerDuty PagerDutyConfig `yaml:"pagerduty"`
	Sentry    SentryConfig    `yaml:"sentry"`
	NewRelic  NewRelicConfig  `yaml:"newrelic"`
}

// CatalogOptions control how the built-in views are registered.
type CatalogOptions struct {
	Options
	// Disabled views are registered but left out of the default selection.
	Disabled []types.ViewID
	// Store enables the read-through cache when non-nil.
	Store cache.Store
	// CacheTTL is the entry lifetime (default cache.DefaultTTL).
	CacheTTL time.Duration
	// Refresh bypasses cached entries and overwrites them.
	Refresh bool
	// OnCacheError receives swallowed cache failures.
	OnCacheError func(view types.ViewID, err error)
	// Metrics counts cache hits and misses. May be nil.
	Metrics *metrics.Collector
}

// NewRegistry registers every built-in view in dashboard order. Views
// without credentials are registered with a source that fails as
// unauthorized so the dashboard can show them as needing auth.
func NewRegistry(cfg Config, opts CatalogOptions) (*registry.Registry, error) {
	disabled := make(map[types.ViewID]bool, len(opts.Disabled))
	for _, id := range opts.Disabled {
		disabled[id] = true
	}

	var entries []registry.Entry
	add := func(e registry.Entry, err error) error {
		if err != nil {
			return fmt.Errorf("view %s: %w", e.ID, err)
		}
		e.Enabled = !disabled[e.ID]
		entries = append(entries, e)
		return nil
	}

	builders := []func() (registry.Entry, error){
		func() (registry.Entry, error) {
			return entry[[]JiraIssue](types.ViewJira, "Jira issues", "jira", cfg.Jira.Configured(),
				fingerprint(cfg.Jira.BaseURL, cfg.Jira.Email, cfg.Jira.JQL),
				func() (source.Source, error) { return NewJira(cfg.Jira, opts.Options) }, opts)
		},
		func() (registry.Entry, error) {
			return entry[[]PullRequest](types.ViewGitHubPRs, "Open pull requests", "github", cfg.GitHub.Configured(),
				fingerprint(cfg.GitHub.BaseURL, cfg.GitHub.Token),
				func() (source.Source, error) { return NewGitHubPRs(cfg.GitHub, opts.Options) }, opts)
		},
		func() (registry.Entry, error) {
			return entry[[]WorkflowRun](types.ViewGitHubRuns, "Workflow runs", "github", cfg.GitHub.Configured(),
				fingerprint(append([]string{cfg.GitHub.BaseURL, cfg.GitHub.Token}, cfg.GitHub.Repos...)...),
				func() (source.Source, error) { return NewGitHubRuns(cfg.GitHub, opts.Options) }, opts)
		},
		func() (registry.Entry, error) {
			return entry[[]SlackMessage](types.ViewSlackUnread, "Slack mentions", "slack", cfg.Slack.Configured(),
				fingerprint(cfg.Slack.BaseURL, cfg.Slack.Token, cfg.Slack.Query),
				func() (source.Source, error) { return NewSlack(cfg.Slack, opts.Options) }, opts)
		},
		func() (registry.Entry, error) {
			return entry[[]Oncall](types.ViewOncall, "On call", "pagerduty", cfg.PagerDuty.Configured(),
				fingerprint(cfg.PagerDuty.BaseURL, cfg.PagerDuty.Token, cfg.PagerDuty.UserID),
				func() (source.Source, error) { return NewPagerDutyOncall(cfg.PagerDuty, opts.Options) }, opts)
		},
		func() (registry.Entry, error) {
			return entry[[]Incident](types.ViewPagerDutyAlerts, "PagerDuty incidents", "pagerduty", cfg.PagerDuty.Configured(),
				fingerprint(append([]string{cfg.PagerDuty.BaseURL, cfg.PagerDuty.Token}, cfg.PagerDuty.ServiceIDs...)...),
				func() (source.Source, error) { return NewPagerDutyAlerts(cfg.PagerDuty, opts.Options) }, opts)
		},
		func() (registry.Entry, error) {
			return entry[[]SentryIssue](types.ViewSentryIssues, "Sentry issues", "sentry", cfg.Sentry.Configured(),
				fingerprint(cfg.Sentry.BaseURL, cfg.Sentry.Token, cfg.Sentry.Org, cfg.Sentry.Project),
				func() (source.Source, error) { return NewSentry(cfg.Sentry, opts.Options) }, opts)
		},
		func() (registry.Entry, error) {
			return entry[[]NewRelicIssue](types.ViewNewRelicIncidents, "New Relic issues", "newrelic", cfg.NewRelic.Configured(),
				fingerprint(cfg.NewRelic.BaseURL, cfg.NewRelic.APIKey, fmt.Sprint(cfg.NewRelic.AccountID)),
				func() (source.Source, error) { return NewNewRelic(cfg.NewRelic, opts.Options) }, opts)
		},
	}

	for _, build := range builders {
		if err := add(build()); err != nil {
			return nil, err
		}
	}
	return registry.New(entries...)
}

func entry[T any](
	id types.ViewID,
	title, service string,
	configured bool,
	fp string,
	build func() (source.Source, error),
	opts CatalogOptions,
) (registry.Entry, error) {
	e := registry.Entry{ID: id, Title: title, Service: service, Configured: configured}
	if !configured {
		e.Source = source.Unconfigured(service)
		return e, nil
	}

	src, err := build()
	if err != nil {
		return e, err
	}
	if opts.Store != nil {
		src = cache.Wrap[T](src, opts.Store, cache.Options{
			View:        id,
			Fingerprint: fp,
			TTL:         opts.CacheTTL,
			Refresh:     opts.Refresh,
			OnError:     opts.OnCacheError,
			Metrics:     opts.Metrics,
		})
	}
	e.Source = src
	return e, nil
}

func fingerprint(parts ...string) string {
	return strings.Join(parts, "\x00")
}

// Package types defines the core data model for pulse: view identifiers,
// the fetch error taxonomy, per-view results and the immutable Snapshot.
//
//nolint:revive // types is a common Go package naming convention
package types

// ViewID names one data source on the dashboard.
// The set of valid IDs is fixed by the view registry at process start.
type ViewID string

// Built-in view identifiers.
const (
	ViewJira              ViewID = "jira"
	ViewGitHubPRs         ViewID = "gh_prs"
	ViewGitHubRuns        ViewID = "gh_runs"
	ViewSlackUnread       ViewID = "slack_unread"
	ViewOncall            ViewID = "oncall"
	ViewPagerDutyAlerts   ViewID = "pagerduty_alerts"
	ViewSentryIssues      ViewID = "sentry_issues"
	ViewNewRelicIncidents ViewID = "newrelic_incidents"
)

// String returns the raw identifier.
func (v ViewID) String() string { return string(v) }

// ViewData is the payload produced by one source adapter.
// The aggregator never looks inside it; only the adapter that produced it
// and the renderer interpret the concrete type.
type ViewData any

// ViewIDs converts raw strings to ViewIDs, preserving order.
func ViewIDs(raw ...string) []ViewID {
	ids := make([]ViewID, 0, len(raw))
	for _, s := range raw {
		ids = append(ids, ViewID(s))
	}
	return ids
}

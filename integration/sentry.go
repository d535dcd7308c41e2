package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// DefaultSentryAPI is the hosted Sentry endpoint.
const DefaultSentryAPI = "https://sentry.io"

// SentryConfig configures the sentry_issues view.
type SentryConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	// Project narrows the query to one project slug.
	Project string `yaml:"project"`
}

// Configured reports whether a token and organization are present.
func (c SentryConfig) Configured() bool {
	return c.Token != "" && c.Org != ""
}

// SentryIssue is one row of the sentry_issues view.
type SentryIssue struct {
	ShortID   string `json:"short_id" yaml:"short_id"`
	Title     string `json:"title" yaml:"title"`
	Culprit   string `json:"culprit,omitempty" yaml:"culprit,omitempty"`
	Level     string `json:"level" yaml:"level"`
	Project   string `json:"project" yaml:"project"`
	Events    int64  `json:"events" yaml:"events"`
	Users     int    `json:"users" yaml:"users"`
	LastSeen  string `json:"last_seen" yaml:"last_seen"`
	Permalink string `json:"url" yaml:"url"`
}

// Sentry lists unresolved issues for an organization.
type Sentry struct {
	client  *source.HTTPClient
	org     string
	project string
}

// NewSentry creates the sentry_issues source.
func NewSentry(cfg SentryConfig, opts Options) (*Sentry, error) {
	client, err := newHTTPClient("sentry", orDefault(cfg.BaseURL, DefaultSentryAPI),
		http.Header{"Authorization": {"Bearer " + cfg.Token}}, opts)
	if err != nil {
		return nil, err
	}
	return &Sentry{client: client, org: cfg.Org, project: cfg.Project}, nil
}

type sentryIssue struct {
	ShortID   string `json:"shortId"`
	Title     string `json:"title"`
	Culprit   string `json:"culprit"`
	Level     string `json:"level"`
	Count     string `json:"count"`
	UserCount int    `json:"userCount"`
	LastSeen  string `json:"lastSeen"`
	Permalink string `json:"permalink"`
	Project   struct {
		Slug string `json:"slug"`
	} `json:"project"`
}

// Fetch implements source.Source. Sentry paginates with cursor Link headers.
func (s *Sentry) Fetch(ctx context.Context) (types.ViewData, error) {
	query := url.Values{"query": {"is:unresolved"}, "sort": {"date"}}
	if s.project != "" {
		query.Set("project", s.project)
	}
	path := "/api/0/organizations/" + url.PathEscape(s.org) + "/issues/"
	return source.GetPages(ctx, s.client, path, query, func(body []byte) ([]SentryIssue, error) {
		var page []sentryIssue
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		out := make([]SentryIssue, 0, len(page))
		for _, it := range page {
			// count is a decimal string in the API
			events, _ := strconv.ParseInt(it.Count, 10, 64)
			out = append(out, SentryIssue{
				ShortID:   it.ShortID,
				Title:     it.Title,
				Culprit:   it.Culprit,
				Level:     it.Level,
				Project:   it.Project.Slug,
				Events:    events,
				Users:     it.UserCount,
				LastSeen:  it.LastSeen,
				Permalink: it.Permalink,
			})
		}
		return out, nil
	})
}

package integration

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// DefaultJiraJQL selects the caller's open issues, most recently updated first.
const DefaultJiraJQL = "assignee = currentUser() AND resolution = Unresolved ORDER BY updated DESC"

// JiraConfig configures the jira view.
type JiraConfig struct {
	BaseURL    string `yaml:"base_url"`
	Email      string `yaml:"email"`
	Token      string `yaml:"token"`
	JQL        string `yaml:"jql"`
	MaxResults int    `yaml:"max_results"`
}

// Configured reports whether credentials are present.
func (c JiraConfig) Configured() bool {
	return c.BaseURL != "" && c.Email != "" && c.Token != ""
}

// JiraIssue is one row of the jira view.
type JiraIssue struct {
	Key      string `json:"key" yaml:"key"`
	Summary  string `json:"summary" yaml:"summary"`
	Status   string `json:"status" yaml:"status"`
	Priority string `json:"priority,omitempty" yaml:"priority,omitempty"`
	Updated  string `json:"updated,omitempty" yaml:"updated,omitempty"`
	URL      string `json:"url" yaml:"url"`
}

// Jira fetches issues matching a JQL query.
type Jira struct {
	client     *source.HTTPClient
	jql        string
	maxResults int
}

// NewJira creates the jira source.
func NewJira(cfg JiraConfig, opts Options) (*Jira, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(cfg.Email + ":" + cfg.Token))
	client, err := newHTTPClient("jira", cfg.BaseURL, http.Header{"Authorization": {"Basic " + auth}}, opts)
	if err != nil {
		return nil, err
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}
	return &Jira{client: client, jql: orDefault(cfg.JQL, DefaultJiraJQL), maxResults: maxResults}, nil
}

type jiraSearchResponse struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Updated string `json:"updated"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
			Priority *struct {
				Name string `json:"name"`
			} `json:"priority"`
		} `json:"fields"`
	} `json:"issues"`
}

// Fetch implements source.Source.
func (j *Jira) Fetch(ctx context.Context) (types.ViewData, error) {
	query := url.Values{
		"jql":        {j.jql},
		"maxResults": {strconv.Itoa(j.maxResults)},
		"fields":     {"summary,status,priority,updated"},
	}
	var resp jiraSearchResponse
	if _, err := j.client.GetJSON(ctx, "/rest/api/3/search", query, &resp); err != nil {
		return nil, err
	}

	browse := strings.TrimRight(j.client.BaseURL(), "/") + "/browse/"
	issues := make([]JiraIssue, 0, len(resp.Issues))
	for _, raw := range resp.Issues {
		issue := JiraIssue{
			Key:     raw.Key,
			Summary: raw.Fields.Summary,
			Status:  raw.Fields.Status.Name,
			Updated: raw.Fields.Updated,
			URL:     browse + raw.Key,
		}
		if raw.Fields.Priority != nil {
			issue.Priority = raw.Fields.Priority.Name
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

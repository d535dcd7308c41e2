package integration

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// DefaultNewRelicAPI is the US NerdGraph endpoint host.
const DefaultNewRelicAPI = "https://api.newrelic.com"

// NewRelicConfig configures the newrelic_incidents view.
type NewRelicConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	AccountID int64  `yaml:"account_id"`
}

// Configured reports whether a key and account are present.
func (c NewRelicConfig) Configured() bool {
	return c.APIKey != "" && c.AccountID != 0
}

// NewRelicIssue is one row of the newrelic_incidents view.
type NewRelicIssue struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Priority    string   `json:"priority" yaml:"priority"`
	State       string   `json:"state" yaml:"state"`
	Entities    []string `json:"entities,omitempty" yaml:"entities,omitempty"`
	ActivatedAt int64    `json:"activated_at,omitempty" yaml:"activated_at,omitempty"`
}

// NewRelic lists open AI issues through NerdGraph.
type NewRelic struct {
	client    *source.HTTPClient
	accountID int64
}

// NewNewRelic creates the newrelic_incidents source.
func NewNewRelic(cfg NewRelicConfig, opts Options) (*NewRelic, error) {
	client, err := newHTTPClient("newrelic", orDefault(cfg.BaseURL, DefaultNewRelicAPI),
		http.Header{"Api-Key": {cfg.APIKey}}, opts)
	if err != nil {
		return nil, err
	}
	return &NewRelic{client: client, accountID: cfg.AccountID}, nil
}

const newRelicIssuesQuery = `query($accountId: Int!) {
  actor {
    account(id: $accountId) {
      aiIssues {
        issues(filter: {states: [ACTIVATED, CREATED]}) {
          issues { issueId title priority state entityNames activatedAt }
        }
      }
    }
  }
}`

type nerdGraphResponse struct {
	Data struct {
		Actor struct {
			Account struct {
				AIIssues struct {
					Issues struct {
						Issues []struct {
							IssueID     string   `json:"issueId"`
							Title       []string `json:"title"`
							Priority    string   `json:"priority"`
							State       string   `json:"state"`
							EntityNames []string `json:"entityNames"`
							ActivatedAt *int64   `json:"activatedAt"`
						} `json:"issues"`
					} `json:"issues"`
				} `json:"aiIssues"`
			} `json:"account"`
		} `json:"actor"`
	} `json:"data"`
	Errors []struct {
		Message    string `json:"message"`
		Extensions struct {
			ErrorClass string `json:"errorClass"`
		} `json:"extensions"`
	} `json:"errors"`
}

// Fetch implements source.Source.
func (n *NewRelic) Fetch(ctx context.Context) (types.ViewData, error) {
	body := map[string]any{
		"query":     newRelicIssuesQuery,
		"variables": map[string]any{"accountId": n.accountID},
	}
	var resp nerdGraphResponse
	if err := n.client.PostJSON(ctx, "/graphql", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		first := resp.Errors[0]
		msg := fmt.Sprintf("newrelic: %s", first.Message)
		// GraphQL reports auth failures with HTTP 200.
		if first.Extensions.ErrorClass == "UNAUTHORIZED" || first.Extensions.ErrorClass == "FORBIDDEN" {
			return nil, types.Unauthorized(msg)
		}
		return nil, types.Unexpected(msg, nil)
	}

	raw := resp.Data.Actor.Account.AIIssues.Issues.Issues
	out := make([]NewRelicIssue, 0, len(raw))
	for _, is := range raw {
		issue := NewRelicIssue{
			ID:       is.IssueID,
			Title:    strings.Join(is.Title, "; "),
			Priority: is.Priority,
			State:    is.State,
			Entities: is.EntityNames,
		}
		if is.ActivatedAt != nil {
			issue.ActivatedAt = *is.ActivatedAt
		}
		out = append(out, issue)
	}
	return out, nil
}

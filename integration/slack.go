package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// DefaultSlackAPI is the Slack Web API base URL.
const DefaultSlackAPI = "https://slack.com"

// DefaultSlackQuery finds recent messages mentioning the caller.
const DefaultSlackQuery = "to:me after:yesterday"

// SlackConfig configures the slack_unread view.
type SlackConfig struct {
	BaseURL string `yaml:"base_url"`
	// Token must be a user token; search.messages rejects bot tokens.
	Token string `yaml:"token"`
	Query string `yaml:"query"`
	Count int    `yaml:"count"`
}

// Configured reports whether a token is present.
func (c SlackConfig) Configured() bool {
	return c.Token != ""
}

// SlackMessage is one row of the slack_unread view.
type SlackMessage struct {
	Channel   string `json:"channel" yaml:"channel"`
	User      string `json:"user" yaml:"user"`
	Text      string `json:"text" yaml:"text"`
	Timestamp string `json:"ts" yaml:"ts"`
	URL       string `json:"url" yaml:"url"`
}

// Slack searches messages addressed to the caller.
type Slack struct {
	client *source.HTTPClient
	query  string
	count  int
}

// NewSlack creates the slack_unread source.
func NewSlack(cfg SlackConfig, opts Options) (*Slack, error) {
	client, err := newHTTPClient("slack", orDefault(cfg.BaseURL, DefaultSlackAPI),
		http.Header{"Authorization": {"Bearer " + cfg.Token}}, opts)
	if err != nil {
		return nil, err
	}
	count := cfg.Count
	if count <= 0 {
		count = 20
	}
	return &Slack{client: client, query: orDefault(cfg.Query, DefaultSlackQuery), count: count}, nil
}

type slackSearchResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Messages struct {
		Matches []struct {
			Text      string `json:"text"`
			TS        string `json:"ts"`
			Permalink string `json:"permalink"`
			Username  string `json:"username"`
			User      string `json:"user"`
			Channel   struct {
				Name string `json:"name"`
			} `json:"channel"`
		} `json:"matches"`
	} `json:"messages"`
}

// Fetch implements source.Source.
func (s *Slack) Fetch(ctx context.Context) (types.ViewData, error) {
	query := url.Values{
		"query": {s.query},
		"count": {strconv.Itoa(s.count)},
		"sort":  {"timestamp"},
	}
	var resp slackSearchResponse
	if _, err := s.client.GetJSON(ctx, "/api/search.messages", query, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, slackError(resp.Error)
	}

	msgs := make([]SlackMessage, 0, len(resp.Messages.Matches))
	for _, m := range resp.Messages.Matches {
		user := m.Username
		if user == "" {
			user = m.User
		}
		msgs = append(msgs, SlackMessage{
			Channel:   m.Channel.Name,
			User:      user,
			Text:      m.Text,
			Timestamp: m.TS,
			URL:       m.Permalink,
		})
	}
	return msgs, nil
}

// slackError maps an ok:false error code. Slack reports most failures with
// HTTP 200, so the status mapping in source.HTTPClient never sees them.
func slackError(code string) *types.FetchError {
	msg := fmt.Sprintf("slack: %s", code)
	switch code {
	case "invalid_auth", "not_authed", "token_revoked", "token_expired", "account_inactive", "missing_scope", "not_allowed_token_type":
		return types.Unauthorized(msg)
	case "ratelimited":
		return types.RateLimited(nil, msg)
	default:
		return types.Unexpected(msg, nil)
	}
}

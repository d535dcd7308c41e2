package integration

import (
	"context"
	"net/http"
	"net/url"

	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// DefaultPagerDutyAPI is the PagerDuty REST v2 endpoint.
const DefaultPagerDutyAPI = "https://api.pagerduty.com"

// PagerDutyConfig configures the oncall and pagerduty_alerts views.
type PagerDutyConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
	// UserID narrows oncall to one user. Empty lists every on-call entry.
	UserID string `yaml:"user_id"`
	// ServiceIDs narrows pagerduty_alerts. Empty lists every service.
	ServiceIDs []string `yaml:"service_ids"`
}

// Configured reports whether a token is present.
func (c PagerDutyConfig) Configured() bool {
	return c.Token != ""
}

// Oncall is one row of the oncall view.
type Oncall struct {
	User             string `json:"user" yaml:"user"`
	Schedule         string `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	EscalationPolicy string `json:"escalation_policy" yaml:"escalation_policy"`
	Level            int    `json:"level" yaml:"level"`
	Start            string `json:"start,omitempty" yaml:"start,omitempty"`
	End              string `json:"end,omitempty" yaml:"end,omitempty"`
}

// Incident is one row of the pagerduty_alerts view.
type Incident struct {
	ID      string `json:"id" yaml:"id"`
	Number  int    `json:"number" yaml:"number"`
	Title   string `json:"title" yaml:"title"`
	Status  string `json:"status" yaml:"status"`
	Urgency string `json:"urgency" yaml:"urgency"`
	Service string `json:"service" yaml:"service"`
	Created string `json:"created" yaml:"created"`
	URL     string `json:"url" yaml:"url"`
}

func newPagerDutyClient(cfg PagerDutyConfig, opts Options) (*source.HTTPClient, error) {
	header := http.Header{
		"Authorization": {"Token token=" + cfg.Token},
		"Accept":        {"application/vnd.pagerduty+json;version=2"},
	}
	return newHTTPClient("pagerduty", orDefault(cfg.BaseURL, DefaultPagerDutyAPI), header, opts)
}

type pdRef struct {
	Summary string `json:"summary"`
	Name    string `json:"name"`
}

func (r *pdRef) display() string {
	if r == nil {
		return ""
	}
	return orDefault(r.Name, r.Summary)
}

// PagerDutyOncall lists current on-call assignments.
type PagerDutyOncall struct {
	client *source.HTTPClient
	userID string
}

// NewPagerDutyOncall creates the oncall source.
func NewPagerDutyOncall(cfg PagerDutyConfig, opts Options) (*PagerDutyOncall, error) {
	client, err := newPagerDutyClient(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &PagerDutyOncall{client: client, userID: cfg.UserID}, nil
}

type pdOncallsResponse struct {
	Oncalls []struct {
		User             pdRef  `json:"user"`
		Schedule         *pdRef `json:"schedule"`
		EscalationPolicy pdRef  `json:"escalation_policy"`
		EscalationLevel  int    `json:"escalation_level"`
		Start            string `json:"start"`
		End              string `json:"end"`
	} `json:"oncalls"`
}

// Fetch implements source.Source.
func (p *PagerDutyOncall) Fetch(ctx context.Context) (types.ViewData, error) {
	query := url.Values{}
	if p.userID != "" {
		query.Set("user_ids[]", p.userID)
	}
	var resp pdOncallsResponse
	if _, err := p.client.GetJSON(ctx, "/oncalls", query, &resp); err != nil {
		return nil, err
	}
	out := make([]Oncall, 0, len(resp.Oncalls))
	for _, o := range resp.Oncalls {
		out = append(out, Oncall{
			User:             o.User.display(),
			Schedule:         o.Schedule.display(),
			EscalationPolicy: o.EscalationPolicy.display(),
			Level:            o.EscalationLevel,
			Start:            o.Start,
			End:              o.End,
		})
	}
	return out, nil
}

// PagerDutyAlerts lists triggered and acknowledged incidents.
type PagerDutyAlerts struct {
	client     *source.HTTPClient
	serviceIDs []string
}

// NewPagerDutyAlerts creates the pagerduty_alerts source.
func NewPagerDutyAlerts(cfg PagerDutyConfig, opts Options) (*PagerDutyAlerts, error) {
	client, err := newPagerDutyClient(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &PagerDutyAlerts{client: client, serviceIDs: append([]string(nil), cfg.ServiceIDs...)}, nil
}

type pdIncidentsResponse struct {
	Incidents []struct {
		ID             string `json:"id"`
		IncidentNumber int    `json:"incident_number"`
		Title          string `json:"title"`
		Status         string `json:"status"`
		Urgency        string `json:"urgency"`
		HTMLURL        string `json:"html_url"`
		CreatedAt      string `json:"created_at"`
		Service        pdRef  `json:"service"`
	} `json:"incidents"`
}

// Fetch implements source.Source.
func (p *PagerDutyAlerts) Fetch(ctx context.Context) (types.ViewData, error) {
	query := url.Values{"statuses[]": {"triggered", "acknowledged"}}
	for _, id := range p.serviceIDs {
		query.Add("service_ids[]", id)
	}
	var resp pdIncidentsResponse
	if _, err := p.client.GetJSON(ctx, "/incidents", query, &resp); err != nil {
		return nil, err
	}
	out := make([]Incident, 0, len(resp.Incidents))
	for _, in := range resp.Incidents {
		out = append(out, Incident{
			ID:      in.ID,
			Number:  in.IncidentNumber,
			Title:   in.Title,
			Status:  in.Status,
			Urgency: in.Urgency,
			Service: in.Service.display(),
			Created: in.CreatedAt,
			URL:     in.HTMLURL,
		})
	}
	return out, nil
}

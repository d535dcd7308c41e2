package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// GitHubConfig configures the gh_prs and gh_runs views.
type GitHubConfig struct {
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"token"`
	Repos   []string `yaml:"repos"`
	// RunsPerRepo bounds gh_runs per repository (default 5).
	RunsPerRepo int `yaml:"runs_per_repo"`
}

// Configured reports whether a token is present.
func (c GitHubConfig) Configured() bool {
	return c.Token != ""
}

// PullRequest is one row of the gh_prs view.
type PullRequest struct {
	Number  int    `json:"number" yaml:"number"`
	Title   string `json:"title" yaml:"title"`
	Repo    string `json:"repo" yaml:"repo"`
	Draft   bool   `json:"draft" yaml:"draft"`
	Updated string `json:"updated" yaml:"updated"`
	URL     string `json:"url" yaml:"url"`
}

// WorkflowRun is one row of the gh_runs view.
type WorkflowRun struct {
	ID         int64  `json:"id" yaml:"id"`
	Repo       string `json:"repo" yaml:"repo"`
	Name       string `json:"name" yaml:"name"`
	Branch     string `json:"branch" yaml:"branch"`
	Status     string `json:"status" yaml:"status"`
	Conclusion string `json:"conclusion,omitempty" yaml:"conclusion,omitempty"`
	Created    string `json:"created" yaml:"created"`
	URL        string `json:"url" yaml:"url"`
}

func newGitHubClient(cfg GitHubConfig, opts Options) (*source.HTTPClient, error) {
	header := http.Header{
		"Authorization":        {"Bearer " + cfg.Token},
		"Accept":               {"application/vnd.github+json"},
		"X-Github-Api-Version": {"2022-11-28"},
	}
	return newHTTPClient("github", orDefault(cfg.BaseURL, DefaultGitHubAPI), header, opts)
}

// GitHubPRs lists the caller's open pull requests across all repositories.
type GitHubPRs struct {
	client *source.HTTPClient
}

// NewGitHubPRs creates the gh_prs source.
func NewGitHubPRs(cfg GitHubConfig, opts Options) (*GitHubPRs, error) {
	client, err := newGitHubClient(cfg, opts)
	if err != nil {
		return nil, err
	}
	return &GitHubPRs{client: client}, nil
}

type githubSearchPage struct {
	Items []struct {
		Number        int    `json:"number"`
		Title         string `json:"title"`
		HTMLURL       string `json:"html_url"`
		RepositoryURL string `json:"repository_url"`
		UpdatedAt     string `json:"updated_at"`
		Draft         bool   `json:"draft"`
	} `json:"items"`
}

// Fetch implements source.Source.
func (g *GitHubPRs) Fetch(ctx context.Context) (types.ViewData, error) {
	query := url.Values{
		"q":        {"is:pr is:open author:@me"},
		"sort":     {"updated"},
		"per_page": {"50"},
	}
	return source.GetPages(ctx, g.client, "/search/issues", query, func(body []byte) ([]PullRequest, error) {
		var page githubSearchPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, err
		}
		prs := make([]PullRequest, 0, len(page.Items))
		for _, it := range page.Items {
			prs = append(prs, PullRequest{
				Number:  it.Number,
				Title:   it.Title,
				Repo:    repoFromAPIURL(it.RepositoryURL),
				Draft:   it.Draft,
				Updated: it.UpdatedAt,
				URL:     it.HTMLURL,
			})
		}
		return prs, nil
	})
}

// repoFromAPIURL turns https://api.github.com/repos/o/r into "o/r".
func repoFromAPIURL(u string) string {
	if i := strings.Index(u, "/repos/"); i >= 0 {
		return u[i+len("/repos/"):]
	}
	return u
}

// GitHubRuns lists recent workflow runs for the configured repositories.
type GitHubRuns struct {
	client  *source.HTTPClient
	repos   []string
	perRepo int
}

// NewGitHubRuns creates the gh_runs source.
func NewGitHubRuns(cfg GitHubConfig, opts Options) (*GitHubRuns, error) {
	client, err := newGitHubClient(cfg, opts)
	if err != nil {
		return nil, err
	}
	perRepo := cfg.RunsPerRepo
	if perRepo <= 0 {
		perRepo = 5
	}
	return &GitHubRuns{client: client, repos: append([]string(nil), cfg.Repos...), perRepo: perRepo}, nil
}

type githubRunsResponse struct {
	WorkflowRuns []struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		HeadBranch string `json:"head_branch"`
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
		HTMLURL    string `json:"html_url"`
		CreatedAt  string `json:"created_at"`
	} `json:"workflow_runs"`
}

// Fetch implements source.Source. Repositories are queried in order; the
// first failure fails the view. With no repositories configured the view
// fails rather than showing an empty list.
func (g *GitHubRuns) Fetch(ctx context.Context) (types.ViewData, error) {
	if len(g.repos) == 0 {
		return nil, types.Unexpected("github: no repos configured for gh_runs", nil)
	}
	runs := make([]WorkflowRun, 0, len(g.repos)*g.perRepo)
	query := url.Values{"per_page": {strconv.Itoa(g.perRepo)}}
	for _, repo := range g.repos {
		var resp githubRunsResponse
		if _, err := g.client.GetJSON(ctx, "/repos/"+repo+"/actions/runs", query, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.WorkflowRuns {
			runs = append(runs, WorkflowRun{
				ID:         r.ID,
				Repo:       repo,
				Name:       r.Name,
				Branch:     r.HeadBranch,
				Status:     r.Status,
				Conclusion: r.Conclusion,
				Created:    r.CreatedAt,
				URL:        r.HTMLURL,
			})
		}
	}
	return runs, nil
}

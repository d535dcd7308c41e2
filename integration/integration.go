// Package integration holds the concrete dashboard sources: thin clients
// for Jira, GitHub, Slack, PagerDuty, Sentry and New Relic. Each returns a
// typed item slice as view data and reports failures as *types.FetchError
// through the shared source.HTTPClient.
package integration

import (
	"net/http"

	"github.com/justapithecus/pulse/source"
)

// Options are shared by every client constructor.
type Options struct {
	// HTTPClient overrides the transport (default http.DefaultClient).
	HTTPClient *http.Client
	// MaxPages bounds pagination for paginated views.
	MaxPages int
}

func newHTTPClient(service, baseURL string, header http.Header, opts Options) (*source.HTTPClient, error) {
	return source.NewHTTPClient(source.HTTPConfig{
		Service:  service,
		BaseURL:  baseURL,
		Header:   header,
		MaxPages: opts.MaxPages,
		Client:   opts.HTTPClient,
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/pulse/iox"
	"github.com/justapithecus/pulse/types"
)

// DefaultMaxPages bounds Link-header pagination when HTTPConfig.MaxPages is unset.
const DefaultMaxPages = 5

// maxErrorBody is how much of a non-2xx body is kept for the error message.
const maxErrorBody = 512

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	// Service names the upstream in error messages (e.g. "github").
	Service string
	// BaseURL is prefixed to every request path (required).
	BaseURL string
	// Header is added to every request (auth, Accept, API versions).
	Header http.Header
	// MaxPages bounds pagination (default DefaultMaxPages).
	MaxPages int
	// Client overrides the underlying HTTP client (default http.DefaultClient).
	// Deadlines come from the request context, not from Client.Timeout.
	Client *http.Client
}

// HTTPClient performs JSON requests and maps failures into the fetch
// error taxonomy:
//   - 401, 403 -> unauthorized
//   - 429 -> rate_limited with Retry-After when present
//   - 502, 503, 504 -> network
//   - any other non-2xx or an undecodable body -> unexpected
//   - transport errors go through Classify
type HTTPClient struct {
	config HTTPConfig
	client *http.Client
	now    func() time.Time
}

// NewHTTPClient creates an HTTPClient. Returns an error if BaseURL is empty
// or unparsable.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", cfg.Service)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%s: invalid base URL: %w", cfg.Service, err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{config: cfg, client: client, now: time.Now}, nil
}

// Service returns the configured service name.
func (c *HTTPClient) Service() string { return c.config.Service }

// BaseURL returns the normalized base URL.
func (c *HTTPClient) BaseURL() string { return c.config.BaseURL }

// GetJSON issues GET path?query and decodes the body into out.
// The response header is returned for callers that need pagination or
// rate-limit hints.
func (c *HTTPClient) GetJSON(ctx context.Context, path string, query url.Values, out any) (http.Header, error) {
	return c.getURL(ctx, c.resolve(path, query), out)
}

// PostJSON issues POST path with a JSON body and decodes the response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return types.Unexpected(fmt.Sprintf("%s: encode request", c.config.Service), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(path, nil), bytes.NewReader(payload))
	if err != nil {
		return types.Unexpected(fmt.Sprintf("%s: build request", c.config.Service), err)
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req, out)
	return err
}

// GetPages follows Link rel="next" headers starting at path, decoding each
// page with decode and concatenating the items. At most MaxPages pages are
// fetched; the remainder is silently dropped.
func GetPages[T any](ctx context.Context, c *HTTPClient, path string, query url.Values, decode func([]byte) ([]T, error)) ([]T, error) {
	var items []T
	next := c.resolve(path, query)
	for page := 0; page < c.config.MaxPages && next != ""; page++ {
		var raw json.RawMessage
		header, err := c.getURL(ctx, next, &raw)
		if err != nil {
			return nil, err
		}
		pageItems, err := decode(raw)
		if err != nil {
			return nil, types.Unexpected(fmt.Sprintf("%s: decode page %d", c.config.Service, page+1), err)
		}
		items = append(items, pageItems...)
		next = nextLink(header.Get("Link"))
	}
	return items, nil
}

func (c *HTTPClient) getURL(ctx context.Context, target string, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, types.Unexpected(fmt.Sprintf("%s: build request", c.config.Service), err)
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) (http.Header, error) {
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.config.Header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, Classify(err)
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.Header, c.statusError(resp, body)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.Header, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// An empty body decodes to io.EOF, which is a malformed response rather
		// than a broken connection.
		if fe := Classify(err); fe.Kind == types.KindTimeout || (fe.Kind == types.KindNetwork && !errors.Is(err, io.EOF)) {
			return resp.Header, fe
		}
		return resp.Header, types.Unexpected(fmt.Sprintf("%s: decode response", c.config.Service), err)
	}
	return resp.Header, nil
}

func (c *HTTPClient) statusError(resp *http.Response, body []byte) *types.FetchError {
	detail := fmt.Sprintf("%s: HTTP %d", c.config.Service, resp.StatusCode)
	if snippet := strings.TrimSpace(string(body)); snippet != "" {
		detail += ": " + snippet
	}

	// Primary rate limits surface as 403 with an exhausted quota header.
	if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
		return types.RateLimited(parseRateLimitReset(resp.Header.Get("X-RateLimit-Reset"), c.now()), detail)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.Unauthorized(detail)
	case http.StatusTooManyRequests:
		return types.RateLimited(ParseRetryAfter(resp.Header.Get("Retry-After"), c.now()), detail)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return types.Network(detail, nil)
	default:
		return types.Unexpected(detail, nil)
	}
}

func (c *HTTPClient) resolve(path string, query url.Values) string {
	target := c.config.BaseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// ParseRetryAfter parses a Retry-After header in either delta-seconds or
// HTTP-date form. Returns nil if the header is empty or malformed.
func ParseRetryAfter(header string, now time.Time) *time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs < 0 {
			return nil
		}
		d := time.Duration(secs) * time.Second
		return &d
	}
	if at, err := http.ParseTime(header); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

// parseRateLimitReset turns an X-RateLimit-Reset epoch into a wait duration.
func parseRateLimitReset(header string, now time.Time) *time.Duration {
	epoch, err := strconv.ParseInt(strings.TrimSpace(header), 10, 64)
	if err != nil {
		return nil
	}
	d := time.Unix(epoch, 0).Sub(now)
	if d < 0 {
		d = 0
	}
	return &d
}

var linkNextPattern = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

// nextLink extracts the rel="next" URL from an RFC 5988 Link header.
// Cursor APIs that always emit a next link mark the end with results="false".
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		m := linkNextPattern.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		if strings.Contains(part, `results="false"`) {
			return ""
		}
		return m[1]
	}
	return ""
}

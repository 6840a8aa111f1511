// Package httpapi holds the request plumbing shared by the gateway and stream
// daemon clients: base URL normalization, JSON decoding and status checks.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultUserAgent = "skiff/0.1"
	requestTimeout   = 5 * time.Second
	maxTextBody      = 1 << 20
)

// Client talks to one local control plane.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

// New builds a Client for the given host:port (or full URL). An empty bind
// falls back to defaultBind.
func New(bind, defaultBind string) (*Client, error) {
	base, err := ParseBaseURL(bind, defaultBind)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// GetJSON issues a GET for path with the given query and decodes the body into dest.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, dest any) error {
	resp, rel, err := c.get(ctx, path, query, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("api %s returned status %d", rel.String(), resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetText issues a GET for path and returns the trimmed body. Only 200 counts.
func (c *Client) GetText(ctx context.Context, path string, query url.Values) (string, error) {
	resp, rel, err := c.get(ctx, path, query, "text/plain")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api %s returned status %d", rel.String(), resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTextBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// Fire sends a GET and discards the response. Used for /shutdown requests,
// where the peer may close the connection before answering.
func (c *Client) Fire(ctx context.Context, path string) error {
	resp, _, err := c.get(ctx, path, nil, "*/*")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxTextBody))
	return resp.Body.Close()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, accept string) (*http.Response, *url.URL, error) {
	rel := &url.URL{Path: path}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, rel, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, rel, fmt.Errorf("execute request: %w", err)
	}
	return resp, rel, nil
}

// ParseBaseURL normalizes a bind address into a scheme+host URL.
func ParseBaseURL(bind, defaultBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(bind)
	if trimmed == "" {
		trimmed = defaultBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse bind %q: %w", bind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

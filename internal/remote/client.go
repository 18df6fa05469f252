// Package remote is the HTTP client for the remote layer/feature API and the
// WMS feature-info endpoint.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrConnectivity covers transport failures and non-success statuses.
	ErrConnectivity = errors.New("remote api unreachable")
	// ErrUnauthorized is matched by 401/403 responses.
	ErrUnauthorized = errors.New("not authorized")
	// ErrMalformedResponse is returned when a body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is lets callers match StatusError against ErrUnauthorized or ErrConnectivity.
func (e *StatusError) Is(target error) bool {
	unauthorized := e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	switch target {
	case ErrUnauthorized:
		return unauthorized
	case ErrConnectivity:
		return !unauthorized
	}
	return false
}

// Client talks to the remote API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// ListLayers fetches the server-declared layers.
func (c *Client) ListLayers(ctx context.Context) ([]Layer, error) {
	var layers []Layer
	if err := c.getJSON(ctx, c.baseURL+"/api/v1/layers", &layers); err != nil {
		return nil, err
	}
	if layers == nil {
		layers = []Layer{}
	}
	return layers, nil
}

// DeleteLayer deletes a layer using the bearer token.
func (c *Client) DeleteLayer(ctx context.Context, id, token string) error {
	u := c.baseURL + "/api/v1/layers/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// SearchFeatures runs a free-text feature search with the raw query.
func (c *Client) SearchFeatures(ctx context.Context, query string) ([]FeatureRecord, error) {
	u := c.baseURL + "/api/v1/features/search?q=" + url.QueryEscape(query)
	var records []FeatureRecord
	if err := c.getJSON(ctx, u, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// FeatureInfo fetches a GetFeatureInfo URL (absolute, or relative to the API root).
func (c *Client) FeatureInfo(ctx context.Context, rawURL string) (FeatureInfo, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = c.baseURL + "/" + strings.TrimLeft(rawURL, "/")
	}
	var info FeatureInfo
	if err := c.getJSON(ctx, rawURL, &info); err != nil {
		return FeatureInfo{}, err
	}
	return info, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, req.Method, u, err)
	}
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log().Error("request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, fmt.Errorf("%w: %s %s: %v", ErrConnectivity, req.Method, req.URL.Redacted(), err)
	}

	c.log().Debug("request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

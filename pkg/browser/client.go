// Package browser is a thin HTTP client for the remote browser-rendering
// session service. The service owns page rendering, JS execution, and click
// dispatch; this package only shuttles commands and snapshots.
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Default base URL for a locally run rendering service.
const defaultBaseURL = "http://localhost:3000"

// WaitCondition names a readiness signal the service can wait on.
type WaitCondition string

const (
	// WaitNetworkIdle resolves when the page has had no in-flight requests
	// for a short window. Primary readiness signal.
	WaitNetworkIdle WaitCondition = "network_idle"
	// WaitDOMReady resolves on DOMContentLoaded. Fallback signal.
	WaitDOMReady WaitCondition = "dom_ready"
)

// ErrWaitTimeout is returned when a wait condition did not resolve within
// its timeout. Callers treat this as advisory, not fatal.
var ErrWaitTimeout = errors.New("browser: wait condition timed out")

// ErrNoSuchElement is returned by Click when the selector matched nothing
// clickable in the live DOM.
var ErrNoSuchElement = errors.New("browser: no clickable element for selector")

// Client creates rendering sessions.
type Client interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one live browser tab on the rendering service.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Wait(ctx context.Context, cond WaitCondition, timeout time.Duration) error
	Content(ctx context.Context) (string, error)
	PageHeight(ctx context.Context) (int, error)
	ScrollTo(ctx context.Context, y int) error
	Click(ctx context.Context, selector string) error
	Close(ctx context.Context) error
}

// APIError is returned when the service responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("browser: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new rendering-service client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 90 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) NewSession(ctx context.Context) (Session, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/sessions", struct{}{}, &resp); err != nil {
		return nil, eris.Wrap(err, "browser: create session")
	}
	return &httpSession{client: c, id: resp.ID}, nil
}

// httpSession implements Session against one /sessions/{id} resource.
type httpSession struct {
	client *httpClient
	id     string
}

func (s *httpSession) Navigate(ctx context.Context, url string) error {
	body := struct {
		URL string `json:"url"`
	}{URL: url}
	if err := s.client.post(ctx, s.path("/navigate"), body, nil); err != nil {
		return eris.Wrap(err, fmt.Sprintf("browser: navigate %s", url))
	}
	return nil
}

func (s *httpSession) Wait(ctx context.Context, cond WaitCondition, timeout time.Duration) error {
	body := struct {
		Until     string `json:"until"`
		TimeoutMs int64  `json:"timeout_ms"`
	}{Until: string(cond), TimeoutMs: timeout.Milliseconds()}

	var resp struct {
		TimedOut bool `json:"timed_out"`
	}
	if err := s.client.post(ctx, s.path("/wait"), body, &resp); err != nil {
		return eris.Wrap(err, fmt.Sprintf("browser: wait %s", cond))
	}
	if resp.TimedOut {
		return ErrWaitTimeout
	}
	return nil
}

func (s *httpSession) Content(ctx context.Context) (string, error) {
	var resp struct {
		HTML string `json:"html"`
	}
	if err := s.client.get(ctx, s.path("/content"), &resp); err != nil {
		return "", eris.Wrap(err, "browser: get content")
	}
	return resp.HTML, nil
}

func (s *httpSession) PageHeight(ctx context.Context) (int, error) {
	var resp struct {
		Height int `json:"height"`
	}
	if err := s.client.get(ctx, s.path("/height"), &resp); err != nil {
		return 0, eris.Wrap(err, "browser: get page height")
	}
	return resp.Height, nil
}

func (s *httpSession) ScrollTo(ctx context.Context, y int) error {
	body := struct {
		Y int `json:"y"`
	}{Y: y}
	if err := s.client.post(ctx, s.path("/scroll"), body, nil); err != nil {
		return eris.Wrap(err, "browser: scroll")
	}
	return nil
}

func (s *httpSession) Click(ctx context.Context, selector string) error {
	body := struct {
		Selector string `json:"selector"`
	}{Selector: selector}

	var resp struct {
		Clicked bool `json:"clicked"`
	}
	if err := s.client.post(ctx, s.path("/click"), body, &resp); err != nil {
		return eris.Wrap(err, fmt.Sprintf("browser: click %q", selector))
	}
	if !resp.Clicked {
		return ErrNoSuchElement
	}
	return nil
}

func (s *httpSession) Close(ctx context.Context) error {
	if err := s.client.delete(ctx, "/sessions/"+s.id); err != nil {
		return eris.Wrap(err, "browser: close session")
	}
	return nil
}

func (s *httpSession) path(suffix string) string {
	return "/sessions/" + s.id + suffix
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	c.authorize(req)

	return c.do(req, out)
}

func (c *httpClient) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	c.authorize(req)

	return c.do(req, nil)
}

func (c *httpClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

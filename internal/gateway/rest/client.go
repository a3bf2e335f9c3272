// Package rest implements the gateway over a Supabase-compatible backend:
// PostgREST for the tables and GoTrue for authentication.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"domino-community/internal/gateway"
	"domino-community/internal/shared/errors"
	"domino-community/internal/tokenstore"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

type Options struct {
	URL     string
	AnonKey string
	Timeout time.Duration
	// Limiter throttles outbound calls; nil disables throttling.
	Limiter *rate.Limiter
	Store   tokenstore.Store
	// HTTPClient is the base client; its Transport carries the requests.
	HTTPClient *http.Client
	Now        func() time.Time
}

type Client struct {
	baseURL *url.URL
	anonKey string
	timeout time.Duration
	limiter *rate.Limiter
	store   tokenstore.Store
	base    http.RoundTripper
	now     func() time.Time
	logger  *slog.Logger

	mu       sync.Mutex
	session  *gateway.Session
	restored bool

	listeners gateway.Listeners
}

var _ gateway.Gateway = (*Client)(nil)

func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if opts.AnonKey == "" {
		return nil, fmt.Errorf("backend anon key is required")
	}

	baseURL, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}

	base := http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		base = opts.HTTPClient.Transport
	}

	store := opts.Store
	if store == nil {
		store = tokenstore.NewMemoryStore()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	logger := slog.With("component", "rest_gateway", "host", baseURL.Host)
	logger.Debug("Initializing REST gateway", "rate_limited", opts.Limiter != nil)

	return &Client{
		baseURL: baseURL,
		anonKey: opts.AnonKey,
		timeout: timeout,
		limiter: opts.Limiter,
		store:   store,
		base:    base,
		now:     now,
		logger:  logger,
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// httpClient authenticates requests with the session's bearer token, or
// with the anon key while signed out.
func (c *Client) httpClient(ctx context.Context) *http.Client {
	return &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: &sessionTokenSource{ctx: ctx, client: c},
			Base:   c.base,
		},
	}
}

// plainClient sends requests that carry their own Authorization header.
func (c *Client) plainClient() *http.Client {
	return &http.Client{Timeout: c.timeout, Transport: c.base}
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.WrapExternal("request throttled", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WrapInternal("failed to encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.WrapInternal("failed to build request", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// apiError is the error body shared by PostgREST and GoTrue.
type apiError struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func readAPIError(resp *http.Response) apiError {
	var body apiError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &body)
	if body.text() == "" {
		body.Message = strings.TrimSpace(string(data))
	}
	if body.text() == "" {
		body.Message = resp.Status
	}
	return body
}

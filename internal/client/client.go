package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"nflpicks/tracker/internal/apperr"
	"nflpicks/tracker/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Client is a JSON HTTP client with retry, exponential backoff and a
// concurrency limit. Provider-specific clients embed it.
type Client struct {
	baseURL     string
	userAgent   string
	headers     map[string]string
	httpClient  *http.Client
	rateLimiter chan struct{}
	maxRetries  int
	retryDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHeader sets a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithRetry overrides the retry count and base backoff.
func WithRetry(maxRetries int, retryDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = retryDelay
	}
}

// New creates a client rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	rateLimiter := make(chan struct{}, 10)
	for i := 0; i < cap(rateLimiter); i++ {
		rateLimiter <- struct{}{}
	}

	c := &Client{
		baseURL:     baseURL,
		userAgent:   "nfl-tracker/1.0",
		headers:     make(map[string]string),
		rateLimiter: rateLimiter,
		maxRetries:  3,
		retryDelay:  500 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one call. Path is relative to the base URL unless URL is
// set.
type Request struct {
	// Endpoint labels the call in metrics; defaults to Method.
	Endpoint string
	Method   string
	Path     string
	URL      string
	Query    map[string]string
	Body     []byte
	Header   map[string]string

	// Idempotent allows retries for methods that are not idempotent by
	// definition, such as a PATCH that rewrites a named resource.
	Idempotent bool
}

// Response is a completed call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Do executes req. Network failures and 429/5xx statuses of idempotent
// requests are retried with backoff; other non-2xx statuses are returned as a
// *apperr.NetworkError carrying the status code.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = req.Method
	}
	status := "success"
	if err != nil {
		status = "error"
		if apperr.IsTimeout(err) {
			status = "timeout"
		}
	}
	metrics.RecordAPICall(endpoint, status, time.Since(start).Seconds())
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	url := req.URL
	if url == "" {
		url = fmt.Sprintf("%s/%s", c.baseURL, trimSlash(req.Path))
	}
	op := fmt.Sprintf("%s %s", method, url)

	maxRetries := c.maxRetries
	if !req.Idempotent && !idempotent(method) {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryDelay * time.Duration(1<<uint(attempt-1))
			log.Info().
				Str("url", url).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying API request after backoff")

			select {
			case <-ctx.Done():
				return nil, apperr.NewNetworkError(op, ctx.Err())
			case <-time.After(backoff):
			}
		}

		resp, err := c.attempt(ctx, method, url, req)
		if err != nil {
			lastErr = apperr.NewNetworkError(op, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			log.Debug().
				Str("url", url).
				Int("status", resp.StatusCode).
				Int("size", len(resp.Body)).
				Msg("API request successful")
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = &apperr.NetworkError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("retryable status: %s", truncate(resp.Body)),
			}
			if attempt < maxRetries {
				log.Warn().
					Str("url", url).
					Int("status", resp.StatusCode).
					Int("attempt", attempt+1).
					Msg("Received retryable error, will retry")
			}

		default:
			return resp, &apperr.NetworkError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("unexpected status: %s", truncate(resp.Body)),
			}
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, url string, req Request) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.rateLimiter:
	}
	defer func() { c.rateLimiter <- struct{}{} }()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for key, value := range req.Query {
			q.Set(key, value)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	log.Debug().
		Str("url", url).
		Str("method", method).
		Msg("Making API request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func trimSlash(p string) string {
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	return p
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

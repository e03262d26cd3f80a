package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vroomgo/internal/metrics"
)

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Option tunes the HTTP client shared by providers.
type Option func(*client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *client) { c.http = hc } }

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		}
	}
}

// WithRetry sets the number of attempts and the initial backoff.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *client) {
		c.attempts = max(attempts, 1)
		c.backoff = backoff
	}
}

// WithAPIKey sends key in the Authorization header (OpenRouteService).
func WithAPIKey(key string) Option { return func(c *client) { c.apiKey = key } }

type client struct {
	name     string
	http     *http.Client
	limiter  *rate.Limiter
	attempts int
	backoff  time.Duration
	apiKey   string
}

func newClient(name string, opts ...Option) *client {
	c := &client{
		name:     name,
		http:     &http.Client{Timeout: 30 * time.Second},
		attempts: 4,
		backoff:  200 * time.Millisecond,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RoutingRequests.WithLabelValues(c.name, "error").Inc()
		return nil, err
	}
	metrics.RoutingRequests.WithLabelValues(c.name, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429 and 5xx
// responses) with exponential backoff while respecting ctx.
func (c *client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}
		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
				http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				retry = true
			}
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}
		if !retry || attempt == c.attempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

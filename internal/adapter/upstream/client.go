// Package upstream provides the HTTP client for the cost-management REST API.
// It owns bearer-token authentication, response caching and circuit-broken
// request execution; typed fetch operations live in fetch.go.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	otelspans "github.com/costscope/costscope/internal/adapter/otel"
	"github.com/costscope/costscope/internal/config"
	"github.com/costscope/costscope/internal/domain"
	"github.com/costscope/costscope/internal/port/cache"
	"github.com/costscope/costscope/internal/resilience"
)

// Client talks to the upstream cost-management API.
type Client struct {
	baseURL      string
	tokenPath    string
	clientID     string
	clientSecret string
	username     string
	password     string
	pageSize     int

	httpClient *http.Client
	breaker    *resilience.Breaker
	cache      cache.Cache
	cacheTTL   time.Duration
	log        *slog.Logger
	now        func() time.Time

	tokens tokenCache
	sf     singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithBreaker attaches a circuit breaker to all outgoing HTTP calls.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithCache attaches a response cache for subscription and tag lookups.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates an upstream API client from config.
func NewClient(cfg config.Upstream, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:      cfg.BaseURL,
		tokenPath:    cfg.TokenPath,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		username:     cfg.Username,
		password:     cfg.Password,
		pageSize:     cfg.PageSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
		now: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BreakerState reports the circuit state for health reporting.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return string(resilience.StateClosed)
	}
	return string(c.breaker.State())
}

// doGet performs an authenticated GET and decodes the JSON response into out.
// A 404 surfaces as domain.ErrNotFound so each operation can decide whether
// it means "empty" for its resource.
func (c *Client) doGet(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.request(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}

// doPut performs an authenticated PUT with a JSON body.
func (c *Client) doPut(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	_, err = c.request(ctx, http.MethodPut, path, nil, payload)
	return err
}

// request runs one HTTP exchange through the circuit breaker.
func (c *Client) request(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	ctx, span := otelspans.StartUpstreamSpan(ctx, method+" "+path)
	defer span.End()

	call := func(ctx context.Context) ([]byte, error) {
		token, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		return c.send(ctx, method, path, query, body, "Bearer "+token)
	}

	if c.breaker == nil {
		return call(ctx)
	}
	return resilience.Execute(ctx, c.breaker, call)
}

// send performs the raw HTTP exchange and maps error statuses.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, authorization string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &domain.AuthenticationError{Reason: "upstream rejected credentials"}
	case resp.StatusCode >= 400:
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Body: string(data)}
	}

	return data, nil
}

// Package agentapi provides the HTTP client for the Haggl sourcing-agent
// API: the one-shot recent-events backfill and the live SSE subscription.
package agentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anirudhk-tech/haggl-console/internal/domain/event"
	"github.com/anirudhk-tech/haggl-console/internal/port/cache"
	"github.com/anirudhk-tech/haggl-console/internal/resilience"
)

// Client talks to the sourcing-agent event API.
type Client struct {
	baseURL      string
	httpClient   *http.Client // request/response calls, bounded by timeout
	streamClient *http.Client // long-lived SSE, no overall timeout
	breaker      *resilience.Breaker
	cache        cache.Cache
	cacheTTL     time.Duration
}

// NewClient creates an agent API client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{},
	}
}

// BaseURL returns the configured agent base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetBreaker attaches a circuit breaker to backfill calls. The SSE
// subscription is not routed through it; reconnects have their own policy.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetCache attaches a response cache for the recent-events backfill, so
// rapid manual refreshes do not hammer the agent.
func (c *Client) SetCache(cc cache.Cache, ttl time.Duration) {
	c.cache = cc
	c.cacheTTL = ttl
}

// recentEnvelope is the wire shape of GET /events/recent.
type recentEnvelope struct {
	Events []event.AgentEvent `json:"events"`
}

// RecentEvents fetches up to limit historical events, oldest first, exactly
// as the agent returns them. Callers reverse for newest-first seeding.
// Safe to call repeatedly; a non-2xx response or transport failure is
// returned as an error with no partial result.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]event.AgentEvent, error) {
	key := fmt.Sprintf("events:recent:%d", limit)

	if c.cache != nil {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			return decodeRecent(data)
		}
	}

	body, err := c.get(ctx, fmt.Sprintf("/events/recent?limit=%d", limit))
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}

	events, err := decodeRecent(body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, key, body, c.cacheTTL)
	}
	return events, nil
}

func decodeRecent(body []byte) ([]event.AgentEvent, error) {
	var env recentEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode recent events: %w", err)
	}
	return env.Events, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	var result []byte
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 300 {
			return fmt.Errorf("agent API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}

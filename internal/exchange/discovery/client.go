// Package discovery provides the shared HTTP client every venue's
// symbol-discovery call uses: rate-limited and circuit-broken, so a
// flaky instruments endpoint degrades to reconnect-and-retry rather
// than hammering the venue or hanging the adapter.
package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Client wraps http.Client with a per-venue token bucket and circuit
// breaker, grounded on the net/ratelimit and providers circuit-breaker
// wrappers.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// New builds a Client for one venue's discovery endpoint. Instrument
// lists are fetched at most once per reconnection, so a conservative
// limit (1 req/s, burst 2) is generous.
func New(venue string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 2),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        venue + "-discovery",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Get fetches url and returns the response body. A qualification-API
// failure here propagates to the caller, which per spec turns into a
// reconnect of the whole adapter.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, fmt.Errorf("discovery request failed: %w", err)
	}
	return result.([]byte), nil
}

package luarmor

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bimoraa/atomic-bot-sub001/internal/store"
)

// Option represents a configuration option for NewClient.
type Option func(*Client)

// WithBaseURL overrides the provider API root. Mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-attempt request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts beyond the first.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBackoff sets the retry backoff envelope.
func WithBackoff(initial, max time.Duration, multiplier float64) Option {
	return func(c *Client) {
		c.initialBackoff = initial
		c.maxBackoff = max
		c.backoffMultiplier = multiplier
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0).
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// WithCircuitBreaker sets the circuit breaker configuration.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breakerConfig = config
	}
}

// WithCooldown tunes the adaptive rate-limit cooldowns.
func WithCooldown(multiplier float64, max time.Duration) Option {
	return func(c *Client) {
		c.cooldownMultiplier = multiplier
		c.cooldownMax = max
	}
}

// WithRateLimitDefault sets the cooldown applied on a 429 that carries no
// retry_after hint.
func WithRateLimitDefault(d time.Duration) Option {
	return func(c *Client) {
		c.rateLimitBase = d
	}
}

// WithMaxConcurrent bounds simultaneous requests against the provider.
func WithMaxConcurrent(n int) Option {
	return func(c *Client) {
		c.maxConcurrent = n
	}
}

// WithFreshness sets the cache freshness windows. The list window is longer
// in practice: the whole-dataset fetch is expensive and feeds leaderboard
// style reads that tolerate minutes-old data.
func WithFreshness(user, list time.Duration) Option {
	return func(c *Client) {
		c.userFreshness = user
		c.listFreshness = list
	}
}

// WithStaleWindow sets how old a cache entry may be and still be served
// when the provider is failing.
func WithStaleWindow(d time.Duration) Option {
	return func(c *Client) {
		c.staleWindow = d
	}
}

// WithResetCooldown sets the per-user hardware reset cooldown.
func WithResetCooldown(d time.Duration) Option {
	return func(c *Client) {
		c.resetCooldown = d
	}
}

// WithStore attaches the persistent cache tier and tracking collections.
func WithStore(s store.Store) Option {
	return func(c *Client) {
		c.persistent = s
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithClock overrides the time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

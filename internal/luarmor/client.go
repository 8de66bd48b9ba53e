package luarmor

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bimoraa/atomic-bot-sub001/internal/store"
)

// DefaultBaseURL is the provider's versioned API root.
const DefaultBaseURL = "https://api.luarmor.net/v3"

// Config carries the environment-supplied provider credentials. Missing
// values are reported at call time with a descriptive error, not at
// construction, so the bot can boot without them and fail per-command.
type Config struct {
	APIKey          string
	ProjectID       string
	WebhookURL      string
	UnbanWebhookURL string
}

// Client is a resilient Luarmor API client. It layers retries, circuit
// breaking, rate-limit cooldowns, bounded-concurrency admission,
// de-duplication and a two-tier cache around the provider's REST surface.
// It is safe for concurrent use.
type Client struct {
	cfg     Config
	baseURL string

	httpClient        *http.Client
	timeout           time.Duration
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	jitter            float64

	userFreshness time.Duration
	listFreshness time.Duration
	staleWindow   time.Duration
	resetCooldown time.Duration
	rateLimitBase time.Duration

	breakerConfig      CircuitBreakerConfig
	cooldownMultiplier float64
	cooldownMax        time.Duration
	maxConcurrent      int
	persistent         store.Store

	breaker   *CircuitBreaker
	cooldowns *CooldownTracker
	queue     *requestQueue
	flights   *flightGroup
	cache     *twoTierCache
	metrics   *MetricsCollector
	logger    *zap.Logger

	now func() time.Time

	validationError error
}

// NewClient constructs a Client from credentials and functional options.
// A best effort validation is performed; call IsValid / ValidationError.
func NewClient(cfg Config, options ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		timeout:           10 * time.Second,
		maxRetries:        3,
		initialBackoff:    500 * time.Millisecond,
		maxBackoff:        15 * time.Second,
		backoffMultiplier: 2.0,
		jitter:            0.3,

		userFreshness: 30 * time.Second,
		listFreshness: 5 * time.Minute,
		staleWindow:   30 * time.Minute,
		resetCooldown: 10 * time.Minute,
		rateLimitBase: 120 * time.Second,

		breakerConfig:      CircuitBreakerConfig{},
		cooldownMultiplier: 2.0,
		cooldownMax:        5 * time.Minute,
		maxConcurrent:      3,

		logger: zap.NewNop(),
		now:    time.Now,
	}

	for _, option := range options {
		option(c)
	}

	c.breaker = NewCircuitBreaker(c.breakerConfig)
	c.breaker.now = c.now
	c.cooldowns = NewCooldownTracker(c.cooldownMultiplier, c.cooldownMax)
	c.cooldowns.now = c.now
	c.queue = newRequestQueue(c.maxConcurrent)
	c.flights = newFlightGroup()
	c.cache = newTwoTierCache(c.persistent, c.logger)
	c.cache.now = c.now

	if err := c.validateConfiguration(); err != nil {
		c.validationError = err
	}

	return c
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) validateConfiguration() error {
	var problems []string

	if c.maxRetries < 0 {
		problems = append(problems, "max retries must be non-negative")
	}
	if c.initialBackoff <= 0 {
		problems = append(problems, "initial backoff must be positive")
	}
	if c.maxBackoff < c.initialBackoff {
		problems = append(problems, "max backoff must be at least initial backoff")
	}
	if c.backoffMultiplier <= 0 {
		problems = append(problems, "backoff multiplier must be positive")
	}
	if c.jitter < 0 || c.jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.maxConcurrent <= 0 {
		problems = append(problems, "max concurrent must be positive")
	}
	if c.staleWindow < c.userFreshness {
		problems = append(problems, "stale window must be at least the user freshness window")
	}
	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}

	if len(problems) > 0 {
		return &APIError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}
	return nil
}

// checkCredentials fails fast when the required environment-supplied values
// are absent. No network call is made.
func (c *Client) checkCredentials() *APIError {
	if c.cfg.APIKey == "" {
		return &APIError{Type: ErrorTypeClient, Message: "LUARMOR_API_KEY is not configured"}
	}
	if c.cfg.ProjectID == "" {
		return &APIError{Type: ErrorTypeClient, Message: "LUARMOR_PROJECT_ID is not configured"}
	}
	return nil
}

func (c *Client) projectPath(suffix string) string {
	return "/projects/" + c.cfg.ProjectID + suffix
}

// endpointKey derives the rate-limit key for a route: method plus path with
// the query string stripped, so all queries against one route share a key.
func endpointKey(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return method + " " + path
}

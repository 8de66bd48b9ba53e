package luarmor

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// request runs one logical provider call through every gate: cooldowns and
// the circuit breaker are re-checked before each attempt so a retry can
// never slip past them, admission goes through the concurrency queue, and
// retryable failures back off exponentially with jitter up to maxRetries
// extra attempts. opKeys adds operation-level cooldown keys on top of the
// endpoint key.
func (c *Client) request(ctx context.Context, method, path string, body any, priority Priority, opKeys ...string) (json.RawMessage, error) {
	endpoint := endpointKey(method, path)
	keys := make([]string, 0, len(opKeys)+1)
	keys = append(keys, endpoint)
	keys = append(keys, opKeys...)

	var raw json.RawMessage
	for attempt := 0; ; attempt++ {
		for _, key := range keys {
			if remaining, limited := c.cooldowns.Limited(key); limited {
				c.metrics.RecordError(ErrorTypeRateLimit, endpoint)
				return nil, &APIError{
					Type:       ErrorTypeRateLimit,
					Message:    "cooling down",
					RetryAfter: remaining,
					Cause:      ErrRateLimited,
				}
			}
		}
		if !c.breaker.Allow() {
			c.metrics.RecordError(ErrorTypeCircuitOpen, endpoint)
			return nil, &APIError{
				Type:    ErrorTypeCircuitOpen,
				Message: "circuit breaker is open",
				Cause:   ErrCircuitOpen,
			}
		}

		if attempt > 0 {
			c.metrics.RecordRetry(method, endpoint)
		}

		err := c.queue.Do(ctx, priority, func() error {
			var execErr error
			raw, execErr = c.execute(ctx, method, path, body)
			return execErr
		})
		c.metrics.RecordQueue(c.queue.Depth(), c.queue.ActiveCount())
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, &APIError{Type: ErrorTypeTimeout, Message: "request abandoned", Cause: ctx.Err()}
		}
		if !Retryable(err) || attempt >= c.maxRetries {
			return nil, err
		}

		delay := c.backoffDelay(attempt)
		c.logger.Debug("retrying provider call",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &APIError{Type: ErrorTypeTimeout, Message: "request abandoned during backoff", Cause: ctx.Err()}
		}
	}
}

// backoffDelay computes initial * multiplier^attempt capped at the maximum,
// plus up to jitter fraction of random spread.
func (c *Client) backoffDelay(attempt int) time.Duration {
	backoff := time.Duration(float64(c.initialBackoff) * pow(c.backoffMultiplier, attempt))
	if backoff > c.maxBackoff || backoff <= 0 {
		backoff = c.maxBackoff
	}
	if c.jitter > 0 {
		backoff += time.Duration(float64(backoff) * c.jitter * rand.Float64())
	}
	return backoff
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

package luarmor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 4 * 1024 * 1024

// execute performs one HTTP attempt with a timeout and classifies the
// outcome. Side effects: any transport failure or 5xx records a breaker
// failure, a 2xx resets the breaker, and a 429 starts an endpoint cooldown.
func (c *Client) execute(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	endpoint := endpointKey(method, path)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &APIError{Type: ErrorTypeValidation, Message: "failed to encode request body", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &APIError{Type: ErrorTypeValidation, Message: "failed to build request", Cause: err}
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		c.metrics.RecordCircuitBreakerState(c.breaker.State())

		errType := ErrorTypeNetwork
		msg := "request failed"
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			errType = ErrorTypeTimeout
			msg = "request timed out"
		}
		c.metrics.RecordError(errType, endpoint)
		c.metrics.RecordRequest(method, endpoint, 0, time.Since(start))
		c.logger.Warn("provider call failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, &APIError{Type: errType, Message: msg, Cause: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		raw = nil
	}
	status := resp.StatusCode
	c.metrics.RecordRequest(method, endpoint, status, time.Since(start))

	switch {
	case status >= 200 && status < 300:
		c.breaker.Reset()
		c.metrics.RecordCircuitBreakerState(c.breaker.State())
		return raw, nil

	case status == http.StatusTooManyRequests:
		retryAfter := retryAfterHint(raw, resp.Header, c.rateLimitBase)
		applied := c.cooldowns.Set(endpoint, retryAfter)
		c.metrics.RecordCooldownsActive(c.cooldowns.Active())
		c.metrics.RecordError(ErrorTypeRateLimit, endpoint)
		c.logger.Warn("provider rate limit",
			zap.String("endpoint", endpoint), zap.Duration("cooldown", applied))
		return nil, &APIError{
			Type:       ErrorTypeRateLimit,
			StatusCode: status,
			Message:    providerMessage(raw, "rate limited by provider"),
			RetryAfter: applied,
			Cause:      ErrRateLimited,
		}

	case status == http.StatusBadRequest:
		c.metrics.RecordError(ErrorTypeValidation, endpoint)
		return nil, &APIError{
			Type:       ErrorTypeValidation,
			StatusCode: status,
			Message:    providerMessage(raw, "provider rejected the request"),
		}

	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c.metrics.RecordError(ErrorTypeClient, endpoint)
		return nil, &APIError{
			Type:       ErrorTypeClient,
			StatusCode: status,
			Message:    providerMessage(raw, "provider rejected credentials"),
		}

	case status >= 500:
		c.breaker.RecordFailure()
		c.metrics.RecordCircuitBreakerState(c.breaker.State())
		c.metrics.RecordError(ErrorTypeServer, endpoint)
		return nil, &APIError{
			Type:       ErrorTypeServer,
			StatusCode: status,
			Message:    providerMessage(raw, "provider server error"),
		}

	default:
		c.metrics.RecordError(ErrorTypeClient, endpoint)
		return nil, &APIError{
			Type:       ErrorTypeClient,
			StatusCode: status,
			Message:    providerMessage(raw, "unexpected provider response"),
		}
	}
}

// providerMessage pulls the provider's message field out of an error body,
// tolerating empty and malformed bodies.
func providerMessage(raw json.RawMessage, fallback string) string {
	if ack := parseAck(raw); ack.Message != "" {
		return ack.Message
	}
	return fallback
}

// retryAfterHint reads the provider's retry_after hint (body field in
// seconds, header fallback) with a default when absent.
func retryAfterHint(raw json.RawMessage, header http.Header, fallback time.Duration) time.Duration {
	var hinted struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(raw, &hinted); err == nil && hinted.RetryAfter > 0 {
		return time.Duration(hinted.RetryAfter * float64(time.Second))
	}
	if v := header.Get("Retry-After"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

package luarmor

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy. Retryable types are retried by the backoff controller;
// RATE_LIMIT and CIRCUIT_OPEN are converted into "try later" results instead.
const (
	ErrorTypeValidation  = "VALIDATION"
	ErrorTypeClient      = "CLIENT_ERROR"
	ErrorTypeServer      = "SERVER_ERROR"
	ErrorTypeNetwork     = "NETWORK_ERROR"
	ErrorTypeTimeout     = "TIMEOUT_ERROR"
	ErrorTypeRateLimit   = "RATE_LIMIT"
	ErrorTypeParse       = "PARSE_ERROR"
	ErrorTypeCircuitOpen = "CIRCUIT_OPEN"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrCircuitOpen is returned when the circuit breaker is in open state.
	ErrCircuitOpen = errors.New("luarmor: circuit open")

	// ErrRateLimited is returned when a request is denied by a cooldown.
	ErrRateLimited = errors.New("luarmor: rate limited")
)

// APIError is the classified outcome of a provider call.
type APIError struct {
	Type       string
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *APIError) Is(target error) bool {
	if e == nil {
		return false
	}
	if target == ErrCircuitOpen {
		return e.Type == ErrorTypeCircuitOpen
	}
	if target == ErrRateLimited {
		return e.Type == ErrorTypeRateLimit
	}
	if targetErr, ok := target.(*APIError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// Retryable reports whether the backoff controller may retry the failure.
// Rate limits are deliberately excluded: they become cooldowns, not retries.
func Retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer:
			return true
		}
		return false
	}
	return false
}

// TryLater reports whether the failure should surface as a friendly
// "try again later" notice rather than a hard error.
func TryLater(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == ErrorTypeRateLimit || apiErr.Type == ErrorTypeCircuitOpen
	}
	return false
}

package luarmor

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		errType   string
		retryable bool
	}{
		{ErrorTypeNetwork, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeServer, true},
		{ErrorTypeValidation, false},
		{ErrorTypeClient, false},
		{ErrorTypeRateLimit, false},
		{ErrorTypeCircuitOpen, false},
		{ErrorTypeParse, false},
	}
	for _, tt := range tests {
		err := &APIError{Type: tt.errType, Message: "x"}
		if got := Retryable(err); got != tt.retryable {
			t.Errorf("Retryable(%s) = %v, want %v", tt.errType, got, tt.retryable)
		}
	}
	if Retryable(errors.New("plain")) {
		t.Error("plain errors must not be retryable")
	}
}

func TestTryLaterClassification(t *testing.T) {
	if !TryLater(&APIError{Type: ErrorTypeRateLimit}) {
		t.Error("rate limit should be try-later")
	}
	if !TryLater(&APIError{Type: ErrorTypeCircuitOpen}) {
		t.Error("open circuit should be try-later")
	}
	if TryLater(&APIError{Type: ErrorTypeServer}) {
		t.Error("server error is a hard failure")
	}
}

func TestAPIErrorSentinels(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &APIError{Type: ErrorTypeCircuitOpen, Message: "open", Cause: ErrCircuitOpen})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("errors.Is(err, ErrCircuitOpen) = false")
	}

	rateErr := &APIError{Type: ErrorTypeRateLimit, Message: "cooling down"}
	if !errors.Is(rateErr, ErrRateLimited) {
		t.Error("errors.Is(rateErr, ErrRateLimited) = false")
	}
	if errors.Is(rateErr, ErrCircuitOpen) {
		t.Error("rate limit must not match ErrCircuitOpen")
	}

	var apiErr *APIError
	if !errors.As(rateErr, &apiErr) || apiErr.Type != ErrorTypeRateLimit {
		t.Error("errors.As failed to recover the APIError")
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Type: ErrorTypeServer, Message: "provider server error", StatusCode: 503}
	want := "SERVER_ERROR: provider server error (status 503)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

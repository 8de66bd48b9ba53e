package luarmor

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, HalfOpenAfter: 30 * time.Second, RecoveryTimeout: 60 * time.Second})
	cb.now = clock.Now

	for i := 0; i < 3; i++ {
		if !cb.Allow() {
			t.Fatalf("Allow() = false before threshold, failure %d", i)
		}
		cb.RecordFailure()
	}

	if cb.Allow() {
		t.Error("Allow() = true after threshold failures")
	}
	if cb.State() != StateOpen {
		t.Errorf("State() = %v, want StateOpen", cb.State())
	}
}

func TestCircuitBreakerHalfOpenProbe(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, HalfOpenAfter: 30 * time.Second, RecoveryTimeout: 60 * time.Second})
	cb.now = clock.Now

	cb.RecordFailure()
	cb.RecordFailure()

	clock.Advance(31 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want StateHalfOpen", cb.State())
	}
	if !cb.Allow() {
		t.Fatal("Allow() = false for the half-open probe")
	}
	// Only one probe may pass while the breaker is half-open.
	if cb.Allow() {
		t.Error("Allow() = true for a second probe")
	}

	// Probe failure re-opens with a fresh timer.
	cb.RecordFailure()
	if cb.Allow() {
		t.Error("Allow() = true right after a failed probe")
	}
}

func TestCircuitBreakerClosesAfterRecoveryTimeout(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, HalfOpenAfter: 30 * time.Second, RecoveryTimeout: 60 * time.Second})
	cb.now = clock.Now

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("Allow() = true while open")
	}

	clock.Advance(61 * time.Second)
	if !cb.Allow() {
		t.Fatal("Allow() = false after recovery timeout")
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want StateClosed", cb.State())
	}
}

func TestCircuitBreakerResetOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	cb.RecordFailure()
	cb.Reset()
	cb.RecordFailure()

	if !cb.Allow() {
		t.Error("Allow() = false, reset should have cleared the failure count")
	}
}

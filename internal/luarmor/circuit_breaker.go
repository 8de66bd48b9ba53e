package luarmor

import (
	"sync"
	"time"
)

// CircuitBreakerConfig holds circuit breaker tuning. Thresholds and timeouts
// vary per deployment, so everything is configurable.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// HalfOpenAfter is how long the circuit stays fully open before a single
	// trial request is allowed through.
	HalfOpenAfter time.Duration
	// RecoveryTimeout is how long after the last failure the circuit closes
	// again regardless of probe outcomes.
	RecoveryTimeout time.Duration
}

// CircuitBreaker is a process-wide failure counter with a cool-down window.
// It is not partitioned per endpoint: a provider outage affects every route.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	probing     bool
	now         func() time.Time
}

// CircuitState is the observable breaker state, for metrics.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// NewCircuitBreaker creates a circuit breaker with defaults filled in.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.HalfOpenAfter == 0 {
		config.HalfOpenAfter = 30 * time.Second
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	return &CircuitBreaker{
		config: config,
		now:    time.Now,
	}
}

// Allow checks whether a request may go out. It never mutates state except
// the implicit closed transition once the full recovery timeout has elapsed,
// and claiming the single half-open probe slot.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures < cb.config.FailureThreshold {
		return true
	}

	elapsed := cb.now().Sub(cb.lastFailure)
	if elapsed >= cb.config.RecoveryTimeout {
		cb.failures = 0
		cb.probing = false
		return true
	}
	if elapsed >= cb.config.HalfOpenAfter {
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return false
}

// RecordFailure increments the failure counter and stamps the failure time.
// A failed half-open probe re-opens the circuit with a fresh timer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	cb.probing = false
}

// Reset zeroes the failure counter. Called on any successful response.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.probing = false
}

// State reports the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures < cb.config.FailureThreshold {
		return StateClosed
	}
	elapsed := cb.now().Sub(cb.lastFailure)
	if elapsed >= cb.config.RecoveryTimeout {
		return StateClosed
	}
	if elapsed >= cb.config.HalfOpenAfter {
		return StateHalfOpen
	}
	return StateOpen
}

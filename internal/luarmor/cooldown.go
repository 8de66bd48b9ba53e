package luarmor

import (
	"sync"
	"time"
)

// CooldownTracker maps rate-limit keys to absolute expiry timestamps.
// Endpoint-level keys ("GET /projects/x/users") throttle everyone hitting
// that route after a provider 429; operation-level keys ("reset:<discord id>")
// throttle a single user's repeated action independently.
//
// Repeated violations of the same key grow the cooldown exponentially up to
// a hard cap. Expired entries are deleted lazily on lookup.
type CooldownTracker struct {
	multiplier float64
	max        time.Duration

	mu      sync.Mutex
	until   map[string]time.Time
	strikes map[string]int
	now     func() time.Time
}

// NewCooldownTracker creates a tracker with the given adaptive backoff
// multiplier and maximum cooldown.
func NewCooldownTracker(multiplier float64, max time.Duration) *CooldownTracker {
	if multiplier < 1 {
		multiplier = 1
	}
	if max <= 0 {
		max = 5 * time.Minute
	}
	return &CooldownTracker{
		multiplier: multiplier,
		max:        max,
		until:      make(map[string]time.Time),
		strikes:    make(map[string]int),
		now:        time.Now,
	}
}

// Limited reports whether key is cooling down, and for how much longer.
func (t *CooldownTracker) Limited(key string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expiry, ok := t.until[key]
	if !ok {
		return 0, false
	}
	remaining := expiry.Sub(t.now())
	if remaining <= 0 {
		delete(t.until, key)
		delete(t.strikes, key)
		return 0, false
	}
	return remaining, true
}

// Set starts (or extends) a cooldown for key. The effective duration is
// base * multiplier^strikes, capped at the tracker maximum, where strikes
// counts prior violations that have not yet aged out.
func (t *CooldownTracker) Set(key string, base time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := base
	for i := 0; i < t.strikes[key]; i++ {
		d = time.Duration(float64(d) * t.multiplier)
		if d >= t.max {
			break
		}
	}
	if d > t.max {
		d = t.max
	}
	t.until[key] = t.now().Add(d)
	t.strikes[key]++
	return d
}

// Clear removes any cooldown for key.
func (t *CooldownTracker) Clear(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.until, key)
	delete(t.strikes, key)
}

// Active counts keys currently cooling down, for metrics.
func (t *CooldownTracker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	now := t.now()
	for _, expiry := range t.until {
		if expiry.After(now) {
			n++
		}
	}
	return n
}

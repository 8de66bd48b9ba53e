package luarmor

import (
	"testing"
	"time"
)

func TestCooldownSetAndExpiry(t *testing.T) {
	clock := newFakeClock()
	tr := NewCooldownTracker(2, 5*time.Minute)
	tr.now = clock.Now

	if _, limited := tr.Limited("k"); limited {
		t.Fatal("fresh tracker should not be limited")
	}

	applied := tr.Set("k", 30*time.Second)
	if applied != 30*time.Second {
		t.Errorf("first Set = %v, want 30s", applied)
	}

	remaining, limited := tr.Limited("k")
	if !limited || remaining != 30*time.Second {
		t.Errorf("Limited = (%v, %v), want (30s, true)", remaining, limited)
	}

	clock.Advance(31 * time.Second)
	if _, limited := tr.Limited("k"); limited {
		t.Error("cooldown should have expired")
	}
}

func TestCooldownAdaptiveGrowth(t *testing.T) {
	clock := newFakeClock()
	tr := NewCooldownTracker(2, 5*time.Minute)
	tr.now = clock.Now

	// Strikes while the previous cooldown is still active double the duration.
	want := []time.Duration{
		30 * time.Second,
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		5 * time.Minute, // capped
		5 * time.Minute,
	}
	for i, expected := range want {
		if got := tr.Set("k", 30*time.Second); got != expected {
			t.Errorf("Set #%d = %v, want %v", i, got, expected)
		}
	}
}

func TestCooldownStrikesResetAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	tr := NewCooldownTracker(2, 5*time.Minute)
	tr.now = clock.Now

	tr.Set("k", 30*time.Second)
	tr.Set("k", 30*time.Second)

	clock.Advance(2 * time.Minute)
	if _, limited := tr.Limited("k"); limited {
		t.Fatal("cooldown should have expired")
	}

	// The expired lookup cleared the strike history.
	if got := tr.Set("k", 30*time.Second); got != 30*time.Second {
		t.Errorf("Set after expiry = %v, want 30s", got)
	}
}

func TestCooldownKeysAreIndependent(t *testing.T) {
	tr := NewCooldownTracker(2, 5*time.Minute)

	tr.Set("a", time.Minute)
	if _, limited := tr.Limited("b"); limited {
		t.Error("unrelated key should not be limited")
	}
	if tr.Active() != 1 {
		t.Errorf("Active() = %d, want 1", tr.Active())
	}

	tr.Clear("a")
	if _, limited := tr.Limited("a"); limited {
		t.Error("cleared key should not be limited")
	}
}

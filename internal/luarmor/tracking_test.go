package luarmor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResetTracking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true,"message":"HWID reset"}`)
	}))
	defer server.Close()

	persistent := newMemStore()
	clock := newFakeClock()
	c := newTestClient(t, server.URL, WithStore(persistent), WithClock(clock.Now))
	ctx := context.Background()

	count, last, err := c.ResetStats(ctx, testDiscordID)
	if err != nil || count != 0 || !last.IsZero() {
		t.Fatalf("ResetStats before any reset = (%d, %v, %v)", count, last, err)
	}

	if res := c.ResetHWIDByDiscordID(ctx, testDiscordID); !res.Success {
		t.Fatalf("reset failed: %+v", res)
	}

	count, last, err = c.ResetStats(ctx, testDiscordID)
	if err != nil {
		t.Fatalf("ResetStats: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if !last.Equal(clock.Now()) {
		t.Errorf("last reset = %v, want %v", last, clock.Now())
	}
}

func TestUnlockedModeRoundTrip(t *testing.T) {
	persistent := newMemStore()
	c := NewClient(testConfig(), WithStore(persistent))
	ctx := context.Background()

	enabled, err := c.UnlockedMode(ctx, testDiscordID)
	if err != nil || enabled {
		t.Fatalf("UnlockedMode default = (%v, %v), want (false, nil)", enabled, err)
	}

	if err := c.SetUnlockedMode(ctx, testDiscordID, true); err != nil {
		t.Fatalf("SetUnlockedMode: %v", err)
	}
	enabled, err = c.UnlockedMode(ctx, testDiscordID)
	if err != nil || !enabled {
		t.Errorf("UnlockedMode = (%v, %v), want (true, nil)", enabled, err)
	}

	if err := c.SetUnlockedMode(ctx, testDiscordID, false); err != nil {
		t.Fatalf("SetUnlockedMode: %v", err)
	}
	enabled, _ = c.UnlockedMode(ctx, testDiscordID)
	if enabled {
		t.Error("unlocked mode still enabled after disable")
	}
}

func TestTrackingWithoutStore(t *testing.T) {
	c := NewClient(testConfig())
	ctx := context.Background()

	if count, _, err := c.ResetStats(ctx, testDiscordID); err != nil || count != 0 {
		t.Errorf("ResetStats without store = (%d, %v)", count, err)
	}
	if err := c.SetUnlockedMode(ctx, testDiscordID, true); err != nil {
		t.Errorf("SetUnlockedMode without store: %v", err)
	}
	if enabled, err := c.UnlockedMode(ctx, testDiscordID); err != nil || enabled {
		t.Errorf("UnlockedMode without store = (%v, %v)", enabled, err)
	}
}

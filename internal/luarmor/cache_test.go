package luarmor

import (
	"context"
	"testing"
	"time"
)

func TestTwoTierCachePromotesFromPersistent(t *testing.T) {
	clock := newFakeClock()
	persistent := newMemStore()
	ctx := context.Background()

	// Simulate an entry written by a previous process.
	warm := newTwoTierCache(persistent, nil)
	warm.now = clock.Now
	warm.PutUser(ctx, &User{UserKey: "k1", DiscordID: "123"}, "key:k1")

	// A fresh process starts with an empty memory tier.
	tc := newTwoTierCache(persistent, nil)
	tc.now = clock.Now

	u, ok := tc.GetUser(ctx, "key:k1", time.Minute)
	if !ok || u.UserKey != "k1" {
		t.Fatalf("GetUser = (%+v, %v), want promoted entry", u, ok)
	}

	// Promotion makes the next read a memory hit even without the store.
	tc.store = nil
	if _, ok := tc.GetUser(ctx, "key:k1", time.Minute); !ok {
		t.Error("promoted entry missing from the memory tier")
	}
}

func TestTwoTierCacheWindow(t *testing.T) {
	clock := newFakeClock()
	tc := newTwoTierCache(nil, nil)
	tc.now = clock.Now
	ctx := context.Background()

	tc.PutUser(ctx, &User{UserKey: "k1"}, "key:k1")

	clock.Advance(45 * time.Second)
	if _, ok := tc.GetUser(ctx, "key:k1", 30*time.Second); ok {
		t.Error("entry served past its freshness window")
	}
	if _, ok := tc.GetUser(ctx, "key:k1", time.Minute); !ok {
		t.Error("entry rejected inside a wider window")
	}
}

func TestTwoTierCacheInvalidate(t *testing.T) {
	persistent := newMemStore()
	tc := newTwoTierCache(persistent, nil)
	ctx := context.Background()

	tc.PutUser(ctx, &User{UserKey: "k1", DiscordID: "123"}, "key:k1", "discord:123")
	tc.Invalidate(ctx, "key:k1", "discord:123")

	if _, ok := tc.GetUser(ctx, "key:k1", time.Hour); ok {
		t.Error("invalidated entry still served from memory")
	}
	var entry cacheEntry
	if err := persistent.FindOne(ctx, collectionUserCache, "key:k1", &entry); err == nil {
		t.Error("invalidated entry still present in the persistent tier")
	}
}

func TestTwoTierCacheList(t *testing.T) {
	clock := newFakeClock()
	persistent := newMemStore()
	tc := newTwoTierCache(persistent, nil)
	tc.now = clock.Now
	ctx := context.Background()

	tc.PutList(ctx, []User{{UserKey: "a"}, {UserKey: "b"}})

	users, ok := tc.GetList(ctx, time.Minute)
	if !ok || len(users) != 2 {
		t.Fatalf("GetList = (%d users, %v)", len(users), ok)
	}

	tc.InvalidateList(ctx)
	if _, ok := tc.GetList(ctx, time.Hour); ok {
		t.Error("invalidated list still served")
	}
}

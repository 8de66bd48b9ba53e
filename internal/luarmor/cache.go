package luarmor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bimoraa/atomic-bot-sub001/internal/store"
)

const (
	collectionUserCache = "usercache"
	collectionListCache = "listcache"

	listCacheKey = "all"
)

// cacheEntry is the shape shared by both tiers.
type cacheEntry struct {
	User     *User     `json:"user,omitempty"`
	Users    []User    `json:"users,omitempty"`
	CachedAt time.Time `json:"cached_at"`
}

// twoTierCache pairs a fast in-memory map with an optional persistent store.
// The memory tier is consulted first; on a miss a still-fresh persistent
// entry is promoted into memory. Both tiers are written through on refresh
// and deleted together on invalidation. Persistent-tier errors are logged
// and treated as misses so the store can never take reads down with it.
type twoTierCache struct {
	mu    sync.RWMutex
	users map[string]*cacheEntry
	list  *cacheEntry

	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

func newTwoTierCache(persistent store.Store, logger *zap.Logger) *twoTierCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &twoTierCache{
		users:  make(map[string]*cacheEntry),
		store:  persistent,
		logger: logger,
		now:    time.Now,
	}
}

func (tc *twoTierCache) fresh(e *cacheEntry, window time.Duration) bool {
	return e != nil && tc.now().Sub(e.CachedAt) < window
}

// GetUser returns the cached record for key if it is within window.
func (tc *twoTierCache) GetUser(ctx context.Context, key string, window time.Duration) (*User, bool) {
	tc.mu.RLock()
	entry := tc.users[key]
	tc.mu.RUnlock()
	if tc.fresh(entry, window) {
		return entry.User, true
	}

	if tc.store == nil {
		return nil, false
	}
	var persisted cacheEntry
	err := tc.store.FindOne(ctx, collectionUserCache, key, &persisted)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			tc.logger.Warn("persistent cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if !tc.fresh(&persisted, window) {
		return nil, false
	}

	tc.mu.Lock()
	tc.users[key] = &persisted
	tc.mu.Unlock()
	return persisted.User, true
}

// PutUser writes the record through both tiers under every given key.
func (tc *twoTierCache) PutUser(ctx context.Context, u *User, keys ...string) {
	entry := &cacheEntry{User: u, CachedAt: tc.now()}

	tc.mu.Lock()
	for _, key := range keys {
		tc.users[key] = entry
	}
	tc.mu.Unlock()

	if tc.store == nil {
		return
	}
	for _, key := range keys {
		if err := tc.store.UpsertOne(ctx, collectionUserCache, key, entry); err != nil {
			tc.logger.Warn("persistent cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// GetList returns the cached user list if it is within window.
func (tc *twoTierCache) GetList(ctx context.Context, window time.Duration) ([]User, bool) {
	tc.mu.RLock()
	entry := tc.list
	tc.mu.RUnlock()
	if tc.fresh(entry, window) {
		return entry.Users, true
	}

	if tc.store == nil {
		return nil, false
	}
	var persisted cacheEntry
	err := tc.store.FindOne(ctx, collectionListCache, listCacheKey, &persisted)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			tc.logger.Warn("persistent list cache read failed", zap.Error(err))
		}
		return nil, false
	}
	if !tc.fresh(&persisted, window) {
		return nil, false
	}

	tc.mu.Lock()
	tc.list = &persisted
	tc.mu.Unlock()
	return persisted.Users, true
}

// PutList writes the full user list through both tiers.
func (tc *twoTierCache) PutList(ctx context.Context, users []User) {
	entry := &cacheEntry{Users: users, CachedAt: tc.now()}

	tc.mu.Lock()
	tc.list = entry
	tc.mu.Unlock()

	if tc.store == nil {
		return
	}
	if err := tc.store.UpsertOne(ctx, collectionListCache, listCacheKey, entry); err != nil {
		tc.logger.Warn("persistent list cache write failed", zap.Error(err))
	}
}

// Invalidate removes keys from both tiers. Called after any mutation that
// changes a record so stale reads cannot follow a reset or link.
func (tc *twoTierCache) Invalidate(ctx context.Context, keys ...string) {
	tc.mu.Lock()
	for _, key := range keys {
		delete(tc.users, key)
	}
	tc.mu.Unlock()

	if tc.store == nil {
		return
	}
	for _, key := range keys {
		if err := tc.store.DeleteOne(ctx, collectionUserCache, key); err != nil {
			tc.logger.Warn("persistent cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// InvalidateList drops the list entry from both tiers.
func (tc *twoTierCache) InvalidateList(ctx context.Context) {
	tc.mu.Lock()
	tc.list = nil
	tc.mu.Unlock()

	if tc.store == nil {
		return
	}
	if err := tc.store.DeleteOne(ctx, collectionListCache, listCacheKey); err != nil {
		tc.logger.Warn("persistent list cache delete failed", zap.Error(err))
	}
}

package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/tierd/internal/tier"
)

// cacheKey addresses one tier artifact.
type cacheKey struct {
	key  string
	tier tier.Tier
}

// cacheEntry is one cached read. Absence is cached too: a document without
// a full tier would otherwise hit storage on every baseline estimate.
type cacheEntry struct {
	content    string
	ok         bool
	expiresAt  time.Time
	lastAccess time.Time
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

// CachedStore is a read-through cache over a Store with TTL expiry and LRU
// eviction. Writes invalidate every cached tier of the written key, so
// reads through the same CachedStore never return pre-write content; files
// changed on disk behind the store stay visible for at most one TTL.
//
// Linker is intentionally not forwarded: bulk ingest links against the
// bare filesystem store.
type CachedStore struct {
	inner      Store
	ttl        time.Duration
	maxEntries int

	mu        sync.Mutex
	entries   map[cacheKey]*cacheEntry
	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time
}

// NewCachedStore wraps inner with an artifact cache of at most maxEntries
// entries, each valid for ttl.
func NewCachedStore(inner Store, ttl time.Duration, maxEntries int) (*CachedStore, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %v", ttl)
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", maxEntries)
	}
	return &CachedStore{
		inner:      inner,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[cacheKey]*cacheEntry),
		now:        time.Now,
	}, nil
}

// GetTierContent serves from the cache when a live entry exists, otherwise
// reads through to the inner store. Storage errors are never cached.
func (c *CachedStore) GetTierContent(ctx context.Context, key string, t tier.Tier) (string, bool, error) {
	ck := cacheKey{key: key, tier: t}

	c.mu.Lock()
	if e, exists := c.entries[ck]; exists {
		if c.now().Before(e.expiresAt) {
			e.lastAccess = c.now()
			c.hits++
			content, ok := e.content, e.ok
			c.mu.Unlock()
			return content, ok, nil
		}
		delete(c.entries, ck)
	}
	c.misses++
	c.mu.Unlock()

	content, ok, err := c.inner.GetTierContent(ctx, key, t)
	if err != nil {
		return "", false, err
	}

	c.mu.Lock()
	c.store(ck, content, ok)
	c.mu.Unlock()
	return content, ok, nil
}

// PutTierContent writes through and drops every cached tier of the key.
func (c *CachedStore) PutTierContent(ctx context.Context, key string, t tier.Tier, content string) error {
	if err := c.inner.PutTierContent(ctx, key, t, content); err != nil {
		return err
	}

	c.mu.Lock()
	for _, tr := range tier.AllTiers {
		delete(c.entries, cacheKey{key: key, tier: tr})
	}
	c.mu.Unlock()
	return nil
}

// ListDocuments is never cached; listings must see fresh keys.
func (c *CachedStore) ListDocuments(ctx context.Context) ([]string, error) {
	return c.inner.ListDocuments(ctx)
}

// Stats snapshots the cache counters.
func (c *CachedStore) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
	}
}

// store inserts an entry, evicting the least recently used one at
// capacity. Caller holds the lock.
func (c *CachedStore) store(ck cacheKey, content string, ok bool) {
	if _, exists := c.entries[ck]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	now := c.now()
	c.entries[ck] = &cacheEntry{
		content:    content,
		ok:         ok,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
}

// evictOldest drops the entry with the oldest access time. A linear scan
// is fine at the configured sizes. Caller holds the lock.
func (c *CachedStore) evictOldest() {
	var oldest cacheKey
	var oldestTime time.Time
	first := true
	for ck, e := range c.entries {
		if first || e.lastAccess.Before(oldestTime) {
			oldest = ck
			oldestTime = e.lastAccess
			first = false
		}
	}
	if !first {
		delete(c.entries, oldest)
		c.evictions++
	}
}

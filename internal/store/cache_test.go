package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tierd/internal/tier"
)

// countingStore counts reads so tests can tell a cache hit from a
// read-through.
type countingStore struct {
	*MemStore
	mu    sync.Mutex
	reads int
}

func (s *countingStore) GetTierContent(ctx context.Context, key string, t tier.Tier) (string, bool, error) {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	return s.MemStore.GetTierContent(ctx, key, t)
}

func (s *countingStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func newCachedStore(t *testing.T, inner Store, ttl time.Duration, maxEntries int) (*CachedStore, *time.Time) {
	t.Helper()

	c, err := NewCachedStore(inner, ttl, maxEntries)
	require.NoError(t, err)

	clock := time.Now()
	c.now = func() time.Time { return clock }
	return c, &clock
}

func TestNewCachedStore(t *testing.T) {
	_, err := NewCachedStore(nil, time.Minute, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inner store is required")

	_, err = NewCachedStore(NewMemStore(), 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache ttl")

	_, err = NewCachedStore(NewMemStore(), time.Minute, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache size")
}

func TestCachedStore_ReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemStore: NewMemStore()}
	require.NoError(t, inner.PutTierContent(ctx, "doc", tier.Tier0, "summary"))

	c, _ := newCachedStore(t, inner, time.Minute, 10)

	for i := 0; i < 3; i++ {
		content, ok, err := c.GetTierContent(ctx, "doc", tier.Tier0)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "summary", content)
	}

	assert.Equal(t, 1, inner.readCount(), "Repeated reads should be served from cache")

	s := c.Stats()
	assert.Equal(t, uint64(2), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, 1, s.Entries)
}

func TestCachedStore_CachesAbsence(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemStore: NewMemStore()}
	c, _ := newCachedStore(t, inner, time.Minute, 10)

	for i := 0; i < 3; i++ {
		_, ok, err := c.GetTierContent(ctx, "doc", tier.Tier2)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	assert.Equal(t, 1, inner.readCount(), "Absence should be cached like content")
}

func TestCachedStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemStore: NewMemStore()}
	require.NoError(t, inner.PutTierContent(ctx, "doc", tier.Tier0, "summary"))

	c, clock := newCachedStore(t, inner, time.Minute, 10)

	_, _, err := c.GetTierContent(ctx, "doc", tier.Tier0)
	require.NoError(t, err)

	*clock = clock.Add(2 * time.Minute)

	_, ok, err := c.GetTierContent(ctx, "doc", tier.Tier0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, inner.readCount(), "Expired entries should read through again")
}

func TestCachedStore_WriteInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemStore: NewMemStore()}
	require.NoError(t, inner.PutTierContent(ctx, "doc", tier.Tier0, "old"))

	c, _ := newCachedStore(t, inner, time.Minute, 10)

	content, _, err := c.GetTierContent(ctx, "doc", tier.Tier0)
	require.NoError(t, err)
	require.Equal(t, "old", content)

	require.NoError(t, c.PutTierContent(ctx, "doc", tier.Tier0, "new"))

	content, _, err = c.GetTierContent(ctx, "doc", tier.Tier0)
	require.NoError(t, err)
	assert.Equal(t, "new", content, "Writes must not leave stale reads behind")

	// Other keys keep their entries.
	require.NoError(t, inner.PutTierContent(ctx, "other", tier.Tier0, "content"))
	_, _, err = c.GetTierContent(ctx, "other", tier.Tier0)
	require.NoError(t, err)
	reads := inner.readCount()
	_, _, err = c.GetTierContent(ctx, "other", tier.Tier0)
	require.NoError(t, err)
	assert.Equal(t, reads, inner.readCount())
}

func TestCachedStore_LRUEviction(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemStore: NewMemStore()}
	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, inner.PutTierContent(ctx, key, tier.Tier0, key))
	}

	c, clock := newCachedStore(t, inner, time.Hour, 2)

	_, _, err := c.GetTierContent(ctx, "a", tier.Tier0)
	require.NoError(t, err)
	*clock = clock.Add(time.Second)
	_, _, err = c.GetTierContent(ctx, "b", tier.Tier0)
	require.NoError(t, err)

	// Refresh "a" so "b" becomes the eviction candidate.
	*clock = clock.Add(time.Second)
	_, _, err = c.GetTierContent(ctx, "a", tier.Tier0)
	require.NoError(t, err)

	*clock = clock.Add(time.Second)
	_, _, err = c.GetTierContent(ctx, "c", tier.Tier0)
	require.NoError(t, err)

	s := c.Stats()
	assert.Equal(t, 2, s.Entries)
	assert.Equal(t, uint64(1), s.Evictions)

	reads := inner.readCount()
	_, _, err = c.GetTierContent(ctx, "a", tier.Tier0)
	require.NoError(t, err)
	assert.Equal(t, reads, inner.readCount(), "The refreshed entry should have survived eviction")

	_, _, err = c.GetTierContent(ctx, "b", tier.Tier0)
	require.NoError(t, err)
	assert.Equal(t, reads+1, inner.readCount(), "The stale entry should have been evicted")
}

// flakyStore fails reads until healed.
type flakyStore struct {
	*MemStore
	healed bool
}

func (s *flakyStore) GetTierContent(ctx context.Context, key string, t tier.Tier) (string, bool, error) {
	if !s.healed {
		return "", false, ErrStorageUnavailable
	}
	return s.MemStore.GetTierContent(ctx, key, t)
}

func TestCachedStore_ErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{MemStore: NewMemStore()}
	require.NoError(t, inner.PutTierContent(ctx, "doc", tier.Tier0, "summary"))

	c, _ := newCachedStore(t, inner, time.Minute, 10)

	_, _, err := c.GetTierContent(ctx, "doc", tier.Tier0)
	require.ErrorIs(t, err, ErrStorageUnavailable)

	inner.healed = true

	content, ok, err := c.GetTierContent(ctx, "doc", tier.Tier0)
	require.NoError(t, err, "A failed read must not poison the cache")
	require.True(t, ok)
	assert.Equal(t, "summary", content)
}

func TestCachedStore_ListDelegates(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	c, _ := newCachedStore(t, fs, time.Minute, 10)

	require.NoError(t, c.PutTierContent(ctx, "doc", tier.Tier0, "summary"))

	content, ok, err := c.GetTierContent(ctx, "doc", tier.Tier0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "summary", content)

	docs, err := c.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc"}, docs)
}

func TestCachedStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	inner := NewMemStore()
	require.NoError(t, inner.PutTierContent(ctx, "doc", tier.Tier0, "summary"))

	c, err := NewCachedStore(inner, time.Minute, 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _, _ = c.GetTierContent(ctx, "doc", tier.Tier0)
				if j%10 == 0 {
					_ = c.PutTierContent(ctx, "doc", tier.Tier1, "overview")
				}
			}
		}(i)
	}
	wg.Wait()

	content, ok, err := c.GetTierContent(ctx, "doc", tier.Tier0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "summary", content)
}

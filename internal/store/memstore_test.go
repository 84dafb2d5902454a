package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tierd/internal/tier"
)

func TestMemStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	for _, tr := range tier.AllTiers {
		require.NoError(t, s.PutTierContent(ctx, "doc", tr, "content "+tr.String()))
	}

	for _, tr := range tier.AllTiers {
		content, ok, err := s.GetTierContent(ctx, "doc", tr)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "content "+tr.String(), content)
	}
}

func TestMemStore_Missing(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, ok, err := s.GetTierContent(ctx, "absent", tier.Tier0)
	require.NoError(t, err)
	assert.False(t, ok, "Absence is not an error")

	require.NoError(t, s.PutTierContent(ctx, "doc", tier.Tier0, "summary"))
	_, ok, err = s.GetTierContent(ctx, "doc", tier.Tier2)
	require.NoError(t, err)
	assert.False(t, ok, "A stored key does not imply every tier")
}

func TestMemStore_EmptyKey(t *testing.T) {
	err := NewMemStore().PutTierContent(context.Background(), "", tier.Tier0, "x")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestMemStore_Replace(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.PutTierContent(ctx, "doc", tier.Tier0, "first"))
	require.NoError(t, s.PutTierContent(ctx, "doc", tier.Tier0, "second"))

	content, ok, err := s.GetTierContent(ctx, "doc", tier.Tier0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", content)
}

func TestMemStore_ListDocuments(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	keys, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.PutTierContent(ctx, "zulu", tier.Tier0, "z"))
	require.NoError(t, s.PutTierContent(ctx, "alpha", tier.Tier1, "a"))
	require.NoError(t, s.PutTierContent(ctx, "alpha", tier.Tier2, "a full"))

	keys, err = s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zulu"}, keys)
}

func TestMemStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("doc-%d", n)
			for j := 0; j < 25; j++ {
				_ = s.PutTierContent(ctx, key, tier.Tier0, "v")
				_, _, _ = s.GetTierContent(ctx, key, tier.Tier0)
				_, _ = s.ListDocuments(ctx)
			}
		}(i)
	}
	wg.Wait()

	keys, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 8)
}

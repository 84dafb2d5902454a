package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/tierd/internal/sanitize"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

// MemStore is an in-memory Store. Thread-safe; suitable for tests and for
// embedding the engine without a filesystem tree.
type MemStore struct {
	mu   sync.RWMutex
	docs map[string]map[tier.Tier]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		docs: make(map[string]map[tier.Tier]string),
	}
}

// GetTierContent returns the stored artifact for (key, tier).
func (s *MemStore) GetTierContent(ctx context.Context, key string, t tier.Tier) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tiers, ok := s.docs[key]
	if !ok {
		return "", false, nil
	}
	content, ok := tiers[t]
	return content, ok, nil
}

// PutTierContent stores the artifact for (key, tier). Keys are held to
// the same rules as the filesystem store so tests never pass on input
// production would reject.
func (s *MemStore) PutTierContent(ctx context.Context, key string, t tier.Tier, content string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := sanitize.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tiers, ok := s.docs[key]
	if !ok {
		tiers = make(map[tier.Tier]string)
		s.docs[key] = tiers
	}
	tiers[t] = content
	return nil
}

// ListDocuments returns the stored keys, sorted.
func (s *MemStore) ListDocuments(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.docs))
	for key := range s.docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/tierd/internal/sanitize"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

// FSStore persists tier artifacts as markdown files under a root tree:
//
//	<root>/L0/<key>-L0.md
//	<root>/L1/<key>-L1.md
//	<root>/L2/<key>.md
//
// The full-content tier is stored as a symlink to the original file when
// the filesystem allows it, else as a physical copy; readers never need to
// know which. Reads treat the key as a filename prefix so date-stamped
// variants coexist; the most recently modified candidate wins.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at dir. The tree is created lazily on
// first write.
func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		return nil, fmt.Errorf("store root is required")
	}
	return &FSStore{root: root}, nil
}

// Root returns the tree root.
func (s *FSStore) Root() string {
	return s.root
}

func (s *FSStore) tierDir(t tier.Tier) string {
	return filepath.Join(s.root, t.String())
}

// canonicalName is the filename a tier artifact is written under.
func canonicalName(key string, t tier.Tier) string {
	if t == tier.Tier2 {
		return key + ".md"
	}
	return key + "-" + t.String() + ".md"
}

// GetTierContent returns the newest stored artifact matching the key. An
// empty key selects the newest artifact in the tier, which serves the
// "current memory" read. Missing directories and dangling links count as
// absence, never as errors.
func (s *FSStore) GetTierContent(ctx context.Context, key string, t tier.Tier) (string, bool, error) {
	entries, err := os.ReadDir(s.tierDir(t))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: read tier dir %s: %v", ErrStorageUnavailable, t, err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		if key != "" && !strings.HasPrefix(name, key) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(s.tierDir(t), name),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) == 0 {
		return "", false, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	for _, c := range candidates {
		data, err := os.ReadFile(c.path)
		if errors.Is(err, fs.ErrNotExist) {
			// Dangling symlink; fall through to the next candidate.
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("%w: read %s: %v", ErrStorageUnavailable, c.path, err)
		}
		return string(data), true, nil
	}
	return "", false, nil
}

// PutTierContent writes the artifact under its canonical name, replacing
// any previous content for the key.
func (s *FSStore) PutTierContent(ctx context.Context, key string, t tier.Tier, content string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := sanitize.ValidateKey(key); err != nil {
		return err
	}
	dir := s.tierDir(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create tier dir %s: %v", ErrStorageUnavailable, t, err)
	}
	path := filepath.Join(dir, canonicalName(key, t))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorageUnavailable, path, err)
	}
	return nil
}

// LinkOrCopy stores the full-content tier for key as a reference to src:
// first a symlink, and on failure a physical copy. Returns whether a link
// was created.
func (s *FSStore) LinkOrCopy(ctx context.Context, src, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if err := sanitize.ValidateKey(key); err != nil {
		return false, err
	}
	abs, err := filepath.Abs(src)
	if err != nil {
		return false, fmt.Errorf("%w: resolve %s: %v", ErrStorageUnavailable, src, err)
	}
	dir := s.tierDir(tier.Tier2)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("%w: create tier dir %s: %v", ErrStorageUnavailable, tier.Tier2, err)
	}
	dst := filepath.Join(dir, canonicalName(key, tier.Tier2))
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("%w: replace %s: %v", ErrStorageUnavailable, dst, err)
	}

	if err := os.Symlink(abs, dst); err == nil {
		return true, nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("%w: read source %s: %v", ErrStorageUnavailable, src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return false, fmt.Errorf("%w: write %s: %v", ErrStorageUnavailable, dst, err)
	}
	return false, nil
}

// ListDocuments unions the keys present in any tier, sorted.
func (s *FSStore) ListDocuments(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, t := range tier.AllTiers {
		entries, err := os.ReadDir(s.tierDir(t))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read tier dir %s: %v", ErrStorageUnavailable, t, err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".md") {
				continue
			}
			key := strings.TrimSuffix(name, ".md")
			key = strings.TrimSuffix(key, "-"+t.String())
			if key != "" {
				seen[key] = struct{}{}
			}
		}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

package ingest

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ErrInvalidManifest marks a manifest that parsed but fails validation.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest lists documents to ingest with per-document overrides. Paths
// are resolved relative to the manifest file.
type Manifest struct {
	Version   string             `toml:"version"`
	Defaults  ManifestDefaults   `toml:"defaults"`
	Documents []ManifestDocument `toml:"document"`
}

// ManifestDefaults applies to every document unless overridden.
type ManifestDefaults struct {
	LinkFull bool `toml:"link_full"`
}

// ManifestDocument is one corpus entry. Key defaults to the file name
// without its extension; LinkFull overrides the manifest default when
// set.
type ManifestDocument struct {
	Path     string `toml:"path"`
	Key      string `toml:"key"`
	LinkFull *bool  `toml:"link_full"`
}

// LoadManifest reads and validates a TOML corpus manifest.
func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate rejects manifests with missing paths or duplicate explicit
// keys.
func (m *Manifest) Validate() error {
	if len(m.Documents) == 0 {
		return fmt.Errorf("%w: no documents listed", ErrInvalidManifest)
	}

	seen := make(map[string]int, len(m.Documents))
	for i, doc := range m.Documents {
		if doc.Path == "" {
			return fmt.Errorf("%w: document %d has no path", ErrInvalidManifest, i)
		}
		if doc.Key == "" {
			continue
		}
		if prev, dup := seen[doc.Key]; dup {
			return fmt.Errorf("%w: key %q used by documents %d and %d", ErrInvalidManifest, doc.Key, prev, i)
		}
		seen[doc.Key] = i
	}
	return nil
}

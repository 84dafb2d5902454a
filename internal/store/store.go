// Package store persists tier artifacts for documents. The engine consumes
// the Store interface only; the filesystem implementation mirrors the
// L0/L1/L2 tree layout, and an in-memory implementation backs tests and
// sandboxed embeddings.
package store

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/tierd/internal/tier"
)

// Storage errors. Absence of a tier is not an error anywhere in the
// pipeline; these cover genuine I/O failures and misuse.
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrEmptyKey           = errors.New("document key is required")
)

// Store is the collaborator that owns persisted tier content. Keys are
// opaque identifiers (dates, names). When multiple stored candidates exist
// for a key and tier, the most recently modified one wins.
type Store interface {
	// GetTierContent returns the stored artifact for (key, tier). The
	// second return is false when no artifact exists; that is not an error.
	GetTierContent(ctx context.Context, key string, t tier.Tier) (string, bool, error)

	// PutTierContent stores the artifact for (key, tier), replacing any
	// previous content.
	PutTierContent(ctx context.Context, key string, t tier.Tier, content string) error

	// ListDocuments returns the known document keys, sorted.
	ListDocuments(ctx context.Context) ([]string, error)
}

// Linker is an optional Store capability: stores that can reference the
// source file in place implement it so the full tier is never duplicated.
// The bool return reports whether a link was created (false means the
// content was copied).
type Linker interface {
	LinkOrCopy(ctx context.Context, src, key string) (bool, error)
}

// Package sanitize normalizes and validates document keys.
//
// Keys become file names inside the tier store, so a hostile key is a
// path traversal vector. ValidateKey rejects anything that could name a
// file outside the store; Key turns arbitrary strings into keys that
// pass validation.
package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxKeyLength bounds keys in bytes so the derived file names stay
	// inside common filesystem limits with tier suffixes attached.
	MaxKeyLength = 128

	// hashSuffixLength is "-" plus an 8-char hash, appended when a
	// normalized key must be truncated.
	hashSuffixLength = 9

	// DefaultKey is used when normalization produces an empty result.
	DefaultKey = "document"
)

// ErrInvalidKey marks document keys that cannot safely name store files.
var ErrInvalidKey = errors.New("invalid document key")

// ValidateKey reports whether key can safely name files inside the
// store. It rejects path separators, traversal names, hidden-file
// prefixes, control characters, and overlong keys. Case and punctuation
// are otherwise the caller's business.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidKey, len(key), MaxKeyLength)
	}
	if key == "." || key == ".." {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidKey, key)
	}
	if strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidKey, key)
	}
	if strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKey, key)
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: %q contains a control character", ErrInvalidKey, key)
		}
	}
	return nil
}

// Key normalizes an arbitrary name, typically a file name, into a key
// that passes ValidateKey.
//
// Rules applied:
//   - lowercases
//   - keeps letters and digits, collapses everything else into single hyphens
//   - trims leading and trailing hyphens
//   - truncates overlong results, appending a hash of the original
//   - falls back to DefaultKey when nothing survives
//
// Examples:
//
//	"Meeting Notes (final)" -> "meeting-notes-final"
//	"2025-01-10"            -> "2025-01-10"
//	"!!!"                   -> "document"
func Key(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	pending := false
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}

	key := b.String()
	if key == "" {
		return DefaultKey
	}
	if len(key) > MaxKeyLength {
		key = truncateWithHash(key)
	}
	return key
}

// truncateWithHash shortens key to MaxKeyLength, appending a hash of the
// full key so distinct long names stay distinct.
func truncateWithHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	suffix := "-" + hex.EncodeToString(sum[:])[:8]

	base := key[:MaxKeyLength-hashSuffixLength]
	for len(base) > 0 && !utf8.ValidString(base) {
		base = base[:len(base)-1]
	}
	return strings.TrimRight(base, "-") + suffix
}

// Package tier defines the three detail levels a document is stored at and
// the policy that maps a classified query to the set of tiers worth fetching.
package tier

import "fmt"

// Tier is one of the three fixed detail levels for a stored document.
type Tier int

const (
	// Tier0 is the terse summary, bounded to roughly a sentence.
	Tier0 Tier = iota
	// Tier1 is the structured overview: key points plus section labels.
	Tier1
	// Tier2 is the full original content, read through, never duplicated.
	Tier2
)

// AllTiers lists every tier in ascending order.
var AllTiers = []Tier{Tier0, Tier1, Tier2}

// String returns the storage label for the tier ("L0", "L1", "L2").
// The on-disk tree and the retrieval separators use these labels.
func (t Tier) String() string {
	switch t {
	case Tier0:
		return "L0"
	case Tier1:
		return "L1"
	case Tier2:
		return "L2"
	default:
		return fmt.Sprintf("L?(%d)", int(t))
	}
}

// Valid reports whether t is one of the three defined tiers.
func (t Tier) Valid() bool {
	return t >= Tier0 && t <= Tier2
}

// ParseTier parses a storage label back into a Tier.
func ParseTier(label string) (Tier, error) {
	switch label {
	case "L0":
		return Tier0, nil
	case "L1":
		return Tier1, nil
	case "L2":
		return Tier2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTier, label)
	}
}

// Selection is an ordered, duplicate-free set of tiers chosen for one query.
// Tiers are kept in ascending order so concatenated retrieval output is
// deterministic.
type Selection []Tier

// NewSelection builds a Selection from the given tiers, deduplicating and
// ordering ascending.
func NewSelection(tiers ...Tier) Selection {
	var seen [3]bool
	for _, t := range tiers {
		if t.Valid() {
			seen[t] = true
		}
	}
	sel := make(Selection, 0, 3)
	for _, t := range AllTiers {
		if seen[t] {
			sel = append(sel, t)
		}
	}
	return sel
}

// Contains reports whether the selection includes t.
func (s Selection) Contains(t Tier) bool {
	for _, st := range s {
		if st == t {
			return true
		}
	}
	return false
}

// Labels returns the storage labels of the selected tiers, in order.
func (s Selection) Labels() []string {
	labels := make([]string, len(s))
	for i, t := range s {
		labels[i] = t.String()
	}
	return labels
}

// Equal reports whether two selections contain the same tiers in the same order.
func (s Selection) Equal(other Selection) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Mode selects the overall retrieval strategy.
type Mode string

const (
	// ModeTraditional always retrieves the full content tier.
	ModeTraditional Mode = "traditional"
	// ModeTieredOnly always retrieves the summary and overview tiers.
	ModeTieredOnly Mode = "tiered-only"
	// ModeHybrid varies the tier set by query classification and confidence.
	ModeHybrid Mode = "hybrid"
)

// ParseMode validates and normalizes a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTraditional, ModeTieredOnly, ModeHybrid:
		return Mode(s), nil
	case "":
		return ModeHybrid, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

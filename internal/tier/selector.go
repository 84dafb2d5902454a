package tier

import "github.com/fyrsmithlabs/tierd/internal/classify"

// Policy holds the thresholds the hybrid selection strategy keys off.
// Selection is a pure function of (intent, confidence, mode) given a Policy;
// tests inject alternate policies without touching global state.
type Policy struct {
	// MinConfidence is the floor below which hybrid mode retrieves every
	// tier rather than trusting the classification.
	MinConfidence float64
	// AnalyticalDeep is the confidence above which analytical queries skip
	// the summary tier and read the overview plus full content.
	AnalyticalDeep float64
}

// DefaultPolicy returns the standard thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinConfidence:  0.6,
		AnalyticalDeep: 0.7,
	}
}

// Select maps a classified query to the tier set worth fetching.
//
// Traditional mode always reads the full content; tiered-only mode always
// reads the two derived tiers. Hybrid mode under-provisions narrow intents
// (an administrative status check needs only the summary) and
// over-provisions low-confidence or open-ended ones (retrieve more to avoid
// under-answering).
func (p Policy) Select(qt classify.QueryType, confidence float64, mode Mode) Selection {
	switch mode {
	case ModeTraditional:
		return NewSelection(Tier2)
	case ModeTieredOnly:
		return NewSelection(Tier0, Tier1)
	}

	if confidence < p.MinConfidence {
		return NewSelection(Tier0, Tier1, Tier2)
	}

	switch qt {
	case classify.QueryAdministrative:
		return NewSelection(Tier0)
	case classify.QueryFactualDate, classify.QueryFactualList, classify.QueryFactual:
		return NewSelection(Tier0, Tier1)
	case classify.QueryAnalytical:
		if confidence > p.AnalyticalDeep {
			return NewSelection(Tier1, Tier2)
		}
		return NewSelection(Tier0, Tier1, Tier2)
	case classify.QueryCreative:
		return NewSelection(Tier0, Tier1, Tier2)
	default:
		return NewSelection(Tier0, Tier1)
	}
}

// Select applies the default policy. See Policy.Select.
func Select(qt classify.QueryType, confidence float64, mode Mode) Selection {
	return DefaultPolicy().Select(qt, confidence, mode)
}

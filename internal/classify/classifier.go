// Package classify maps free-text queries to coarse intent categories using
// keyword scoring. It is a routing heuristic for tier selection, not a
// classifier with recall guarantees: keyword hits vote, the highest vote
// wins, and unmatched queries fall back to a fixed default.
package classify

import "strings"

// maxQueryLength bounds the text scanned for keywords. Queries are routing
// inputs, not documents; anything past this length cannot change the intent
// in practice and scanning it only costs time.
const maxQueryLength = 4096

// defaultConfidence is assigned when no keyword matches. See DESIGN.md for
// the choice of QueryGeneral as the unmatched-query category.
const defaultConfidence = 0.5

// questionBonus is added to the generic factual score when the query
// contains a question mark (ASCII or fullwidth). Questions skew factual.
const questionBonus = 0.5

// Result is the outcome of classifying one query. Ephemeral: produced per
// query and never persisted.
type Result struct {
	// PrimaryType is the winning intent category.
	PrimaryType QueryType `json:"primary_type"`
	// Confidence is the winner's share of the total score, in [0,1].
	Confidence float64 `json:"confidence"`
	// Scores holds the raw per-intent scores for every intent that matched.
	Scores map[QueryType]float64 `json:"scores,omitempty"`
}

// Classifier scores queries against an ordered keyword rule table.
// Thread-safe: the rule table is immutable after construction.
type Classifier struct {
	rules []Rule
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRules replaces the built-in rule table. Declaration order of the
// provided rules is the tie-break order.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		c.rules = rules
	}
}

// NewClassifier creates a classifier with the built-in rule table unless
// overridden by options.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{rules: DefaultRules()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify scores the query against every rule and returns the winning
// intent with its confidence. Deterministic: the same query always yields
// the same result. Ties resolve to the rule declared first.
func (c *Classifier) Classify(query string) Result {
	if len(query) > maxQueryLength {
		query = query[:maxQueryLength]
	}
	lower := strings.ToLower(query)
	hasQuestion := strings.ContainsAny(query, "?？")

	scores := make(map[QueryType]float64)
	total := 0.0

	var best QueryType
	bestScore := 0.0

	for _, rule := range c.rules {
		score := 0.0
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if rule.Type == QueryFactual && hasQuestion {
			score += questionBonus
		}
		if score <= 0 {
			continue
		}
		scores[rule.Type] = score
		total += score
		if score > bestScore {
			best = rule.Type
			bestScore = score
		}
	}

	if total <= 0 {
		return Result{
			PrimaryType: QueryGeneral,
			Confidence:  defaultConfidence,
			Scores:      scores,
		}
	}

	return Result{
		PrimaryType: best,
		Confidence:  bestScore / total,
		Scores:      scores,
	}
}

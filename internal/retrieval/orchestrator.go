// Package retrieval assembles query responses from stored tier artifacts
// and prices them. Missing tiers degrade the response silently; only real
// storage failures surface.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/tierd/internal/store"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

const (
	// DefaultTokensPerByte converts content size to an estimated token
	// count. Fixed heuristic, deliberately coarse.
	DefaultTokensPerByte = 0.25

	// baselineFallbackMultiplier estimates the traditional full-content
	// cost when no full tier is stored for the document.
	baselineFallbackMultiplier = 3
)

// Result is one assembled response with its cost accounting. The saving
// rate compares the served tokens against the traditional baseline of
// always reading the full content; it is negative when the selection
// fetched more than the full tier alone.
type Result struct {
	// Content is the concatenation of present tier artifacts, each under a
	// "--- <label> ---" separator, in ascending tier order.
	Content string `json:"content"`
	// TiersLoaded labels the tiers that were actually present and served.
	TiersLoaded []string `json:"tiers_loaded"`
	// BytesReturned is len(Content).
	BytesReturned int `json:"bytes_returned"`
	// EstimatedTokens prices the returned content.
	EstimatedTokens float64 `json:"estimated_tokens"`
	// BaselineTokens prices the traditional full-content response.
	BaselineTokens float64 `json:"baseline_tokens"`
	// TokensSaved is baseline minus returned.
	TokensSaved float64 `json:"tokens_saved"`
	// SavingRate is the fraction of the baseline avoided.
	SavingRate float64 `json:"saving_rate"`
}

// Config holds the pricing knobs.
type Config struct {
	// TokensPerByte is the byte-to-token estimate. Zero selects the default.
	TokensPerByte float64
}

// Orchestrator fetches selected tiers from the store and assembles them.
type Orchestrator struct {
	store         store.Store
	tokensPerByte float64
}

// NewOrchestrator creates an orchestrator over the given store.
func NewOrchestrator(st store.Store, cfg Config) (*Orchestrator, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	tpb := cfg.TokensPerByte
	if tpb == 0 {
		tpb = DefaultTokensPerByte
	}
	if tpb < 0 {
		return nil, fmt.Errorf("tokens per byte must be positive, got %v", tpb)
	}
	return &Orchestrator{store: st, tokensPerByte: tpb}, nil
}

// Retrieve fetches each selected tier for the document in ascending order,
// skipping absent tiers, and prices the assembled response. Storage I/O
// errors propagate; absence never does.
func (o *Orchestrator) Retrieve(ctx context.Context, sel tier.Selection, key string) (*Result, error) {
	var parts []string
	var loaded []string
	fullBytes := -1

	for _, t := range sel {
		content, ok, err := o.store.GetTierContent(ctx, key, t)
		if err != nil {
			return nil, fmt.Errorf("fetch tier %s: %w", t, err)
		}
		if !ok || content == "" {
			continue
		}
		if t == tier.Tier2 {
			fullBytes = len(content)
		}
		parts = append(parts, fmt.Sprintf("--- %s ---\n%s", t, content))
		loaded = append(loaded, t.String())
	}

	content := strings.Join(parts, "\n\n")
	bytesReturned := len(content)
	estimated := float64(bytesReturned) * o.tokensPerByte

	// Baseline: the cost of serving the full tier alone. Reuse the size
	// when the selection already fetched it.
	if fullBytes < 0 {
		full, ok, err := o.store.GetTierContent(ctx, key, tier.Tier2)
		if err != nil {
			return nil, fmt.Errorf("fetch baseline tier %s: %w", tier.Tier2, err)
		}
		if ok {
			fullBytes = len(full)
		} else {
			fullBytes = 0
		}
	}

	baseline := float64(fullBytes) * o.tokensPerByte
	if fullBytes <= 0 {
		baseline = estimated * baselineFallbackMultiplier
	}

	result := &Result{
		Content:         content,
		TiersLoaded:     loaded,
		BytesReturned:   bytesReturned,
		EstimatedTokens: estimated,
		BaselineTokens:  baseline,
	}
	if baseline > 0 {
		result.SavingRate = 1 - estimated/baseline
		result.TokensSaved = baseline - estimated
	}
	return result, nil
}

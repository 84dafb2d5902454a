package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/tierd/internal/classify"
)

// persistedState is the JSON shape flushed to disk. The field set round-
// trips every aggregate so counters survive restarts.
type persistedState struct {
	StartedAt           time.Time                 `json:"started_at"`
	TotalQueries        uint64                    `json:"total_queries"`
	TotalTokensReturned float64                   `json:"total_tokens_returned"`
	TotalBaselineTokens float64                   `json:"total_baseline_tokens"`
	TotalTokensSaved    float64                   `json:"total_tokens_saved"`
	QueryTypes          map[string]*typeAggregate `json:"query_types"`
	History             []QueryMetrics            `json:"history"`
	FlushedAt           time.Time                 `json:"flushed_at"`
}

// Flush persists the current state. No-op when persistence is disabled.
func (t *Tracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.path == "" {
		return nil
	}
	return t.flushLocked()
}

func (t *Tracker) flushLocked() error {
	types := make(map[string]*typeAggregate, len(t.byType))
	for qt, agg := range t.byType {
		cp := *agg
		types[string(qt)] = &cp
	}

	state := persistedState{
		StartedAt:           t.startedAt,
		TotalQueries:        t.totalQueries,
		TotalTokensReturned: t.totalTokensReturned,
		TotalBaselineTokens: t.totalBaselineTokens,
		TotalTokensSaved:    t.totalTokensSaved,
		QueryTypes:          types,
		History:             t.history,
		FlushedAt:           time.Now().UTC(),
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create stats dir: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("write stats state: %w", err)
	}
	return nil
}

// load restores persisted state. A missing file is a fresh start, not an
// error; a corrupt file is reported so the caller can warn and continue.
func (t *Tracker) load() error {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read stats state: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parse stats state: %w", err)
	}

	if !state.StartedAt.IsZero() {
		t.startedAt = state.StartedAt
	}
	t.totalQueries = state.TotalQueries
	t.totalTokensReturned = state.TotalTokensReturned
	t.totalBaselineTokens = state.TotalBaselineTokens
	t.totalTokensSaved = state.TotalTokensSaved
	t.byType = make(map[classify.QueryType]*typeAggregate, len(state.QueryTypes))
	for name, agg := range state.QueryTypes {
		if agg == nil {
			continue
		}
		cp := *agg
		t.byType[classify.QueryType(name)] = &cp
	}
	t.history = state.History
	if len(t.history) > t.capacity {
		t.history = t.history[len(t.history)-t.capacity:]
	}
	return nil
}

// Package stats accumulates per-query savings metrics into process-wide
// aggregates with a bounded recent-query history. One tracker instance owns
// the state; every mutation happens under a single mutex so concurrent
// recorders never interleave partial updates.
package stats

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/classify"
)

const (
	// DefaultCapacity bounds the recent-query history.
	DefaultCapacity = 50
	// DefaultCostPerToken prices saved tokens in USD for the dashboard.
	DefaultCostPerToken = 0.000001
	// DefaultFlushEvery flushes persisted state every N recorded queries.
	DefaultFlushEvery = 10
)

// QueryMetrics is the per-query record folded into the aggregates and kept
// in the bounded history.
type QueryMetrics struct {
	ID              string             `json:"id"`
	Query           string             `json:"query,omitempty"`
	DocumentKey     string             `json:"document_key,omitempty"`
	QueryType       classify.QueryType `json:"query_type"`
	Confidence      float64            `json:"confidence"`
	TiersLoaded     []string           `json:"tiers_loaded"`
	BytesReturned   int                `json:"bytes_returned"`
	EstimatedTokens float64            `json:"estimated_tokens"`
	BaselineTokens  float64            `json:"baseline_tokens"`
	TokensSaved     float64            `json:"tokens_saved"`
	SavingRate      float64            `json:"saving_rate"`
	LatencyMS       float64            `json:"latency_ms"`
	Timestamp       time.Time          `json:"timestamp"`
}

// TypeStats is the per-intent slice of the aggregates.
type TypeStats struct {
	Count             uint64  `json:"count"`
	AverageSavingRate float64 `json:"average_saving_rate"`
}

// Dashboard is a point-in-time snapshot of the aggregates for reporting.
type Dashboard struct {
	StartedAt             time.Time            `json:"started_at"`
	UptimeSeconds         float64              `json:"uptime_seconds"`
	TotalQueries          uint64               `json:"total_queries"`
	AverageSavingRate     float64              `json:"average_saving_rate"`
	TotalTokensReturned   float64              `json:"total_tokens_returned"`
	TotalBaselineTokens   float64              `json:"total_baseline_tokens"`
	TotalTokensSaved      float64              `json:"total_tokens_saved"`
	EstimatedCostSavedUSD float64              `json:"estimated_cost_saved_usd"`
	QueryTypes            map[string]TypeStats `json:"query_types"`
	Recent                []QueryMetrics       `json:"recent"`
}

// Config holds the tracker knobs.
type Config struct {
	// Capacity bounds the recent-query history; oldest entries are evicted.
	// Zero selects the default.
	Capacity int
	// CostPerToken converts saved tokens to USD on the dashboard.
	CostPerToken float64
	// Path is where state is persisted. Empty disables persistence.
	Path string
	// FlushEvery flushes state after every N records when persistence is
	// enabled. Zero selects the default.
	FlushEvery int
}

// Validate rejects unusable knob values.
func (c Config) Validate() error {
	if c.Capacity < 0 {
		return fmt.Errorf("history capacity must not be negative, got %d", c.Capacity)
	}
	if c.CostPerToken < 0 {
		return fmt.Errorf("cost per token must not be negative, got %v", c.CostPerToken)
	}
	if c.FlushEvery < 0 {
		return fmt.Errorf("flush interval must not be negative, got %d", c.FlushEvery)
	}
	return nil
}

type typeAggregate struct {
	Count          uint64  `json:"count"`
	TokensSaved    float64 `json:"tokens_saved"`
	BaselineTokens float64 `json:"baseline_tokens"`
}

// Tracker owns the mutable aggregate state. All methods are safe for
// concurrent use; Record is one atomic unit.
type Tracker struct {
	mu sync.Mutex

	capacity     int
	costPerToken float64
	path         string
	flushEvery   int
	logger       *zap.Logger

	startedAt           time.Time
	totalQueries        uint64
	totalTokensReturned float64
	totalBaselineTokens float64
	totalTokensSaved    float64
	byType              map[classify.QueryType]*typeAggregate
	history             []QueryMetrics
}

// NewTracker creates a tracker. When cfg.Path is set, previously persisted
// state is loaded so counters survive restarts; a missing or unreadable
// state file starts fresh.
func NewTracker(cfg Config, logger *zap.Logger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.CostPerToken == 0 {
		cfg.CostPerToken = DefaultCostPerToken
	}
	if cfg.FlushEvery == 0 {
		cfg.FlushEvery = DefaultFlushEvery
	}

	t := &Tracker{
		capacity:     cfg.Capacity,
		costPerToken: cfg.CostPerToken,
		path:         cfg.Path,
		flushEvery:   cfg.FlushEvery,
		logger:       logger,
		startedAt:    time.Now().UTC(),
		byType:       make(map[classify.QueryType]*typeAggregate),
	}

	if t.path != "" {
		if err := t.load(); err != nil {
			logger.Warn("stats state unreadable, starting fresh",
				zap.String("path", t.path), zap.Error(err))
		}
	}
	return t, nil
}

// Record folds one query into the aggregates and the bounded history.
func (t *Tracker) Record(m QueryMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalQueries++
	t.totalTokensReturned += m.EstimatedTokens
	t.totalBaselineTokens += m.BaselineTokens
	t.totalTokensSaved += m.TokensSaved

	agg, ok := t.byType[m.QueryType]
	if !ok {
		agg = &typeAggregate{}
		t.byType[m.QueryType] = agg
	}
	agg.Count++
	agg.TokensSaved += m.TokensSaved
	agg.BaselineTokens += m.BaselineTokens

	t.history = append(t.history, m)
	if len(t.history) > t.capacity {
		t.history = t.history[1:]
	}

	if t.path != "" && t.totalQueries%uint64(t.flushEvery) == 0 {
		if err := t.flushLocked(); err != nil {
			t.logger.Warn("periodic stats flush failed", zap.Error(err))
		}
	}
}

// TotalQueries returns the number of recorded queries.
func (t *Tracker) TotalQueries() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalQueries
}

// AverageSavingRate is cumulative: total tokens saved over total baseline
// tokens. Weighting by query size keeps one huge query from being averaged
// away by many trivial ones.
func (t *Tracker) AverageSavingRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.averageLocked()
}

func (t *Tracker) averageLocked() float64 {
	if t.totalBaselineTokens <= 0 {
		return 0
	}
	return t.totalTokensSaved / t.totalBaselineTokens
}

// Dashboard snapshots the aggregates.
func (t *Tracker) Dashboard() Dashboard {
	t.mu.Lock()
	defer t.mu.Unlock()

	types := make(map[string]TypeStats, len(t.byType))
	for qt, agg := range t.byType {
		ts := TypeStats{Count: agg.Count}
		if agg.BaselineTokens > 0 {
			ts.AverageSavingRate = agg.TokensSaved / agg.BaselineTokens
		}
		types[string(qt)] = ts
	}

	recent := make([]QueryMetrics, len(t.history))
	copy(recent, t.history)

	return Dashboard{
		StartedAt:             t.startedAt,
		UptimeSeconds:         time.Since(t.startedAt).Seconds(),
		TotalQueries:          t.totalQueries,
		AverageSavingRate:     t.averageLocked(),
		TotalTokensReturned:   t.totalTokensReturned,
		TotalBaselineTokens:   t.totalBaselineTokens,
		TotalTokensSaved:      t.totalTokensSaved,
		EstimatedCostSavedUSD: t.totalTokensSaved * t.costPerToken,
		QueryTypes:            types,
		Recent:                recent,
	}
}

// Reset clears every counter and the history. Explicit operator action
// only; nothing in the query path calls this.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalQueries = 0
	t.totalTokensReturned = 0
	t.totalBaselineTokens = 0
	t.totalTokensSaved = 0
	t.byType = make(map[classify.QueryType]*typeAggregate)
	t.history = nil
	t.startedAt = time.Now().UTC()

	if t.path == "" {
		return nil
	}
	return t.flushLocked()
}

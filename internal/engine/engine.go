// Package engine wires the summarizer, classifier, tier selector,
// retrieval orchestrator, and statistics tracker into the single facade the
// daemon, CLI, and MCP surfaces call.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/classify"
	"github.com/fyrsmithlabs/tierd/internal/digest"
	"github.com/fyrsmithlabs/tierd/internal/retrieval"
	"github.com/fyrsmithlabs/tierd/internal/stats"
	"github.com/fyrsmithlabs/tierd/internal/store"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

const tracerName = "github.com/fyrsmithlabs/tierd/internal/engine"
const meterName = "tierd"

// historyQueryRunes bounds the query text kept in metrics history.
const historyQueryRunes = 100

// Config holds the engine behavior knobs. The engine is immutable after
// construction; hot reload swaps in a rebuilt engine over the same tracker
// and store.
type Config struct {
	// Mode selects the retrieval strategy.
	Mode tier.Mode
	// Policy holds the hybrid selection thresholds.
	Policy tier.Policy
	// Digest bounds the generated tiers.
	Digest digest.Config
	// TokensPerByte prices retrieved content.
	TokensPerByte float64
}

// DefaultConfig returns the standard engine knobs.
func DefaultConfig() Config {
	return Config{
		Mode:          tier.ModeHybrid,
		Policy:        tier.DefaultPolicy(),
		Digest:        digest.DefaultConfig(),
		TokensPerByte: retrieval.DefaultTokensPerByte,
	}
}

// Answer is the response to one query: assembled content plus the metrics
// recorded for it.
type Answer struct {
	Content string             `json:"content"`
	Metrics stats.QueryMetrics `json:"metrics"`
}

// QueryListener observes answered queries. Implementations must not block;
// the engine calls them synchronously on the query path.
type QueryListener interface {
	QueryAnswered(ctx context.Context, m stats.QueryMetrics)
}

// Engine is the tiered retrieval facade.
type Engine struct {
	cfg        Config
	generator  *digest.Generator
	classifier *classify.Classifier
	orch       *retrieval.Orchestrator
	tracker    *stats.Tracker
	store      store.Store
	listener   QueryListener
	logger     *zap.Logger

	tracer trace.Tracer
	meter  metric.Meter

	queriesTotal      metric.Int64Counter
	queryErrors       metric.Int64Counter
	tokensSaved       metric.Int64Counter
	documentsIngested metric.Int64Counter
	queryDuration     metric.Float64Histogram
	savingRate        metric.Float64Histogram
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithListener attaches a query listener (e.g. the events publisher).
func WithListener(l QueryListener) Option {
	return func(e *Engine) {
		e.listener = l
	}
}

// WithClassifierRules replaces the built-in classification rule table.
func WithClassifierRules(rules []classify.Rule) Option {
	return func(e *Engine) {
		e.classifier = classify.NewClassifier(classify.WithRules(rules))
	}
}

// New creates an engine over the given store and tracker.
func New(cfg Config, st store.Store, tracker *stats.Tracker, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("stats tracker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = tier.ModeHybrid
	}
	if cfg.Policy == (tier.Policy{}) {
		cfg.Policy = tier.DefaultPolicy()
	}
	if err := cfg.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("digest config: %w", err)
	}

	orch, err := retrieval.NewOrchestrator(st, retrieval.Config{TokensPerByte: cfg.TokensPerByte})
	if err != nil {
		return nil, fmt.Errorf("retrieval orchestrator: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		generator:  digest.NewGenerator(cfg.Digest),
		classifier: classify.NewClassifier(),
		orch:       orch,
		tracker:    tracker,
		store:      st,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		meter:      otel.Meter(meterName),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return e, nil
}

// Mode returns the configured retrieval mode.
func (e *Engine) Mode() tier.Mode {
	return e.cfg.Mode
}

// Summarize derives the reduced tiers from text without storing anything.
func (e *Engine) Summarize(ctx context.Context, text string) digest.Digest {
	_, span := e.tracer.Start(ctx, "engine.summarize",
		trace.WithAttributes(attribute.Int("content_length", len(text))),
	)
	defer span.End()

	d := e.generator.Generate(text)
	span.SetAttributes(
		attribute.Int("summary_size", d.Metadata.SummarySize),
		attribute.Int("overview_size", d.Metadata.OverviewSize),
	)
	return d
}

// Ingest summarizes text and stores all three tiers under key.
func (e *Engine) Ingest(ctx context.Context, key, text string) (digest.Digest, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ingest",
		trace.WithAttributes(
			attribute.String("document_key", key),
			attribute.Int("content_length", len(text)),
		),
	)
	defer span.End()

	d := e.generator.Generate(text)

	puts := []struct {
		tier    tier.Tier
		content string
	}{
		{tier.Tier0, d.Summary},
		{tier.Tier1, d.Overview},
		{tier.Tier2, text},
	}
	for _, p := range puts {
		if err := e.store.PutTierContent(ctx, key, p.tier, p.content); err != nil {
			span.RecordError(err)
			return digest.Digest{}, fmt.Errorf("store tier %s: %w", p.tier, err)
		}
	}

	e.documentsIngested.Add(ctx, 1)
	e.logger.Debug("document ingested",
		zap.String("key", key),
		zap.Int("original_size", d.Metadata.OriginalSize),
		zap.Int("summary_size", d.Metadata.SummarySize),
		zap.Int("overview_size", d.Metadata.OverviewSize),
	)
	return d, nil
}

// Classify maps a query to its intent category. Pure; exposed for the API
// and for tooling.
func (e *Engine) Classify(query string) classify.Result {
	return e.classifier.Classify(query)
}

// Answer runs the full query path: classify, select tiers, retrieve, and
// record the savings. Storage failures propagate; everything else degrades
// to a smaller answer.
func (e *Engine) Answer(ctx context.Context, query, key string) (*Answer, error) {
	ctx, span := e.tracer.Start(ctx, "engine.answer",
		trace.WithAttributes(
			attribute.String("document_key", key),
			attribute.String("mode", string(e.cfg.Mode)),
		),
	)
	defer span.End()

	start := time.Now()

	cls := e.classifier.Classify(query)
	sel := e.cfg.Policy.Select(cls.PrimaryType, cls.Confidence, e.cfg.Mode)

	span.SetAttributes(
		attribute.String("query_type", string(cls.PrimaryType)),
		attribute.Float64("confidence", cls.Confidence),
		attribute.StringSlice("tiers_selected", sel.Labels()),
	)

	res, err := e.orch.Retrieve(ctx, sel, key)
	if err != nil {
		span.RecordError(err)
		e.queryErrors.Add(ctx, 1)
		return nil, err
	}

	m := stats.QueryMetrics{
		ID:              uuid.New().String(),
		Query:           headRunes(query, historyQueryRunes),
		DocumentKey:     key,
		QueryType:       cls.PrimaryType,
		Confidence:      cls.Confidence,
		TiersLoaded:     res.TiersLoaded,
		BytesReturned:   res.BytesReturned,
		EstimatedTokens: res.EstimatedTokens,
		BaselineTokens:  res.BaselineTokens,
		TokensSaved:     res.TokensSaved,
		SavingRate:      res.SavingRate,
		LatencyMS:       float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:       start.UTC(),
	}
	e.tracker.Record(m)
	e.recordQueryMetrics(ctx, m)

	if e.listener != nil {
		e.listener.QueryAnswered(ctx, m)
	}

	span.SetAttributes(
		attribute.Int("bytes_returned", m.BytesReturned),
		attribute.Float64("saving_rate", m.SavingRate),
	)

	return &Answer{Content: res.Content, Metrics: m}, nil
}

// Dashboard snapshots the aggregate statistics.
func (e *Engine) Dashboard() stats.Dashboard {
	return e.tracker.Dashboard()
}

// ListDocuments returns the known document keys.
func (e *Engine) ListDocuments(ctx context.Context) ([]string, error) {
	return e.store.ListDocuments(ctx)
}

// ResetStats zeroes the aggregate statistics and persists the empty
// state.
func (e *Engine) ResetStats() error {
	return e.tracker.Reset()
}

// headRunes truncates s to at most n runes.
func headRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

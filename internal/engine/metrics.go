package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fyrsmithlabs/tierd/internal/stats"
)

// initMetrics initializes OpenTelemetry instruments.
func (e *Engine) initMetrics() error {
	var err error

	e.queriesTotal, err = e.meter.Int64Counter(
		"tierd.queries_total",
		metric.WithDescription("Total number of answered queries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create queries counter: %w", err)
	}

	e.queryErrors, err = e.meter.Int64Counter(
		"tierd.query_errors_total",
		metric.WithDescription("Total number of failed queries"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create query errors counter: %w", err)
	}

	e.tokensSaved, err = e.meter.Int64Counter(
		"tierd.tokens_saved_total",
		metric.WithDescription("Estimated tokens avoided versus full-content retrieval"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create tokens saved counter: %w", err)
	}

	e.documentsIngested, err = e.meter.Int64Counter(
		"tierd.documents_ingested_total",
		metric.WithDescription("Total number of ingested documents"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ingest counter: %w", err)
	}

	e.queryDuration, err = e.meter.Float64Histogram(
		"tierd.query.duration_seconds",
		metric.WithDescription("Time spent answering queries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create query duration histogram: %w", err)
	}

	e.savingRate, err = e.meter.Float64Histogram(
		"tierd.query.saving_rate",
		metric.WithDescription("Per-query fraction of baseline tokens avoided"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(-1.0, -0.5, 0.0, 0.2, 0.4, 0.6, 0.8, 0.9, 1.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create saving rate histogram: %w", err)
	}

	return nil
}

// recordQueryMetrics emits the per-query instruments. Counters stay
// monotonic: negative savings show up in the saving-rate histogram, not in
// the tokens-saved counter.
func (e *Engine) recordQueryMetrics(ctx context.Context, m stats.QueryMetrics) {
	typeAttr := metric.WithAttributes(attribute.String("query_type", string(m.QueryType)))

	e.queriesTotal.Add(ctx, 1, typeAttr)
	e.queryDuration.Record(ctx, m.LatencyMS/1000.0, typeAttr)
	e.savingRate.Record(ctx, m.SavingRate, typeAttr)
	if m.TokensSaved > 0 {
		e.tokensSaved.Add(ctx, int64(m.TokensSaved), typeAttr)
	}
}

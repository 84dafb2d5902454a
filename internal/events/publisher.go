// Package events publishes query lifecycle events to NATS.
//
// Events are published to subjects:
//   - {prefix}.queries.{query_type}
//
// Publishing is best effort. A failed publish is logged and dropped so
// that event delivery never delays or fails an answer.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/stats"
)

// Publisher emits query events on a NATS connection. It implements
// engine.QueryListener.
type Publisher struct {
	nc     *nats.Conn
	owned  bool
	prefix string
	logger *zap.Logger
}

// Connect dials NATS and returns a publisher that owns the connection.
// Close drains and closes it.
func Connect(url, prefix string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	nc, err := nats.Connect(url,
		nats.Name("tierd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	logger.Info("connected to NATS", zap.String("url", url))

	p, err := NewPublisher(nc, prefix, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	p.owned = true
	return p, nil
}

// NewPublisher wraps an existing connection. The caller keeps ownership
// of the connection; Close is a no-op.
func NewPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) (*Publisher, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if prefix == "" {
		return nil, fmt.Errorf("subject prefix is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Publisher{
		nc:     nc,
		prefix: prefix,
		logger: logger,
	}, nil
}

// QueryAnswered publishes the metrics of an answered query to
// {prefix}.queries.{query_type}. Failures are logged, never returned.
func (p *Publisher) QueryAnswered(ctx context.Context, m stats.QueryMetrics) {
	subject := fmt.Sprintf("%s.queries.%s", p.prefix, m.QueryType)

	data, err := json.Marshal(m)
	if err != nil {
		p.logger.Warn("marshal query event", zap.String("subject", subject), zap.Error(err))
		return
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("publish query event", zap.String("subject", subject), zap.Error(err))
	}
}

// Close drains an owned connection so buffered events flush before the
// process exits. Wrapped connections are left to their owner.
func (p *Publisher) Close() {
	if p == nil || !p.owned || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("drain NATS connection", zap.Error(err))
		p.nc.Close()
	}
}

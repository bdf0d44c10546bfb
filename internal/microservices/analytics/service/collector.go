// Package service ingests order metric events into the durable store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"grocery-fleet/internal/common/codec"
	"grocery-fleet/internal/common/logger"
	"grocery-fleet/internal/common/metrics"
	"grocery-fleet/internal/domain"
	"grocery-fleet/internal/microservices/analytics/repository"
)

var ErrSubscriptionClosed = errors.New("telemetry subscription closed")

// dedupKey identifies an event for duplicate suppression.
type dedupKey struct {
	orderID   string
	status    string
	timestamp int64
	duration  float64
}

// Collector is the single writer of a metric store.
type Collector struct {
	store   repository.Store
	seen    *lru.Cache[dedupKey, struct{}] // nil when suppression is off
	log     *logger.Logger
	metrics *metrics.Analytics
	tracer  trace.Tracer
}

// New builds a collector that suppresses duplicates among the last window
// appended events. A window of 0 disables suppression.
func New(store repository.Store, window int, log *logger.Logger, m *metrics.Analytics) (*Collector, error) {
	c := &Collector{store: store, log: log, metrics: m, tracer: otel.Tracer("grocery-fleet/analytics")}
	if window > 0 {
		seen, err := lru.New[dedupKey, struct{}](window)
		if err != nil {
			return nil, err
		}
		c.seen = seen
	}
	if c.metrics == nil {
		c.metrics, _ = metrics.NewAnalytics(prometheus.NewRegistry())
	}
	return c, nil
}

// Ingest decodes, validates and appends one payload. Decode and validation
// failures are returned but leave the collector usable; a *domain.StoreWriteError
// means nothing more may be appended.
func (c *Collector) Ingest(ctx context.Context, payload []byte) error {
	ctx, span := c.tracer.Start(ctx, "analytics.ingest")
	defer span.End()

	e, err := codec.DecodeMetric(payload)
	if err != nil {
		c.drop(span, metrics.OutcomeDecode, err, len(payload))
		return err
	}
	if err := e.Validate(); err != nil {
		c.drop(span, metrics.OutcomeValidation, err, len(payload))
		return err
	}
	span.SetAttributes(attribute.String("order.id", e.OrderID), attribute.String("order.status", e.Status))

	key := dedupKey{e.OrderID, e.Status, e.Timestamp, e.DurationSeconds}
	if c.seen != nil && c.seen.Contains(key) {
		c.metrics.Events.WithLabelValues(metrics.OutcomeDuplicate).Inc()
		c.log.Debug("duplicate_skipped", map[string]any{"order_id": e.OrderID, "status": e.Status, "timestamp": e.Timestamp})
		return nil
	}

	start := time.Now()
	if err := c.store.Append(ctx, e); err != nil {
		c.metrics.Events.WithLabelValues(metrics.OutcomeStore).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		c.log.Error("store_write_failed", err, map[string]any{"order_id": e.OrderID})
		return err
	}
	c.metrics.AppendDuration.Observe(time.Since(start).Seconds())
	c.metrics.Events.WithLabelValues(metrics.OutcomeAppended).Inc()
	if c.seen != nil {
		c.seen.Add(key, struct{}{})
	}

	c.log.Info("record_appended", map[string]any{
		"order_id":         e.OrderID,
		"status":           e.Status,
		"duration_seconds": e.DurationSeconds,
		"timestamp":        e.Timestamp,
		"summary":          fmt.Sprintf("order %s %s in %.3fs", e.OrderID, e.Status, e.DurationSeconds),
	})
	return nil
}

func (c *Collector) drop(span trace.Span, outcome string, err error, size int) {
	c.metrics.Events.WithLabelValues(outcome).Inc()
	span.RecordError(err)
	c.log.Error("event_dropped", err, map[string]any{"outcome": outcome, "bytes": size})
}

// Run ingests messages in arrival order until ctx is done. It stops with the
// error on the first failed append.
func (c *Collector) Run(ctx context.Context, msgs <-chan *message.Message) error {
	c.log.Info("collector_started", nil)
	for {
		select {
		case <-ctx.Done():
			c.log.Info("graceful_shutdown", nil)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return ErrSubscriptionClosed
			}
			if ctx.Err() != nil {
				msg.Nack()
				c.log.Info("graceful_shutdown", map[string]any{"unhandled_message": msg.UUID})
				return nil
			}
			err := c.Ingest(context.WithoutCancel(ctx), msg.Payload)
			if errors.Is(err, domain.ErrStoreWrite) {
				msg.Nack()
				return err
			}
			msg.Ack()
		}
	}
}

// Records proxies the store for the query API.
func (c *Collector) Records(ctx context.Context, orderID string) ([]domain.MetricEvent, error) {
	return c.store.Records(ctx, orderID)
}

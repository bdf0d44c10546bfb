// Package service is the robot's order pipeline: filter the broadcast down to
// this robot's aisle, pick the matches, aggregate, report.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"grocery-fleet/internal/common/codec"
	"grocery-fleet/internal/common/ids"
	"grocery-fleet/internal/common/logger"
	"grocery-fleet/internal/common/metrics"
	"grocery-fleet/internal/domain"
	"grocery-fleet/internal/microservices/robot/reporter"
)

var ErrSubscriptionClosed = errors.New("broadcast subscription closed")

type Config struct {
	Robot           domain.Robot
	PickConcurrency int
}

type Worker struct {
	cfg      Config
	picker   Picker
	reporter reporter.Reporter
	log      *logger.Logger
	metrics  *metrics.Robot
	hooks    Hooks
	tracer   trace.Tracer
	now      func() time.Time

	telemetry      message.Publisher
	telemetryTopic string
}

type Option func(*Worker)

// WithTelemetry publishes one MetricEvent per processed order to topic.
func WithTelemetry(pub message.Publisher, topic string) Option {
	return func(w *Worker) { w.telemetry, w.telemetryTopic = pub, topic }
}

func WithMetrics(m *metrics.Robot) Option { return func(w *Worker) { w.metrics = m } }

func WithHooks(h Hooks) Option { return func(w *Worker) { w.hooks = h } }

func WithClock(now func() time.Time) Option { return func(w *Worker) { w.now = now } }

func New(cfg Config, p Picker, r reporter.Reporter, log *logger.Logger, opts ...Option) *Worker {
	if cfg.PickConcurrency < 1 {
		cfg.PickConcurrency = 1
	}
	w := &Worker{
		cfg:      cfg,
		picker:   p,
		reporter: r,
		log:      log.With(map[string]any{"robot_id": cfg.Robot.ID, "aisle": cfg.Robot.Aisle}),
		tracer:   otel.Tracer("grocery-fleet/robot"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	if w.metrics == nil {
		w.metrics, _ = metrics.NewRobot(prometheus.NewRegistry())
	}
	return w
}

// Run handles broadcasts one at a time until ctx is done. Cancellation is only
// observed between orders: an order that was received is picked and reported.
func (w *Worker) Run(ctx context.Context, msgs <-chan *message.Message) error {
	w.log.Info("worker_started", map[string]any{"pick_concurrency": w.cfg.PickConcurrency})
	for {
		select {
		case <-ctx.Done():
			w.log.Info("graceful_shutdown", nil)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return ErrSubscriptionClosed
			}
			// select picks at random when both are ready; shutdown wins.
			if ctx.Err() != nil {
				msg.Nack()
				w.log.Info("graceful_shutdown", map[string]any{"unhandled_message": msg.UUID})
				return nil
			}
			_, _ = w.Handle(context.WithoutCancel(ctx), msg.Payload)
			msg.Ack()
		}
	}
}

// Handle decodes one broadcast payload and runs it through the pipeline.
// A malformed payload yields a *domain.DecodeError (or *domain.ValidationError
// for a well-formed but invalid one) and nothing is reported.
func (w *Worker) Handle(ctx context.Context, payload []byte) (domain.JobStatusReport, error) {
	b, err := codec.DecodeBroadcast(payload)
	if err != nil {
		w.metrics.DecodeErrors.Inc()
		w.log.Error("broadcast_dropped", err, map[string]any{"bytes": len(payload)})
		return domain.JobStatusReport{}, err
	}
	return w.HandleOrder(ctx, b)
}

// HandleOrder filters, picks, aggregates and reports one order. The returned
// error is the final report failure, if any.
func (w *Worker) HandleOrder(ctx context.Context, b domain.OrderBroadcast) (domain.JobStatusReport, error) {
	start := w.now()
	ctx, span := w.tracer.Start(ctx, "robot.process_order", trace.WithAttributes(
		attribute.String("order.id", b.OrderID),
		attribute.String("robot.aisle", w.cfg.Robot.Aisle),
	))
	defer span.End()

	log := w.log.With(map[string]any{"order_id": b.OrderID})
	log.Info("order_received", map[string]any{"order_type": b.OrderType, "items": len(b.Items)})
	if w.hooks.OnOrderStart != nil {
		w.hooks.OnOrderStart(ctx, b)
	}

	matched := Filter(b, w.cfg.Robot.Aisle)
	for _, it := range b.Items {
		log.Debug("candidate_item", map[string]any{"sku": it.SKU, "item_aisle": it.Aisle, "quantity": it.Quantity, "match": it.Aisle == w.cfg.Robot.Aisle})
	}

	if len(matched) > 0 {
		w.pickAll(ctx, log, matched)
	}

	report := Aggregate(b, w.cfg.Robot, matched)
	span.SetAttributes(attribute.String("order.status", string(report.Status)))
	for sku, qty := range report.ProcessedItems {
		log.Debug("report_item", map[string]any{"sku": sku, "quantity": qty})
	}

	ack, err := w.reporter.Report(ctx, report)
	elapsed := w.now().Sub(start)
	w.metrics.Orders.WithLabelValues(string(report.Status)).Inc()
	w.metrics.OrderDuration.Observe(elapsed.Seconds())

	if err != nil {
		w.metrics.ReportFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "report failed")
		log.Error("report_failed", err, map[string]any{"status": report.Status, "processed_items": report.ProcessedItems})
		if w.hooks.OnReportFailed != nil {
			w.hooks.OnReportFailed(ctx, report, err)
		}
	} else {
		log.Info("report_acknowledged", map[string]any{
			"status": report.Status, "processed_items": len(report.ProcessedItems),
			"ack_message": ack.Message, "duration_ms": elapsed.Milliseconds(),
		})
		if w.hooks.OnOrderDone != nil {
			w.hooks.OnOrderDone(ctx, report, elapsed)
		}
	}

	w.publishMetric(log, report, elapsed)
	return report, err
}

// pickAll runs one pick per item, at most PickConcurrency at a time, and
// returns only once every pick has finished.
func (w *Worker) pickAll(ctx context.Context, log *logger.Logger, items []domain.LineItem) {
	var g errgroup.Group
	g.SetLimit(w.cfg.PickConcurrency)
	for _, it := range items {
		g.Go(func() error {
			log.Debug("pick_started", map[string]any{"sku": it.SKU, "quantity": it.Quantity})
			w.picker.Pick(ctx, it)
			w.metrics.Picks.Inc()
			log.Debug("pick_finished", map[string]any{"sku": it.SKU})
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) publishMetric(log *logger.Logger, r domain.JobStatusReport, elapsed time.Duration) {
	if w.telemetry == nil {
		return
	}
	payload, err := codec.EncodeMetric(domain.NewMetricEvent(r.OrderID, r.Status, elapsed, w.now()))
	if err != nil {
		log.Error("metric_encode_failed", err, nil)
		return
	}
	msg := message.NewMessage(ids.NewULID(), payload)
	msg.Metadata.Set("content_type", codec.ContentType)
	if err := w.telemetry.Publish(w.telemetryTopic, msg); err != nil {
		log.Error("metric_publish_failed", err, map[string]any{"topic": w.telemetryTopic})
	}
}

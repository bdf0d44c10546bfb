package robot

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"grocery-fleet/internal/common/config"
	"grocery-fleet/internal/common/httpx"
	"grocery-fleet/internal/common/ids"
	"grocery-fleet/internal/common/logger"
	"grocery-fleet/internal/common/metrics"
	"grocery-fleet/internal/common/mq"
	"grocery-fleet/internal/domain"
	"grocery-fleet/internal/microservices/robot/reporter"
	"grocery-fleet/internal/microservices/robot/service"
)

// Run wires the robot worker from app and blocks until ctx is done or the
// broadcast subscription is lost.
func Run(ctx context.Context, app config.App, log *logger.Logger) error {
	cfg := app.Robot
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ID == "" {
		cfg.ID = ids.RobotID(cfg.Aisle)
	}

	reg := metrics.NewRegistry()
	m, err := metrics.NewRobot(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	rep, closeRep, err := reporter.New(cfg.ReportAddr, cfg.ReportQueue)
	if err != nil {
		return err
	}
	defer closeRep()
	retrying := reporter.NewRetrying(rep, reporter.RetryPolicy{
		Timeout:     cfg.ReportTimeout,
		MaxAttempts: cfg.ReportMaxAttempts,
		Initial:     cfg.ReportBackoff,
		Max:         cfg.ReportBackoffMax,
	})
	attemptLog := log.With(map[string]any{"robot_id": cfg.ID})
	retrying.OnAttempt = func(attempt int, outcome string, err error) {
		m.ReportAttempts.WithLabelValues(outcome).Inc()
		if err != nil {
			attemptLog.Error("report_attempt_failed", err, map[string]any{"attempt": attempt, "max_attempts": cfg.ReportMaxAttempts})
		}
	}

	opts := []service.Option{service.WithMetrics(m)}
	if cfg.TelemetryAddr != "" {
		pub, err := mq.NewPublisher(cfg.TelemetryAddr, log.Watermill())
		if err != nil {
			return fmt.Errorf("telemetry publisher: %w", err)
		}
		defer pub.Close()
		opts = append(opts, service.WithTelemetry(pub, app.Analytics.Topic))
	}

	sub, err := mq.NewSubscriber(cfg.BroadcastAddr, mq.Options{ClientID: cfg.ID}, log.Watermill())
	if err != nil {
		return fmt.Errorf("broadcast subscriber: %w", err)
	}
	defer sub.Close()
	// The subscription outlives ctx so the order in flight at shutdown can be acked.
	subCtx, cancelSub := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSub()
	msgs, err := sub.Subscribe(subCtx, cfg.BroadcastTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.BroadcastTopic, err)
	}

	w := service.New(service.Config{
		Robot:           domain.Robot{ID: cfg.ID, Aisle: cfg.Aisle},
		PickConcurrency: cfg.PickConcurrency,
	}, service.SimulatedPicker{Duration: cfg.PickDuration}, retrying, log, opts...)

	log.Info("robot_starting", map[string]any{
		"robot_id": cfg.ID, "aisle": cfg.Aisle, "broadcast_addr": cfg.BroadcastAddr, "topic": cfg.BroadcastTopic,
		"report_addr": cfg.ReportAddr, "pick_duration_ms": cfg.PickDuration.Milliseconds(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx, msgs) })
	if app.OpsHTTPAddr != "" {
		srv := httpx.New(app.OpsHTTPAddr, opsRouter(reg, rep))
		g.Go(func() error { return srv.Run(gctx) })
	}
	return g.Wait()
}

// opsRouter reports the robot unhealthy while its report channel is down.
func opsRouter(g prometheus.Gatherer, rep reporter.Reporter) chi.Router {
	return httpx.NewOpsRouter(g, reporter.Health(rep))
}

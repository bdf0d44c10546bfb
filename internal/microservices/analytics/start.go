package analytics

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"grocery-fleet/internal/common/config"
	"grocery-fleet/internal/common/httpx"
	"grocery-fleet/internal/common/logger"
	"grocery-fleet/internal/common/metrics"
	"grocery-fleet/internal/common/mq"
	"grocery-fleet/internal/microservices/analytics/handler"
	"grocery-fleet/internal/microservices/analytics/repository"
	"grocery-fleet/internal/microservices/analytics/service"
)

// Run wires the analytics collector from app and blocks until ctx is done.
// A store write failure ends it with an error wrapping domain.ErrStoreWrite.
func Run(ctx context.Context, app config.App, log *logger.Logger) error {
	cfg := app.Analytics
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	m, err := metrics.NewAnalytics(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	store, err := repository.Open(ctx, cfg.StorePath)
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := service.New(store, cfg.DedupWindow, log, m)
	if err != nil {
		return err
	}

	sub, err := mq.NewSubscriber(cfg.SubAddr, mq.Options{ClientID: "analytics-collector"}, log.Watermill())
	if err != nil {
		return fmt.Errorf("telemetry subscriber: %w", err)
	}
	defer sub.Close()
	subCtx, cancelSub := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSub()
	msgs, err := sub.Subscribe(subCtx, cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.Topic, err)
	}

	log.Info("collector_starting", map[string]any{
		"sub_addr": cfg.SubAddr, "topic": cfg.Topic, "store": redact(cfg.StorePath), "dedup_window": cfg.DedupWindow,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(gctx, msgs) })
	if app.OpsHTTPAddr != "" {
		srv := httpx.New(app.OpsHTTPAddr, opsRouter(reg, store, c))
		g.Go(func() error { return srv.Run(gctx) })
	}
	return g.Wait()
}

const healthTimeout = 2 * time.Second

// opsRouter serves health, metrics and the query API. Health fails while the
// store cannot be reached.
func opsRouter(g prometheus.Gatherer, store repository.Store, c *service.Collector) chi.Router {
	r := httpx.NewOpsRouter(g, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		return store.Ping(ctx)
	})
	handler.New(c).Mount(r)
	return r
}

// redact hides the password of a DSN store path.
func redact(path string) string {
	u, err := url.Parse(path)
	if err != nil || u.User == nil {
		return path
	}
	return u.Redacted()
}

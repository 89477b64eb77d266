// Package app wires the storefront together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kirana/internal/catalog"
	"github.com/xenking/kirana/internal/contentful"
	"github.com/xenking/kirana/internal/domain/cart"
	"github.com/xenking/kirana/internal/domain/checkout"
	"github.com/xenking/kirana/internal/domain/product"
	"github.com/xenking/kirana/internal/handler"
	"github.com/xenking/kirana/internal/storage/file"
	"github.com/xenking/kirana/internal/storage/postgres"
	"github.com/xenking/kirana/internal/storage/redis"
	"github.com/xenking/kirana/pkg/health"
	"github.com/xenking/kirana/pkg/httpmiddleware"
)

// snapshotBackend is a cart storage backend that can be health checked.
type snapshotBackend interface {
	cart.SnapshotStore
	health.Pinger
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("catalog_snapshot", cfg.Catalog.SnapshotPath != ""),
	)
	ctx = zctx.Base(ctx, lg)

	backend, closeBackend, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open cart storage")
	}
	defer closeBackend()

	source, err := newSource(cfg, m)
	if err != nil {
		return errors.Wrap(err, "create catalog source")
	}

	// Cart first: the loader reconciles it after every refresh.
	store := cart.Restore(ctx, backend, cfg.Storage.Key)
	loader := catalog.NewLoader(source,
		catalog.WithMeterProvider(m.MeterProvider()),
		catalog.WithListener(func(ctx context.Context, products []product.Product) {
			if dropped := store.Reconcile(ctx, products); len(dropped) > 0 {
				zctx.From(ctx).Info("Dropped unavailable cart lines", zap.Strings("ids", dropped))
			}
		}),
	)

	exporter, err := checkout.NewExporter(cfg.WhatsApp.Contact)
	if err != nil {
		return errors.Wrap(err, "create exporter")
	}
	h, err := handler.New(
		handler.Config{
			MinimumOrder: decimal.RequireFromString(cfg.Store.MinimumOrder),
			ServiceArea:  cfg.Store.ServiceArea,
		},
		loader,
		store,
		checkout.NewService(store, exporter),
		m.MeterProvider(),
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("storage", 5*time.Second, health.PingCheck(backend))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	go refreshCatalog(ctx, loader, cfg.Catalog.RefreshInterval)

	mux := http.NewServeMux()
	h.Register(mux)
	healthSvc.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Catalog refreshes run inline with the request.
		WriteTimeout:   cfg.Contentful.Timeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("kirana-storefront", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newSource returns the snapshot file source when configured, otherwise the
// Contentful client.
func newSource(cfg *Config, m *app.Telemetry) (product.Source, error) {
	if cfg.Catalog.SnapshotPath != "" {
		return catalog.NewSnapshotSource(cfg.Catalog.SnapshotPath), nil
	}
	return contentful.NewClient(contentful.Config{
		SpaceID:        cfg.Contentful.SpaceID,
		AccessToken:    cfg.Contentful.AccessToken,
		Environment:    cfg.Contentful.Environment,
		BaseURL:        cfg.Contentful.BaseURL,
		PageSize:       cfg.Contentful.PageSize,
		Concurrency:    cfg.Contentful.Concurrency,
		Timeout:        cfg.Contentful.Timeout,
		TracerProvider: m.TracerProvider(),
		MeterProvider:  m.MeterProvider(),
	})
}

// openStorage connects the configured cart backend. The returned func
// releases it.
func openStorage(ctx context.Context, cfg StorageConfig) (snapshotBackend, func(), error) {
	switch cfg.Backend {
	case StorageRedis:
		s, err := redis.Dial(ctx, cfg.RedisURL, cfg.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewCartRepository(pool), pool.Close, nil
	default:
		s, err := file.New(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

// refreshCatalog loads the catalog once and then every interval, if set.
// Failures are recorded in the loader state and retried by the shopper or
// the next tick.
func refreshCatalog(ctx context.Context, loader *catalog.Loader, interval time.Duration) {
	_ = loader.Refresh(ctx)
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = loader.Refresh(ctx)
		}
	}
}

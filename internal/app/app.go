package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bites-pos/internal/domain/menu"
	"github.com/xenking/bites-pos/internal/domain/order"
	"github.com/xenking/bites-pos/internal/domain/payment"
	"github.com/xenking/bites-pos/internal/handler"
	"github.com/xenking/bites-pos/internal/storage/memory"
	"github.com/xenking/bites-pos/internal/storage/postgres"
	"github.com/xenking/bites-pos/internal/ws"
	"github.com/xenking/bites-pos/pkg/health"
	"github.com/xenking/bites-pos/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	taxRate, err := cfg.Tax()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.Stringer("tax_rate", taxRate),
		zap.String("timezone", loc.String()),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
	)

	healthSvc := health.New()
	store := order.NewStore(order.WithTaxRate(taxRate), order.WithLogger(lg.Named("order")))

	// Catalog and order archive: PostgreSQL when configured, otherwise the
	// embedded seed menu kept in memory.
	var (
		catalog menu.Repository
		archive order.Archive
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		repo := postgres.NewCatalogRepository(pool)
		items, err := repo.ListItems(ctx)
		if err != nil {
			return errors.Wrap(err, "list menu")
		}
		if len(items) == 0 {
			lg.Warn("Menu is empty, run seed-db to load it")
		}
		catalog = repo
		archive = postgres.NewOrderArchive(pool)
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	} else {
		mem, err := memory.LoadSeed()
		if err != nil {
			return errors.Wrap(err, "load seed menu")
		}
		catalog = mem
	}

	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(cfg.MaxGoroutines))
	healthSvc.AddLivenessCheck("order-store", time.Second, health.LockCheck(func() { store.CurrentSlot() }))

	// Domain services.
	payments, err := payment.NewService(store, archive,
		payment.WithLogger(lg.Named("payment")),
		payment.WithMeterProvider(m.MeterProvider()),
		payment.WithTracerProvider(m.TracerProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create payment service")
	}
	hub := ws.NewHub(lg.Named("ws"))

	// HTTP handlers.
	h, err := handler.New(
		handler.Config{Location: loc, MeterProvider: m.MeterProvider()},
		catalog,
		store,
		payments,
		hub,
	)
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	r := newRouter(routerDeps{
		lg:     lg,
		cors:   cfg.CORS,
		api:    h,
		hub:    hub,
		health: healthSvc,
		tp:     m.TracerProvider(),
		mp:     m.MeterProvider(),
	})

	// No WriteTimeout: websocket connections set their own write deadlines.
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(gctx)
	})
	g.Go(func() error {
		return healthSvc.Run(gctx, 10*time.Second)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	healthSvc.SetReady(true)
	return g.Wait()
}

type routerDeps struct {
	lg     *zap.Logger
	cors   CORSConfig
	api    *handler.Handler
	hub    *ws.Hub
	health *health.Health
	tp     trace.TracerProvider
	mp     metric.MeterProvider
}

// newRouter mounts the health probes, the event stream at /ws and the API
// under /api. Logger injection, request IDs and panic recovery wrap the whole
// router; request logging runs inside it to see the matched route pattern.
func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.LogRequests(),
		cors.Handler(cors.Options{
			AllowedOrigins:   d.cors.Origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", httpmiddleware.HeaderRequestID},
			ExposedHeaders:   []string{httpmiddleware.HeaderRequestID},
			AllowCredentials: d.cors.AllowCredentials,
			MaxAge:           86400,
		}),
	)
	r.Get("/livez", d.health.LiveEndpoint)
	r.Get("/readyz", d.health.ReadyEndpoint)
	r.Handle("/ws", ws.NewHandler(d.hub, d.cors.Origins))
	r.Route("/api", func(r chi.Router) {
		r.Use(otelhttp.NewMiddleware("pos-api",
			otelhttp.WithTracerProvider(d.tp),
			otelhttp.WithMeterProvider(d.mp),
		))
		d.api.Routes(r)
	})
	return httpmiddleware.Wrap(r,
		httpmiddleware.InjectLogger(d.lg),
		httpmiddleware.RequestID(),
		httpmiddleware.Recovery(),
	)
}

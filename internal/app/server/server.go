package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"evalsvc/internal/domain/activity"
	"evalsvc/internal/domain/auth"
	"evalsvc/internal/domain/evaluation"
	"evalsvc/internal/domain/org"
	"evalsvc/internal/platform/cache"
	"evalsvc/internal/platform/config"
	"evalsvc/internal/platform/db"
	"evalsvc/internal/platform/metrics"
	"evalsvc/internal/transport/http/api"
	activityhandler "evalsvc/internal/transport/http/handlers/activity"
	evaluationhandler "evalsvc/internal/transport/http/handlers/evaluation"
	"evalsvc/internal/transport/http/middleware"
)

const (
	redisRetries = 5
	redisBackoff = 2 * time.Second
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Service *evaluation.Service
	Metrics *metrics.Collector
	Router  http.Handler

	activityReader activity.Reader
	closers        []io.Closer
}

// New connects every backing service, syncs the evaluation catalog and
// builds the router. Callers must Close the returned App.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	catalog, err := evaluation.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: pool}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	store := evaluation.NewStore(pool)
	if err := store.UpsertEvaluationLines(ctx, catalog.Lines); err != nil {
		app.Close()
		return nil, fmt.Errorf("sync catalog: %w", err)
	}

	recorder, err := app.activitySinks(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	if cfg.MetricsEnabled {
		app.Metrics = metrics.New()
	}
	app.Service = evaluation.NewService(store, app.orgLookup(ctx), catalog, evaluation.Options{
		Activity:        recorder,
		Metrics:         app.Metrics,
		BulkConcurrency: cfg.BulkConcurrency,
	})
	app.Router = NewRouter(RouterDeps{
		Config:   cfg,
		Service:  app.Service,
		Perms:    auth.NewStaticPermissions(auth.RolePermissions),
		Metrics:  app.Metrics,
		Activity: app.activityReader,
		Ready:    pool.Ping,
	})
	return app, nil
}

// orgLookup wraps the employee table lookup with the redis cache when one
// is configured and reachable. An unreachable redis only disables caching.
func (a *App) orgLookup(ctx context.Context) evaluation.OrgLookup {
	base := org.NewStore(a.DB)
	if a.Config.RedisAddr == "" {
		return base
	}
	rdb, err := cache.ConnectRedisWithRetry(ctx, a.Config.RedisAddr, redisRetries, redisBackoff)
	if err != nil {
		slog.Warn("org lookup cache disabled", "err", err)
		return base
	}
	a.closers = append(a.closers, rdb)
	return org.NewCachedLookup(base, rdb, a.Config.OrgCacheTTL)
}

func (a *App) activitySinks(ctx context.Context) (activity.Recorder, error) {
	var sinks activity.Multi
	for _, name := range a.Config.ActivitySinks {
		switch name {
		case config.SinkPostgres:
			rec := activity.NewPostgresRecorder(a.DB)
			a.activityReader = rec
			sinks = append(sinks, rec)
		case config.SinkKafka:
			rec := activity.NewKafkaRecorder(a.Config.KafkaBrokers, a.Config.ActivityTopic)
			a.closers = append(a.closers, rec)
			sinks = append(sinks, rec)
		case config.SinkSQLite:
			rec, err := activity.OpenSQLiteRecorder(ctx, a.Config.ActivitySQLitePath)
			if err != nil {
				return nil, fmt.Errorf("open sqlite activity log: %w", err)
			}
			a.closers = append(a.closers, rec)
			sinks = append(sinks, rec)
		}
	}
	switch len(sinks) {
	case 0:
		return activity.Nop{}, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

type RouterDeps struct {
	Config   config.Config
	Service  *evaluation.Service
	Perms    middleware.PermissionStore
	Metrics  *metrics.Collector
	Activity activity.Reader
	Ready    func(context.Context) error
}

func NewRouter(deps RouterDeps) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(deps.Metrics))
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecureHeaders(deps.Config.IsProduction()))
	router.Use(middleware.BodyLimit(deps.Config.MaxBodyBytes))
	router.Use(middleware.Auth(deps.Config.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if deps.Metrics != nil {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, deps.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Config.RateLimitPerMinute, time.Minute))
		r.Use(middleware.BatchMutationRateLimit(deps.Config.RateLimitPerMinute, time.Minute))
		evaluationhandler.NewHandler(deps.Service, deps.Perms).RegisterRoutes(r)
		if deps.Activity != nil {
			activityhandler.NewHandler(deps.Activity, deps.Perms).RegisterRoutes(r)
		}
	})

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("evaluation service listening", "addr", a.Config.Addr, "env", a.Config.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server exited gracefully")
	return nil
}

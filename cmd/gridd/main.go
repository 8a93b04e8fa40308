// Package main is the entry point for the gridd server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/internal/config"
	"github.com/pitabwire/gridcore/internal/datasource"
	"github.com/pitabwire/gridcore/internal/definition"
	"github.com/pitabwire/gridcore/internal/export"
	"github.com/pitabwire/gridcore/internal/fetch"
	"github.com/pitabwire/gridcore/internal/observability"
	"github.com/pitabwire/gridcore/internal/prefstore"
	"github.com/pitabwire/gridcore/internal/transport"
	"github.com/pitabwire/gridcore/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "gridd", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Load definitions, validate, build registry.
	loader := definition.NewLoader()
	defs, err := loader.LoadAll(cfg.Definitions.Directories)
	if err != nil {
		metrics.RecordDefinitionLoad("error")
		logger.Error("definition loading failed", zap.Error(err))
		return 1
	}

	validator := definition.NewValidator()
	if verrs := validator.Validate(defs); len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("definition validation error", zap.String("error", ve.Error()))
		}
		metrics.RecordDefinitionLoad("error")
		logger.Error("definition validation failed", zap.Int("errors", len(verrs)))
		return 1
	}

	registry := definition.NewRegistry(defs)
	metrics.RecordDefinitionLoad("success")
	metrics.SetGridsLoaded(len(registry.AllGrids()))

	// Step 5: Connect to PostgreSQL.
	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("database initialization failed", zap.Error(err))
		return 1
	}
	defer pool.Close()

	// Step 6: Build one guarded SQL source per grid.
	sources, breakers := buildSources(registry, pool, cfg.Database, metrics)

	// Step 7: Initialize the preference store.
	prefs, prefsCheck, prefsCloser, err := buildPreferenceStore(ctx, cfg.Preferences, pool, logger)
	if err != nil {
		logger.Error("preference store initialization failed", zap.Error(err))
		return 1
	}

	// Step 8: Build HTTP router.
	router := transport.NewRouter(transport.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Registry:    registry,
		Sources:     sources,
		Preferences: prefstore.NewInstrumented(prefs, metrics),
		Exports:     export.NewRegistry(),
		Metrics:     metrics,
		Gatherer:    prometheus.DefaultGatherer,
		Readiness: observability.ReadinessChecks{
			DefinitionsLoaded: func() bool { return len(registry.AllGrids()) > 0 },
			Database:          observability.HealthCheckFunc(pool.Ping),
			PreferenceStore:   prefsCheck,
			Breakers:          breakers,
		},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 9: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("grids", len(registry.AllGrids())),
		zap.String("preferences", cfg.Preferences.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if prefsCloser != nil {
		prefsCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// openPool connects to the database named by cfg and verifies it answers.
func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := cfg.DSN()
	if dsn == "" {
		return nil, fmt.Errorf("database: %s environment variable not set", cfg.DSNEnv)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("database: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return pool, nil
}

// buildSources creates a SQL source for every registered grid. Each grid
// gets its own breaker so one failing table does not take the others down.
func buildSources(registry *definition.Registry, db datasource.Querier, cfg config.DatabaseConfig, metrics *observability.Metrics) (transport.SourceFunc, map[string]*datasource.Breaker) {
	sources := make(map[string]fetch.Fetcher[datasource.Row])
	breakers := make(map[string]*datasource.Breaker)
	for _, def := range registry.AllGrids() {
		b := datasource.NewBreaker(breakerConfig(cfg.CircuitBreaker))
		metrics.WatchBreaker(def.ID, b)
		breakers[def.ID] = b
		sources[def.ID] = withQueryTimeout(datasource.NewSQLSource(def, db).WithBreaker(b), cfg.QueryTimeout)
	}
	return func(gridID string) (fetch.Fetcher[datasource.Row], bool) {
		src, ok := sources[gridID]
		return src, ok
	}, breakers
}

func breakerConfig(cfg config.CircuitBreakerConfig) datasource.BreakerConfig {
	return datasource.BreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		Cooldown:         cfg.Timeout,
		ErrorRate:        cfg.ErrorRateThreshold,
		RateWindow:       cfg.ErrorRateWindow,
	}
}

// withQueryTimeout bounds every fetch of src by d.
func withQueryTimeout(src fetch.Fetcher[datasource.Row], d time.Duration) fetch.Fetcher[datasource.Row] {
	if d <= 0 {
		return src
	}
	return fetch.FetcherFunc[datasource.Row](func(ctx context.Context, req model.SearchRequest) (model.PagedResult[datasource.Row], error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return src.Fetch(ctx, req)
	})
}

// buildPreferenceStore creates the preference store based on config. It
// returns the store, its readiness check (nil for memory) and a closer.
func buildPreferenceStore(ctx context.Context, cfg config.PreferencesConfig, pool *pgxpool.Pool, logger *zap.Logger) (prefstore.Store, observability.HealthChecker, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		logger.Info("using in-memory preference store")
		return prefstore.NewMemoryStore(), nil, nil, nil
	case config.DriverRedis:
		addr := cfg.Redis.Addr()
		if addr == "" {
			return nil, nil, nil, fmt.Errorf("preferences: %s environment variable not set", cfg.Redis.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password(),
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("preferences: redis ping: %w", err)
		}
		check := observability.HealthCheckFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		closer := func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close failed", zap.Error(err))
			}
		}
		return prefstore.NewRedisStore(client, cfg.TTL), check, closer, nil
	case config.DriverPostgres:
		store := prefstore.NewPgStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, fmt.Errorf("preferences: %w", err)
		}
		return store, observability.HealthCheckFunc(pool.Ping), nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("unsupported preference store driver: %q", cfg.Driver)
	}
}

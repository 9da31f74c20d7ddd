package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/rickgao/prosper-api/internal/api"
	"github.com/rickgao/prosper-api/internal/apikey"
	"github.com/rickgao/prosper-api/internal/app"
	"github.com/rickgao/prosper-api/internal/config"
	"github.com/rickgao/prosper-api/internal/database"
	"github.com/rickgao/prosper-api/internal/forecast"
	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/httpapi"
	"github.com/rickgao/prosper-api/internal/rediscache"
	"github.com/rickgao/prosper-api/internal/resolver"
	"github.com/rickgao/prosper-api/internal/seeder"
	"github.com/rickgao/prosper-api/internal/split"
	"github.com/rickgao/prosper-api/internal/splitcache"
	"github.com/rickgao/prosper-api/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/publicapi.local.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg.Logging, os.Stdout)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting publicapi",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("publicapi failed", "error", err)
		os.Exit(1)
	}
	logger.Info("publicapi stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Database
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store := splitcache.NewPGStore(db.Pool, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	keys := apikey.NewStore(db.SQL, logger)
	if err := keys.EnsureSchema(ctx); err != nil {
		return err
	}
	logger.Info("database connected")

	checks := map[string]httpapi.HealthCheck{"postgres": db.Ping}

	// Caches
	var (
		forecastCache forecast.Cache = forecast.NewMemoryCache(cfg.Forecast.CacheSize, cfg.Forecast.CacheTTL)
		idCache       api.IDCache    = api.NewMemoryIDCache()
	)
	if cfg.Redis.Enabled() {
		rdb, err := rediscache.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		forecastCache = rediscache.NewForecastCache(rdb, cfg.Redis.Prefix)
		idCache = rediscache.NewIDCache(rdb, cfg.Redis.Prefix)
		checks["redis"] = redisCheck(rdb)
		logger.Info("redis connected", "addr", cfg.Redis.Addr)
	}

	// Splits
	registry, err := split.LoadFile(cfg.Splits.Path)
	if err != nil {
		return err
	}
	splits := split.NewHolder(registry, cfg.Splits.Path, logger)
	logger.Info("split config loaded", "path", cfg.Splits.Path, "splits", registry.Len())

	// Upstreams
	clients := app.NewClients(cfg.Sources, logger)
	sources := clients.Sources(cfg.Sources)

	res := resolver.New(splits, sources, store, resolver.WithLogger(logger))

	forecastCfg, err := app.ForecastConfig(cfg.Forecast)
	if err != nil {
		return err
	}
	forecasts := forecast.NewService(
		forecastCfg,
		res,
		forecast.TrendModel{Interval: cfg.Forecast.Interval},
		forecastCache,
		logger,
	)

	ohlcSource, err := history.ParseMode(cfg.Server.OHLCSource)
	if err != nil {
		return err
	}

	handler := httpapi.NewServer(httpapi.Deps{
		History:   res,
		Validator: api.NewValidator(clients.ESI, idCache, logger),
		Forecasts: forecasts,
		Keys:      keys,
		Splits:    splits,
		Checks:    checks,
	}, httpapi.Options{
		OHLCSource:   ohlcSource,
		DefaultRange: cfg.Forecast.DefaultRange,
		RateLimit:    cfg.Server.RateLimit,
		RateBurst:    cfg.Server.RateBurst,
		AdminToken:   cfg.Server.AdminToken,
	}, logger)

	// Background jobs
	sched, err := newScheduler(cfg, splits, sources, store, logger)
	if err != nil {
		return err
	}
	if sched.Len() > 0 {
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				logger.Warn("scheduler did not stop cleanly", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	return nil
}

// newScheduler registers the split config reload and the background seeding
// jobs that have a schedule configured.
func newScheduler(cfg *config.Config, splits *split.Holder, sources history.Sources, store splitcache.Store, logger *slog.Logger) (*seeder.Scheduler, error) {
	sched := seeder.NewScheduler(logger)

	if cfg.Splits.ReloadSchedule != "" {
		err := sched.Add("reload-splits", cfg.Splits.ReloadSchedule, func(context.Context) error {
			_, err := splits.Reload()
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Seeder.Schedule != "" {
		seedCfg, err := app.SeederConfig(cfg.Seeder)
		if err != nil {
			return nil, err
		}
		fetcher, err := sources.For(seedCfg.Source)
		if err != nil {
			return nil, err
		}
		s := seeder.New(seedCfg, fetcher, store, splits, logger)
		err = sched.Add("seed-splitcache", cfg.Seeder.Schedule, func(ctx context.Context) error {
			_, err := s.Run(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	return sched, nil
}

func redisCheck(rdb *redis.Client) httpapi.HealthCheck {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rickgao/prosper-api/internal/app"
	"github.com/rickgao/prosper-api/internal/config"
	"github.com/rickgao/prosper-api/internal/database"
	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/seeder"
	"github.com/rickgao/prosper-api/internal/split"
	"github.com/rickgao/prosper-api/internal/splitcache"
	"github.com/rickgao/prosper-api/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/publicapi.local.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	force := flag.Bool("force", false, "replace cached rows instead of upserting")
	regions := flag.String("regions", "", "comma separated region ids (default: seeder.regions)")
	types := flag.String("types", "", "comma separated type ids (default: split original ids)")
	rangeDays := flag.Int("range", 0, "days of history to fetch (default: seeder.range_days)")
	source := flag.String("source", "", "history source, esi or emd (default: seeder.source)")
	concurrency := flag.Int("concurrency", 0, "max concurrent fetches (default: seeder.concurrency)")
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

	seedCfg, err := app.SeederConfig(cfg.Seeder)
	if err != nil {
		logger.Error("invalid seeder config", "error", err)
		os.Exit(1)
	}
	if err := applyFlags(&seedCfg, *regions, *types, *source, *rangeDays, *concurrency); err != nil {
		logger.Error("invalid flags", "error", err)
		os.Exit(1)
	}
	seedCfg.Force = *force

	logger.Info("starting splitcache",
		"version", version.Version,
		"commit", version.Commit,
		"source", seedCfg.Source,
		"range_days", seedCfg.RangeDays,
		"force", seedCfg.Force,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, seedCfg, logger); err != nil {
		logger.Error("splitcache failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, seedCfg seeder.Config, logger *slog.Logger) error {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := splitcache.NewPGStore(pool, logger)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	registry, err := split.LoadFile(cfg.Splits.Path)
	if err != nil {
		return err
	}

	clients := app.NewClients(cfg.Sources, logger)
	fetcher, err := clients.Sources(cfg.Sources).For(seedCfg.Source)
	if err != nil {
		return err
	}

	result, err := seeder.New(seedCfg, fetcher, store, registry, logger).Run(ctx)
	stats := store.Stats()
	logger.Info("splitcache finished",
		"pairs", result.Pairs,
		"seeded", result.Seeded,
		"empty", result.Empty,
		"failed", result.Failed,
		"rows", result.Rows,
		"upserts", stats.Upserts,
		"deletes", stats.Deletes,
		"duration", result.Duration,
	)
	return err
}

// applyFlags overrides the configured seeder settings with any flags given.
func applyFlags(cfg *seeder.Config, regions, types, source string, rangeDays, concurrency int) error {
	if regions != "" {
		ids, err := parseIDs(regions)
		if err != nil {
			return fmt.Errorf("-regions: %w", err)
		}
		cfg.Regions = ids
	}
	if types != "" {
		ids, err := parseIDs(types)
		if err != nil {
			return fmt.Errorf("-types: %w", err)
		}
		cfg.Types = ids
	}
	if source != "" {
		mode, err := history.ParseMode(source)
		if err != nil {
			return fmt.Errorf("-source: %w", err)
		}
		if mode == history.ModeCREST {
			return fmt.Errorf("-source: crest cannot seed the split cache")
		}
		cfg.Source = mode
	}
	if rangeDays < 0 {
		return fmt.Errorf("-range must be positive, got %d", rangeDays)
	}
	if rangeDays > 0 {
		cfg.RangeDays = rangeDays
	}
	if concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	return nil
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Package app builds the services shared by the binaries under cmd/ from a
// loaded configuration.
package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/prosper-api/internal/api"
	"github.com/rickgao/prosper-api/internal/config"
	"github.com/rickgao/prosper-api/internal/forecast"
	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/seeder"
	"github.com/rickgao/prosper-api/internal/version"
)

// retryBackoff is the base delay between upstream retries.
const retryBackoff = time.Second

// NewLogger returns a slog logger writing to w in the configured format.
func NewLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Clients holds one REST client per upstream.
type Clients struct {
	ESI   *api.Client
	EMD   *api.Client
	CREST *api.Client
}

// NewClients creates the upstream clients.
func NewClients(cfg config.SourcesConfig, logger *slog.Logger) Clients {
	ua := version.UserAgent(cfg.Contact)
	return Clients{
		ESI:   newClient(cfg.ESI, ua, logger.With("source", "esi")),
		EMD:   newClient(cfg.EMD, ua, logger.With("source", "emd")),
		CREST: newClient(cfg.CREST, ua, logger.With("source", "crest")),
	}
}

func newClient(cfg config.APIConfig, userAgent string, logger *slog.Logger) *api.Client {
	return api.NewClient(
		cfg.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Timeout),
		api.WithRetries(cfg.MaxRetries, retryBackoff),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		api.WithUserAgent(userAgent),
	)
}

// Sources maps every history mode to its fetcher.
func (c Clients) Sources(cfg config.SourcesConfig) history.Sources {
	return history.Sources{
		history.ModeESI:   api.NewESISource(c.ESI),
		history.ModeEMD:   api.NewEMDSource(c.EMD, cfg.EMD.CharName),
		history.ModeCREST: api.NewCRESTSource(c.CREST),
	}
}

// ForecastConfig converts the forecast section into service settings.
func ForecastConfig(cfg config.ForecastConfig) (forecast.Config, error) {
	mode, err := history.ParseMode(cfg.Source)
	if err != nil {
		return forecast.Config{}, fmt.Errorf("forecast.source: %w", err)
	}
	return forecast.Config{
		Mode:        mode,
		HistoryDays: cfg.HistoryDays,
		MaxRange:    cfg.MaxRange,
		MinRows:     cfg.MinRows,
		ReportDays:  cfg.ReportDays,
	}, nil
}

// SeederConfig converts the seeder section into run settings.
func SeederConfig(cfg config.SeederConfig) (seeder.Config, error) {
	mode, err := history.ParseMode(cfg.Source)
	if err != nil {
		return seeder.Config{}, fmt.Errorf("seeder.source: %w", err)
	}

	out := seeder.DefaultConfig()
	out.Source = mode
	out.Regions = cfg.Regions
	out.Types = cfg.Types
	if cfg.RangeDays > 0 {
		out.RangeDays = cfg.RangeDays
	}
	if cfg.Concurrency > 0 {
		out.Concurrency = cfg.Concurrency
	}
	return out, nil
}

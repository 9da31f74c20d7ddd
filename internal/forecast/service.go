package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/metrics"
	"github.com/rickgao/prosper-api/internal/model"
)

// HistorySource supplies split-aware history. *resolver.Resolver satisfies it.
type HistorySource interface {
	History(ctx context.Context, regionID, typeID int, mode history.Mode, rng history.Range) (model.HistorySeries, error)
}

// Config tunes the forecast service.
type Config struct {
	Mode        history.Mode // history source used for model input
	HistoryDays int          // days of history fed to the model
	MaxRange    int          // largest forecast range a caller may request
	MinRows     int          // fewer history rows than this is ErrNotEnoughData
	ReportDays  int          // observed days kept in a trimmed report
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		Mode:        history.ModeEMD,
		HistoryDays: 700,
		MaxRange:    180,
		MinRows:     30,
		ReportDays:  365,
	}
}

// Service builds and caches forecast reports.
type Service struct {
	cfg     Config
	history HistorySource
	model   Model
	cache   Cache
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service. A nil cache disables caching.
func NewService(cfg Config, src HistorySource, m Model, cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		history: src,
		model:   m,
		cache:   cache,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the wall clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// MaxRange returns the largest accepted forecast range.
func (s *Service) MaxRange() int {
	return s.cfg.MaxRange
}

// Forecast returns the report for (regionID, typeID) trimmed to rangeDays of
// predictions.
func (s *Service) Forecast(ctx context.Context, regionID, typeID, rangeDays int) ([]model.ForecastRow, error) {
	if err := CheckRange(rangeDays, s.cfg.MaxRange); err != nil {
		return nil, err
	}

	today := model.TruncateDate(s.now())
	full, err := s.report(ctx, regionID, typeID, today)
	if err != nil {
		return nil, err
	}
	return TrimPrediction(full, rangeDays, s.cfg.ReportDays), nil
}

func (s *Service) report(ctx context.Context, regionID, typeID int, today time.Time) ([]model.ForecastRow, error) {
	if s.cache != nil {
		rows, ok, err := s.cache.Get(ctx, regionID, typeID, today)
		if err != nil {
			s.logger.Warn("forecast cache read failed",
				"region_id", regionID,
				"type_id", typeID,
				"error", err,
			)
		}
		metrics.RecordForecastCache(ok)
		if ok {
			s.logger.Debug("returning cached forecast", "region_id", regionID, "type_id", typeID)
			return rows, nil
		}
	}

	series, err := s.history.History(ctx, regionID, typeID, s.cfg.Mode, history.LastDays(today, s.cfg.HistoryDays))
	if err != nil {
		return nil, fmt.Errorf("fetch forecast history: %w", err)
	}
	if series.Len() < s.cfg.MinRows {
		return nil, fmt.Errorf("%w: %d rows, need %d", ErrNotEnoughData, series.Len(), s.cfg.MinRows)
	}

	start := time.Now()
	rows, err := s.model.Forecast(ctx, series, s.cfg.MaxRange)
	if err != nil {
		return nil, fmt.Errorf("build forecast: %w", err)
	}
	metrics.ObserveForecast(time.Since(start))

	if s.cache != nil {
		if err := s.cache.Put(ctx, regionID, typeID, today, rows); err != nil {
			s.logger.Warn("forecast cache write failed",
				"region_id", regionID,
				"type_id", typeID,
				"error", err,
			)
		}
	}
	return rows, nil
}

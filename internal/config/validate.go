package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/rickgao/prosper-api/internal/history"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be >= 0, got %v", c.Server.RateLimit)
	}
	if c.Server.RateBurst < 1 {
		return errors.New("server.rate_burst must be >= 1")
	}
	if _, err := history.ParseMode(c.Server.OHLCSource); err != nil {
		return fmt.Errorf("server.ohlc_source: %w", err)
	}

	if err := c.Sources.ESI.validate("sources.esi"); err != nil {
		return err
	}
	if err := c.Sources.EMD.validate("sources.emd"); err != nil {
		return err
	}
	if err := c.Sources.CREST.validate("sources.crest"); err != nil {
		return err
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Splits.Path == "" {
		return errors.New("splits.path is required")
	}
	if err := validateSchedule("splits.reload_schedule", c.Splits.ReloadSchedule); err != nil {
		return err
	}

	if err := c.Forecast.validate(); err != nil {
		return err
	}
	if err := c.Seeder.validate(); err != nil {
		return err
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if f := strings.ToLower(c.Logging.Format); f != "text" && f != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (api *APIConfig) validate(prefix string) error {
	if api.BaseURL == "" {
		return fmt.Errorf("%s.base_url is required", prefix)
	}
	if api.Timeout < 0 {
		return fmt.Errorf("%s.timeout must be >= 0", prefix)
	}
	if api.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", prefix)
	}
	if api.RateLimit < 0 {
		return fmt.Errorf("%s.rate_limit must be >= 0", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func (f *ForecastConfig) validate() error {
	if _, err := history.ParseMode(f.Source); err != nil {
		return fmt.Errorf("forecast.source: %w", err)
	}
	if f.MaxRange < 1 {
		return errors.New("forecast.max_range must be >= 1")
	}
	if f.DefaultRange < 1 || f.DefaultRange > f.MaxRange {
		return fmt.Errorf("forecast.default_range must be between 1 and %d, got %d", f.MaxRange, f.DefaultRange)
	}
	if f.HistoryDays < 2 {
		return errors.New("forecast.history_days must be >= 2")
	}
	if f.MinRows < 2 {
		return errors.New("forecast.min_rows must be >= 2")
	}
	if f.Interval <= 0 || f.Interval >= 1 {
		return fmt.Errorf("forecast.interval must be between 0 and 1, got %v", f.Interval)
	}
	if f.CacheSize < 1 {
		return errors.New("forecast.cache_size must be >= 1")
	}
	return nil
}

func (s *SeederConfig) validate() error {
	mode, err := history.ParseMode(s.Source)
	if err != nil {
		return fmt.Errorf("seeder.source: %w", err)
	}
	if mode == history.ModeCREST {
		return errors.New("seeder.source must be esi or emd")
	}
	if s.RangeDays < 1 {
		return errors.New("seeder.range_days must be >= 1")
	}
	if s.Concurrency < 1 {
		return errors.New("seeder.concurrency must be >= 1")
	}
	for i, r := range s.Regions {
		if r <= 0 {
			return fmt.Errorf("seeder.regions[%d] must be positive, got %d", i, r)
		}
	}
	for i, t := range s.Types {
		if t <= 0 {
			return fmt.Errorf("seeder.types[%d] must be positive, got %d", i, t)
		}
	}
	return validateSchedule("seeder.schedule", s.Schedule)
}

func validateSchedule(field, spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// ParseLevel parses a slog level name such as "debug" or "warn".
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, err
	}
	return lvl, nil
}

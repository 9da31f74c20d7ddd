package config

import "time"

// Config is the root configuration for the public API server and the
// split cache seeder.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sources  SourcesConfig  `yaml:"sources"`
	Database DBConfig       `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Splits   SplitsConfig   `yaml:"splits"`
	Forecast ForecastConfig `yaml:"forecast"`
	Seeder   SeederConfig   `yaml:"seeder"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimit       float64       `yaml:"rate_limit"` // requests/sec per client IP, 0 disables
	RateBurst       int           `yaml:"rate_burst"`
	AdminToken      string        `yaml:"admin_token"` // guards /admin routes; empty disables them
	OHLCSource      string        `yaml:"ohlc_source"` // history source when the request names none
}

// SourcesConfig holds the upstream market data endpoints.
type SourcesConfig struct {
	Contact string    `yaml:"contact"` // appended to the outbound User-Agent
	ESI     APIConfig `yaml:"esi"`
	EMD     APIConfig `yaml:"emd"`
	CREST   APIConfig `yaml:"crest"`
}

// APIConfig holds settings for one upstream REST API.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // requests/sec, 0 means unlimited
	RateBurst  int           `yaml:"rate_burst"`
	CharName   string        `yaml:"char_name"` // EMD only
}

// DBConfig holds a single PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the optional shared cache. An empty Addr disables redis
// and the in-process caches are used instead.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Enabled reports whether a redis server is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// SplitsConfig points at the split config file.
type SplitsConfig struct {
	Path           string `yaml:"path"`
	ReloadSchedule string `yaml:"reload_schedule"` // cron spec, empty disables scheduled reloads
}

// ForecastConfig tunes the forecast endpoint.
type ForecastConfig struct {
	Source       string        `yaml:"source"`
	HistoryDays  int           `yaml:"history_days"`
	DefaultRange int           `yaml:"default_range"`
	MaxRange     int           `yaml:"max_range"`
	MinRows      int           `yaml:"min_rows"`
	ReportDays   int           `yaml:"report_days"`
	Interval     float64       `yaml:"interval"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// SeederConfig holds split cache seeding settings.
type SeederConfig struct {
	Source      string `yaml:"source"`
	Regions     []int  `yaml:"regions"`
	Types       []int  `yaml:"types"`
	RangeDays   int    `yaml:"range_days"`
	Concurrency int    `yaml:"concurrency"`
	Schedule    string `yaml:"schedule"` // cron spec for the server's background seeding, empty disables
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

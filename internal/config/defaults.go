package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr             = ":8000"
	DefaultReadTimeout      = 15 * time.Second
	DefaultWriteTimeout     = 60 * time.Second
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultRateBurst        = 10
	DefaultOHLCSource       = "esi"
	DefaultESIURL           = "https://esi.evetech.net/latest"
	DefaultEMDURL           = "https://eve-marketdata.com"
	DefaultCRESTURL         = "https://crest-tq.eveonline.com"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultAPIRateLimit     = 20
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultRedisPrefix      = "prosper:"
	DefaultSplitsPath       = "split_info.json"
	DefaultForecastSource   = "emd"
	DefaultHistoryDays      = 700
	DefaultForecastRange    = 60
	DefaultMaxForecastRange = 180
	DefaultMinRows          = 30
	DefaultReportDays       = 365
	DefaultInterval         = 0.8
	DefaultCacheSize        = 1024
	DefaultCacheTTL         = 24 * time.Hour
	DefaultSeederSource     = "esi"
	DefaultSeederRange      = 700
	DefaultSeederWorkers    = 4
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

// DefaultRegions are the trade hub regions the seeder covers when none are configured.
var DefaultRegions = []int{10000002, 10000043, 10000030, 10000032, 10000042}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = DefaultRateBurst
	}
	if c.Server.OHLCSource == "" {
		c.Server.OHLCSource = DefaultOHLCSource
	}

	// Upstream defaults
	applyAPIDefaults(&c.Sources.ESI, DefaultESIURL)
	applyAPIDefaults(&c.Sources.EMD, DefaultEMDURL)
	applyAPIDefaults(&c.Sources.CREST, DefaultCRESTURL)

	// Database defaults
	applyDBDefaults(&c.Database)

	if c.Redis.Prefix == "" {
		c.Redis.Prefix = DefaultRedisPrefix
	}

	if c.Splits.Path == "" {
		c.Splits.Path = DefaultSplitsPath
	}

	// Forecast defaults
	if c.Forecast.Source == "" {
		c.Forecast.Source = DefaultForecastSource
	}
	if c.Forecast.HistoryDays == 0 {
		c.Forecast.HistoryDays = DefaultHistoryDays
	}
	if c.Forecast.DefaultRange == 0 {
		c.Forecast.DefaultRange = DefaultForecastRange
	}
	if c.Forecast.MaxRange == 0 {
		c.Forecast.MaxRange = DefaultMaxForecastRange
	}
	if c.Forecast.MinRows == 0 {
		c.Forecast.MinRows = DefaultMinRows
	}
	if c.Forecast.ReportDays == 0 {
		c.Forecast.ReportDays = DefaultReportDays
	}
	if c.Forecast.Interval == 0 {
		c.Forecast.Interval = DefaultInterval
	}
	if c.Forecast.CacheSize == 0 {
		c.Forecast.CacheSize = DefaultCacheSize
	}
	if c.Forecast.CacheTTL == 0 {
		c.Forecast.CacheTTL = DefaultCacheTTL
	}

	// Seeder defaults
	if c.Seeder.Source == "" {
		c.Seeder.Source = DefaultSeederSource
	}
	if len(c.Seeder.Regions) == 0 {
		c.Seeder.Regions = append([]int(nil), DefaultRegions...)
	}
	if c.Seeder.RangeDays == 0 {
		c.Seeder.RangeDays = DefaultSeederRange
	}
	if c.Seeder.Concurrency == 0 {
		c.Seeder.Concurrency = DefaultSeederWorkers
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyAPIDefaults(api *APIConfig, baseURL string) {
	if api.BaseURL == "" {
		api.BaseURL = baseURL
	}
	if api.Timeout == 0 {
		api.Timeout = DefaultAPITimeout
	}
	if api.MaxRetries == 0 {
		api.MaxRetries = DefaultMaxRetries
	}
	if api.RateLimit == 0 {
		api.RateLimit = DefaultAPIRateLimit
	}
	if api.RateBurst == 0 {
		api.RateBurst = int(api.RateLimit)
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rickgao/prosper-api/internal/apikey"
	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/metrics"
	"github.com/rickgao/prosper-api/internal/model"
	"github.com/rickgao/prosper-api/internal/split"
)

// HistoryService returns split-aware history. *resolver.Resolver satisfies it.
type HistoryService interface {
	History(ctx context.Context, regionID, typeID int, mode history.Mode, rng history.Range) (model.HistorySeries, error)
}

// IDValidator confirms ids with upstream. *api.Validator satisfies it.
type IDValidator interface {
	ValidateRegion(ctx context.Context, regionID int) error
	ValidateType(ctx context.Context, typeID int) error
}

// Forecaster builds forecast reports. *forecast.Service satisfies it.
type Forecaster interface {
	Forecast(ctx context.Context, regionID, typeID, rangeDays int) ([]model.ForecastRow, error)
}

// KeyChecker validates api keys. *apikey.Store satisfies it.
type KeyChecker interface {
	Check(ctx context.Context, key string) (*apikey.Key, error)
}

// SplitAdmin exposes the live split registry. *split.Holder satisfies it.
type SplitAdmin interface {
	Current() *split.Registry
	Reload() (*split.Registry, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the services behind the handlers.
type Deps struct {
	History   HistoryService
	Validator IDValidator
	Forecasts Forecaster
	Keys      KeyChecker
	Splits    SplitAdmin
	Checks    map[string]HealthCheck
}

// Options tune request handling.
type Options struct {
	OHLCSource   history.Mode // default history source for OHLC requests
	DefaultRange int          // forecast range when the request has none
	RateLimit    float64      // requests/sec per client IP, 0 disables
	RateBurst    int
	AdminToken   string // empty disables /admin routes
}

// Server routes requests to handlers.
type Server struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
	router *mux.Router
}

// NewServer creates a Server and registers its routes.
func NewServer(deps Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultRange <= 0 {
		opts.DefaultRange = 60
	}

	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))
	r.Use(metrics.InstrumentHandler)
	if s.opts.RateLimit > 0 {
		r.Use(NewIPRateLimiter(s.opts.RateLimit, s.opts.RateBurst, 0, s.logger).Handler)
	}

	r.HandleFunc("/CREST/OHLC.{format}", s.handleOHLC).Methods(http.MethodGet)
	r.HandleFunc("/CREST/prophet.{format}", s.handleProphet).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	if s.opts.AdminToken != "" && s.deps.Splits != nil {
		admin := r.PathPrefix("/admin").Subrouter()
		admin.Use(adminTokenMiddleware(s.opts.AdminToken))
		admin.HandleFunc("/splits/reload", s.handleReloadSplits).Methods(http.MethodPost)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

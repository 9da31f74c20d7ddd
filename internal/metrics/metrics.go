package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "prosper"

// Resolution outcomes.
const (
	OutcomePassthrough = "passthrough"
	OutcomeEscaped     = "escaped"
	OutcomeStitched    = "stitched"
	OutcomeError       = "error"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"method", "route"},
	)

	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "split",
			Name:      "resolutions_total",
			Help:      "History requests by split resolution outcome.",
		},
		[]string{"mode", "outcome"},
	)

	upstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Failed history fetches by source.",
		},
		[]string{"source"},
	)

	forecastCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "cache_lookups_total",
			Help:      "Forecast cache lookups by result.",
		},
		[]string{"result"},
	)

	forecastDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "build_duration_seconds",
			Help:      "Duration of forecast model runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	seederRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "seeder",
			Name:      "rows_written_total",
			Help:      "Rows written to the split cache by the seeder.",
		},
		[]string{"source"},
	)

	seederFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "seeder",
			Name:      "failures_total",
			Help:      "Seeder (region, type) pairs that failed.",
		},
		[]string{"source"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		resolutions,
		upstreamErrors,
		forecastCache,
		forecastDuration,
		seederRows,
		seederFailures,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler is mux middleware recording request counts and latency,
// labelled by route template so path parameters do not explode cardinality.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordResolution counts one history resolution.
func RecordResolution(mode, outcome string) {
	resolutions.WithLabelValues(mode, outcome).Inc()
}

// RecordUpstreamError counts one failed upstream fetch.
func RecordUpstreamError(source string) {
	upstreamErrors.WithLabelValues(source).Inc()
}

// UpstreamErrors returns the failed upstream fetches counted for source.
func UpstreamErrors(source string) float64 {
	var m dto.Metric
	if err := upstreamErrors.WithLabelValues(source).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// RecordForecastCache counts a forecast cache lookup.
func RecordForecastCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	forecastCache.WithLabelValues(result).Inc()
}

// ObserveForecast records how long a model run took.
func ObserveForecast(d time.Duration) {
	forecastDuration.Observe(d.Seconds())
}

// RecordSeederWrite counts rows the seeder wrote for one pair.
func RecordSeederWrite(source string, rows int) {
	seederRows.WithLabelValues(source).Add(float64(rows))
}

// RecordSeederFailure counts a pair the seeder could not write.
func RecordSeederFailure(source string) {
	seederFailures.WithLabelValues(source).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func routeLabel(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tmpl
}

package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pitabwire/gridcore/internal/datasource"
	"github.com/pitabwire/gridcore/internal/export"
	"github.com/pitabwire/gridcore/internal/fetch"
	"github.com/pitabwire/gridcore/internal/prefstore"
	"github.com/pitabwire/gridcore/internal/selection"
	"github.com/pitabwire/gridcore/model"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	fetchDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets      = []float64{100, 1024, 10240, 102400, 1048576}
	exportRowBuckets     = []float64{10, 100, 1000, 10000, 50000, 100000}
)

// Metrics holds all Prometheus metric instruments for gridd and the grid
// engine. It satisfies the observer interfaces of the fetch, export,
// selection and prefstore packages.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Fetch metrics
	FetchesTotal    *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	FetchesInFlight *prometheus.GaugeVec

	// Export and bulk action metrics
	ExportsTotal     *prometheus.CounterVec
	ExportRows       *prometheus.HistogramVec
	BulkActionsTotal *prometheus.CounterVec

	// Backend metrics
	PreferenceOpsTotal  *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec

	// System metrics
	DefinitionLoadTotal *prometheus.CounterVec
	GridsLoaded         prometheus.Gauge
}

var (
	_ fetch.Observer       = (*Metrics)(nil)
	_ export.Observer      = (*Metrics)(nil)
	_ selection.Observer   = (*Metrics)(nil)
	_ prefstore.OpObserver = (*Metrics)(nil)
)

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcore_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridcore_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridcore_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridcore_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Fetches
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcore_fetches_total",
			Help: "Total number of grid fetches by outcome.",
		}, []string{"grid", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridcore_fetch_duration_seconds",
			Help:    "Grid fetch duration in seconds.",
			Buckets: fetchDurationBuckets,
		}, []string{"grid"}),
		FetchesInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridcore_fetches_in_flight",
			Help: "Number of grid fetches currently running.",
		}, []string{"grid"}),

		// Exports and bulk actions
		ExportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcore_exports_total",
			Help: "Total number of exports.",
		}, []string{"format", "status"}),
		ExportRows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridcore_export_rows",
			Help:    "Number of rows written per successful export.",
			Buckets: exportRowBuckets,
		}, []string{"format"}),
		BulkActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcore_bulk_actions_total",
			Help: "Total number of bulk action runs.",
		}, []string{"action", "status"}),

		// Backend
		PreferenceOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcore_preference_ops_total",
			Help: "Total number of preference store operations.",
		}, []string{"op", "status"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridcore_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"source"}),

		// System
		DefinitionLoadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridcore_definition_load_total",
			Help: "Total definition loads.",
		}, []string{"status"}),
		GridsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridcore_grids_loaded",
			Help: "Number of loaded grid definitions.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Fetches
		m.FetchesTotal,
		m.FetchDuration,
		m.FetchesInFlight,
		// Exports and bulk actions
		m.ExportsTotal,
		m.ExportRows,
		m.BulkActionsTotal,
		// Backend
		m.PreferenceOpsTotal,
		m.CircuitBreakerState,
		// System
		m.DefinitionLoadTotal,
		m.GridsLoaded,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// FetchStarted marks a fetch of grid as in flight.
func (m *Metrics) FetchStarted(grid string) {
	m.FetchesInFlight.WithLabelValues(grid).Inc()
}

// FetchFinished records how a fetch of grid ended. Only applied fetches
// contribute to the duration histogram.
func (m *Metrics) FetchFinished(grid string, outcome fetch.Outcome, duration time.Duration) {
	m.FetchesInFlight.WithLabelValues(grid).Dec()
	m.FetchesTotal.WithLabelValues(grid, string(outcome)).Inc()
	if outcome == fetch.OutcomeSuccess || outcome == fetch.OutcomeError {
		m.FetchDuration.WithLabelValues(grid).Observe(duration.Seconds())
	}
}

// ExportFinished records an export outcome.
func (m *Metrics) ExportFinished(format model.ExportFormat, status string, rows int) {
	m.ExportsTotal.WithLabelValues(string(format), status).Inc()
	if status == "success" {
		m.ExportRows.WithLabelValues(string(format)).Observe(float64(rows))
	}
}

// BulkActionFinished records a bulk action outcome.
func (m *Metrics) BulkActionFinished(actionID, status string) {
	m.BulkActionsTotal.WithLabelValues(actionID, status).Inc()
}

// PreferenceOp records a preference store operation.
func (m *Metrics) PreferenceOp(op, status string) {
	m.PreferenceOpsTotal.WithLabelValues(op, status).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state for a source.
func (m *Metrics) SetCircuitBreakerState(source string, state datasource.BreakerState) {
	var v float64
	switch state {
	case datasource.BreakerHalfOpen:
		v = 1
	case datasource.BreakerOpen:
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(source).Set(v)
}

// WatchBreaker reports every state change of b under source, starting with
// its current state.
func (m *Metrics) WatchBreaker(source string, b *datasource.Breaker) {
	m.SetCircuitBreakerState(source, b.State())
	b.OnStateChange(func(s datasource.BreakerState) {
		m.SetCircuitBreakerState(source, s)
	})
}

// RecordDefinitionLoad records a definition load.
func (m *Metrics) RecordDefinitionLoad(status string) {
	m.DefinitionLoadTotal.WithLabelValues(status).Inc()
}

// SetGridsLoaded sets the number of loaded grid definitions.
func (m *Metrics) SetGridsLoaded(count int) {
	m.GridsLoaded.Set(float64(count))
}

// --- HTTP Middleware ---

// MetricsMiddleware records request metrics labelled by chi's route pattern
// rather than the raw path.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newResponseRecorder(w)
		next.ServeHTTP(rec, r)

		reqSize := max(int(r.ContentLength), 0)
		m.RecordHTTPRequest(r.Method, routePattern(r), rec.status, time.Since(start), reqSize, rec.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler serving the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern returns the matched chi route, or the raw path when the
// request was not routed.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/internal/config"
	"github.com/pitabwire/gridcore/internal/datasource"
	"github.com/pitabwire/gridcore/internal/definition"
	"github.com/pitabwire/gridcore/internal/export"
	"github.com/pitabwire/gridcore/internal/fetch"
	"github.com/pitabwire/gridcore/internal/observability"
	"github.com/pitabwire/gridcore/internal/prefstore"
)

// SourceFunc returns the row source serving a grid.
type SourceFunc func(gridID string) (fetch.Fetcher[datasource.Row], bool)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Registry    *definition.Registry
	Sources     SourceFunc
	Preferences prefstore.Store
	Exports     *export.Registry

	// Optional.
	Metrics   *observability.Metrics
	Gatherer  prometheus.Gatherer
	Readiness observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations.
func NewRouter(deps Dependencies) chi.Router {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Exports == nil {
		deps.Exports = export.NewRegistry()
	}
	if deps.Readiness.DefinitionsLoaded == nil {
		deps.Readiness.DefinitionsLoaded = func() bool { return len(deps.Registry.AllGrids()) > 0 }
	}

	r := chi.NewRouter()

	r.Use(Recovery(deps.Logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(SecurityHeaders)
	r.Use(observability.TracingMiddleware)
	r.Use(RequestID)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))
	if m := deps.Config.Observability.Metrics; m.Enabled {
		path := m.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, metricsHandler(deps.Gatherer))
	}

	r.Route("/api/grids", func(r chi.Router) {
		r.Use(RequestLogging(deps.Logger))

		r.With(HandlerTimeout(deps.Config.Server.HandlerTimeout)).
			Get("/", handleListGrids(deps.Registry))

		r.Route("/{gridId}", func(r chi.Router) {
			r.Use(ResolveGrid(deps.Registry))

			r.Group(func(r chi.Router) {
				r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
				r.Get("/", handleGetGrid(deps.Config.Grid, deps.Exports))
				r.Post("/search", handleSearch(deps))
				r.Get("/preferences/{key}", handleGetPreferences(deps.Preferences, deps.Logger))
				r.Put("/preferences/{key}", handlePutPreferences(deps.Config.Grid, deps.Preferences, deps.Logger))
			})

			r.With(HandlerTimeout(deps.Config.Export.Timeout)).
				Get("/export", handleExport(deps))
		})
	})

	return r
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return observability.Handler()
	}
	return observability.HandlerFor(g)
}

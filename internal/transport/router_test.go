package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/gridcore/internal/definition"
	"github.com/pitabwire/gridcore/internal/observability"
	"github.com/pitabwire/gridcore/model"
)

func TestNewRouter_healthEndpoints(t *testing.T) {
	empty := testDeps()
	empty.Registry = definition.NewRegistry(nil)

	tests := []struct {
		name     string
		deps     Dependencies
		path     string
		wantCode int
		wantBody string
	}{
		{"health", testDeps(), "/health", http.StatusOK, "ok"},
		{"ready", testDeps(), "/ready", http.StatusOK, "ready"},
		{"ready without definitions", empty, "/ready", http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewRouter(tt.deps).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)

			var body struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body.Status)
		})
	}
}

func TestNewRouter_metricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	deps := testDeps()
	deps.Metrics = observability.InitMetrics(reg)
	deps.Gatherer = reg
	r := NewRouter(deps)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/grids/orders.list", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// Requests are labelled by route, never by the concrete grid id.
	body := w.Body.String()
	assert.Contains(t, body, `path_pattern="/api/grids/{gridId}"`)
	assert.NotContains(t, body, `path_pattern="/api/grids/orders.list"`)
}

func TestNewRouter_metricsDisabled(t *testing.T) {
	deps := testDeps()
	deps.Config.Observability.Metrics.Enabled = false

	w := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_routes(t *testing.T) {
	r := NewRouter(testDeps())

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/grids"},
		{http.MethodGet, "/api/grids/orders.list"},
		{http.MethodPost, "/api/grids/orders.list/search"},
		{http.MethodGet, "/api/grids/orders.list/export"},
		{http.MethodGet, "/api/grids/orders.list/preferences/user-1"},
		{http.MethodPut, "/api/grids/orders.list/preferences/user-1"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.NotEqual(t, http.StatusMethodNotAllowed, w.Code)
			assert.NotEqual(t, "404 page not found\n", w.Body.String(), "route not registered")
		})
	}
}

func TestNewRouter_unknownGrid(t *testing.T) {
	r := NewRouter(testDeps())

	for _, path := range []string{"/api/grids/missing", "/api/grids/missing/export", "/api/grids/missing/preferences/u"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			require.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, model.ErrNotFound, decodeError(t, w).Code)
		})
	}
}

func TestNewRouter_middlewareChain(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/grids", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set(headerCorrelationID, "corr-42")
	NewRouter(testDeps()).ServeHTTP(w, req)

	for header, want := range map[string]string{
		headerCorrelationID:           "corr-42",
		"Access-Control-Allow-Origin": "https://app.example.com",
		"X-Content-Type-Options":      "nosniff",
	} {
		assert.Equal(t, want, w.Header().Get(header), header)
	}
}

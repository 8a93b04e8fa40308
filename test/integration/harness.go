// Package integration provides a reusable test harness for end-to-end
// integration testing of the gridd server. It starts a full HTTP server
// whose grids are backed by a mock remote search service, with grid
// preferences held in an in-process Redis.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/gridcore/internal/config"
	"github.com/pitabwire/gridcore/internal/datasource"
	"github.com/pitabwire/gridcore/internal/definition"
	"github.com/pitabwire/gridcore/internal/export"
	"github.com/pitabwire/gridcore/internal/fetch"
	"github.com/pitabwire/gridcore/internal/observability"
	"github.com/pitabwire/gridcore/internal/prefstore"
	"github.com/pitabwire/gridcore/internal/transport"
	"github.com/pitabwire/gridcore/model"
)

// TestHarness encapsulates a fully wired gridd instance with a mock search
// backend for integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	// Internal components exposed for advanced test scenarios.
	Registry    *definition.Registry
	Sources     map[string]*datasource.HTTPSource[datasource.Row]
	Preferences *prefstore.RedisStore
	Redis       *miniredis.Miniredis
	Metrics     *observability.Metrics
	Gatherer    *prometheus.Registry

	backend *MockBackend
	cfg     *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	definitionDirs []string
	breaker        config.CircuitBreakerConfig
	backendTimeout time.Duration
	handlerTimeout time.Duration
	exportMaxRows  int
	preferenceTTL  time.Duration
}

// WithDefinitions sets the definition directories to load.
func WithDefinitions(dirs ...string) HarnessOption {
	return func(c *harnessConfig) {
		c.definitionDirs = dirs
	}
}

// WithCircuitBreaker sets the breaker thresholds of every grid source.
func WithCircuitBreaker(cb config.CircuitBreakerConfig) HarnessOption {
	return func(c *harnessConfig) {
		c.breaker = cb
	}
}

// WithBackendTimeout sets the HTTP client timeout used to reach the backend.
func WithBackendTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.backendTimeout = d
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithExportMaxRows sets the server-wide export row cap.
func WithExportMaxRows(n int) HarnessOption {
	return func(c *harnessConfig) {
		c.exportMaxRows = n
	}
}

// WithPreferenceTTL sets the expiry of stored preferences.
func WithPreferenceTTL(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.preferenceTTL = d
	}
}

// NewTestHarness creates and starts a full gridd test instance. The server
// is automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		breaker: config.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		},
		backendTimeout: 5 * time.Second,
		handlerTimeout: 10 * time.Second,
		exportMaxRows:  1000,
	}
	for _, opt := range opts {
		opt(hc)
	}
	if len(hc.definitionDirs) == 0 {
		hc.definitionDirs = []string{filepath.Join(testdataDir(), "definitions")}
	}

	h := &TestHarness{
		t:       t,
		Sources: make(map[string]*datasource.HTTPSource[datasource.Row]),
	}

	// Step 1: Load and validate definitions.
	defs, err := definition.NewLoader().LoadAll(hc.definitionDirs)
	require.NoError(t, err, "load definitions")
	require.Empty(t, definition.NewValidator().Validate(defs), "invalid definitions")
	h.Registry = definition.NewRegistry(defs)

	// Step 2: Start the mock backend with fixture rows.
	h.backend = newMockBackend(t, h.Registry.AllGrids())
	h.backend.SetRows("orders.list", OrderRows())
	h.backend.SetRows("orders.archive", OrderRows())

	// Step 3: Metrics on a private registry.
	h.Gatherer = prometheus.NewRegistry()
	h.Metrics = observability.InitMetrics(h.Gatherer)

	// Step 4: One HTTP source per grid, each with its own breaker.
	client := &http.Client{Timeout: hc.backendTimeout}
	breakers := make(map[string]*datasource.Breaker)
	for _, g := range h.Registry.AllGrids() {
		b := datasource.NewBreaker(datasource.BreakerConfig{
			FailureThreshold: hc.breaker.FailureThreshold,
			SuccessThreshold: hc.breaker.SuccessThreshold,
			Cooldown:         hc.breaker.Timeout,
			ErrorRate:        hc.breaker.ErrorRateThreshold,
			RateWindow:       hc.breaker.ErrorRateWindow,
		})
		h.Metrics.WatchBreaker(g.ID, b)
		breakers[g.ID] = b
		h.Sources[g.ID] = datasource.NewHTTPSource[datasource.Row](h.backend.SearchURL(g.ID), datasource.HTTPOptions{
			Client:  client,
			Breaker: b,
		})
	}

	// Step 5: Preferences in an in-process Redis.
	h.Redis = miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: h.Redis.Addr()})
	t.Cleanup(func() { rc.Close() })
	h.Preferences = prefstore.NewRedisStore(rc, hc.preferenceTTL)

	// Step 6: Build config.
	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Export.MaxRows = hc.exportMaxRows
	h.cfg.Export.IncludeTimestamp = false

	// Step 7: Build router with full middleware chain.
	router := transport.NewRouter(transport.Dependencies{
		Config:      h.cfg,
		Registry:    h.Registry,
		Sources:     h.source,
		Preferences: prefstore.NewInstrumented(h.Preferences, h.Metrics),
		Exports:     export.NewRegistry(),
		Metrics:     h.Metrics,
		Gatherer:    h.Gatherer,
		Readiness: observability.ReadinessChecks{
			PreferenceStore: observability.HealthCheckFunc(func(ctx context.Context) error {
				return rc.Ping(ctx).Err()
			}),
			Breakers: breakers,
		},
	})

	// Step 8: Start test server.
	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
	})

	return h
}

func (h *TestHarness) source(gridID string) (fetch.Fetcher[datasource.Row], bool) {
	src, ok := h.Sources[gridID]
	if !ok {
		return nil, false
	}
	return src, true
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// Backend returns the mock search backend.
func (h *TestHarness) Backend() *MockBackend {
	return h.backend
}

// --- HTTP client helpers ---

// GET performs a GET request.
func (h *TestHarness) GET(path string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodGet, path, nil, nil)
}

// GETWithHeaders performs a GET request with additional headers.
func (h *TestHarness) GETWithHeaders(path string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodGet, path, nil, headers)
}

// POST performs a POST request with a JSON body.
func (h *TestHarness) POST(path string, body any) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPost, path, body, nil)
}

// PUT performs a PUT request with a JSON body.
func (h *TestHarness) PUT(path string, body any) *http.Response {
	h.t.Helper()
	return h.doRequest(http.MethodPut, path, body, nil)
}

func (h *TestHarness) doRequest(method, path string, body any, headers map[string]string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err, "marshal request body")
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	require.NoError(h.t, err, "create request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	require.NoError(h.t, err, "%s %s", method, path)
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err, "read response body")
	require.NoError(h.t, json.Unmarshal(data, target), "body: %s", data)
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err, "read response body")
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, expected, resp.StatusCode, "body: %s", body)
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.Equal(t, expected, resp.StatusCode, "body: %s", body)
	}
	h.ParseJSON(resp, target)
}

// AssertErrorCode checks the status and the code of an error envelope.
func (h *TestHarness) AssertErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	var body struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	h.AssertJSON(t, resp, status, &body)
	assert.Equal(t, code, body.Error.Code, "message %q", body.Error.Message)
}

// --- Helpers ---

// testdataDir returns the absolute path to the testdata directory.
func testdataDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata")
}

// OrderFixture returns one order row as the search backend returns it.
func OrderFixture(id, reference, customer, status string, total float64, paid bool) datasource.Row {
	return datasource.Row{
		"id":        id,
		"reference": reference,
		"customer":  customer,
		"status":    status,
		"total":     total,
		"paid":      paid,
	}
}

// OrderRows returns the default order fixtures.
func OrderRows() []datasource.Row {
	return []datasource.Row{
		OrderFixture("1", "R-1", "Acme", "pending", 120.5, false),
		OrderFixture("2", "R-2", "Globex", "shipped", 80, true),
		OrderFixture("3", "R-3", "Initech", "delivered", 42, true),
		OrderFixture("4", "R-4", "Acme Labs", "pending", 300, false),
		OrderFixture("5", "R-5", "Umbrella", "shipped", 15.25, true),
	}
}

// PagedFixture returns a paged search response holding rows.
func PagedFixture(rows []datasource.Row, page, pageSize, total int) model.PagedResult[datasource.Row] {
	return model.NewPagedResult(rows, page, pageSize, total)
}

// ErrorFixture returns an error body as the search backend returns it.
func ErrorFixture(code, message string) map[string]any {
	return map[string]any{
		"code":    code,
		"message": message,
	}
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pitabwire/gridcore/internal/datasource"
)

// Build-time variables injected via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// Check and overall readiness statuses.
const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusReady    = "ready"
	StatusDegraded = "degraded"
	StatusNotReady = "not_ready"
)

// HealthResponse is the JSON response for the liveness endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// ReadinessResponse is the JSON response for the readiness endpoint.
type ReadinessResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	// Sources maps each grid to the state of its circuit breaker.
	Sources map[string]string `json:"sources,omitempty"`
}

// CheckResult is the result of a single readiness check.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthChecker can verify its own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// ReadinessChecks holds the dependency checkers for the readiness endpoint.
// DefinitionsLoaded always runs; the others only when set.
type ReadinessChecks struct {
	DefinitionsLoaded func() bool
	Database          HealthChecker
	PreferenceStore   HealthChecker
	// Breakers are reported per grid. An open breaker degrades readiness
	// without failing it: the other grids keep serving.
	Breakers map[string]*datasource.Breaker
}

const checkTimeout = 2 * time.Second

// HandleHealth returns an HTTP handler for the liveness endpoint.
func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeHealthJSON(w, http.StatusOK, HealthResponse{
			Status:  StatusOK,
			Version: Version,
			Commit:  Commit,
		})
	}
}

// HandleReady returns an HTTP handler for the readiness endpoint. Checks
// run concurrently, each bounded by its own timeout.
func HandleReady(checks ReadinessChecks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		named := map[string]HealthChecker{
			"definitions": definitionsCheck(checks.DefinitionsLoaded),
		}
		if checks.Database != nil {
			named["database"] = checks.Database
		}
		if checks.PreferenceStore != nil {
			named["preference_store"] = checks.PreferenceStore
		}

		resp := ReadinessResponse{
			Status: StatusReady,
			Checks: runChecks(r.Context(), named),
		}
		code := http.StatusOK
		for _, res := range resp.Checks {
			if res.Status != StatusOK {
				resp.Status = StatusNotReady
				code = http.StatusServiceUnavailable
				break
			}
		}

		if len(checks.Breakers) > 0 {
			resp.Sources = make(map[string]string, len(checks.Breakers))
			for grid, b := range checks.Breakers {
				resp.Sources[grid] = b.State().String()
				if b.State() == datasource.BreakerOpen && resp.Status == StatusReady {
					resp.Status = StatusDegraded
				}
			}
		}

		writeHealthJSON(w, code, resp)
	}
}

type errNoDefinitions struct{}

func (errNoDefinitions) Error() string { return "no grid definitions loaded" }

func definitionsCheck(loaded func() bool) HealthChecker {
	return HealthCheckFunc(func(context.Context) error {
		if loaded == nil || !loaded() {
			return errNoDefinitions{}
		}
		return nil
	})
}

func runChecks(ctx context.Context, named map[string]HealthChecker) map[string]CheckResult {
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CheckResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, named[name])
		}()
	}
	wg.Wait()

	out := make(map[string]CheckResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

// runCheck executes a health check with a per-check timeout.
func runCheck(parent context.Context, checker HealthChecker) CheckResult {
	ctx, cancel := context.WithTimeout(parent, checkTimeout)
	defer cancel()

	start := time.Now()
	err := checker.HealthCheck(ctx)
	res := CheckResult{Status: StatusOK, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
	}
	return res
}

func writeHealthJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

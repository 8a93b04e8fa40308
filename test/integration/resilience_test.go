package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/gridcore/internal/config"
	"github.com/pitabwire/gridcore/internal/datasource"
	"github.com/pitabwire/gridcore/model"
)

const searchPath = "/api/grids/orders.list/search"

// ==========================================================================
// Circuit Breaker Tests
// ==========================================================================

func TestResilience_CircuitBreakerTripsOnConsecutiveFailures(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		}),
	)

	h.Backend().OnGrid("orders.list").
		RespondWith(http.StatusInternalServerError, ErrorFixture("INTERNAL", "internal error"))

	for range 3 {
		h.AssertErrorCode(t, h.POST(searchPath, map[string]any{}), http.StatusBadGateway, model.ErrBackendUnavailable)
	}
	require.Equal(t, datasource.BreakerOpen, h.Sources["orders.list"].Breaker().State())

	callsBefore := h.Backend().CallCount("orders.list")

	// Next request fails fast without reaching the backend.
	h.AssertErrorCode(t, h.POST(searchPath, map[string]any{}), http.StatusBadGateway, model.ErrBackendUnavailable)

	assert.Equal(t, callsBefore, h.Backend().CallCount("orders.list"), "backend called after circuit opened")

	body := string(h.ReadBody(h.GET("/metrics")))
	assert.Contains(t, body, `gridcore_circuit_breaker_state{source="orders.list"} 2`)
}

func TestResilience_CircuitBreakerRecoveryAfterTimeout(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 2,
			SuccessThreshold: 1,
			Timeout:          500 * time.Millisecond,
		}),
	)

	h.Backend().OnGrid("orders.list").
		RespondWith(http.StatusInternalServerError, ErrorFixture("INTERNAL", "fail"))
	for range 2 {
		h.AssertStatus(t, h.POST(searchPath, map[string]any{}), http.StatusBadGateway)
	}

	// Wait for the cooldown to expire so the breaker lets a trial fetch through.
	time.Sleep(700 * time.Millisecond)
	h.Backend().ResetGrid("orders.list")

	var res searchResult
	h.AssertJSON(t, h.POST(searchPath, map[string]any{}), http.StatusOK, &res)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, datasource.BreakerClosed, h.Sources["orders.list"].Breaker().State())
}

func TestResilience_BreakerIsPerGrid(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 1,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		}),
	)

	h.Backend().OnGrid("orders.list").
		RespondWith(http.StatusServiceUnavailable, ErrorFixture("DOWN", "down"))
	h.AssertStatus(t, h.POST(searchPath, map[string]any{}), http.StatusBadGateway)

	h.AssertStatus(t, h.POST("/api/grids/orders.archive/search", map[string]any{}), http.StatusOK)
}

func TestResilience_OpenBreakerDegradesReadiness(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 1,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		}),
	)

	h.Backend().OnGrid("orders.list").
		RespondWith(http.StatusInternalServerError, ErrorFixture("INTERNAL", "down"))
	h.AssertStatus(t, h.POST(searchPath, map[string]any{}), http.StatusBadGateway)

	var ready struct {
		Status  string            `json:"status"`
		Sources map[string]string `json:"sources"`
	}
	h.AssertJSON(t, h.GET("/ready"), http.StatusOK, &ready)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, map[string]string{"orders.list": "open", "orders.archive": "closed"}, ready.Sources)
}

func TestResilience_ClientErrorsDoNotTripBreaker(t *testing.T) {
	h := NewTestHarness(t,
		WithCircuitBreaker(config.CircuitBreakerConfig{
			FailureThreshold: 2,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		}),
	)

	h.Backend().OnGrid("orders.list").
		RespondWithError(http.StatusBadRequest, "BAD_FILTER", "bad filter")
	for range 4 {
		h.AssertErrorCode(t, h.POST(searchPath, map[string]any{}), http.StatusBadRequest, model.ErrBadRequest)
	}

	assert.Equal(t, datasource.BreakerClosed, h.Sources["orders.list"].Breaker().State())
	h.Backend().AssertCalled(t, "orders.list", 4)
}

// ==========================================================================
// Timeout and Transport Failure Tests
// ==========================================================================

func TestResilience_BackendTimeout(t *testing.T) {
	h := NewTestHarness(t, WithBackendTimeout(200*time.Millisecond))

	h.Backend().OnGrid("orders.list").
		RespondWithDelay(2*time.Second, http.StatusOK, PagedFixture(OrderRows(), 1, 2, 5))

	start := time.Now()
	h.AssertErrorCode(t, h.POST(searchPath, map[string]any{}), http.StatusGatewayTimeout, model.ErrBackendTimeout)
	assert.Less(t, time.Since(start), 1500*time.Millisecond, "client timeout should cut the request short")
}

func TestResilience_HandlerTimeout(t *testing.T) {
	h := NewTestHarness(t, WithHandlerTimeout(200*time.Millisecond))

	h.Backend().OnGrid("orders.list").
		RespondWithDelay(2*time.Second, http.StatusOK, PagedFixture(OrderRows(), 1, 2, 5))

	h.AssertErrorCode(t, h.POST(searchPath, map[string]any{}), http.StatusGatewayTimeout, model.ErrBackendTimeout)
}

func TestResilience_ConnectionError(t *testing.T) {
	h := NewTestHarness(t)

	h.Backend().OnGrid("orders.list").RespondWithConnectionError()

	h.AssertErrorCode(t, h.POST(searchPath, map[string]any{}), http.StatusBadGateway, model.ErrBackendUnavailable)
}

func TestResilience_MalformedResponse(t *testing.T) {
	h := NewTestHarness(t)

	h.Backend().OnGrid("orders.list").RespondWith(http.StatusOK, "not a paged result")

	h.AssertErrorCode(t, h.POST(searchPath, map[string]any{}), http.StatusInternalServerError, model.ErrInternalError)
}

func TestResilience_RecoversAfterTransientFailure(t *testing.T) {
	h := NewTestHarness(t)

	h.Backend().OnGrid("orders.list").
		RespondWith(http.StatusBadGateway, ErrorFixture("UPSTREAM", "flaky")).
		RespondWith(http.StatusOK, PagedFixture(OrderRows()[:2], 1, 2, 5))

	h.AssertStatus(t, h.POST(searchPath, map[string]any{}), http.StatusBadGateway)

	var res searchResult
	h.AssertJSON(t, h.POST(searchPath, map[string]any{}), http.StatusOK, &res)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, 5, res.Total)
}

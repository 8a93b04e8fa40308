package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/gridcore/internal/datasource"
	"github.com/pitabwire/gridcore/model"
)

// MockBackend is a configurable HTTP test server that simulates a remote
// search service. Each grid is served at POST /grids/{gridId}/search. By
// default a grid answers from its fixture rows; configured responses
// override that. All received requests are recorded for later assertion.
type MockBackend struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.RWMutex
	sources    map[string]*datasource.MemorySource[datasource.Row]
	grids      map[string]*gridConfig
	receivedBy map[string][]*RecordedRequest
}

// RecordedRequest captures the details of a request received by the mock backend.
type RecordedRequest struct {
	Method     string
	Path       string
	Headers    http.Header
	Search     model.SearchRequest
	RawBody    []byte
	ReceivedAt time.Time
}

// gridConfig holds the configured responses for a single grid.
type gridConfig struct {
	mu        sync.Mutex
	responses []*mockResponse
	current   int
}

type mockResponse struct {
	status     int
	body       any
	delay      time.Duration
	connError  bool
	headerFunc func(http.Header)
}

// GridMock is a builder for configuring mock responses for a specific grid.
type GridMock struct {
	backend *MockBackend
	gridID  string
}

// newMockBackend creates a new mock backend serving grids and starts the
// HTTP test server.
func newMockBackend(t *testing.T, grids []model.GridDefinition) *MockBackend {
	t.Helper()

	mb := &MockBackend{
		t:          t,
		sources:    make(map[string]*datasource.MemorySource[datasource.Row]),
		grids:      make(map[string]*gridConfig),
		receivedBy: make(map[string][]*RecordedRequest),
	}
	for _, g := range grids {
		mb.sources[g.ID] = datasource.NewMemorySource[datasource.Row](nil, rowCell, datasource.MemoryOptions{
			SearchColumns: g.SearchColumns,
			Columns:       g.Columns,
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /grids/{gridId}/search", mb.handleSearch)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": fmt.Sprintf("mock: no grid registered for %s %s", r.Method, r.URL.Path),
		})
	})

	mb.server = httptest.NewServer(mux)
	t.Cleanup(mb.server.Close)

	return mb
}

func rowCell(row datasource.Row, id string) any {
	return row[id]
}

// URL returns the base URL of the mock backend server.
func (mb *MockBackend) URL() string {
	return mb.server.URL
}

// SearchURL returns the search endpoint of a grid.
func (mb *MockBackend) SearchURL(gridID string) string {
	return mb.server.URL + "/grids/" + gridID + "/search"
}

// SetRows replaces the fixture rows a grid answers from.
func (mb *MockBackend) SetRows(gridID string, rows []datasource.Row) {
	mb.mu.RLock()
	src, ok := mb.sources[gridID]
	mb.mu.RUnlock()
	require.True(mb.t, ok, "mock: grid %q not registered", gridID)
	src.SetRows(rows)
}

// OnGrid returns a builder for configuring responses for the named grid.
func (mb *MockBackend) OnGrid(gridID string) *GridMock {
	return &GridMock{
		backend: mb,
		gridID:  gridID,
	}
}

// RespondWith configures the grid to respond with the given status and body.
func (gm *GridMock) RespondWith(status int, body any) *GridMock {
	gm.backend.addResponse(gm.gridID, &mockResponse{
		status: status,
		body:   body,
	})
	return gm
}

// RespondWithError configures the grid to respond with an error envelope.
func (gm *GridMock) RespondWithError(status int, code, message string) *GridMock {
	gm.backend.addResponse(gm.gridID, &mockResponse{
		status: status,
		body:   ErrorFixture(code, message),
	})
	return gm
}

// RespondWithDelay configures a delayed response to simulate slow backends.
func (gm *GridMock) RespondWithDelay(delay time.Duration, status int, body any) *GridMock {
	gm.backend.addResponse(gm.gridID, &mockResponse{
		status: status,
		body:   body,
		delay:  delay,
	})
	return gm
}

// RespondWithConnectionError configures the grid to close the connection
// to simulate a backend failure.
func (gm *GridMock) RespondWithConnectionError() *GridMock {
	gm.backend.addResponse(gm.gridID, &mockResponse{
		connError: true,
	})
	return gm
}

// RespondWithHeaders configures additional response headers.
func (gm *GridMock) RespondWithHeaders(status int, body any, headerFunc func(http.Header)) *GridMock {
	gm.backend.addResponse(gm.gridID, &mockResponse{
		status:     status,
		body:       body,
		headerFunc: headerFunc,
	})
	return gm
}

func (mb *MockBackend) addResponse(gridID string, resp *mockResponse) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	cfg, ok := mb.grids[gridID]
	if !ok {
		cfg = &gridConfig{}
		mb.grids[gridID] = cfg
	}
	cfg.responses = append(cfg.responses, resp)
}

func (mb *MockBackend) handleSearch(w http.ResponseWriter, r *http.Request) {
	gridID := r.PathValue("gridId")

	rec := &RecordedRequest{
		Method:     r.Method,
		Path:       r.URL.Path,
		Headers:    r.Header.Clone(),
		ReceivedAt: time.Now(),
	}
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		rec.RawBody = body
		if len(body) > 0 {
			_ = json.Unmarshal(body, &rec.Search)
		}
	}

	mb.mu.Lock()
	mb.receivedBy[gridID] = append(mb.receivedBy[gridID], rec)
	src, known := mb.sources[gridID]
	mb.mu.Unlock()

	resp := mb.getNextResponse(gridID)
	if resp == nil {
		if !known {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		res, err := src.Fetch(r.Context(), rec.Search)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ErrorFixture("INTERNAL", err.Error()))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
		return
	}

	if resp.connError {
		// Hijack the connection and close it to simulate a connection error.
		hj, ok := w.(http.Hijacker)
		if ok {
			conn, _, _ := hj.Hijack()
			if conn != nil {
				conn.Close()
			}
		}
		return
	}

	if resp.delay > 0 {
		select {
		case <-time.After(resp.delay):
		case <-r.Context().Done():
			return
		}
	}

	if resp.headerFunc != nil {
		resp.headerFunc(w.Header())
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	if resp.body != nil {
		json.NewEncoder(w).Encode(resp.body)
	}
}

func (mb *MockBackend) getNextResponse(gridID string) *mockResponse {
	mb.mu.RLock()
	cfg, ok := mb.grids[gridID]
	mb.mu.RUnlock()
	if !ok || cfg == nil {
		return nil
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	if len(cfg.responses) == 0 {
		return nil
	}

	idx := cfg.current
	if idx >= len(cfg.responses) {
		// Repeat the last response for subsequent calls.
		idx = len(cfg.responses) - 1
	} else {
		cfg.current++
	}
	return cfg.responses[idx]
}

// AssertCalled verifies that the grid was searched the expected number of times.
func (mb *MockBackend) AssertCalled(t *testing.T, gridID string, expectedCount int) {
	t.Helper()
	assert.Equal(t, expectedCount, mb.CallCount(gridID), "mock: searches of grid %q", gridID)
}

// AssertNotCalled verifies that the grid was never searched.
func (mb *MockBackend) AssertNotCalled(t *testing.T, gridID string) {
	t.Helper()
	mb.AssertCalled(t, gridID, 0)
}

// CallCount returns how many searches the grid received.
func (mb *MockBackend) CallCount(gridID string) int {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return len(mb.receivedBy[gridID])
}

// LastRequest returns the last request received for the given grid.
// Returns nil if no requests were recorded.
func (mb *MockBackend) LastRequest(gridID string) *RecordedRequest {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	reqs := mb.receivedBy[gridID]
	if len(reqs) == 0 {
		return nil
	}
	return reqs[len(reqs)-1]
}

// AllRequests returns all requests received for the given grid.
func (mb *MockBackend) AllRequests(gridID string) []*RecordedRequest {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	reqs := mb.receivedBy[gridID]
	copied := make([]*RecordedRequest, len(reqs))
	copy(copied, reqs)
	return copied
}

// ResetGrid clears recorded requests and configured responses for one grid.
// Fixture rows are kept.
func (mb *MockBackend) ResetGrid(gridID string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	delete(mb.grids, gridID)
	delete(mb.receivedBy, gridID)
}

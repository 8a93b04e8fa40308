package datasource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/gridcore/model"
)

type remoteRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestHTTPSource_Fetch_success(t *testing.T) {
	var got model.SearchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "t1", r.Header.Get("X-Tenant-Id"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(model.NewPagedResult([]remoteRow{{ID: "a", Name: "Alpha"}}, 2, 1, 3))
	}))
	defer srv.Close()

	src := NewHTTPSource[remoteRow](srv.URL, HTTPOptions{
		Headers: http.Header{"X-Tenant-Id": {"t1"}},
	})
	res, err := src.Fetch(context.Background(), model.SearchRequest{
		Page:         2,
		PageSize:     1,
		GlobalSearch: "alp",
		Sorting:      []model.SortSpec{{ColumnID: "name", Direction: model.SortDesc}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 1, got.PageSize)
	assert.Equal(t, "alp", got.GlobalSearch)
	assert.Equal(t, []remoteRow{{ID: "a", Name: "Alpha"}}, res.Data)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.TotalPages)
	assert.True(t, res.HasNext)
	assert.True(t, res.HasPrevious)
}

func TestHTTPSource_Fetch_nullDataBecomesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":null,"page":1,"pageSize":10,"total":0}`))
	}))
	defer srv.Close()

	res, err := NewHTTPSource[remoteRow](srv.URL, HTTPOptions{}).Fetch(context.Background(), model.SearchRequest{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}

func TestHTTPSource_Fetch_serverErrorTripsBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTPSource[remoteRow](srv.URL, HTTPOptions{
		Breaker: NewBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute}),
	})
	for i := range 3 {
		_, err := src.Fetch(context.Background(), model.SearchRequest{Page: 1, PageSize: 10})
		require.True(t, model.HasCode(err, model.ErrBackendUnavailable), "call %d: %v", i, err)
	}
	assert.Equal(t, int32(2), calls.Load(), "third call rejected by breaker")
	assert.Equal(t, BreakerOpen, src.Breaker().State())
}

func TestHTTPSource_Fetch_clientErrorDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	src := NewHTTPSource[remoteRow](srv.URL, HTTPOptions{
		Breaker: NewBreaker(BreakerConfig{FailureThreshold: 1}),
	})
	for range 3 {
		_, err := src.Fetch(context.Background(), model.SearchRequest{Page: 1, PageSize: 10})
		require.True(t, model.HasCode(err, model.ErrBadRequest), "error = %v", err)
	}
	assert.Equal(t, BreakerClosed, src.Breaker().State())
}

func TestHTTPSource_Fetch_timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTPSource[remoteRow](srv.URL, HTTPOptions{}).Fetch(ctx, model.SearchRequest{Page: 1, PageSize: 10})
	assert.True(t, model.HasCode(err, model.ErrBackendTimeout), "error = %v", err)
}

func TestHTTPSource_Fetch_cancelledPassesThrough(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	src := NewHTTPSource[remoteRow](srv.URL, HTTPOptions{
		Breaker: NewBreaker(BreakerConfig{FailureThreshold: 1}),
	})
	_, err := src.Fetch(ctx, model.SearchRequest{Page: 1, PageSize: 10})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, BreakerClosed, src.Breaker().State(), "cancellation is not a backend failure")
}

func TestHTTPSource_Fetch_malformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewHTTPSource[remoteRow](srv.URL, HTTPOptions{}).Fetch(context.Background(), model.SearchRequest{Page: 1})
	assert.Error(t, err)
}

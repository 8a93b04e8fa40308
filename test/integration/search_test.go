package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/gridcore/model"
)

type searchResult = model.PagedResult[map[string]any]

func references(rows []map[string]any) []any {
	refs := make([]any, len(rows))
	for i, row := range rows {
		refs[i] = row["reference"]
	}
	return refs
}

func TestSearch_Defaults(t *testing.T) {
	h := NewTestHarness(t)

	var res searchResult
	h.AssertJSON(t, h.POST("/api/grids/orders.list/search", map[string]any{}), http.StatusOK, &res)

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.PageSize)
	assert.Equal(t, 3, res.TotalPages)
	assert.True(t, res.HasNext)
	assert.False(t, res.HasPrevious)
	assert.Equal(t, []any{"R-1", "R-2"}, references(res.Data))
	assert.Contains(t, res.Facets, "status")

	// The defaults reach the backend as a complete request snapshot.
	rec := h.Backend().LastRequest("orders.list")
	require.NotNil(t, rec, "backend not called")
	got := rec.Search
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, 2, got.PageSize)
	assert.Equal(t, []model.SortSpec{{ColumnID: "reference", Direction: model.SortAsc}}, got.Sorting)
	assert.Equal(t, []string{"status"}, got.FacetColumns)
	assert.NotNil(t, got.ColumnFilters, "columnFilters is an empty list, not null")
}

func TestSearch_GlobalSearch(t *testing.T) {
	h := NewTestHarness(t)

	var res searchResult
	h.AssertJSON(t, h.POST("/api/grids/orders.list/search", map[string]any{
		"globalSearch": "acme",
		"pageSize":     10,
	}), http.StatusOK, &res)

	assert.Equal(t, 2, res.Total, FormatJSON(res.Data))
	assert.Equal(t, "acme", h.Backend().LastRequest("orders.list").Search.GlobalSearch)
}

func TestSearch_FacetFilter(t *testing.T) {
	h := NewTestHarness(t)

	var res searchResult
	h.AssertJSON(t, h.POST("/api/grids/orders.list/search", map[string]any{
		"pageSize":     10,
		"facetFilters": map[string][]string{"status": {"shipped"}},
	}), http.StatusOK, &res)

	assert.Equal(t, 2, res.Total)
	for _, row := range res.Data {
		assert.Equal(t, "shipped", row["status"], "row %v", row["reference"])
	}
	// A facet ignores its own filter, so every status is still offered.
	assert.Len(t, res.Facets["status"].Values, 3, FormatJSON(res.Facets["status"]))
}

func TestSearch_ColumnFilterAndSorting(t *testing.T) {
	h := NewTestHarness(t)

	var res searchResult
	h.AssertJSON(t, h.POST("/api/grids/orders.list/search", map[string]any{
		"pageSize": 10,
		"sorting":  []map[string]any{{"columnId": "total", "direction": "desc"}},
		"columnFilters": []map[string]any{
			{"columnId": "total", "filterType": "number", "operator": "gt", "value": 100},
		},
	}), http.StatusOK, &res)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []any{"R-4", "R-1"}, references(res.Data))
}

func TestSearch_LastPage(t *testing.T) {
	h := NewTestHarness(t)

	var res searchResult
	h.AssertJSON(t, h.POST("/api/grids/orders.list/search", map[string]any{"page": 3}), http.StatusOK, &res)

	assert.Equal(t, []any{"R-5"}, references(res.Data))
	assert.False(t, res.HasNext)
	assert.True(t, res.HasPrevious)
}

func TestSearch_ValidationNeverReachesBackend(t *testing.T) {
	h := NewTestHarness(t)

	h.AssertErrorCode(t, h.POST("/api/grids/orders.list/search", map[string]any{"pageSize": 5000}),
		http.StatusUnprocessableEntity, model.ErrValidationError)
	h.AssertErrorCode(t, h.POST("/api/grids/orders.list/search", map[string]any{"page": -1}),
		http.StatusUnprocessableEntity, model.ErrValidationError)

	h.Backend().AssertNotCalled(t, "orders.list")
}

func TestSearch_BackendRejection(t *testing.T) {
	h := NewTestHarness(t)
	h.Backend().OnGrid("orders.list").RespondWithError(http.StatusBadRequest, "BAD_FILTER", "unsupported filter")

	h.AssertErrorCode(t, h.POST("/api/grids/orders.list/search", map[string]any{}),
		http.StatusBadRequest, model.ErrBadRequest)
}

package fetch

import (
	"github.com/pitabwire/gridcore/internal/filter"
	"github.com/pitabwire/gridcore/model"
)

// Params is the fetch dependency set of a grid.
type Params struct {
	PageIndex      int
	PageSize       int
	Sorting        []model.SortSpec
	GlobalSearch   string
	Filters        model.ColumnFilterState
	FacetedColumns []string
}

// BuildRequest snapshots p into a SearchRequest. PageIndex is zero-based;
// the request page is one-based.
func BuildRequest(p Params) model.SearchRequest {
	faceted := make(map[string]bool, len(p.FacetedColumns))
	for _, id := range p.FacetedColumns {
		faceted[id] = true
	}
	routed := filter.BuildRequestFilters(p.Filters, faceted)

	page := p.PageIndex + 1
	if page < 1 {
		page = 1
	}
	sorting := append([]model.SortSpec{}, p.Sorting...)

	req := model.SearchRequest{
		Page:          page,
		PageSize:      p.PageSize,
		Sorting:       sorting,
		GlobalSearch:  p.GlobalSearch,
		ColumnFilters: routed.ColumnFilters,
		FacetFilters:  routed.FacetFilters,
	}
	if len(p.FacetedColumns) > 0 {
		req.FacetColumns = append([]string(nil), p.FacetedColumns...)
	}
	return req
}

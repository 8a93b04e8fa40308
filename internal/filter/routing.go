package filter

import (
	"sort"

	"github.com/pitabwire/gridcore/model"
)

// RequestFilters is the request-side projection of a ColumnFilterState.
type RequestFilters struct {
	ColumnFilters []model.ColumnFilter
	FacetFilters  map[string][]string
}

// BuildRequestFilters routes the active filters of state into the request.
// Select filters on faceted columns become facet filters; every other
// active filter is serialized into the column filter list. Output is
// ordered by column id so identical states produce identical requests.
func BuildRequestFilters(state model.ColumnFilterState, faceted map[string]bool) RequestFilters {
	ids := make([]string, 0, len(state))
	for id := range state {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := RequestFilters{ColumnFilters: []model.ColumnFilter{}}
	for _, id := range ids {
		f := state[id]
		if f == nil || !HasValue(f) {
			continue
		}
		if sel, ok := f.(model.SelectFilter); ok && faceted[id] && sel.Operator == model.OpIsAnyOf {
			if out.FacetFilters == nil {
				out.FacetFilters = make(map[string][]string)
			}
			out.FacetFilters[id] = append([]string(nil), sel.Values...)
			continue
		}
		out.ColumnFilters = append(out.ColumnFilters, Serialize(id, f))
	}
	return out
}

// FromRequest rebuilds a ColumnFilterState from a request's column and
// facet filters.
func FromRequest(columnFilters []model.ColumnFilter, facetFilters map[string][]string) model.ColumnFilterState {
	state := make(model.ColumnFilterState, len(columnFilters)+len(facetFilters))
	for _, cf := range columnFilters {
		state[cf.ColumnID] = Deserialize(cf)
	}
	for id, values := range facetFilters {
		if len(values) == 0 {
			continue
		}
		state[id] = model.SelectFilter{Operator: model.OpIsAnyOf, Values: append([]string(nil), values...)}
	}
	return state
}

package grid

import (
	"github.com/pitabwire/gridcore/internal/layout"
	"github.com/pitabwire/gridcore/internal/selection"
	"github.com/pitabwire/gridcore/model"
)

// Snapshot is a point-in-time copy of a grid's state. Rows is shared with
// the grid and must not be modified.
type Snapshot[T any] struct {
	Loading model.LoadingState
	Rows    []T
	Total   int
	Facets  map[string]model.Facet
	Err     error

	PageIndex    int
	PageSize     int
	Sorting      []model.SortSpec
	GlobalSearch string
	// SearchInput is the latest typed search, which may still be waiting
	// on the debounce.
	SearchInput       string
	Filters           model.ColumnFilterState
	ExternalFilterKey string

	Selection  selection.Selection
	Visibility layout.Visibility
	Pinning    layout.Pinning
}

// PageInfo describes the current page for pagination controls. From and To
// are the 1-based display range, both zero when there are no rows.
type PageInfo struct {
	PageIndex   int
	PageSize    int
	PageCount   int
	Total       int
	From        int
	To          int
	HasNext     bool
	HasPrevious bool
}

// NewPageInfo computes pagination for a zero-based page index.
func NewPageInfo(pageIndex, pageSize, total int) PageInfo {
	info := PageInfo{
		PageIndex:   pageIndex,
		PageSize:    pageSize,
		PageCount:   model.TotalPages(total, pageSize),
		Total:       total,
		HasPrevious: pageIndex > 0,
	}
	info.HasNext = pageIndex+1 < info.PageCount
	if total > 0 && pageSize > 0 {
		from := pageIndex*pageSize + 1
		if from <= total {
			info.From = from
			info.To = min((pageIndex+1)*pageSize, total)
		}
	}
	return info
}

// Package datasource provides grid data sources: an in-memory source for
// client-side grids, an HTTP source for remote backends, and a SQL source
// that answers search requests from PostgreSQL.
package datasource

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pitabwire/gridcore/internal/filter"
	"github.com/pitabwire/gridcore/model"
)

// CellFunc reads the value of columnID from row.
type CellFunc[T any] func(row T, columnID string) any

// MemorySource filters, sorts, facets and paginates an in-memory row set.
// It implements the fetch.Fetcher contract.
type MemorySource[T any] struct {
	cell          CellFunc[T]
	searchColumns []string
	labels        map[string]map[string]string
	now           func() time.Time

	mu   sync.RWMutex
	rows []T
}

// MemoryOptions configures a MemorySource.
type MemoryOptions struct {
	// SearchColumns are matched by the global search. Empty means the
	// columns of Columns.
	SearchColumns []string
	// Columns supply option labels for facets.
	Columns []model.ColumnDef
	Now     func() time.Time
}

// NewMemorySource creates a source over rows.
func NewMemorySource[T any](rows []T, cell CellFunc[T], opts MemoryOptions) *MemorySource[T] {
	m := &MemorySource[T]{
		cell:          cell,
		searchColumns: opts.SearchColumns,
		labels:        make(map[string]map[string]string),
		now:           opts.Now,
		rows:          rows,
	}
	if len(m.searchColumns) == 0 {
		m.searchColumns = model.ColumnIDs(opts.Columns)
	}
	for _, c := range opts.Columns {
		if len(c.Options) == 0 {
			continue
		}
		l := make(map[string]string, len(c.Options))
		for _, o := range c.Options {
			l[o.Value] = o.Label
		}
		m.labels[c.ID] = l
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// SetRows replaces the row set.
func (m *MemorySource[T]) SetRows(rows []T) {
	m.mu.Lock()
	m.rows = rows
	m.mu.Unlock()
}

// Fetch answers req from memory. A non-positive page size returns every
// matching row on one page.
func (m *MemorySource[T]) Fetch(ctx context.Context, req model.SearchRequest) (model.PagedResult[T], error) {
	if err := ctx.Err(); err != nil {
		return model.PagedResult[T]{}, err
	}
	m.mu.RLock()
	rows := m.rows
	m.mu.RUnlock()

	now := m.now()
	columnState := filter.FromRequest(req.ColumnFilters, nil)
	search := strings.ToLower(strings.TrimSpace(req.GlobalSearch))

	// Rows passing search and column filters, before facet filters.
	base := make([]T, 0, len(rows))
	for _, r := range rows {
		if search != "" && !m.matchesSearch(r, search) {
			continue
		}
		if !filter.MatchAll(columnState, func(id string) any { return m.cell(r, id) }, now) {
			continue
		}
		base = append(base, r)
	}

	matched := make([]T, 0, len(base))
	for _, r := range base {
		if m.matchesFacets(r, req.FacetFilters, "") {
			matched = append(matched, r)
		}
	}

	if len(req.Sorting) > 0 {
		slices.SortStableFunc(matched, lessBySorting(req.Sorting, m.cell))
	}

	total := len(matched)
	page, size := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	var data []T
	if size <= 0 {
		data = matched
		size = total
	} else {
		start := req.Offset()
		if start > total {
			start = total
		}
		end := start + size
		if end > total {
			end = total
		}
		data = matched[start:end]
	}

	res := model.NewPagedResult(slices.Clone(data), page, size, total)
	if len(req.FacetColumns) > 0 {
		res.Facets = make(map[string]model.Facet, len(req.FacetColumns))
		for _, col := range req.FacetColumns {
			res.Facets[col] = m.facet(base, col, req.FacetFilters)
		}
	}
	return res, nil
}

func (m *MemorySource[T]) matchesSearch(r T, search string) bool {
	for _, col := range m.searchColumns {
		if strings.Contains(strings.ToLower(filter.CellString(m.cell(r, col))), search) {
			return true
		}
	}
	return false
}

// matchesFacets applies every facet filter except the one on skip.
func (m *MemorySource[T]) matchesFacets(r T, facets map[string][]string, skip string) bool {
	for col, values := range facets {
		if col == skip || len(values) == 0 {
			continue
		}
		if !slices.Contains(values, filter.CellString(m.cell(r, col))) {
			return false
		}
	}
	return true
}

// facet counts the values of col over rows that pass all other facet
// filters, so a column's own selection does not hide its alternatives.
func (m *MemorySource[T]) facet(rows []T, col string, facets map[string][]string) model.Facet {
	counts := make(map[string]int)
	for _, r := range rows {
		if !m.matchesFacets(r, facets, col) {
			continue
		}
		v := filter.CellString(m.cell(r, col))
		if v == "" {
			continue
		}
		counts[v]++
	}

	values := make([]model.FacetValue, 0, len(counts))
	for v, n := range counts {
		values = append(values, model.FacetValue{Value: v, Label: m.labels[col][v], Count: n})
	}
	sort.Slice(values, func(i, j int) bool {
		if values[i].Count != values[j].Count {
			return values[i].Count > values[j].Count
		}
		return values[i].Value < values[j].Value
	})
	return model.Facet{ColumnID: col, Values: values, TotalValues: len(values)}
}

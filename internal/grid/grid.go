// Package grid ties the filter model, fetch orchestrator, selection,
// layout, URL synchronization and export pipeline into one state-owning
// Grid.
package grid

import (
	"context"
	"maps"
	"net/url"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/internal/export"
	"github.com/pitabwire/gridcore/internal/fetch"
	"github.com/pitabwire/gridcore/internal/filter"
	"github.com/pitabwire/gridcore/internal/layout"
	"github.com/pitabwire/gridcore/internal/selection"
	"github.com/pitabwire/gridcore/internal/urlstate"
	"github.com/pitabwire/gridcore/model"
)

// Grid owns the state of one data grid. Setters run to completion under
// one lock and trigger a fetch when they change the fetch dependencies;
// fetches run in the background and only the latest one is applied.
type Grid[T any] struct {
	name      string
	rowID     func(T) string
	columns   []model.ColumnDef
	faceted   []string
	exportCol []export.Column[T]
	virtual   model.VirtualizationConfig
	urlOpts   urlstate.Options
	logger    *zap.Logger
	notifier  model.Notifier
	onChange  func(Snapshot[T])

	orch      *fetch.Orchestrator[T]
	debouncer *fetch.Debouncer
	persister *layout.Persister
	sync      *urlstate.Synchronizer
	pipeline  *export.Pipeline[T]
	bulk      *selection.BulkRunner[T]

	ctx    context.Context
	cancel context.CancelFunc

	// publishMu orders URL and preference writes. It is taken before mu.
	publishMu sync.Mutex

	mu          sync.Mutex
	pageIndex   int
	pageSize    int
	sorting     []model.SortSpec
	search      string
	searchInput string
	filters     model.ColumnFilterState
	externalKey string
	selection   selection.Selection
	loadedIDs   []string
	visibility  layout.Visibility
	pinning     layout.Pinning
	closed      bool
}

// New creates a grid and starts its first fetch. It fails without a
// fetcher or a row id accessor.
func New[T any](opts Options[T]) (*Grid[T], error) {
	if opts.Fetcher == nil {
		return nil, model.NewMisconfiguredError("grid " + opts.Name + ": a fetcher is required")
	}
	if opts.RowID == nil {
		return nil, model.NewMisconfiguredError("grid " + opts.Name + ": a row id accessor is required")
	}

	g := &Grid[T]{
		name:      opts.Name,
		rowID:     opts.RowID,
		columns:   slices.Clone(opts.Columns),
		faceted:   model.FacetedColumnIDs(opts.Columns),
		exportCol: opts.ExportColumns,
		virtual:   opts.Virtualization,
		urlOpts:   opts.URLOptions,
		logger:    opts.Logger,
		notifier:  opts.Notifier,
		onChange:  opts.OnChange,
		pageSize:  opts.PageSize,
		sorting:   slices.Clone(opts.Sorting),
		filters:   model.ColumnFilterState{},
		selection: selection.New(),
		pinning:   layout.NewPinning(nil, nil),
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	g.logger = g.logger.With(zap.String("grid", opts.Name))
	if g.notifier == nil {
		g.notifier = model.NopNotifier{}
	}
	if g.pageSize <= 0 {
		g.pageSize = DefaultPageSize
	}
	if len(g.exportCol) == 0 && opts.Cell != nil {
		g.exportCol = columnsFor(opts.Columns, opts.Cell)
	}
	g.ctx, g.cancel = context.WithCancel(context.Background())

	orch, err := fetch.New(fetch.Options[T]{
		Name:      opts.Name,
		Fetcher:   opts.Fetcher,
		Logger:    g.logger,
		Observer:  opts.FetchObserver,
		OnSettled: g.settled,
	})
	if err != nil {
		g.cancel()
		return nil, err
	}
	g.orch = orch

	delay := opts.Debounce
	if delay == 0 {
		delay = fetch.DefaultDebounce
	}
	if delay > 0 {
		g.debouncer = fetch.NewDebouncer(delay)
	}

	if g.urlOpts.DefaultPageSize == 0 {
		g.urlOpts.DefaultPageSize = g.pageSize
	}

	g.persister = layout.NewPersister(opts.Store, opts.PreferenceKey, g.logger)
	stored := opts.ColumnVisibility
	if st, ok := g.persister.Load(g.ctx); ok {
		stored = st.ColumnVisibility
		if st.PageSize > 0 {
			g.pageSize = st.PageSize
		}
	}
	g.visibility = layout.NewVisibility(model.ColumnIDs(opts.Columns), stored)

	if opts.Navigator != nil {
		g.sync = urlstate.NewSynchronizer(opts.Navigator, opts.URL, g.urlOpts)
		g.applyURLStateLocked(g.sync.Initial(), true)
	}

	exportOpts := opts.Export
	if exportOpts.Logger == nil {
		exportOpts.Logger = g.logger
	}
	g.pipeline = export.NewPipeline[T](exportOpts)
	g.bulk = selection.NewBulkRunner[T](g, opts.BulkActions, selection.RunnerOptions{
		Logger:   g.logger,
		Notifier: g.notifier,
		Observer: opts.BulkObserver,
	})

	g.mu.Lock()
	g.fetchLocked()
	g.mu.Unlock()
	return g, nil
}

func columnsFor[T any](defs []model.ColumnDef, cell func(T, string) any) []export.Column[T] {
	out := make([]export.Column[T], 0, len(defs))
	for _, d := range defs {
		if d.ID == model.SelectionColumnID {
			continue
		}
		id := d.ID
		header := d.Header
		if header == "" {
			header = id
		}
		out = append(out, export.Column[T]{
			ID:       id,
			Header:   header,
			Accessor: func(row T) any { return cell(row, id) },
		})
	}
	return out
}

// fetchLocked starts a fetch for the current dependency set.
func (g *Grid[T]) fetchLocked() {
	if g.closed {
		return
	}
	g.orch.Fetch(g.ctx, g.requestLocked())
}

func (g *Grid[T]) requestLocked() model.SearchRequest {
	return fetch.BuildRequest(fetch.Params{
		PageIndex:      g.pageIndex,
		PageSize:       g.pageSize,
		Sorting:        g.sorting,
		GlobalSearch:   g.search,
		Filters:        g.filters,
		FacetedColumns: g.faceted,
	})
}

// settled runs after every applied fetch, outside the orchestrator lock.
// When the loaded rows change, the selection is narrowed to them so it
// always names rows the grid can hand out.
func (g *Grid[T]) settled(st fetch.State[T]) {
	if st.Err != nil && st.Loading == model.StateError {
		g.notifier.Error("Failed to load data", st.Err)
	} else {
		ids := make([]string, len(st.Rows))
		for i, r := range st.Rows {
			ids[i] = g.rowID(r)
		}
		g.mu.Lock()
		if !slices.Equal(ids, g.loadedIDs) {
			g.loadedIDs = ids
			g.selection = g.selection.Retain(ids)
		}
		g.mu.Unlock()
	}
	if g.onChange != nil {
		g.onChange(g.Snapshot())
	}
}

// update applies mutate under the lock. When mutate reports a change to
// the fetch dependencies a fetch is started. URL state and preferences are
// written after mu is released but before the next update can mutate, so
// the Navigator and the store always end with the latest state.
// Navigator.Replace must not call grid setters.
func (g *Grid[T]) update(mutate func() (refetch bool)) {
	g.publishMu.Lock()
	defer g.publishMu.Unlock()

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	if mutate() {
		g.fetchLocked()
	}
	urlState := g.urlStateLocked()
	prefs := model.PersistedState{ColumnVisibility: g.visibility.Map(), PageSize: g.pageSize}
	g.mu.Unlock()

	if g.sync != nil {
		g.sync.Sync(urlState)
	}
	g.persister.Save(g.ctx, prefs)
}

// SetPageIndex moves to a zero-based page.
func (g *Grid[T]) SetPageIndex(index int) {
	g.update(func() bool {
		index = max(index, 0)
		if index == g.pageIndex {
			return false
		}
		g.pageIndex = index
		return true
	})
}

// NextPage moves forward one page if there is one.
func (g *Grid[T]) NextPage() {
	info := g.PageInfo()
	if info.HasNext {
		g.SetPageIndex(info.PageIndex + 1)
	}
}

// PreviousPage moves back one page if there is one.
func (g *Grid[T]) PreviousPage() {
	info := g.PageInfo()
	if info.HasPrevious {
		g.SetPageIndex(info.PageIndex - 1)
	}
}

// SetPageSize changes the page size and returns to the first page.
func (g *Grid[T]) SetPageSize(size int) {
	g.update(func() bool {
		if size <= 0 || size == g.pageSize {
			return false
		}
		g.pageSize = size
		g.pageIndex = 0
		return true
	})
}

// SetSorting replaces the sort order and returns to the first page.
func (g *Grid[T]) SetSorting(sorting []model.SortSpec) {
	g.update(func() bool {
		if slices.Equal(sorting, g.sorting) {
			return false
		}
		g.sorting = slices.Clone(sorting)
		g.pageIndex = 0
		return true
	})
}

// SetGlobalSearch records the typed search and applies it once the
// debounce delay passes without another call.
func (g *Grid[T]) SetGlobalSearch(search string) {
	g.mu.Lock()
	g.searchInput = search
	g.mu.Unlock()

	if g.debouncer == nil {
		g.applySearch(search)
		return
	}
	g.debouncer.Call(func() { g.applySearch(search) })
}

func (g *Grid[T]) applySearch(search string) {
	g.update(func() bool {
		if search == g.search {
			return false
		}
		g.search = search
		g.pageIndex = 0
		return true
	})
}

// SetColumnFilter sets the filter of one column and returns to the first
// page. A nil filter clears it.
func (g *Grid[T]) SetColumnFilter(columnID string, f model.FilterValue) {
	if f == nil {
		g.ClearColumnFilter(columnID)
		return
	}
	g.update(func() bool {
		g.filters = g.filters.With(columnID, f)
		g.pageIndex = 0
		return true
	})
}

// ClearColumnFilter removes the filter of one column.
func (g *Grid[T]) ClearColumnFilter(columnID string) {
	g.update(func() bool {
		if _, ok := g.filters[columnID]; !ok {
			return false
		}
		g.filters = g.filters.Without(columnID)
		g.pageIndex = 0
		return true
	})
}

// ClearFilters removes every column filter and the global search.
func (g *Grid[T]) ClearFilters() {
	if g.debouncer != nil {
		g.debouncer.Stop()
	}
	g.update(func() bool {
		if len(g.filters) == 0 && g.search == "" {
			g.searchInput = ""
			return false
		}
		g.filters = model.ColumnFilterState{}
		g.search = ""
		g.searchInput = ""
		g.pageIndex = 0
		return true
	})
}

// SetExternalFilterKey refetches when key changes. Callers use it for
// filters applied outside the grid, such as a tab or a parent record.
func (g *Grid[T]) SetExternalFilterKey(key string) {
	g.update(func() bool {
		if key == g.externalKey {
			return false
		}
		g.externalKey = key
		g.pageIndex = 0
		return true
	})
}

// SetFetcher swaps the fetcher used from the next fetch on.
func (g *Grid[T]) SetFetcher(f fetch.Fetcher[T]) {
	g.orch.SetFetcher(f)
}

// Refresh refetches the current page with unchanged state.
func (g *Grid[T]) Refresh() {
	g.update(func() bool { return true })
}

// Retry re-issues the last request, typically after an error.
func (g *Grid[T]) Retry() {
	g.orch.Retry(g.ctx)
}

// Click applies a click on the displayed row at index.
func (g *Grid[T]) Click(index int, mods selection.Modifiers) {
	ids := g.currentRowIDs()
	g.update(func() bool {
		g.selection = g.selection.Click(ids, index, mods)
		return false
	})
}

// ToggleRow flips the selection of one row id. Ids that are not on the
// loaded page cannot be selected.
func (g *Grid[T]) ToggleRow(id string) {
	g.update(func() bool {
		if g.selection.Has(id) || slices.Contains(g.loadedIDs, id) {
			g.selection = g.selection.Toggle(id)
		}
		return false
	})
}

// SelectAll selects every row on the current page.
func (g *Grid[T]) SelectAll() {
	ids := g.currentRowIDs()
	g.update(func() bool {
		g.selection = g.selection.SelectAll(ids)
		return false
	})
}

// ClearSelection deselects every row.
func (g *Grid[T]) ClearSelection() {
	g.update(func() bool {
		g.selection = g.selection.Clear()
		return false
	})
}

// ToggleVisibility shows or hides a column. The last visible column
// cannot be hidden.
func (g *Grid[T]) ToggleVisibility(columnID string) {
	g.update(func() bool {
		g.visibility = g.visibility.Toggle(columnID)
		return false
	})
}

// ShowAll makes every column visible.
func (g *Grid[T]) ShowAll() {
	g.update(func() bool {
		g.visibility = g.visibility.ShowAll()
		return false
	})
}

// HideAll hides every column except the first.
func (g *Grid[T]) HideAll() {
	g.update(func() bool {
		g.visibility = g.visibility.HideAll()
		return false
	})
}

// Pin pins a column to a side; PinNone unpins it.
func (g *Grid[T]) Pin(columnID string, side model.PinSide) {
	g.update(func() bool {
		g.pinning = g.pinning.Pin(columnID, side)
		return false
	})
}

// Unpin removes a column from both pin lists.
func (g *Grid[T]) Unpin(columnID string) {
	g.update(func() bool {
		g.pinning = g.pinning.Unpin(columnID)
		return false
	})
}

// ApplyURLValues replaces the URL-synchronized state with the state
// encoded in v, e.g. after browser navigation.
func (g *Grid[T]) ApplyURLValues(v url.Values) {
	st := urlstate.Decode(v, g.urlOpts)
	if g.debouncer != nil {
		g.debouncer.Stop()
	}
	g.update(func() bool {
		return g.applyURLStateLocked(st, false)
	})
}

// applyURLStateLocked copies the synchronized fields of st into the grid.
// With overlay set, empty values in st keep the current ones, so a bare URL
// does not clear configured defaults.
func (g *Grid[T]) applyURLStateLocked(st urlstate.State, overlay bool) bool {
	fields := g.urlOpts.Fields
	if fields == 0 {
		fields = urlstate.AllFields
	}
	changed := false
	if fields.Has(urlstate.FieldPagination) {
		if st.PageIndex != g.pageIndex {
			g.pageIndex = st.PageIndex
			changed = true
		}
		if st.PageSize > 0 && st.PageSize != g.pageSize && !(overlay && st.PageSize == g.urlOpts.DefaultPageSize) {
			g.pageSize = st.PageSize
			changed = true
		}
	}
	if fields.Has(urlstate.FieldSorting) && !(overlay && len(st.Sorting) == 0) && !slices.Equal(st.Sorting, g.sorting) {
		g.sorting = st.Sorting
		changed = true
	}
	if fields.Has(urlstate.FieldSearch) && !(overlay && st.GlobalSearch == "") && st.GlobalSearch != g.search {
		g.search = st.GlobalSearch
		g.searchInput = st.GlobalSearch
		changed = true
	}
	if fields.Has(urlstate.FieldFilters) && !(overlay && len(st.Filters) == 0) {
		next := st.Filters
		if next == nil {
			next = model.ColumnFilterState{}
		}
		if !sameFilters(next, g.filters) {
			g.filters = next
			changed = true
		}
	}
	return changed
}

func sameFilters(a, b model.ColumnFilterState) bool {
	if len(a) != len(b) {
		return false
	}
	for id, f := range a {
		other, ok := b[id]
		if !ok {
			return false
		}
		x, errX := filter.Encode(id, f)
		y, errY := filter.Encode(id, other)
		if errX != nil || errY != nil || x != y {
			return false
		}
	}
	return true
}

func (g *Grid[T]) urlStateLocked() urlstate.State {
	return urlstate.State{
		PageIndex:    g.pageIndex,
		PageSize:     g.pageSize,
		Sorting:      slices.Clone(g.sorting),
		GlobalSearch: g.search,
		Filters:      g.filters,
	}
}

// URLValues returns the query parameters encoding the current state.
func (g *Grid[T]) URLValues() url.Values {
	g.mu.Lock()
	st := g.urlStateLocked()
	g.mu.Unlock()
	return urlstate.Encode(st, g.urlOpts)
}

// Snapshot returns a copy of the grid state.
func (g *Grid[T]) Snapshot() Snapshot[T] {
	res := g.orch.State()

	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot[T]{
		Loading:           res.Loading,
		Rows:              res.Rows,
		Total:             res.Total,
		Facets:            res.Facets,
		Err:               res.Err,
		PageIndex:         g.pageIndex,
		PageSize:          g.pageSize,
		Sorting:           slices.Clone(g.sorting),
		GlobalSearch:      g.search,
		SearchInput:       g.searchInput,
		Filters:           maps.Clone(g.filters),
		ExternalFilterKey: g.externalKey,
		Selection:         g.selection,
		Visibility:        g.visibility,
		Pinning:           g.pinning,
	}
}

// PageInfo describes the current page against the last reported total.
func (g *Grid[T]) PageInfo() PageInfo {
	total := g.orch.State().Total
	g.mu.Lock()
	defer g.mu.Unlock()
	return NewPageInfo(g.pageIndex, g.pageSize, total)
}

// Rows returns the rows of the current page.
func (g *Grid[T]) Rows() []T {
	return g.orch.State().Rows
}

func (g *Grid[T]) currentRowIDs() []string {
	rows := g.Rows()
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = g.rowID(r)
	}
	return ids
}

// SelectedRows returns the selected rows in display order. The selection
// never holds ids outside the loaded page, so its length equals
// Snapshot().Selection.Count() once the current fetch has settled.
func (g *Grid[T]) SelectedRows() []T {
	rows := g.Rows()
	g.mu.Lock()
	sel := g.selection
	g.mu.Unlock()
	return selection.Filter(sel, rows, g.rowID)
}

// VisibleColumns returns the visible columns, left-pinned first and
// right-pinned last.
func (g *Grid[T]) VisibleColumns() []model.ColumnDef {
	ids := g.VisibleColumnIDs()
	out := make([]model.ColumnDef, 0, len(ids))
	for _, id := range ids {
		for _, c := range g.columns {
			if c.ID == id {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// VisibleColumnIDs returns the ids of VisibleColumns.
func (g *Grid[T]) VisibleColumnIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pinning.Order(g.visibility.VisibleIDs())
}

// Virtualization returns the configuration handed to a row virtualizer.
func (g *Grid[T]) Virtualization() model.VirtualizationConfig {
	return g.virtual
}

// VisibleWindow returns the row window to render for the current page.
func (g *Grid[T]) VisibleWindow(scrollTop, viewportHeight float64) (start, end int) {
	return VisibleWindow(g.virtual, len(g.Rows()), scrollTop, viewportHeight)
}

// Bulk returns the bulk action runner acting on the selection.
func (g *Grid[T]) Bulk() *selection.BulkRunner[T] {
	return g.bulk
}

// Wait blocks until every started fetch has been applied or discarded.
func (g *Grid[T]) Wait() {
	g.orch.Wait()
}

// Close stops pending searches and fetches. The grid ignores setters
// afterwards.
func (g *Grid[T]) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	g.mu.Unlock()

	if g.debouncer != nil {
		g.debouncer.Stop()
	}
	g.cancel()
	g.orch.Close()
}

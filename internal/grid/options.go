package grid

import (
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/internal/export"
	"github.com/pitabwire/gridcore/internal/fetch"
	"github.com/pitabwire/gridcore/internal/prefstore"
	"github.com/pitabwire/gridcore/internal/selection"
	"github.com/pitabwire/gridcore/internal/urlstate"
	"github.com/pitabwire/gridcore/model"
)

// DefaultPageSize is used when neither options nor stored preferences set
// one.
const DefaultPageSize = 10

// Options configures a Grid.
type Options[T any] struct {
	// Name identifies the grid in logs, spans and metrics.
	Name string

	// Fetcher and RowID are required.
	Fetcher fetch.Fetcher[T]
	RowID   func(row T) string

	// Columns are the grid's columns in display order. Faceted columns
	// have their select filters routed to facetFilters.
	Columns []model.ColumnDef
	// Cell reads a column value from a row. Used to derive export columns
	// when ExportColumns is empty.
	Cell          func(row T, columnID string) any
	ExportColumns []export.Column[T]

	PageSize int
	Sorting  []model.SortSpec

	// ColumnVisibility is the starting visibility by column id. Stored
	// preferences replace it.
	ColumnVisibility map[string]bool

	// Store and PreferenceKey enable persistence of column visibility and
	// page size.
	Store         prefstore.Store
	PreferenceKey string

	// Navigator enables URL synchronization; URL is the query the grid
	// starts from.
	Navigator  urlstate.Navigator
	URL        url.Values
	URLOptions urlstate.Options

	// Debounce delays global search. Zero uses fetch.DefaultDebounce; a
	// negative value applies search immediately.
	Debounce time.Duration

	Virtualization model.VirtualizationConfig

	BulkActions []selection.BulkAction[T]
	Export      export.PipelineOptions

	Logger        *zap.Logger
	Notifier      model.Notifier
	FetchObserver fetch.Observer
	BulkObserver  selection.Observer

	// OnChange is called with a fresh snapshot after every applied fetch.
	OnChange func(Snapshot[T])
}

package transport

import (
	"net/http"
	"slices"

	"github.com/pitabwire/gridcore/internal/config"
	"github.com/pitabwire/gridcore/internal/definition"
	"github.com/pitabwire/gridcore/internal/export"
	"github.com/pitabwire/gridcore/model"
)

// GridSummary is one entry of the grid listing.
type GridSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// GridDescriptor is everything a client needs to render a grid: its
// columns, paging and sorting defaults, and enabled exports.
type GridDescriptor struct {
	ID              string                     `json:"id"`
	Title           string                     `json:"title"`
	KeyColumn       string                     `json:"keyColumn"`
	Columns         []model.ColumnDef          `json:"columns"`
	PageSize        int                        `json:"pageSize"`
	PageSizeOptions []int                      `json:"pageSizeOptions"`
	MaxPageSize     int                        `json:"maxPageSize"`
	DefaultSorting  []model.SortSpec           `json:"defaultSorting"`
	SearchColumns   []string                   `json:"searchColumns,omitempty"`
	FacetColumns    []string                   `json:"facetColumns,omitempty"`
	Exports         []model.ExportFormat       `json:"exports"`
	SearchDebounce  int64                      `json:"searchDebounceMs"`
	Virtualization  model.VirtualizationConfig `json:"virtualization"`
}

func handleListGrids(registry *definition.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		grids := registry.AllGrids()
		out := make([]GridSummary, len(grids))
		for i, g := range grids {
			out[i] = GridSummary{ID: g.ID, Title: g.Title}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"grids": out})
	}
}

func handleGetGrid(cfg config.GridConfig, exports *export.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, _ := GridFrom(r.Context())
		WriteJSON(w, http.StatusOK, describeGrid(def, cfg, exports))
	}
}

func describeGrid(def model.GridDefinition, cfg config.GridConfig, exports *export.Registry) GridDescriptor {
	d := GridDescriptor{
		ID:              def.ID,
		Title:           def.Title,
		KeyColumn:       def.KeyColumn,
		Columns:         def.Columns,
		PageSize:        pageSizeFor(def, cfg),
		PageSizeOptions: def.PageSizeOptions,
		MaxPageSize:     cfg.MaxPageSize,
		DefaultSorting:  def.DefaultSorting(),
		SearchColumns:   def.SearchColumns,
		FacetColumns:    model.FacetedColumnIDs(def.Columns),
		SearchDebounce:  cfg.SearchDebounce.Milliseconds(),
		Virtualization:  def.Virtualization,
	}
	if d.PageSizeOptions == nil {
		d.PageSizeOptions = []int{}
	}
	if d.DefaultSorting == nil {
		d.DefaultSorting = []model.SortSpec{}
	}

	formats := exports.Formats()
	slices.Sort(formats)
	d.Exports = []model.ExportFormat{}
	for _, f := range formats {
		if def.AllowsExport(f) {
			d.Exports = append(d.Exports, f)
		}
	}
	return d
}

// pageSizeFor returns the definition's page size, falling back to the
// configured default.
func pageSizeFor(def model.GridDefinition, cfg config.GridConfig) int {
	if def.PageSize > 0 {
		return def.PageSize
	}
	return cfg.DefaultPageSize
}

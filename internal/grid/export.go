package grid

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/gridcore/internal/export"
	"github.com/pitabwire/gridcore/model"
)

var _ export.Source[any] = (*Grid[any])(nil)

// CurrentRows returns the rows of the current page.
func (g *Grid[T]) CurrentRows() []T {
	return g.Rows()
}

// AllRows fetches every row, ignoring filters and search but keeping the
// sort order.
func (g *Grid[T]) AllRows(ctx context.Context) ([]T, error) {
	g.mu.Lock()
	req := g.requestLocked()
	g.mu.Unlock()

	req.GlobalSearch = ""
	req.ColumnFilters = []model.ColumnFilter{}
	req.FacetFilters = nil
	req.FacetColumns = nil
	return g.fetchEvery(ctx, req)
}

// FilteredRows fetches every row matching the current filters and search.
func (g *Grid[T]) FilteredRows(ctx context.Context) ([]T, error) {
	g.mu.Lock()
	req := g.requestLocked()
	g.mu.Unlock()

	req.FacetColumns = nil
	return g.fetchEvery(ctx, req)
}

// fetchEvery asks for the first page to learn the total, then fetches all
// rows in one page of that size.
func (g *Grid[T]) fetchEvery(ctx context.Context, req model.SearchRequest) ([]T, error) {
	fetcher := g.orch.Fetcher()
	req.Page = 1
	req.PageSize = 1
	first, err := fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	if first.Total <= len(first.Data) {
		return first.Data, nil
	}

	req.PageSize = first.Total
	res, err := fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch rows: %w", err)
	}
	return res.Data, nil
}

// Export runs an export with the grid as row source. Columns default to
// the grid's export columns. The outcome is also sent to the notifier.
func (g *Grid[T]) Export(ctx context.Context, cfg model.ExportConfig, opts export.Options[T]) model.ExportResult {
	if len(opts.Columns) == 0 {
		opts.Columns = g.exportCol
	}
	res := g.pipeline.Export(ctx, g, cfg, opts)
	if res.Success {
		g.notifier.Success(fmt.Sprintf("Exported %d rows to %s", res.RowCount, res.Filename))
	} else {
		g.notifier.Error("Export failed", errors.New(res.Error))
	}
	return res
}

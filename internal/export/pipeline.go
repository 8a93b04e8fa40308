// Package export resolves an export scope, projects and formats the rows,
// and encodes them with a format-specific writer.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pitabwire/gridcore/model"
)

const (
	tracerName      = "github.com/pitabwire/gridcore/internal/export"
	timestampLayout = "20060102-150405"
	defaultBaseName = "export"
)

// Column describes how to read and render one exported column.
type Column[T any] struct {
	ID     string
	Header string
	// Accessor reads the cell from a row. Ignored when a row transform is
	// set.
	Accessor func(row T) any
	// Format renders the cell. Nil uses FormatValue.
	Format func(value any, row T) string
}

// Source supplies the rows and visible columns an export reads.
type Source[T any] interface {
	CurrentRows() []T
	AllRows(ctx context.Context) ([]T, error)
	FilteredRows(ctx context.Context) ([]T, error)
	SelectedRows() []T
	VisibleColumnIDs() []string
}

// Options are the per-call inputs of an export.
type Options[T any] struct {
	// Columns are the known column definitions.
	Columns []Column[T]
	// Transform maps a whole row to cells by column id. When set, it
	// replaces the per-column accessors.
	Transform func(row T) map[string]any
	// Rows is the explicit row list for the selected scope.
	Rows []T
	// DateLayout overrides DefaultDateLayout.
	DateLayout string
	// Sink overrides the pipeline's sink.
	Sink Sink
}

// Observer records export outcomes.
type Observer interface {
	ExportFinished(format model.ExportFormat, status string, rows int)
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Registry *Registry
	Sink     Sink
	Logger   *zap.Logger
	Observer Observer
	Now      func() time.Time
}

// Pipeline runs exports. Calls are independent and may run concurrently.
type Pipeline[T any] struct {
	registry *Registry
	sink     Sink
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
	tracer   trace.Tracer
}

// NewPipeline creates a Pipeline. A nil registry uses NewRegistry.
func NewPipeline[T any](opts PipelineOptions) *Pipeline[T] {
	p := &Pipeline[T]{
		registry: opts.Registry,
		sink:     opts.Sink,
		logger:   opts.Logger,
		observer: opts.Observer,
		now:      opts.Now,
		tracer:   otel.Tracer(tracerName),
	}
	if p.registry == nil {
		p.registry = NewRegistry()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Export runs one export. It never returns an error or panics outward:
// failures are reported in the result.
func (p *Pipeline[T]) Export(ctx context.Context, src Source[T], cfg model.ExportConfig, opts Options[T]) (result model.ExportResult) {
	ctx, span := p.tracer.Start(ctx, "grid.export", trace.WithAttributes(
		attribute.String("export.format", string(cfg.Format)),
		attribute.String("export.scope", string(cfg.Scope)),
	))
	defer span.End()

	var filename string
	defer func() {
		if r := recover(); r != nil {
			result = model.ExportResult{Success: false, Filename: filename, Error: fmt.Sprintf("export panicked: %v", r)}
		}
		status := "success"
		if !result.Success {
			status = "error"
			span.SetStatus(codes.Error, result.Error)
			p.logger.Error("export failed",
				zap.String("format", string(cfg.Format)),
				zap.String("scope", string(cfg.Scope)),
				zap.String("error", result.Error),
			)
		} else {
			p.logger.Info("export completed",
				zap.String("format", string(cfg.Format)),
				zap.String("filename", result.Filename),
				zap.Int("rows", result.RowCount),
			)
		}
		span.SetAttributes(attribute.Int("export.rows", result.RowCount))
		if p.observer != nil {
			p.observer.ExportFinished(cfg.Format, status, result.RowCount)
		}
	}()

	writer, err := p.registry.Writer(cfg.Format)
	if err != nil {
		return failed("", err)
	}
	filename = BuildFilename(cfg.Filename, writer.Extension(), cfg.IncludeTimestamp, p.now())

	rows, err := ResolveRows(ctx, src, cfg.Scope, opts.Rows)
	if err != nil {
		return failed(filename, err)
	}
	columns := ProjectColumns(cfg.Columns, src.VisibleColumnIDs(), opts.Columns)
	table := Materialize(rows, columns, opts.Transform, opts.DateLayout)

	sink := opts.Sink
	if sink == nil {
		sink = p.sink
	}
	if sink == nil {
		return failed(filename, errors.New("no export sink configured"))
	}
	out, err := sink.Create(filename)
	if err != nil {
		return failed(filename, err)
	}
	werr := writer.Write(out, table, cfg.FormatOptions)
	cerr := out.Close()
	if werr != nil {
		return failed(filename, werr)
	}
	if cerr != nil {
		return failed(filename, cerr)
	}

	return model.ExportResult{Success: true, RowCount: len(table.Rows), Filename: filename}
}

// ContentType returns the MIME type of format, or "" if unsupported.
func (p *Pipeline[T]) ContentType(format model.ExportFormat) string {
	w, err := p.registry.Writer(format)
	if err != nil {
		return ""
	}
	return w.ContentType()
}

func failed(filename string, err error) model.ExportResult {
	return model.ExportResult{Success: false, Filename: filename, Error: err.Error()}
}

// ResolveRows selects the rows of scope. For the selected scope an explicit
// non-nil rows list wins over the source's selection.
func ResolveRows[T any](ctx context.Context, src Source[T], scope model.ExportScope, explicit []T) ([]T, error) {
	switch scope {
	case model.ScopeCurrentPage, "":
		return src.CurrentRows(), nil
	case model.ScopeAllPages:
		return src.AllRows(ctx)
	case model.ScopeFilteredRows:
		return src.FilteredRows(ctx)
	case model.ScopeSelectedRows:
		if explicit != nil {
			return explicit, nil
		}
		return src.SelectedRows(), nil
	}
	return nil, fmt.Errorf("unknown export scope %q", scope)
}

// ProjectColumns picks the exported columns: explicit ids when given,
// otherwise the visible ids. The selection pseudo-column is always
// dropped. Ids without a definition export with the id as header.
func ProjectColumns[T any](explicit, visible []string, defs []Column[T]) []Column[T] {
	ids := explicit
	if len(ids) == 0 {
		ids = visible
	}
	byID := make(map[string]Column[T], len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}

	out := make([]Column[T], 0, len(ids))
	for _, id := range ids {
		if id == model.SelectionColumnID {
			continue
		}
		c, ok := byID[id]
		if !ok {
			c = Column[T]{ID: id}
		}
		if c.Header == "" {
			c.Header = id
		}
		out = append(out, c)
	}
	return out
}

// Materialize formats rows into a Table.
func Materialize[T any](rows []T, columns []Column[T], transform func(T) map[string]any, dateLayout string) Table {
	t := Table{
		ColumnIDs: make([]string, len(columns)),
		Headers:   make([]string, len(columns)),
		Rows:      make([][]string, 0, len(rows)),
	}
	for i, c := range columns {
		t.ColumnIDs[i] = c.ID
		t.Headers[i] = c.Header
	}
	for _, row := range rows {
		var cells map[string]any
		if transform != nil {
			cells = transform(row)
		}
		out := make([]string, len(columns))
		for i, c := range columns {
			var v any
			switch {
			case transform != nil:
				v = cells[c.ID]
			case c.Accessor != nil:
				v = c.Accessor(row)
			}
			if c.Format != nil {
				out[i] = c.Format(v, row)
			} else {
				out[i] = FormatValue(v, dateLayout)
			}
		}
		t.Rows = append(t.Rows, out)
	}
	return t
}

// BuildFilename returns "{base}{_timestamp}.{ext}". An existing matching
// extension on base is not repeated.
func BuildFilename(base, ext string, withTimestamp bool, now time.Time) string {
	base = strings.TrimSpace(base)
	base = strings.TrimSuffix(base, "."+ext)
	if base == "" {
		base = defaultBaseName
	}
	if withTimestamp {
		base += "_" + now.Format(timestampLayout)
	}
	return base + "." + ext
}

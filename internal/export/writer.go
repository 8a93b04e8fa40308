package export

import (
	"fmt"
	"io"
	"sync"

	"github.com/pitabwire/gridcore/model"
)

// Table is the projected, formatted export content shared by all writers.
type Table struct {
	ColumnIDs []string
	Headers   []string
	Rows      [][]string
}

// Writer encodes a Table in one file format.
type Writer interface {
	Extension() string
	ContentType() string
	Write(w io.Writer, t Table, opts model.FormatOptions) error
}

// Factory constructs a Writer.
type Factory func() (Writer, error)

type lazyWriter struct {
	once    sync.Once
	factory Factory
	writer  Writer
	err     error
}

// Registry maps formats to writer factories. A writer is constructed on the
// first export in its format and reused afterwards.
type Registry struct {
	mu      sync.RWMutex
	writers map[model.ExportFormat]*lazyWriter
}

// NewRegistry returns a registry with the csv, xlsx and pdf writers.
func NewRegistry() *Registry {
	r := &Registry{writers: make(map[model.ExportFormat]*lazyWriter)}
	r.Register(model.FormatCSV, func() (Writer, error) { return NewCSVWriter(), nil })
	r.Register(model.FormatXLSX, func() (Writer, error) { return NewXLSXWriter(), nil })
	r.Register(model.FormatPDF, func() (Writer, error) { return NewPDFWriter(), nil })
	return r
}

// Register installs a factory for format, replacing any previous one.
func (r *Registry) Register(format model.ExportFormat, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writers[format] = &lazyWriter{factory: f}
}

// Writer returns the writer for format, constructing it on first use.
func (r *Registry) Writer(format model.ExportFormat) (Writer, error) {
	r.mu.RLock()
	lw, ok := r.writers[format]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
	lw.once.Do(func() {
		lw.writer, lw.err = lw.factory()
		if lw.err == nil && lw.writer == nil {
			lw.err = fmt.Errorf("factory for %q returned no writer", format)
		}
	})
	return lw.writer, lw.err
}

// Formats lists the registered formats.
func (r *Registry) Formats() []model.ExportFormat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ExportFormat, 0, len(r.writers))
	for f := range r.writers {
		out = append(out, f)
	}
	return out
}

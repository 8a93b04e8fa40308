package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/pitabwire/gridcore/model"
)

// CSVWriter writes delimited text.
type CSVWriter struct{}

// NewCSVWriter creates a CSVWriter.
func NewCSVWriter() *CSVWriter { return &CSVWriter{} }

func (*CSVWriter) Extension() string   { return "csv" }
func (*CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }

// Write encodes t. FormatOptions.Delimiter defaults to a comma.
func (*CSVWriter) Write(w io.Writer, t Table, opts model.FormatOptions) error {
	cw := csv.NewWriter(w)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}
	if !opts.OmitHeaders {
		if err := cw.Write(t.Headers); err != nil {
			return fmt.Errorf("csv header: %w", err)
		}
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("csv rows: %w", err)
	}
	return nil
}

package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/pitabwire/gridcore/model"
)

const defaultSheet = "Sheet1"

// XLSXWriter writes a single-sheet workbook.
type XLSXWriter struct{}

// NewXLSXWriter creates an XLSXWriter.
func NewXLSXWriter() *XLSXWriter { return &XLSXWriter{} }

func (*XLSXWriter) Extension() string { return "xlsx" }
func (*XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write encodes t with a bold header row.
func (*XLSXWriter) Write(w io.Writer, t Table, opts model.FormatOptions) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := defaultSheet
	if opts.SheetName != "" {
		sheet = opts.SheetName
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("xlsx sheet name: %w", err)
		}
	}

	rowNum := 1
	if !opts.OmitHeaders && len(t.Headers) > 0 {
		if err := setRow(f, sheet, rowNum, t.Headers); err != nil {
			return err
		}
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("xlsx header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Headers), 1)
		if err != nil {
			return fmt.Errorf("xlsx header range: %w", err)
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return fmt.Errorf("xlsx header style: %w", err)
		}
		if opts.AutoFilter {
			if err := f.AutoFilter(sheet, "A1:"+last, nil); err != nil {
				return fmt.Errorf("xlsx auto filter: %w", err)
			}
		}
		rowNum++
	}

	for _, row := range t.Rows {
		if err := setRow(f, sheet, rowNum, row); err != nil {
			return err
		}
		rowNum++
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("xlsx row %d: %w", rowNum, err)
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("xlsx row %d: %w", rowNum, err)
	}
	return nil
}

package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/pitabwire/gridcore/model"
)

const (
	pdfFont      = "Helvetica"
	pdfFontSize  = 8
	pdfTitleSize = 12
	pdfRowHeight = 6
	pdfMargin    = 10
	pdfEllipsis  = "..."
)

// PDFWriter writes a paginated table document. The header row repeats on
// every page.
type PDFWriter struct{}

// NewPDFWriter creates a PDFWriter.
func NewPDFWriter() *PDFWriter { return &PDFWriter{} }

func (*PDFWriter) Extension() string   { return "pdf" }
func (*PDFWriter) ContentType() string { return "application/pdf" }

// Write encodes t. Orientation is "portrait" (default) or "landscape";
// PageSize defaults to A4.
func (*PDFWriter) Write(w io.Writer, t Table, opts model.FormatOptions) error {
	orientation := "P"
	if strings.EqualFold(opts.Orientation, "landscape") || strings.EqualFold(opts.Orientation, "L") {
		orientation = "L"
	}
	size := opts.PageSize
	if size == "" {
		size = "A4"
	}

	pdf := fpdf.New(orientation, "mm", size, "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	cols := len(t.Headers)
	if cols == 0 && len(t.Rows) > 0 {
		cols = len(t.Rows[0])
	}
	colW := pageW - 2*pdfMargin
	if cols > 0 {
		colW /= float64(cols)
	}

	header := func() {
		if opts.OmitHeaders || len(t.Headers) == 0 {
			return
		}
		pdf.SetFont(pdfFont, "B", pdfFontSize)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range t.Headers {
			pdf.CellFormat(colW, pdfRowHeight, fit(pdf, tr(h), colW), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(pdfFont, "", pdfFontSize)
	}

	pdf.AddPage()
	if opts.Title != "" {
		pdf.SetFont(pdfFont, "B", pdfTitleSize)
		pdf.CellFormat(0, 10, tr(opts.Title), "", 1, "L", false, 0, "")
	}
	header()
	pdf.SetFont(pdfFont, "", pdfFontSize)

	for _, row := range t.Rows {
		if pdf.GetY()+pdfRowHeight > pageH-pdfMargin {
			pdf.AddPage()
			header()
		}
		for _, cell := range row {
			pdf.CellFormat(colW, pdfRowHeight, fit(pdf, tr(cell), colW), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf output: %w", err)
	}
	return nil
}

// fit truncates s with an ellipsis so it fits in width, leaving cell
// padding.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+pdfEllipsis) > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + pdfEllipsis
}

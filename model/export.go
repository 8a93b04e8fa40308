package model

// ExportFormat selects an export writer.
type ExportFormat string

// Export formats.
const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatPDF  ExportFormat = "pdf"
)

// ExportScope selects which rows an export includes.
type ExportScope string

// Export scopes.
const (
	ScopeCurrentPage  ExportScope = "current"
	ScopeAllPages     ExportScope = "all"
	ScopeFilteredRows ExportScope = "filtered"
	ScopeSelectedRows ExportScope = "selected"
)

// FormatOptions holds writer-specific options. Each writer reads only its
// own fields.
type FormatOptions struct {
	// Delimited text.
	Delimiter   rune `json:"delimiter,omitempty"`
	OmitHeaders bool `json:"omitHeaders,omitempty"`
	// Workbook.
	SheetName  string `json:"sheetName,omitempty"`
	AutoFilter bool   `json:"autoFilter,omitempty"`
	// Paginated document.
	Title       string `json:"title,omitempty"`
	Orientation string `json:"orientation,omitempty"`
	PageSize    string `json:"pageSize,omitempty"`
}

// ExportConfig describes one export invocation.
type ExportConfig struct {
	Format           ExportFormat  `json:"format"`
	Scope            ExportScope   `json:"scope"`
	Columns          []string      `json:"columns,omitempty"`
	Filename         string        `json:"filename"`
	IncludeTimestamp bool          `json:"includeTimestamp"`
	FormatOptions    FormatOptions `json:"formatOptions"`
}

// ExportResult reports the outcome of an export. Exports never return an
// error; failures are described here.
type ExportResult struct {
	Success  bool   `json:"success"`
	RowCount int    `json:"rowCount"`
	Filename string `json:"filename"`
	Error    string `json:"error,omitempty"`
}

package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/gridcore/model"
)

func validDefinition() model.DefinitionFile {
	return model.DefinitionFile{
		Domain:     "orders",
		Version:    "1.0.0",
		SourceFile: "orders.yaml",
		Grids: []model.GridDefinition{
			{
				ID:              "orders.list",
				Title:           "Orders",
				Table:           "sales.orders",
				KeyColumn:       "id",
				DefaultSort:     "reference",
				SortDir:         model.SortAsc,
				PageSize:        25,
				PageSizeOptions: []int{10, 25, 50},
				SearchColumns:   []string{"reference"},
				Exports:         []model.ExportFormat{model.FormatCSV},
				Columns: []model.ColumnDef{
					{ID: "reference", Header: "Reference", Type: model.FilterText, Sortable: true},
					{ID: "customer", Header: "Customer", Column: "customer_name", Type: model.FilterText},
					{
						ID: "status", Header: "Status", Type: model.FilterSelect, Faceted: true,
						Options: []model.SelectOption{{Value: "pending", Label: "Pending"}},
					},
				},
			},
		},
	}
}

func TestValidator_valid(t *testing.T) {
	assert.Empty(t, NewValidator().Validate([]model.DefinitionFile{validDefinition()}))
}

func TestValidator_testdata(t *testing.T) {
	defs, err := NewLoader().LoadAll([]string{"testdata/orders"})
	require.NoError(t, err)
	assert.Empty(t, NewValidator().Validate(defs))
}

func TestValidator_errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.DefinitionFile)
		path   string
		code   string
	}{
		{
			name:   "missing domain",
			mutate: func(d *model.DefinitionFile) { d.Domain = "" },
			path:   "definitions[0].domain",
			code:   "REQUIRED",
		},
		{
			name:   "missing version",
			mutate: func(d *model.DefinitionFile) { d.Version = "" },
			path:   "definitions[0].version",
			code:   "REQUIRED",
		},
		{
			name:   "no grids",
			mutate: func(d *model.DefinitionFile) { d.Grids = nil },
			path:   "definitions[0].grids",
			code:   "REQUIRED",
		},
		{
			name:   "missing grid id",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].ID = "" },
			path:   "definitions[0].grids[0].id",
			code:   "REQUIRED",
		},
		{
			name:   "missing table",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].Table = "" },
			path:   "definitions[0].grids[0].table",
			code:   "REQUIRED",
		},
		{
			name:   "unsafe table",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].Table = "orders; DROP TABLE x" },
			path:   "definitions[0].grids[0].table",
			code:   "INVALID_IDENT",
		},
		{
			name:   "missing key column",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].KeyColumn = "" },
			path:   "definitions[0].grids[0].key_column",
			code:   "REQUIRED",
		},
		{
			name:   "page size too large",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].PageSize = 5000 },
			path:   "definitions[0].grids[0].page_size",
			code:   "RANGE",
		},
		{
			name:   "zero page size option",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].PageSizeOptions = []int{10, 0} },
			path:   "definitions[0].grids[0].page_size_options[1]",
			code:   "RANGE",
		},
		{
			name:   "negative export limit",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].MaxExportRows = -1 },
			path:   "definitions[0].grids[0].max_export_rows",
			code:   "RANGE",
		},
		{
			name:   "bad sort dir",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].SortDir = "sideways" },
			path:   "definitions[0].grids[0].sort_dir",
			code:   "INVALID_ENUM",
		},
		{
			name:   "bad export format",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].Exports = []model.ExportFormat{"docx"} },
			path:   "definitions[0].grids[0].exports[0]",
			code:   "INVALID_ENUM",
		},
		{
			name: "virtualization without row height",
			mutate: func(d *model.DefinitionFile) {
				d.Grids[0].Virtualization = model.VirtualizationConfig{Enabled: true}
			},
			path: "definitions[0].grids[0].virtualization.estimated_row_height",
			code: "REQUIRED",
		},
		{
			name: "no columns",
			mutate: func(d *model.DefinitionFile) {
				d.Grids[0].Columns = nil
				d.Grids[0].DefaultSort = ""
				d.Grids[0].SearchColumns = nil
			},
			path: "definitions[0].grids[0].columns",
			code: "REQUIRED",
		},
		{
			name: "duplicate column",
			mutate: func(d *model.DefinitionFile) {
				d.Grids[0].Columns = append(d.Grids[0].Columns, model.ColumnDef{ID: "customer", Type: model.FilterText})
			},
			path: "definitions[0].grids[0].columns[3].id",
			code: "DUPLICATE",
		},
		{
			name:   "reserved column id",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].Columns[1].ID = model.SelectionColumnID },
			path:   "definitions[0].grids[0].columns[1].id",
			code:   "RESERVED",
		},
		{
			name:   "unsafe source column",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].Columns[1].Column = "name\" OR 1=1" },
			path:   "definitions[0].grids[0].columns[1].column",
			code:   "INVALID_IDENT",
		},
		{
			name:   "unknown column type",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].Columns[0].Type = "money" },
			path:   "definitions[0].grids[0].columns[0].type",
			code:   "INVALID_ENUM",
		},
		{
			name:   "faceted text column",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].Columns[1].Faceted = true },
			path:   "definitions[0].grids[0].columns[1].faceted",
			code:   "INVALID",
		},
		{
			name:   "default sort not found",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].DefaultSort = "missing" },
			path:   "definitions[0].grids[0].default_sort",
			code:   "REF_NOT_FOUND",
		},
		{
			name:   "default sort not sortable",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].DefaultSort = "customer" },
			path:   "definitions[0].grids[0].default_sort",
			code:   "NOT_SORTABLE",
		},
		{
			name:   "search column not found",
			mutate: func(d *model.DefinitionFile) { d.Grids[0].SearchColumns = []string{"reference", "nope"} },
			path:   "definitions[0].grids[0].search_columns[1]",
			code:   "REF_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(&def)
			errs := NewValidator().Validate([]model.DefinitionFile{def})
			assert.True(t, hasError(errs, tt.path, tt.code), "want %s at %s, got %v", tt.code, tt.path, errs)
		})
	}
}

func TestValidator_duplicate_grid_across_files(t *testing.T) {
	a := validDefinition()
	b := validDefinition()
	b.Domain = "billing"
	b.SourceFile = "billing.yaml"

	errs := NewValidator().Validate([]model.DefinitionFile{a, b})
	require.Len(t, errs, 1)
	assert.True(t, hasError(errs, "definitions[1].grids[0].id", "DUPLICATE"), "got %v", errs)
}

func TestVError_Error(t *testing.T) {
	e := VError{Path: "definitions[0].domain", Code: "REQUIRED", Message: "domain is required"}
	assert.EqualError(t, e, "definitions[0].domain: domain is required")
}

func hasError(errs []VError, path, code string) bool {
	for _, e := range errs {
		if e.Path == path && e.Code == code {
			return true
		}
	}
	return false
}

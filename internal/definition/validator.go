package definition

import (
	"fmt"
	"regexp"

	"github.com/pitabwire/gridcore/model"
)

// VError describes a single validation error in a definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// identPattern matches the SQL identifiers a definition may name: a column
// or an optionally schema-qualified table.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// maxPageSize bounds page_size and page_size_options.
const maxPageSize = 1000

// Validator validates definitions structurally and referentially.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks all definitions, including grid id uniqueness across
// files.
func (v *Validator) Validate(defs []model.DefinitionFile) []VError {
	var errs []VError
	seen := make(map[string]string)
	for i, def := range defs {
		prefix := fmt.Sprintf("definitions[%d]", i)
		errs = append(errs, v.validateFile(prefix, def)...)

		for j, g := range def.Grids {
			if g.ID == "" {
				continue
			}
			if other, dup := seen[g.ID]; dup {
				errs = append(errs, VError{
					Path:    fmt.Sprintf("%s.grids[%d].id", prefix, j),
					Code:    "DUPLICATE",
					Message: fmt.Sprintf("grid %q already defined in %s", g.ID, other),
				})
				continue
			}
			seen[g.ID] = def.SourceFile
		}
	}
	return errs
}

func (v *Validator) validateFile(prefix string, def model.DefinitionFile) []VError {
	var errs []VError

	if def.Domain == "" {
		errs = append(errs, VError{Path: prefix + ".domain", Code: "REQUIRED", Message: "domain is required"})
	}
	if def.Version == "" {
		errs = append(errs, VError{Path: prefix + ".version", Code: "REQUIRED", Message: "version is required"})
	}
	if len(def.Grids) == 0 {
		errs = append(errs, VError{Path: prefix + ".grids", Code: "REQUIRED", Message: "at least one grid is required"})
	}

	for i, g := range def.Grids {
		errs = append(errs, v.validateGrid(fmt.Sprintf("%s.grids[%d]", prefix, i), g)...)
	}
	return errs
}

var validSortDirs = map[model.SortDirection]bool{
	"": true, model.SortAsc: true, model.SortDesc: true,
}

var validExportFormats = map[model.ExportFormat]bool{
	model.FormatCSV: true, model.FormatXLSX: true, model.FormatPDF: true,
}

func (v *Validator) validateGrid(prefix string, g model.GridDefinition) []VError {
	var errs []VError

	if g.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: "REQUIRED", Message: "id is required"})
	}
	if g.Table == "" {
		errs = append(errs, VError{Path: prefix + ".table", Code: "REQUIRED", Message: "table is required"})
	} else if !identPattern.MatchString(g.Table) {
		errs = append(errs, VError{Path: prefix + ".table", Code: "INVALID_IDENT", Message: fmt.Sprintf("invalid table name %q", g.Table)})
	}
	if g.KeyColumn == "" {
		errs = append(errs, VError{Path: prefix + ".key_column", Code: "REQUIRED", Message: "key_column is required"})
	} else if !identPattern.MatchString(g.KeyColumn) {
		errs = append(errs, VError{Path: prefix + ".key_column", Code: "INVALID_IDENT", Message: fmt.Sprintf("invalid column name %q", g.KeyColumn)})
	}

	if g.PageSize < 0 || g.PageSize > maxPageSize {
		errs = append(errs, VError{Path: prefix + ".page_size", Code: "RANGE", Message: fmt.Sprintf("page_size must be 0-%d", maxPageSize)})
	}
	for i, n := range g.PageSizeOptions {
		if n <= 0 || n > maxPageSize {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("%s.page_size_options[%d]", prefix, i),
				Code:    "RANGE",
				Message: fmt.Sprintf("page size option must be 1-%d", maxPageSize),
			})
		}
	}
	if g.MaxExportRows < 0 {
		errs = append(errs, VError{Path: prefix + ".max_export_rows", Code: "RANGE", Message: "max_export_rows must not be negative"})
	}
	if !validSortDirs[g.SortDir] {
		errs = append(errs, VError{Path: prefix + ".sort_dir", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid sort_dir %q", g.SortDir)})
	}
	for i, f := range g.Exports {
		if !validExportFormats[f] {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("%s.exports[%d]", prefix, i),
				Code:    "INVALID_ENUM",
				Message: fmt.Sprintf("invalid export format %q", f),
			})
		}
	}
	if g.Virtualization.Enabled && g.Virtualization.EstimatedRowHeight <= 0 {
		errs = append(errs, VError{
			Path:    prefix + ".virtualization.estimated_row_height",
			Code:    "REQUIRED",
			Message: "estimated_row_height is required when virtualization is enabled",
		})
	}

	if len(g.Columns) == 0 {
		errs = append(errs, VError{Path: prefix + ".columns", Code: "REQUIRED", Message: "at least one column is required"})
	}
	columns := make(map[string]model.ColumnDef, len(g.Columns))
	for i, c := range g.Columns {
		cp := fmt.Sprintf("%s.columns[%d]", prefix, i)
		errs = append(errs, v.validateColumn(cp, c)...)
		if c.ID == "" {
			continue
		}
		if _, dup := columns[c.ID]; dup {
			errs = append(errs, VError{Path: cp + ".id", Code: "DUPLICATE", Message: fmt.Sprintf("duplicate column %q", c.ID)})
			continue
		}
		columns[c.ID] = c
	}

	if g.DefaultSort != "" {
		c, ok := columns[g.DefaultSort]
		switch {
		case !ok:
			errs = append(errs, VError{
				Path:    prefix + ".default_sort",
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("column %q not found in grid", g.DefaultSort),
			})
		case !c.Sortable:
			errs = append(errs, VError{
				Path:    prefix + ".default_sort",
				Code:    "NOT_SORTABLE",
				Message: fmt.Sprintf("column %q is not sortable", g.DefaultSort),
			})
		}
	}
	for i, id := range g.SearchColumns {
		if _, ok := columns[id]; !ok {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("%s.search_columns[%d]", prefix, i),
				Code:    "REF_NOT_FOUND",
				Message: fmt.Sprintf("column %q not found in grid", id),
			})
		}
	}

	return errs
}

func (v *Validator) validateColumn(prefix string, c model.ColumnDef) []VError {
	var errs []VError

	switch {
	case c.ID == "":
		errs = append(errs, VError{Path: prefix + ".id", Code: "REQUIRED", Message: "id is required"})
	case c.ID == model.SelectionColumnID:
		errs = append(errs, VError{
			Path:    prefix + ".id",
			Code:    "RESERVED",
			Message: fmt.Sprintf("column id %q is reserved for row selection", model.SelectionColumnID),
		})
	}
	if src := c.SourceColumn(); src != "" && !identPattern.MatchString(src) {
		errs = append(errs, VError{Path: prefix + ".column", Code: "INVALID_IDENT", Message: fmt.Sprintf("invalid column name %q", src)})
	}
	if c.Type != "" && !c.Type.Valid() {
		errs = append(errs, VError{Path: prefix + ".type", Code: "INVALID_ENUM", Message: fmt.Sprintf("invalid column type %q", c.Type)})
	}
	if c.Faceted && c.Type != model.FilterSelect {
		errs = append(errs, VError{Path: prefix + ".faceted", Code: "INVALID", Message: "only select columns can be faceted"})
	}
	if len(c.Options) > 0 && c.Type != model.FilterSelect {
		errs = append(errs, VError{Path: prefix + ".options", Code: "INVALID", Message: "options are only allowed on select columns"})
	}
	return errs
}

package model

// DefinitionFile is the root structure of a grid definition file. Each file
// declares one domain's grids.
type DefinitionFile struct {
	Domain  string           `yaml:"domain"  json:"domain"`
	Version string           `yaml:"version" json:"version"`
	Grids   []GridDefinition `yaml:"grids"   json:"grids"`

	// Checksum is computed at load time and not part of the YAML.
	Checksum string `yaml:"-" json:"-"`
	// SourceFile records the originating file path.
	SourceFile string `yaml:"-" json:"-"`
}

// GridDefinition describes one server-backed grid: the table it reads, its
// columns, and its paging and sorting defaults.
type GridDefinition struct {
	ID              string               `yaml:"id"                json:"id"`
	Title           string               `yaml:"title"             json:"title"`
	Table           string               `yaml:"table"             json:"-"`
	KeyColumn       string               `yaml:"key_column"        json:"key_column"`
	DefaultSort     string               `yaml:"default_sort"      json:"default_sort,omitempty"`
	SortDir         SortDirection        `yaml:"sort_dir"          json:"sort_dir,omitempty"`
	PageSize        int                  `yaml:"page_size"         json:"page_size"`
	PageSizeOptions []int                `yaml:"page_size_options" json:"page_size_options,omitempty"`
	MaxExportRows   int                  `yaml:"max_export_rows"   json:"-"`
	SearchColumns   []string             `yaml:"search_columns"    json:"search_columns,omitempty"`
	Columns         []ColumnDef          `yaml:"columns"           json:"columns"`
	Exports         []ExportFormat       `yaml:"exports"           json:"exports,omitempty"`
	Virtualization  VirtualizationConfig `yaml:"virtualization"    json:"virtualization"`
}

// Column returns the column definition with the given id.
func (g GridDefinition) Column(id string) (ColumnDef, bool) {
	for _, c := range g.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// DefaultSorting returns the definition's default sort as a request sort list.
func (g GridDefinition) DefaultSorting() []SortSpec {
	if g.DefaultSort == "" {
		return nil
	}
	dir := g.SortDir
	if dir != SortDesc {
		dir = SortAsc
	}
	return []SortSpec{{ColumnID: g.DefaultSort, Direction: dir}}
}

// AllowsExport reports whether format is enabled. An empty list enables
// every format.
func (g GridDefinition) AllowsExport(format ExportFormat) bool {
	if len(g.Exports) == 0 {
		return true
	}
	for _, f := range g.Exports {
		if f == format {
			return true
		}
	}
	return false
}

package model

// SelectionColumnID is the reserved id of the row-selection checkbox
// pseudo-column. It never takes part in exports.
const SelectionColumnID = "select"

// ColumnDef describes one grid column.
type ColumnDef struct {
	ID         string     `json:"id" yaml:"id"`
	Header     string     `json:"header" yaml:"header"`
	Type       FilterType `json:"type" yaml:"type"`
	Sortable   bool       `json:"sortable" yaml:"sortable"`
	Filterable bool       `json:"filterable" yaml:"filterable"`
	Faceted    bool       `json:"faceted" yaml:"faceted"`
	Hideable   *bool      `json:"hideable,omitempty" yaml:"hideable"`
	// Column is the backing SQL column; empty means ID.
	Column  string         `json:"-" yaml:"column"`
	Options []SelectOption `json:"options,omitempty" yaml:"options"`
}

// SelectOption is a static option of a select column.
type SelectOption struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// SourceColumn returns the backing column name.
func (c ColumnDef) SourceColumn() string {
	if c.Column != "" {
		return c.Column
	}
	return c.ID
}

// CanHide reports whether the column may be hidden. Columns are hideable
// unless stated otherwise.
func (c ColumnDef) CanHide() bool {
	return c.Hideable == nil || *c.Hideable
}

// ColumnIDs returns the ids of cols in order.
func ColumnIDs(cols []ColumnDef) []string {
	ids := make([]string, len(cols))
	for i, c := range cols {
		ids[i] = c.ID
	}
	return ids
}

// FacetedColumnIDs returns the ids of the faceted columns in order.
func FacetedColumnIDs(cols []ColumnDef) []string {
	var ids []string
	for _, c := range cols {
		if c.Faceted {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

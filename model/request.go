package model

// SortDirection is the direction of a sort.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortSpec sorts by one column.
type SortSpec struct {
	ColumnID  string        `json:"columnId"`
	Direction SortDirection `json:"direction"`
}

// ColumnFilter is the wire form of an active FilterValue.
type ColumnFilter struct {
	ColumnID   string     `json:"columnId"`
	FilterType FilterType `json:"filterType"`
	Operator   Operator   `json:"operator"`
	Value      any        `json:"value"`
	ValueTo    any        `json:"valueTo,omitempty"`
	Values     []string   `json:"values,omitempty"`
}

// SearchRequest is the immutable request snapshot sent to a data source.
// Page is 1-based.
type SearchRequest struct {
	Page          int                 `json:"page"`
	PageSize      int                 `json:"pageSize"`
	Sorting       []SortSpec          `json:"sorting"`
	GlobalSearch  string              `json:"globalSearch,omitempty"`
	ColumnFilters []ColumnFilter      `json:"columnFilters"`
	FacetColumns  []string            `json:"facetColumns,omitempty"`
	FacetFilters  map[string][]string `json:"facetFilters,omitempty"`
}

// Offset returns the zero-based row offset of the requested page.
func (r SearchRequest) Offset() int {
	if r.Page <= 1 {
		return 0
	}
	return (r.Page - 1) * r.PageSize
}

// FacetValue is one distinct value of a faceted column with its row count.
type FacetValue struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
	Count int    `json:"count"`
}

// Facet holds the distinct values of a column computed by the data source.
type Facet struct {
	ColumnID    string       `json:"columnId"`
	Values      []FacetValue `json:"values"`
	TotalValues int          `json:"totalValues"`
}

// PagedResult is one page of rows returned by a data source.
type PagedResult[T any] struct {
	Data         []T              `json:"data"`
	Page         int              `json:"page"`
	PageSize     int              `json:"pageSize"`
	Total        int              `json:"total"`
	TotalPages   int              `json:"totalPages"`
	HasNext      bool             `json:"hasNext"`
	HasPrevious  bool             `json:"hasPrevious"`
	Facets       map[string]Facet `json:"facets,omitempty"`
	Aggregations map[string]any   `json:"aggregations,omitempty"`
}

// NewPagedResult builds a PagedResult and derives the page count and
// navigation flags from total.
func NewPagedResult[T any](data []T, page, pageSize, total int) PagedResult[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := TotalPages(total, pageSize)
	return PagedResult[T]{
		Data:        data,
		Page:        page,
		PageSize:    pageSize,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

// TotalPages returns ceil(total/pageSize), zero when pageSize is not positive.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FilterType discriminates the FilterValue variants.
type FilterType string

// Filter categories.
const (
	FilterText    FilterType = "text"
	FilterNumber  FilterType = "number"
	FilterDate    FilterType = "date"
	FilterSelect  FilterType = "select"
	FilterBoolean FilterType = "boolean"
	FilterRange   FilterType = "range"
)

// Operator is a filter comparison operator. Each FilterType accepts only
// the operators listed in OperatorsFor.
type Operator string

// Text operators.
const (
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpIsEmpty     Operator = "isEmpty"
	OpIsNotEmpty  Operator = "isNotEmpty"
)

// Number operators (plus OpEquals, OpNotEquals, OpIsEmpty, OpIsNotEmpty).
const (
	OpGreaterThan        Operator = "gt"
	OpGreaterThanOrEqual Operator = "gte"
	OpLessThan           Operator = "lt"
	OpLessThanOrEqual    Operator = "lte"
	OpBetween            Operator = "between"
)

// Date operators (plus OpBetween, OpIsEmpty, OpIsNotEmpty). The relative
// operators carry no value; they are resolved against the current day.
const (
	OpIs        Operator = "is"
	OpBefore    Operator = "before"
	OpAfter     Operator = "after"
	OpToday     Operator = "today"
	OpYesterday Operator = "yesterday"
	OpThisWeek  Operator = "thisWeek"
	OpLastWeek  Operator = "lastWeek"
	OpThisMonth Operator = "thisMonth"
	OpLastMonth Operator = "lastMonth"
)

// Select operators.
const (
	OpIsAnyOf  Operator = "isAnyOf"
	OpIsNoneOf Operator = "isNoneOf"
)

var operatorSets = map[FilterType][]Operator{
	FilterText: {
		OpContains, OpNotContains, OpEquals, OpNotEquals,
		OpStartsWith, OpEndsWith, OpIsEmpty, OpIsNotEmpty,
	},
	FilterNumber: {
		OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanOrEqual,
		OpLessThan, OpLessThanOrEqual, OpBetween, OpIsEmpty, OpIsNotEmpty,
	},
	FilterDate: {
		OpIs, OpBefore, OpAfter, OpBetween,
		OpToday, OpYesterday, OpThisWeek, OpLastWeek, OpThisMonth, OpLastMonth,
		OpIsEmpty, OpIsNotEmpty,
	},
	FilterSelect:  {OpIsAnyOf, OpIsNoneOf},
	FilterBoolean: {OpIs},
	FilterRange:   {OpBetween},
}

// Valid reports whether t is a known filter type.
func (t FilterType) Valid() bool {
	_, ok := operatorSets[t]
	return ok
}

// OperatorsFor returns the operator set for a filter type.
func OperatorsFor(t FilterType) []Operator {
	ops := operatorSets[t]
	out := make([]Operator, len(ops))
	copy(out, ops)
	return out
}

// DefaultOperator returns the first operator of the type's set.
func DefaultOperator(t FilterType) Operator {
	ops := operatorSets[t]
	if len(ops) == 0 {
		return OpContains
	}
	return ops[0]
}

// SupportsOperator reports whether op belongs to t's operator set.
func SupportsOperator(t FilterType, op Operator) bool {
	for _, o := range operatorSets[t] {
		if o == op {
			return true
		}
	}
	return false
}

// IsRelativeDate reports whether op is one of the value-less relative date
// operators.
func IsRelativeDate(op Operator) bool {
	switch op {
	case OpToday, OpYesterday, OpThisWeek, OpLastWeek, OpThisMonth, OpLastMonth:
		return true
	}
	return false
}

// FilterValue is a typed filter bound to one column. The set of
// implementations is closed.
type FilterValue interface {
	FilterType() FilterType
	FilterOperator() Operator
	isFilterValue()
}

// TextFilter filters string cells.
type TextFilter struct {
	Operator Operator
	Value    string
}

// NumberFilter filters numeric cells. ValueTo is only read by OpBetween.
type NumberFilter struct {
	Operator Operator
	Value    decimal.NullDecimal
	ValueTo  decimal.NullDecimal
}

// DateFilter filters date cells. ValueTo is only read by OpBetween.
type DateFilter struct {
	Operator Operator
	Value    *time.Time
	ValueTo  *time.Time
}

// SelectFilter matches cells against a set of option values.
type SelectFilter struct {
	Operator Operator
	Values   []string
}

// BoolChoice is the tri-state value of a boolean filter, plus "unset".
type BoolChoice int

const (
	// BoolUnset means no choice was made; the filter is inactive.
	BoolUnset BoolChoice = iota
	// BoolAll is an explicit "all" choice. It is active but does not
	// restrict rows.
	BoolAll
	BoolTrue
	BoolFalse
)

// BooleanFilter filters boolean cells.
type BooleanFilter struct {
	Operator Operator
	Value    BoolChoice
}

// RangeFilter is an inclusive numeric range; either bound may be absent.
type RangeFilter struct {
	Min decimal.NullDecimal
	Max decimal.NullDecimal
}

func (f TextFilter) FilterType() FilterType    { return FilterText }
func (f NumberFilter) FilterType() FilterType  { return FilterNumber }
func (f DateFilter) FilterType() FilterType    { return FilterDate }
func (f SelectFilter) FilterType() FilterType  { return FilterSelect }
func (f BooleanFilter) FilterType() FilterType { return FilterBoolean }
func (f RangeFilter) FilterType() FilterType   { return FilterRange }

func (f TextFilter) FilterOperator() Operator    { return f.Operator }
func (f NumberFilter) FilterOperator() Operator  { return f.Operator }
func (f DateFilter) FilterOperator() Operator    { return f.Operator }
func (f SelectFilter) FilterOperator() Operator  { return f.Operator }
func (f BooleanFilter) FilterOperator() Operator { return f.Operator }
func (f RangeFilter) FilterOperator() Operator   { return OpBetween }

func (TextFilter) isFilterValue()    {}
func (NumberFilter) isFilterValue()  {}
func (DateFilter) isFilterValue()    {}
func (SelectFilter) isFilterValue()  {}
func (BooleanFilter) isFilterValue() {}
func (RangeFilter) isFilterValue()   {}

// ColumnFilterState maps column id to its filter. Treat values as
// immutable: With and Without return modified copies.
type ColumnFilterState map[string]FilterValue

// With returns a copy of s with columnID set to f.
func (s ColumnFilterState) With(columnID string, f FilterValue) ColumnFilterState {
	out := make(ColumnFilterState, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[columnID] = f
	return out
}

// Without returns a copy of s without columnID.
func (s ColumnFilterState) Without(columnID string) ColumnFilterState {
	out := make(ColumnFilterState, len(s))
	for k, v := range s {
		if k != columnID {
			out[k] = v
		}
	}
	return out
}

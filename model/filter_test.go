package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperatorsFor_returnsCopy(t *testing.T) {
	ops := OperatorsFor(FilterText)
	ops[0] = OpIsAnyOf
	assert.Equal(t, OpContains, DefaultOperator(FilterText), "mutating the returned slice changed the operator set")
}

func TestDefaultOperator(t *testing.T) {
	for ft, want := range map[FilterType]Operator{
		FilterText:    OpContains,
		FilterNumber:  OpEquals,
		FilterDate:    OpIs,
		FilterSelect:  OpIsAnyOf,
		FilterBoolean: OpIs,
		FilterRange:   OpBetween,
		"unknown":     OpContains,
	} {
		assert.Equal(t, want, DefaultOperator(ft), string(ft))
	}
}

func TestSupportsOperator(t *testing.T) {
	assert.True(t, SupportsOperator(FilterDate, OpLastMonth))
	assert.False(t, SupportsOperator(FilterText, OpBetween))
	assert.False(t, SupportsOperator(FilterBoolean, OpEquals), "boolean only supports is")
}

func TestRangeFilter_operatorIsBetween(t *testing.T) {
	var f FilterValue = RangeFilter{}
	assert.Equal(t, OpBetween, f.FilterOperator())
	assert.Equal(t, FilterRange, f.FilterType())
}

func TestColumnFilterState_WithWithout_copy(t *testing.T) {
	base := ColumnFilterState{"a": TextFilter{Operator: OpContains, Value: "x"}}
	added := base.With("b", SelectFilter{Operator: OpIsAnyOf, Values: []string{"1"}})
	assert.Len(t, base, 1, "With mutated its receiver")
	assert.Len(t, added, 2)

	removed := added.Without("a")
	assert.NotContains(t, removed, "a")
	assert.Contains(t, added, "a", "Without mutated its receiver")
}

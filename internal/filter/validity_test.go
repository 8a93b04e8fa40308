package filter

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pitabwire/gridcore/model"
)

func TestHasValue(t *testing.T) {
	now := ts("2024-05-01T00:00:00Z")
	tests := []struct {
		name string
		f    model.FilterValue
		want bool
	}{
		{"text blank", model.TextFilter{Operator: model.OpContains, Value: "   "}, false},
		{"text value", model.TextFilter{Operator: model.OpContains, Value: " a "}, true},
		{"text isEmpty", model.TextFilter{Operator: model.OpIsEmpty}, true},
		{"number missing", model.NumberFilter{Operator: model.OpGreaterThan}, false},
		{"number value", model.NumberFilter{Operator: model.OpGreaterThan, Value: num("0")}, true},
		{"number between one bound", model.NumberFilter{Operator: model.OpBetween, Value: num("1")}, false},
		{"number between both", model.NumberFilter{Operator: model.OpBetween, Value: num("1"), ValueTo: num("2")}, true},
		{"number isNotEmpty", model.NumberFilter{Operator: model.OpIsNotEmpty}, true},
		{"date missing", model.DateFilter{Operator: model.OpBefore}, false},
		{"date relative", model.DateFilter{Operator: model.OpLastWeek}, true},
		{"date between one bound", model.DateFilter{Operator: model.OpBetween, Value: now}, false},
		{"date between both", model.DateFilter{Operator: model.OpBetween, Value: now, ValueTo: now}, true},
		{"select empty", model.SelectFilter{Operator: model.OpIsAnyOf}, false},
		{"select values", model.SelectFilter{Operator: model.OpIsAnyOf, Values: []string{"x"}}, true},
		{"boolean unset", model.BooleanFilter{Operator: model.OpIs}, false},
		{"boolean all", model.BooleanFilter{Operator: model.OpIs, Value: model.BoolAll}, true},
		{"range none", model.RangeFilter{}, false},
		{"range max only", model.RangeFilter{Max: decimal.NewNullDecimal(decimal.NewFromInt(9))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasValue(tt.f))
		})
	}
}

func TestActive_dropsInactive(t *testing.T) {
	state := model.ColumnFilterState{
		"a": model.TextFilter{Operator: model.OpContains, Value: ""},
		"b": model.TextFilter{Operator: model.OpContains, Value: "x"},
		"c": nil,
	}
	got := Active(state)
	assert.Len(t, got, 1)
	assert.Contains(t, got, "b")
}

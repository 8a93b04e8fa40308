package filter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/pitabwire/gridcore/model"
)

func TestMatch_text(t *testing.T) {
	now := time.Now()
	assert.True(t, Match(model.TextFilter{Operator: model.OpContains, Value: "CME"}, "Acme Ltd", now))
	assert.False(t, Match(model.TextFilter{Operator: model.OpNotContains, Value: "acme"}, "Acme Ltd", now))
	assert.True(t, Match(model.TextFilter{Operator: model.OpStartsWith, Value: "ac"}, "Acme", now))
	assert.True(t, Match(model.TextFilter{Operator: model.OpEndsWith, Value: "ME"}, "Acme", now))
	assert.True(t, Match(model.TextFilter{Operator: model.OpIsEmpty}, "  ", now))
	assert.True(t, Match(model.TextFilter{Operator: model.OpIsNotEmpty}, "x", now))
	assert.True(t, Match(model.TextFilter{Operator: model.OpContains}, "anything", now), "inactive filter matches")
}

func TestMatch_number(t *testing.T) {
	now := time.Now()
	assert.True(t, Match(model.NumberFilter{Operator: model.OpGreaterThan, Value: num("10")}, 11, now))
	assert.False(t, Match(model.NumberFilter{Operator: model.OpGreaterThan, Value: num("10")}, 10.0, now))
	assert.True(t, Match(model.NumberFilter{Operator: model.OpLessThanOrEqual, Value: num("10")}, decimal.NewFromInt(10), now))
	assert.True(t, Match(model.NumberFilter{Operator: model.OpBetween, Value: num("20"), ValueTo: num("10")}, "15", now))
	assert.False(t, Match(model.NumberFilter{Operator: model.OpEquals, Value: num("1")}, "abc", now))
	assert.True(t, Match(model.NumberFilter{Operator: model.OpIsEmpty}, nil, now))
}

func TestMatch_date(t *testing.T) {
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC) // Wednesday
	day := ts("2024-05-10T00:00:00Z")
	cell := time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)

	assert.True(t, Match(model.DateFilter{Operator: model.OpIs, Value: day}, cell, now))
	assert.False(t, Match(model.DateFilter{Operator: model.OpBefore, Value: day}, cell, now))
	assert.True(t, Match(model.DateFilter{Operator: model.OpAfter, Value: ts("2024-05-09T00:00:00Z")}, cell, now))
	assert.True(t, Match(model.DateFilter{Operator: model.OpBetween, Value: ts("2024-05-10T00:00:00Z"), ValueTo: ts("2024-05-01T00:00:00Z")}, cell, now))
	assert.True(t, Match(model.DateFilter{Operator: model.OpLastWeek}, cell, now))
	assert.False(t, Match(model.DateFilter{Operator: model.OpThisWeek}, cell, now))
	assert.True(t, Match(model.DateFilter{Operator: model.OpThisMonth}, "2024-05-01", now))
	assert.False(t, Match(model.DateFilter{Operator: model.OpToday}, nil, now))
}

func TestMatch_selectBooleanRange(t *testing.T) {
	now := time.Now()
	anyOf := model.SelectFilter{Operator: model.OpIsAnyOf, Values: []string{"paid", "open"}}
	assert.True(t, Match(anyOf, "paid", now))
	assert.False(t, Match(anyOf, "void", now))
	assert.True(t, Match(model.SelectFilter{Operator: model.OpIsNoneOf, Values: []string{"void"}}, "paid", now))
	assert.True(t, Match(anyOf, []string{"x", "open"}, now))

	assert.True(t, Match(model.BooleanFilter{Operator: model.OpIs, Value: model.BoolAll}, false, now))
	assert.True(t, Match(model.BooleanFilter{Operator: model.OpIs, Value: model.BoolFalse}, false, now))
	assert.False(t, Match(model.BooleanFilter{Operator: model.OpIs, Value: model.BoolTrue}, false, now))

	r := model.RangeFilter{Min: num("5")}
	assert.True(t, Match(r, 5, now))
	assert.False(t, Match(r, 4.99, now))
}

func TestMatchAll(t *testing.T) {
	row := map[string]any{"name": "Acme", "total": 30}
	state := model.ColumnFilterState{
		"name":  model.TextFilter{Operator: model.OpContains, Value: "ac"},
		"total": model.NumberFilter{Operator: model.OpGreaterThan, Value: num("40")},
	}
	get := func(id string) any { return row[id] }
	assert.False(t, MatchAll(state, get, time.Now()))
	assert.True(t, MatchAll(state.Without("total"), get, time.Now()))
}

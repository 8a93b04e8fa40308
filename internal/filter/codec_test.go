package filter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/gridcore/model"
)

func num(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func roundTripCases() map[string]model.FilterValue {
	return map[string]model.FilterValue{
		"name":     model.TextFilter{Operator: model.OpStartsWith, Value: "acme"},
		"total":    model.NumberFilter{Operator: model.OpBetween, Value: num("10.5"), ValueTo: num("99")},
		"created":  model.DateFilter{Operator: model.OpAfter, Value: ts("2024-03-01T10:00:00Z")},
		"status":   model.SelectFilter{Operator: model.OpIsNoneOf, Values: []string{"draft", "void"}},
		"archived": model.BooleanFilter{Operator: model.OpIs, Value: model.BoolFalse},
		"price":    model.RangeFilter{Min: num("5"), Max: num("20")},
	}
}

func TestSerializeDeserialize_roundTrip(t *testing.T) {
	for id, f := range roundTripCases() {
		t.Run(id, func(t *testing.T) {
			got := Deserialize(Serialize(id, f))
			assert.Equal(t, f.FilterType(), got.FilterType())
			assert.Equal(t, f.FilterOperator(), got.FilterOperator())
		})
	}
}

func TestEncodeDecode_roundTripThroughJSON(t *testing.T) {
	for id, f := range roundTripCases() {
		t.Run(id, func(t *testing.T) {
			s, err := Encode(id, f)
			require.NoError(t, err)
			cf, err := Decode(s)
			require.NoError(t, err)
			got := Deserialize(cf)
			assert.Equal(t, f.FilterType(), got.FilterType())
			assert.Equal(t, f.FilterOperator(), got.FilterOperator())
			assert.Equal(t, HasValue(f), HasValue(got))
		})
	}
}

func TestSerialize_rangeUsesBetweenShape(t *testing.T) {
	cf := Serialize("price", model.RangeFilter{Min: num("5"), Max: num("20")})
	assert.Equal(t, model.FilterRange, cf.FilterType)
	assert.Equal(t, model.OpBetween, cf.Operator)
	assert.EqualValues(t, "5", cf.Value)
	assert.EqualValues(t, "20", cf.ValueTo)
}

func TestSerialize_dateIsUTCWithMillis(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	local := time.Date(2024, 3, 1, 7, 30, 0, 0, loc)
	cf := Serialize("created", model.DateFilter{Operator: model.OpIs, Value: &local})
	assert.Equal(t, "2024-03-01T12:30:00.000Z", cf.Value)
	assert.Nil(t, cf.ValueTo)
}

func TestSerialize_booleanAllIsNull(t *testing.T) {
	cf := Serialize("archived", model.BooleanFilter{Operator: model.OpIs, Value: model.BoolAll})
	assert.Nil(t, cf.Value)
	got := Deserialize(cf).(model.BooleanFilter)
	assert.Equal(t, model.BoolAll, got.Value)
}

func TestDeserialize_unknownTypeDefaultsToTextContains(t *testing.T) {
	got := Deserialize(model.ColumnFilter{ColumnID: "x", FilterType: "geo", Operator: "near", Value: "berlin"})
	tf, ok := got.(model.TextFilter)
	require.True(t, ok, "got %T", got)
	assert.Equal(t, model.OpContains, tf.Operator)
	assert.Equal(t, "berlin", tf.Value)
}

func TestDeserialize_unknownOperatorUsesTypeDefault(t *testing.T) {
	got := Deserialize(model.ColumnFilter{FilterType: model.FilterNumber, Operator: "approx", Value: 3.0})
	nf := got.(model.NumberFilter)
	assert.Equal(t, model.OpEquals, nf.Operator)
	assert.True(t, nf.Value.Decimal.Equal(decimal.NewFromInt(3)))
}

func TestDeserialize_selectFromValueList(t *testing.T) {
	got := Deserialize(model.ColumnFilter{FilterType: model.FilterSelect, Operator: model.OpIsAnyOf, Value: []any{"a", "b"}})
	assert.Equal(t, []string{"a", "b"}, got.(model.SelectFilter).Values)
}

func TestDecode_invalidJSON(t *testing.T) {
	_, err := Decode("{not json")
	assert.Error(t, err)
}

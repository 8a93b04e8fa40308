package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pitabwire/gridcore/model"
)

// DateLayout is the wire format of date filter values: UTC with
// millisecond precision.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Serialize converts f into its wire form for columnID.
func Serialize(columnID string, f model.FilterValue) model.ColumnFilter {
	cf := model.ColumnFilter{
		ColumnID:   columnID,
		FilterType: f.FilterType(),
		Operator:   f.FilterOperator(),
	}
	switch v := f.(type) {
	case model.TextFilter:
		cf.Value = v.Value
	case model.NumberFilter:
		cf.Value = numberValue(v.Value)
		if v.Operator == model.OpBetween {
			cf.ValueTo = numberValue(v.ValueTo)
		}
	case model.DateFilter:
		cf.Value = dateValue(v.Value)
		if v.Operator == model.OpBetween {
			cf.ValueTo = dateValue(v.ValueTo)
		}
	case model.SelectFilter:
		cf.Values = append([]string(nil), v.Values...)
	case model.BooleanFilter:
		switch v.Value {
		case model.BoolTrue:
			cf.Value = true
		case model.BoolFalse:
			cf.Value = false
		}
	case model.RangeFilter:
		cf.Value = numberValue(v.Min)
		cf.ValueTo = numberValue(v.Max)
	}
	return cf
}

// Deserialize converts a wire filter back into a FilterValue. Unknown
// filter types decode as a text contains filter; unknown operators fall
// back to the type's default operator.
func Deserialize(cf model.ColumnFilter) model.FilterValue {
	ft := cf.FilterType
	if !ft.Valid() {
		return model.TextFilter{Operator: model.OpContains, Value: stringValue(cf.Value)}
	}
	op := cf.Operator
	if !model.SupportsOperator(ft, op) {
		op = model.DefaultOperator(ft)
	}

	switch ft {
	case model.FilterNumber:
		return model.NumberFilter{Operator: op, Value: toDecimal(cf.Value), ValueTo: toDecimal(cf.ValueTo)}
	case model.FilterDate:
		return model.DateFilter{Operator: op, Value: toTime(cf.Value), ValueTo: toTime(cf.ValueTo)}
	case model.FilterSelect:
		return model.SelectFilter{Operator: op, Values: toStrings(cf)}
	case model.FilterBoolean:
		return model.BooleanFilter{Operator: op, Value: toBoolChoice(cf.Value)}
	case model.FilterRange:
		return model.RangeFilter{Min: toDecimal(cf.Value), Max: toDecimal(cf.ValueTo)}
	default:
		return model.TextFilter{Operator: op, Value: stringValue(cf.Value)}
	}
}

// Encode returns the compact JSON of f's wire form.
func Encode(columnID string, f model.FilterValue) (string, error) {
	b, err := json.Marshal(Serialize(columnID, f))
	if err != nil {
		return "", fmt.Errorf("encoding filter %s: %w", columnID, err)
	}
	return string(b), nil
}

// Decode parses the JSON wire form produced by Encode.
func Decode(data string) (model.ColumnFilter, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var cf model.ColumnFilter
	if err := dec.Decode(&cf); err != nil {
		return model.ColumnFilter{}, fmt.Errorf("decoding filter: %w", err)
	}
	return cf, nil
}

func numberValue(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return json.Number(d.Decimal.String())
}

func dateValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(DateLayout)
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func toDecimal(v any) decimal.NullDecimal {
	switch x := v.(type) {
	case nil:
		return decimal.NullDecimal{}
	case decimal.Decimal:
		return decimal.NewNullDecimal(x)
	case decimal.NullDecimal:
		return x
	case json.Number:
		return parseDecimal(x.String())
	case string:
		return parseDecimal(x)
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(x))
	case float32:
		return decimal.NewNullDecimal(decimal.NewFromFloat32(x))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(x)))
	case int32:
		return decimal.NewNullDecimal(decimal.NewFromInt32(x))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(x))
	}
	return decimal.NullDecimal{}
}

func parseDecimal(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

var dateLayouts = []string{time.RFC3339Nano, DateLayout, "2006-01-02T15:04:05", "2006-01-02"}

func toTime(v any) *time.Time {
	switch x := v.(type) {
	case time.Time:
		t := x.UTC()
		return &t
	case *time.Time:
		if x == nil {
			return nil
		}
		t := x.UTC()
		return &t
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				t = t.UTC()
				return &t
			}
		}
	case json.Number:
		if ms, err := x.Int64(); err == nil {
			t := time.UnixMilli(ms).UTC()
			return &t
		}
	case float64:
		t := time.UnixMilli(int64(x)).UTC()
		return &t
	}
	return nil
}

func toStrings(cf model.ColumnFilter) []string {
	if len(cf.Values) > 0 {
		return append([]string(nil), cf.Values...)
	}
	switch x := cf.Value.(type) {
	case []string:
		return append([]string(nil), x...)
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, stringValue(item))
		}
		return out
	case string:
		if x != "" {
			return []string{x}
		}
	}
	return nil
}

func toBoolChoice(v any) model.BoolChoice {
	switch x := v.(type) {
	case nil:
		return model.BoolAll
	case bool:
		if x {
			return model.BoolTrue
		}
		return model.BoolFalse
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return model.BoolAll
		}
		if b {
			return model.BoolTrue
		}
		return model.BoolFalse
	}
	return model.BoolAll
}

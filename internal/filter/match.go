package filter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pitabwire/gridcore/model"
)

// Match reports whether cell satisfies f. Filters without a usable value
// match every cell. Text comparisons are case-insensitive; date
// comparisons are by calendar day in now's location.
func Match(f model.FilterValue, cell any, now time.Time) bool {
	if f == nil || !HasValue(f) {
		return true
	}
	if f.FilterOperator() == model.OpIsEmpty {
		return isEmpty(cell)
	}
	if f.FilterOperator() == model.OpIsNotEmpty {
		return !isEmpty(cell)
	}

	switch v := f.(type) {
	case model.TextFilter:
		return matchText(v, cell)
	case model.NumberFilter:
		return matchNumber(v, cell)
	case model.DateFilter:
		return matchDate(v, cell, now)
	case model.SelectFilter:
		return matchSelect(v, cell)
	case model.BooleanFilter:
		return matchBoolean(v, cell)
	case model.RangeFilter:
		return matchRange(v, cell)
	}
	return true
}

// MatchAll reports whether row passes every filter in state. get returns
// the cell for a column id.
func MatchAll(state model.ColumnFilterState, get func(columnID string) any, now time.Time) bool {
	for id, f := range state {
		if !Match(f, get(id), now) {
			return false
		}
	}
	return true
}

func isEmpty(cell any) bool {
	switch x := cell.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case *string:
		return x == nil || strings.TrimSpace(*x) == ""
	case *time.Time:
		return x == nil
	case decimal.NullDecimal:
		return !x.Valid
	}
	return false
}

// CellString renders a cell for text comparison.
func CellString(cell any) string {
	switch x := cell.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(cell)
}

func matchText(f model.TextFilter, cell any) bool {
	s := strings.ToLower(CellString(cell))
	q := strings.ToLower(strings.TrimSpace(f.Value))
	switch f.Operator {
	case model.OpContains:
		return strings.Contains(s, q)
	case model.OpNotContains:
		return !strings.Contains(s, q)
	case model.OpEquals:
		return s == q
	case model.OpNotEquals:
		return s != q
	case model.OpStartsWith:
		return strings.HasPrefix(s, q)
	case model.OpEndsWith:
		return strings.HasSuffix(s, q)
	}
	return true
}

func cellDecimal(cell any) (decimal.Decimal, bool) {
	switch x := cell.(type) {
	case decimal.Decimal:
		return x, true
	case decimal.NullDecimal:
		return x.Decimal, x.Valid
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int64:
		return decimal.NewFromInt(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case float64:
		return decimal.NewFromFloat(x), true
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

func matchNumber(f model.NumberFilter, cell any) bool {
	n, ok := cellDecimal(cell)
	if !ok {
		return f.Operator == model.OpNotEquals
	}
	v := f.Value.Decimal
	switch f.Operator {
	case model.OpEquals:
		return n.Equal(v)
	case model.OpNotEquals:
		return !n.Equal(v)
	case model.OpGreaterThan:
		return n.GreaterThan(v)
	case model.OpGreaterThanOrEqual:
		return n.GreaterThanOrEqual(v)
	case model.OpLessThan:
		return n.LessThan(v)
	case model.OpLessThanOrEqual:
		return n.LessThanOrEqual(v)
	case model.OpBetween:
		lo, hi := v, f.ValueTo.Decimal
		if lo.GreaterThan(hi) {
			lo, hi = hi, lo
		}
		return n.GreaterThanOrEqual(lo) && n.LessThanOrEqual(hi)
	}
	return true
}

func cellTime(cell any) (time.Time, bool) {
	switch x := cell.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case string:
		if t := toTime(x); t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

func matchDate(f model.DateFilter, cell any, now time.Time) bool {
	t, ok := cellTime(cell)
	if !ok {
		return false
	}
	loc := now.Location()
	t = t.In(loc)

	if from, to, ok := RelativeDateRange(f.Operator, now); ok {
		return !t.Before(from) && t.Before(to)
	}

	from, to := DayRange(*f.Value, loc)
	switch f.Operator {
	case model.OpIs:
		return !t.Before(from) && t.Before(to)
	case model.OpBefore:
		return t.Before(from)
	case model.OpAfter:
		return !t.Before(to)
	case model.OpBetween:
		endFrom, endTo := DayRange(*f.ValueTo, loc)
		if endFrom.Before(from) {
			from, endTo = endFrom, to
		}
		return !t.Before(from) && t.Before(endTo)
	}
	return true
}

func matchSelect(f model.SelectFilter, cell any) bool {
	var cells []string
	switch x := cell.(type) {
	case []string:
		cells = x
	case []any:
		for _, item := range x {
			cells = append(cells, CellString(item))
		}
	default:
		cells = []string{CellString(cell)}
	}

	found := false
	for _, c := range cells {
		for _, want := range f.Values {
			if c == want {
				found = true
				break
			}
		}
	}
	if f.Operator == model.OpIsNoneOf {
		return !found
	}
	return found
}

func matchBoolean(f model.BooleanFilter, cell any) bool {
	if f.Value == model.BoolAll {
		return true
	}
	var b bool
	switch x := cell.(type) {
	case bool:
		b = x
	case *bool:
		b = x != nil && *x
	case string:
		b = strings.EqualFold(x, "true") || x == "1"
	default:
		return false
	}
	return b == (f.Value == model.BoolTrue)
}

func matchRange(f model.RangeFilter, cell any) bool {
	n, ok := cellDecimal(cell)
	if !ok {
		return false
	}
	if f.Min.Valid && n.LessThan(f.Min.Decimal) {
		return false
	}
	if f.Max.Valid && n.GreaterThan(f.Max.Decimal) {
		return false
	}
	return true
}

// Package filter implements the column filter model: validity, wire
// serialization, request routing, and in-memory evaluation.
package filter

import (
	"strings"

	"github.com/pitabwire/gridcore/model"
)

// HasValue reports whether f carries a usable value. Only filters that pass
// are sent to a data source or applied in memory.
func HasValue(f model.FilterValue) bool {
	switch v := f.(type) {
	case model.TextFilter:
		if v.Operator == model.OpIsEmpty || v.Operator == model.OpIsNotEmpty {
			return true
		}
		return strings.TrimSpace(v.Value) != ""
	case model.NumberFilter:
		if v.Operator == model.OpIsEmpty || v.Operator == model.OpIsNotEmpty {
			return true
		}
		if v.Operator == model.OpBetween {
			return v.Value.Valid && v.ValueTo.Valid
		}
		return v.Value.Valid
	case model.DateFilter:
		if v.Operator == model.OpIsEmpty || v.Operator == model.OpIsNotEmpty || model.IsRelativeDate(v.Operator) {
			return true
		}
		if v.Operator == model.OpBetween {
			return v.Value != nil && v.ValueTo != nil
		}
		return v.Value != nil
	case model.SelectFilter:
		return len(v.Values) > 0
	case model.BooleanFilter:
		return v.Value != model.BoolUnset
	case model.RangeFilter:
		return v.Min.Valid || v.Max.Valid
	}
	return false
}

// Active returns the entries of state that pass HasValue.
func Active(state model.ColumnFilterState) model.ColumnFilterState {
	out := make(model.ColumnFilterState, len(state))
	for id, f := range state {
		if f != nil && HasValue(f) {
			out[id] = f
		}
	}
	return out
}

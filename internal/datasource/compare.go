package datasource

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pitabwire/gridcore/internal/filter"
	"github.com/pitabwire/gridcore/model"
)

// compareCells orders two cells: nil first, then numbers, times and bools
// by value, everything else case-insensitively as text.
func compareCells(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if da, ok := toDecimal(a); ok {
		if db, ok := toDecimal(b); ok {
			return da.Cmp(db)
		}
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(strings.ToLower(filter.CellString(a)), strings.ToLower(filter.CellString(b)))
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
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
	}
	return decimal.Decimal{}, false
}

// lessBySorting builds a row comparator for a multi-column sort.
func lessBySorting[T any](sorting []model.SortSpec, cell func(T, string) any) func(a, b T) int {
	return func(a, b T) int {
		for _, s := range sorting {
			c := compareCells(cell(a, s.ColumnID), cell(b, s.ColumnID))
			if c == 0 {
				continue
			}
			if s.Direction == model.SortDesc {
				return -c
			}
			return c
		}
		return 0
	}
}

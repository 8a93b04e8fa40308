// Package layout manages column visibility and pinning, and persists the
// visibility map and page size.
package layout

import "github.com/pitabwire/gridcore/model"

// Visibility is an immutable per-column visible flag over an ordered set of
// columns. Columns absent from the map are visible.
type Visibility struct {
	order   []string
	visible map[string]bool
}

// NewVisibility creates a Visibility over columnIDs. initial overrides the
// all-visible default for the columns it names; unknown ids are ignored.
func NewVisibility(columnIDs []string, initial map[string]bool) Visibility {
	v := Visibility{
		order:   append([]string(nil), columnIDs...),
		visible: make(map[string]bool, len(columnIDs)),
	}
	for _, id := range columnIDs {
		v.visible[id] = true
	}
	for id, on := range initial {
		if _, ok := v.visible[id]; ok {
			v.visible[id] = on
		}
	}
	if v.visibleCount() == 0 && len(v.order) > 0 {
		v.visible[v.order[0]] = true
	}
	return v
}

func (v Visibility) clone() Visibility {
	out := Visibility{order: v.order, visible: make(map[string]bool, len(v.visible))}
	for k, on := range v.visible {
		out.visible[k] = on
	}
	return out
}

func (v Visibility) visibleCount() int {
	n := 0
	for _, on := range v.visible {
		if on {
			n++
		}
	}
	return n
}

// IsVisible reports whether id is visible.
func (v Visibility) IsVisible(id string) bool {
	on, ok := v.visible[id]
	return !ok || on
}

// Set sets id's visibility. Hiding the last visible column is refused and
// returns v unchanged.
func (v Visibility) Set(id string, visible bool) Visibility {
	if _, ok := v.visible[id]; !ok {
		return v
	}
	if !visible && v.visible[id] && v.visibleCount() == 1 {
		return v
	}
	out := v.clone()
	out.visible[id] = visible
	return out
}

// Toggle flips id's visibility, subject to the rule in Set.
func (v Visibility) Toggle(id string) Visibility {
	return v.Set(id, !v.IsVisible(id))
}

// ShowAll makes every column visible.
func (v Visibility) ShowAll() Visibility {
	out := v.clone()
	for id := range out.visible {
		out.visible[id] = true
	}
	return out
}

// HideAll hides every column except the first, so the grid is never empty.
func (v Visibility) HideAll() Visibility {
	out := v.clone()
	for i, id := range out.order {
		out.visible[id] = i == 0
	}
	return out
}

// Map returns a copy of the visibility map.
func (v Visibility) Map() map[string]bool {
	out := make(map[string]bool, len(v.visible))
	for k, on := range v.visible {
		out[k] = on
	}
	return out
}

// VisibleIDs returns the visible column ids in column order.
func (v Visibility) VisibleIDs() []string {
	out := make([]string, 0, len(v.order))
	for _, id := range v.order {
		if v.visible[id] {
			out = append(out, id)
		}
	}
	return out
}

// VisibleColumns filters cols down to the visible ones, keeping order.
func (v Visibility) VisibleColumns(cols []model.ColumnDef) []model.ColumnDef {
	out := make([]model.ColumnDef, 0, len(cols))
	for _, c := range cols {
		if v.IsVisible(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// Package selection implements row selection with anchor-based range
// semantics and bulk actions over the selected rows.
package selection

import "sort"

// Modifiers are the keyboard modifiers held during a click.
type Modifiers struct {
	// Shift extends the selection from the anchor.
	Shift bool
	// Toggle is Ctrl on most platforms, Cmd on macOS.
	Toggle bool
}

// Selection is an immutable set of row ids plus the anchor index used by
// range operations. The zero value is an empty selection with no anchor.
type Selection struct {
	ids       map[string]struct{}
	anchor    int
	hasAnchor bool
}

// New returns a selection of ids with no anchor.
func New(ids ...string) Selection {
	s := Selection{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s Selection) clone() Selection {
	out := Selection{ids: make(map[string]struct{}, len(s.ids)), anchor: s.anchor, hasAnchor: s.hasAnchor}
	for id := range s.ids {
		out.ids[id] = struct{}{}
	}
	return out
}

// Click applies a click on the row at index, where rowIDs are the ids of
// the displayed rows in order.
//
// A plain click selects exactly that row. Shift adds the inclusive range
// between the anchor and index to the existing selection; without an
// anchor it acts as a plain click. Toggle flips only the clicked row. Plain
// and toggle clicks move the anchor to index.
func (s Selection) Click(rowIDs []string, index int, mods Modifiers) Selection {
	if index < 0 || index >= len(rowIDs) {
		return s
	}

	switch {
	case mods.Shift && s.hasAnchor:
		lo, hi := s.anchor, index
		if lo > hi {
			lo, hi = hi, lo
		}
		if hi >= len(rowIDs) {
			hi = len(rowIDs) - 1
		}
		out := s.clone()
		for i := lo; i <= hi; i++ {
			out.ids[rowIDs[i]] = struct{}{}
		}
		return out
	case mods.Toggle:
		out := s.Toggle(rowIDs[index])
		out.anchor, out.hasAnchor = index, true
		return out
	default:
		out := New(rowIDs[index])
		out.anchor, out.hasAnchor = index, true
		return out
	}
}

// Toggle flips membership of id. The anchor is unchanged.
func (s Selection) Toggle(id string) Selection {
	out := s.clone()
	if _, ok := out.ids[id]; ok {
		delete(out.ids, id)
	} else {
		out.ids[id] = struct{}{}
	}
	return out
}

// SelectAll adds ids to the selection.
func (s Selection) SelectAll(ids []string) Selection {
	out := s.clone()
	for _, id := range ids {
		out.ids[id] = struct{}{}
	}
	return out
}

// DeselectAll removes ids from the selection.
func (s Selection) DeselectAll(ids []string) Selection {
	out := s.clone()
	for _, id := range ids {
		delete(out.ids, id)
	}
	return out
}

// Retain keeps only the selected ids present in ids and drops the anchor,
// which indexed rows that are no longer displayed.
func (s Selection) Retain(ids []string) Selection {
	out := Selection{ids: make(map[string]struct{}, len(s.ids))}
	for _, id := range ids {
		if s.Has(id) {
			out.ids[id] = struct{}{}
		}
	}
	return out
}

// Clear returns an empty selection with no anchor.
func (s Selection) Clear() Selection {
	return Selection{}
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Count returns the number of selected ids.
func (s Selection) Count() int {
	return len(s.ids)
}

// IDs returns the selected ids in sorted order.
func (s Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Anchor returns the anchor index, if any.
func (s Selection) Anchor() (int, bool) {
	return s.anchor, s.hasAnchor
}

// AllSelected reports whether every id in ids is selected. It is false for
// an empty ids.
func (s Selection) AllSelected(ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Filter returns the rows whose id is selected, in rows order.
func Filter[T any](s Selection, rows []T, idOf func(T) string) []T {
	out := make([]T, 0, s.Count())
	for _, r := range rows {
		if s.Has(idOf(r)) {
			out = append(out, r)
		}
	}
	return out
}

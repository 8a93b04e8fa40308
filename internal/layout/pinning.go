package layout

import "github.com/pitabwire/gridcore/model"

// Pinning holds the ordered left and right pinned column ids. A column is
// in at most one list.
type Pinning struct {
	left  []string
	right []string
}

// NewPinning builds a Pinning from initial lists. An id present in both
// lists stays on the left.
func NewPinning(left, right []string) Pinning {
	p := Pinning{}
	for _, id := range right {
		p = p.Pin(id, model.PinRight)
	}
	for _, id := range left {
		p = p.Pin(id, model.PinLeft)
	}
	return p
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

// Pin moves id to the end of side's list. Pinning to PinNone unpins.
func (p Pinning) Pin(id string, side model.PinSide) Pinning {
	out := Pinning{left: without(p.left, id), right: without(p.right, id)}
	switch side {
	case model.PinLeft:
		out.left = append(out.left, id)
	case model.PinRight:
		out.right = append(out.right, id)
	}
	return out
}

// Unpin removes id from both lists.
func (p Pinning) Unpin(id string) Pinning {
	return p.Pin(id, model.PinNone)
}

// Side returns the side id is pinned to, or PinNone.
func (p Pinning) Side(id string) model.PinSide {
	for _, x := range p.left {
		if x == id {
			return model.PinLeft
		}
	}
	for _, x := range p.right {
		if x == id {
			return model.PinRight
		}
	}
	return model.PinNone
}

// Left returns a copy of the left list.
func (p Pinning) Left() []string { return append([]string(nil), p.left...) }

// Right returns a copy of the right list.
func (p Pinning) Right() []string { return append([]string(nil), p.right...) }

// Order arranges ids as left-pinned, unpinned in ids order, then
// right-pinned. Pinned ids not in ids are skipped.
func (p Pinning) Order(ids []string) []string {
	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range p.left {
		if present[id] {
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if p.Side(id) == model.PinNone {
			out = append(out, id)
		}
	}
	for _, id := range p.right {
		if present[id] {
			out = append(out, id)
		}
	}
	return out
}

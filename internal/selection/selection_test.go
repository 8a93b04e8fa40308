package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var pageIDs = []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6"}

func TestSelection_plainClick(t *testing.T) {
	s := New("r5", "r6").Click(pageIDs, 2, Modifiers{})
	assert.Equal(t, []string{"r2"}, s.IDs())
	a, ok := s.Anchor()
	assert.True(t, ok)
	assert.Equal(t, 2, a)
}

func TestSelection_rangeIsCommutative(t *testing.T) {
	forward := Selection{}.
		Click(pageIDs, 2, Modifiers{}).
		Click(pageIDs, 5, Modifiers{Shift: true})
	backward := Selection{}.
		Click(pageIDs, 5, Modifiers{}).
		Click(pageIDs, 2, Modifiers{Shift: true})

	assert.Equal(t, []string{"r2", "r3", "r4", "r5"}, forward.IDs())
	assert.Equal(t, forward.IDs(), backward.IDs())
}

func TestSelection_rangeUnionsWithExisting(t *testing.T) {
	s := Selection{}.
		Click(pageIDs, 0, Modifiers{}).
		Click(pageIDs, 6, Modifiers{Toggle: true}).
		Click(pageIDs, 4, Modifiers{Shift: true})
	// Anchor moved to 6 by the toggle click.
	assert.Equal(t, []string{"r0", "r4", "r5", "r6"}, s.IDs())
}

func TestSelection_shiftWithoutAnchorActsAsPlainClick(t *testing.T) {
	s := New("r0").Click(pageIDs, 3, Modifiers{Shift: true})
	assert.Equal(t, []string{"r3"}, s.IDs())
}

func TestSelection_toggleIdempotence(t *testing.T) {
	before := Selection{}.Click(pageIDs, 1, Modifiers{}).Click(pageIDs, 3, Modifiers{Shift: true})
	after := before.
		Click(pageIDs, 5, Modifiers{Toggle: true}).
		Click(pageIDs, 5, Modifiers{Toggle: true})
	assert.Equal(t, before.IDs(), after.IDs())

	again := before.
		Click(pageIDs, 2, Modifiers{Toggle: true}).
		Click(pageIDs, 2, Modifiers{Toggle: true})
	assert.Equal(t, before.IDs(), again.IDs())
}

func TestSelection_immutable(t *testing.T) {
	base := New("a")
	_ = base.Toggle("b")
	_ = base.SelectAll([]string{"c", "d"})
	assert.Equal(t, []string{"a"}, base.IDs())
}

func TestSelection_outOfRangeIndexIgnored(t *testing.T) {
	s := New("r1")
	assert.Equal(t, s.IDs(), s.Click(pageIDs, 99, Modifiers{}).IDs())
	assert.Equal(t, s.IDs(), s.Click(pageIDs, -1, Modifiers{}).IDs())
}

func TestSelection_selectAllAndClear(t *testing.T) {
	s := Selection{}.SelectAll(pageIDs[:3])
	assert.True(t, s.AllSelected(pageIDs[:3]))
	assert.False(t, s.AllSelected(pageIDs))
	assert.Equal(t, 1, s.DeselectAll([]string{"r0", "r1"}).Count())
	c := s.Clear()
	assert.Zero(t, c.Count())
	_, ok := c.Anchor()
	assert.False(t, ok)
}

func TestFilter(t *testing.T) {
	type row struct{ id string }
	rows := []row{{"a"}, {"b"}, {"c"}}
	got := Filter(New("c", "a"), rows, func(r row) string { return r.id })
	assert.Equal(t, []row{{"a"}, {"c"}}, got)
}

func TestSelection_retain(t *testing.T) {
	s := Selection{}.Click(pageIDs, 1, Modifiers{}).Click(pageIDs, 3, Modifiers{Shift: true})
	kept := s.Retain([]string{"r3", "r9", "r2"})

	assert.Equal(t, []string{"r2", "r3"}, kept.IDs())
	_, ok := kept.Anchor()
	assert.False(t, ok, "anchor indexed the previous rows")
	assert.Equal(t, 3, s.Count())
}

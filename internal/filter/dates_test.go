package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pitabwire/gridcore/model"
)

func TestRelativeDateRange(t *testing.T) {
	now := time.Date(2024, 3, 6, 15, 4, 5, 0, time.UTC) // Wednesday
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		op       model.Operator
		from, to time.Time
	}{
		{model.OpToday, day(2024, 3, 6), day(2024, 3, 7)},
		{model.OpYesterday, day(2024, 3, 5), day(2024, 3, 6)},
		{model.OpThisWeek, day(2024, 3, 4), day(2024, 3, 11)},
		{model.OpLastWeek, day(2024, 2, 26), day(2024, 3, 4)},
		{model.OpThisMonth, day(2024, 3, 1), day(2024, 4, 1)},
		{model.OpLastMonth, day(2024, 2, 1), day(2024, 3, 1)},
	}
	for _, tt := range tests {
		from, to, ok := RelativeDateRange(tt.op, now)
		assert.True(t, ok, tt.op)
		assert.Equal(t, tt.from, from, tt.op)
		assert.Equal(t, tt.to, to, tt.op)
	}

	_, _, ok := RelativeDateRange(model.OpIs, now)
	assert.False(t, ok)
}

func TestRelativeDateRange_sundayBelongsToPreviousWeek(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	from, _, _ := RelativeDateRange(model.OpThisWeek, sunday)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), from)
}

func TestRelativeDateRange_lastMonthInJanuary(t *testing.T) {
	now := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	from, to, _ := RelativeDateRange(model.OpLastMonth, now)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), to)
}

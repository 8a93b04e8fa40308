package filter

import (
	"time"

	"github.com/pitabwire/gridcore/model"
)

// RelativeDateRange resolves a relative date operator to the half-open
// range [from, to) in now's location. Weeks start on Monday. ok is false
// for operators that are not relative.
func RelativeDateRange(op model.Operator, now time.Time) (from, to time.Time, ok bool) {
	today := startOfDay(now)
	switch op {
	case model.OpToday:
		return today, today.AddDate(0, 0, 1), true
	case model.OpYesterday:
		return today.AddDate(0, 0, -1), today, true
	case model.OpThisWeek:
		start := startOfWeek(today)
		return start, start.AddDate(0, 0, 7), true
	case model.OpLastWeek:
		start := startOfWeek(today).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 7), true
	case model.OpThisMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return start, start.AddDate(0, 1, 0), true
	case model.OpLastMonth:
		start := time.Date(today.Year(), today.Month()-1, 1, 0, 0, 0, 0, today.Location())
		return start, start.AddDate(0, 1, 0), true
	}
	return time.Time{}, time.Time{}, false
}

// DayRange returns [start of t's day, start of next day) in loc.
func DayRange(t time.Time, loc *time.Location) (from, to time.Time) {
	from = startOfDay(t.In(loc))
	return from, from.AddDate(0, 0, 1)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

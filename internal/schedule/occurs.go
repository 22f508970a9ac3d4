package schedule

import "time"

// OccursOn reports whether a schedule touches the calendar day containing
// day. Unscheduled input never occurs; a single start occurs on its own day;
// a period [start, end) occurs on every day it overlaps.
func OccursOn(start, end *time.Time, day time.Time) bool {
	if start == nil {
		return false
	}

	dayStart := Midnight(day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	if end == nil {
		return !start.Before(dayStart) && start.Before(dayEnd)
	}
	return start.Before(dayEnd) && end.After(dayStart)
}

// Overlaps applies the same rule as OccursOn to an arbitrary range.
func Overlaps(start, end *time.Time, r DateRange) bool {
	if start == nil {
		return false
	}
	if end == nil {
		return r.Contains(*start)
	}
	return start.Before(r.End) && end.After(r.Start)
}

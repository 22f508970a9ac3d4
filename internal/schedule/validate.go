// Package schedule holds the calendar rules shared by every task operation:
// schedule validation, range arithmetic for DAY/WEEK/MONTH queries and the
// per-day occurrence test used to bucket tasks into calendar cells.
//
// Everything here is pure and safe for concurrent use.
package schedule

import (
	"errors"
	"time"
)

var (
	ErrEndWithoutStart         = errors.New("schedule: end without start")
	ErrAllDayUnscheduled       = errors.New("schedule: all-day requires a schedule")
	ErrAllDayNotMidnight       = errors.New("schedule: all-day single task must start at midnight")
	ErrEndNotAfterStart        = errors.New("schedule: end must be after start")
	ErrAllDayPeriodNotMidnight = errors.New("schedule: all-day period must start and end at midnight")
)

// Validate reports whether the (start, end, allDay) combination is a legal
// task schedule. It returns nil or exactly one of the sentinel errors above;
// checks run in a fixed order and the first failure wins.
func Validate(start, end *time.Time, allDay bool) error {
	if end != nil && start == nil {
		return ErrEndWithoutStart
	}

	if start == nil {
		if allDay {
			return ErrAllDayUnscheduled
		}
		return nil
	}

	if end == nil {
		if allDay && !IsMidnight(*start) {
			return ErrAllDayNotMidnight
		}
		return nil
	}

	if !end.After(*start) {
		return ErrEndNotAfterStart
	}
	if allDay && (!IsMidnight(*start) || !IsMidnight(*end)) {
		return ErrAllDayPeriodNotMidnight
	}
	return nil
}

// IsMidnight checks the wall clock of t in its own location; it does not
// convert between zones.
func IsMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// Midnight truncates t to the start of its calendar day.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

var ErrInvalidDate = errors.New("schedule: invalid date")

// DateRange is the half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Days lists the midnight of every calendar day in the range.
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format("2006-01-02T15:04"), r.End.Format("2006-01-02T15:04"))
}

func OfDay(date string) (DateRange, error) {
	day, err := parse(DayLayout, date)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: day, End: day.AddDate(0, 0, 1)}, nil
}

// OfWeek returns the Monday-start week containing date.
func OfWeek(date string) (DateRange, error) {
	day, err := parse(DayLayout, date)
	if err != nil {
		return DateRange{}, err
	}
	start := WeekStart(day)
	return DateRange{Start: start, End: start.AddDate(0, 0, 7)}, nil
}

func OfMonth(month string) (DateRange, error) {
	first, err := parse(MonthLayout, month)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: first, End: first.AddDate(0, 1, 0)}, nil
}

// WeekStart returns midnight of the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	day := Midnight(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func parse(layout, value string) (time.Time, error) {
	if len(value) != len(layout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	t, err := time.ParseInLocation(layout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

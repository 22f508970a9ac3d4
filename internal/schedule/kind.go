package schedule

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	Day Kind = iota + 1
	Week
	Month
)

var ErrUnknownKind = errors.New("schedule: unknown query type")

func (k Kind) String() string {
	switch k {
	case Day:
		return "DAY"
	case Week:
		return "WEEK"
	case Month:
		return "MONTH"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Layout is the anchor date format the kind expects.
func (k Kind) Layout() string {
	if k == Month {
		return MonthLayout
	}
	return DayLayout
}

func ParseKind(raw string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "DAY":
		return Day, nil
	case "WEEK":
		return Week, nil
	case "MONTH":
		return Month, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
}

// Calculate turns an anchor date into the kind's half-open range.
func Calculate(kind Kind, anchor string) (DateRange, error) {
	switch kind {
	case Day:
		return OfDay(anchor)
	case Week:
		return OfWeek(anchor)
	case Month:
		return OfMonth(anchor)
	default:
		return DateRange{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

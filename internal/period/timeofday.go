package period

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTimeOfDay = errors.New("period: invalid time of day (expected HH:MM)")

// TimeOfDay is a wall-clock hour and minute without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a 24-hour "HH:MM" string. Hours outside 0..23 and
// minutes outside 0..59 are rejected.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimeOfDay, s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustTimeOfDay is like ParseTimeOfDay but panics on error.
func MustTimeOfDay(s string) TimeOfDay {
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return tod
}

func (d TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// Compare returns -1, 0 or +1 depending on whether d is earlier than, equal
// to, or later than o within a day.
func (d TimeOfDay) Compare(o TimeOfDay) int {
	a := d.Hour*60 + d.Minute
	b := o.Hour*60 + o.Minute
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// On places d on the calendar date of t, in t's location, at second zero.
func (d TimeOfDay) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), d.Hour, d.Minute, 0, 0, t.Location())
}

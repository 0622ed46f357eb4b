package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is an ISO-8601 day of the week: 1=Monday .. 7=Sunday.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var ErrInvalidWeekday = errors.New("period: invalid weekday")

var weekdayNames = map[string]Weekday{
	"monday":    Monday,
	"tuesday":   Tuesday,
	"wednesday": Wednesday,
	"thursday":  Thursday,
	"friday":    Friday,
	"saturday":  Saturday,
	"sunday":    Sunday,
}

// ISOWeekday returns the ISO weekday of t in t's own location.
func ISOWeekday(t time.Time) Weekday {
	wd := t.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

// ParseWeekday accepts either an ISO weekday number ("1".."7") or an English
// day name, case-insensitive.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		d := Weekday(n)
		if !d.Valid() {
			return 0, fmt.Errorf("%w: %d out of range 1..7", ErrInvalidWeekday, n)
		}
		return d, nil
	}
	if d, ok := weekdayNames[strings.ToLower(s)]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	if d == Sunday {
		return time.Sunday.String()
	}
	return time.Weekday(d).String()
}

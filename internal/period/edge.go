package period

import (
	"time"
)

// Edge is a boundary that can be ordered against an arbitrary instant.
// Before reports whether the edge lies strictly before t, After strictly
// after it.
type Edge interface {
	Before(t time.Time) bool
	After(t time.Time) bool
	Equals(t time.Time) bool
	BeforeOrEquals(t time.Time) bool
	AfterOrEquals(t time.Time) bool
}

var (
	_ Edge = TimestampEdge{}
	_ Edge = TimeEdge{}
	_ Edge = DayTimeEdge{}
)

// TimestampEdge is an absolute instant.
type TimestampEdge struct {
	Timestamp time.Time
}

func (e TimestampEdge) Before(t time.Time) bool { return e.Timestamp.Before(t) }
func (e TimestampEdge) After(t time.Time) bool { return e.Timestamp.After(t) }
func (e TimestampEdge) Equals(t time.Time) bool { return e.Timestamp.Equal(t) }
func (e TimestampEdge) BeforeOrEquals(t time.Time) bool { return !e.Timestamp.After(t) }
func (e TimestampEdge) AfterOrEquals(t time.Time) bool { return !e.Timestamp.Before(t) }

// TimeEdge recurs every day at the same wall-clock time. It is compared
// against t by projecting it onto t's own date and location.
type TimeEdge struct {
	At TimeOfDay
}

// NewTimeEdge builds a TimeEdge from an "HH:MM" string.
func NewTimeEdge(hhmm string) (TimeEdge, error) {
	at, err := ParseTimeOfDay(hhmm)
	if err != nil {
		return TimeEdge{}, err
	}
	return TimeEdge{At: at}, nil
}

func (e TimeEdge) Before(t time.Time) bool { return e.At.On(t).Before(t) }
func (e TimeEdge) After(t time.Time) bool { return e.At.On(t).After(t) }
func (e TimeEdge) Equals(t time.Time) bool { return e.At.On(t).Equal(t) }
func (e TimeEdge) BeforeOrEquals(t time.Time) bool { return !e.At.On(t).After(t) }
func (e TimeEdge) AfterOrEquals(t time.Time) bool { return !e.At.On(t).Before(t) }

func (e TimeEdge) String() string { return e.At.String() }

// DayTimeEdge recurs every week on Day at At. Ordering against t goes by
// weekday first; only on t's own weekday is the time of day consulted.
type DayTimeEdge struct {
	Day Weekday
	At  TimeOfDay
}

// NewDayTimeEdge builds a DayTimeEdge from an ISO weekday and an "HH:MM" string.
func NewDayTimeEdge(day Weekday, hhmm string) (DayTimeEdge, error) {
	if !day.Valid() {
		return DayTimeEdge{}, ErrInvalidWeekday
	}
	at, err := ParseTimeOfDay(hhmm)
	if err != nil {
		return DayTimeEdge{}, err
	}
	return DayTimeEdge{Day: day, At: at}, nil
}

// dayOrder compares the edge weekday with t's weekday.
func (e DayTimeEdge) dayOrder(t time.Time) int {
	wd := ISOWeekday(t)
	switch {
	case e.Day < wd:
		return -1
	case e.Day > wd:
		return 1
	default:
		return 0
	}
}

func (e DayTimeEdge) Before(t time.Time) bool {
	if c := e.dayOrder(t); c != 0 {
		return c < 0
	}
	return e.At.On(t).Before(t)
}

func (e DayTimeEdge) After(t time.Time) bool {
	if c := e.dayOrder(t); c != 0 {
		return c > 0
	}
	return e.At.On(t).After(t)
}

func (e DayTimeEdge) Equals(t time.Time) bool {
	if e.dayOrder(t) != 0 {
		return false
	}
	return e.At.On(t).Equal(t)
}

func (e DayTimeEdge) BeforeOrEquals(t time.Time) bool {
	if c := e.dayOrder(t); c != 0 {
		return c < 0
	}
	return !e.At.On(t).After(t)
}

func (e DayTimeEdge) AfterOrEquals(t time.Time) bool {
	if c := e.dayOrder(t); c != 0 {
		return c > 0
	}
	return !e.At.On(t).Before(t)
}

// Compare orders two weekly edges within a week, Monday 00:00 first.
func (e DayTimeEdge) Compare(o DayTimeEdge) int {
	switch {
	case e.Day < o.Day:
		return -1
	case e.Day > o.Day:
		return 1
	}
	return e.At.Compare(o.At)
}

func (e DayTimeEdge) String() string {
	return e.Day.String() + " " + e.At.String()
}

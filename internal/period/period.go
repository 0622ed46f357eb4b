// Package period models time windows as predicates over instants.
//
// A Period answers whether an instant lies inside it. Recurring periods
// (Daily, Weekly) are built from two recurring edges and may wrap around
// midnight or the end of the week; which way they behave is decided once
// from the edges alone (see Shape) and not from the instant being tested.
//
// All values in this package are immutable and safe for concurrent use.
package period

import (
	"fmt"
	"time"
)

// Period is a containment predicate over instants. The set of periods is
// closed: Always, Never, Once, Daily and Weekly.
type Period interface {
	Contains(t time.Time) bool
	// ContainsNow is Contains(Now(loc)).
	ContainsNow(loc *time.Location) bool
	String() string

	period()
}

var (
	_ Period = Always{}
	_ Period = Never{}
	_ Period = Once{}
	_ Period = Daily{}
	_ Period = Weekly{}
)

// Shape classifies a two-edge recurring period.
type Shape int

const (
	// Internal periods start before they end: a plain closed interval.
	Internal Shape = iota
	// External periods start after they end and wrap across midnight
	// (Daily) or the week boundary (Weekly).
	External
	// Degenerate periods have coinciding edges and contain only that
	// recurring instant.
	Degenerate
)

func (s Shape) String() string {
	switch s {
	case Internal:
		return "internal"
	case External:
		return "external"
	case Degenerate:
		return "degenerate"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

func shapeOf(cmp int) Shape {
	switch {
	case cmp < 0:
		return Internal
	case cmp > 0:
		return External
	default:
		return Degenerate
	}
}

// contains applies the containment rule for shape s.
func contains(s Shape, from, to Edge, t time.Time) bool {
	switch s {
	case Internal:
		return from.BeforeOrEquals(t) && to.AfterOrEquals(t)
	case External:
		return to.AfterOrEquals(t) || from.BeforeOrEquals(t)
	default:
		return from.Equals(t)
	}
}

// Always contains every instant.
type Always struct{}

func (Always) Contains(time.Time) bool { return true }
func (Always) ContainsNow(*time.Location) bool { return true }
func (Always) String() string { return "always" }
func (Always) period() {}

// Never contains no instant.
type Never struct{}

func (Never) Contains(time.Time) bool { return false }
func (Never) ContainsNow(*time.Location) bool { return false }
func (Never) String() string { return "never" }
func (Never) period() {}

// Once is a closed interval between two absolute instants. A From later than
// To yields an empty period.
type Once struct {
	From TimestampEdge
	To   TimestampEdge
}

func NewOnce(from, to time.Time) Once {
	return Once{From: TimestampEdge{Timestamp: from}, To: TimestampEdge{Timestamp: to}}
}

func (p Once) Contains(t time.Time) bool {
	return p.From.BeforeOrEquals(t) && p.To.AfterOrEquals(t)
}

func (p Once) ContainsNow(loc *time.Location) bool { return p.Contains(Now(loc)) }

func (Once) period() {}

func (p Once) String() string {
	return "once " + p.From.Timestamp.Format(time.RFC3339) + " - " + p.To.Timestamp.Format(time.RFC3339)
}

// Daily recurs every day between two times of day, both inclusive.
type Daily struct {
	From TimeEdge
	To   TimeEdge
}

// NewDaily builds a Daily period from two "HH:MM" strings.
func NewDaily(from, to string) (Daily, error) {
	f, err := NewTimeEdge(from)
	if err != nil {
		return Daily{}, fmt.Errorf("daily from: %w", err)
	}
	e, err := NewTimeEdge(to)
	if err != nil {
		return Daily{}, fmt.Errorf("daily to: %w", err)
	}
	return Daily{From: f, To: e}, nil
}

// Shape compares the full HH:MM of both edges, so 09:45-09:15 wraps past
// midnight instead of collapsing to a single instant.
func (p Daily) Shape() Shape {
	return shapeOf(p.From.At.Compare(p.To.At))
}

func (p Daily) Contains(t time.Time) bool {
	return contains(p.Shape(), p.From, p.To, t)
}

func (p Daily) ContainsNow(loc *time.Location) bool { return p.Contains(Now(loc)) }

func (Daily) period() {}

func (p Daily) String() string {
	return "daily " + p.From.String() + " - " + p.To.String()
}

// Weekly recurs every week between two (weekday, time of day) edges, both
// inclusive.
type Weekly struct {
	From DayTimeEdge
	To   DayTimeEdge
}

// NewWeekly builds a Weekly period from ISO weekdays and "HH:MM" strings.
func NewWeekly(fromDay Weekday, fromAt string, toDay Weekday, toAt string) (Weekly, error) {
	f, err := NewDayTimeEdge(fromDay, fromAt)
	if err != nil {
		return Weekly{}, fmt.Errorf("weekly from: %w", err)
	}
	e, err := NewDayTimeEdge(toDay, toAt)
	if err != nil {
		return Weekly{}, fmt.Errorf("weekly to: %w", err)
	}
	return Weekly{From: f, To: e}, nil
}

// Shape orders the edges by weekday, then by time of day.
func (p Weekly) Shape() Shape {
	return shapeOf(p.From.Compare(p.To))
}

func (p Weekly) Contains(t time.Time) bool {
	return contains(p.Shape(), p.From, p.To, t)
}

func (p Weekly) ContainsNow(loc *time.Location) bool { return p.Contains(Now(loc)) }

func (Weekly) period() {}

func (p Weekly) String() string {
	return "weekly " + p.From.String() + " - " + p.To.String()
}

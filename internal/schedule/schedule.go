// Package schedule aggregates periods into a named schedule and loads
// schedules from JSON or YAML definitions.
//
// A Schedule contains an instant when any of its periods does. Schedules are
// immutable once built and may be shared between goroutines.
package schedule

import (
	"time"

	"timegate/internal/period"
)

// Entry is a period together with the optional labels it was defined with.
type Entry struct {
	Name        string
	Description string
	Period      period.Period
}

// Schedule is an ordered collection of periods.
type Schedule struct {
	entries []Entry
	loc     *time.Location
}

// New builds a schedule from periods, evaluated in time.Local.
func New(periods ...period.Period) *Schedule {
	return NewWithOptions(nil, periods...)
}

// NewWithOptions builds a schedule from periods with the given options.
func NewWithOptions(opts []Option, periods ...period.Period) *Schedule {
	o := newOptions(opts)
	entries := make([]Entry, 0, len(periods))
	for _, p := range periods {
		entries = append(entries, Entry{Period: p})
	}
	return &Schedule{entries: entries, loc: o.Location}
}

// FromEntries builds a schedule from labelled entries.
func FromEntries(entries []Entry, opts ...Option) *Schedule {
	o := newOptions(opts)
	return &Schedule{entries: append([]Entry(nil), entries...), loc: o.Location}
}

// Contains reports whether any period contains t. Periods are consulted in
// order and the first match wins. A nil or empty schedule contains nothing.
func (s *Schedule) Contains(t time.Time) bool {
	if s == nil {
		return false
	}
	for _, e := range s.entries {
		if e.Period.Contains(t) {
			return true
		}
	}
	return false
}

// ContainsNow reports whether any period contains the current instant in the
// schedule's location.
func (s *Schedule) ContainsNow() bool {
	if s == nil {
		return false
	}
	for _, e := range s.entries {
		if e.Period.ContainsNow(s.loc) {
			return true
		}
	}
	return false
}

// Active returns the entries that contain t, in schedule order.
func (s *Schedule) Active(t time.Time) []Entry {
	if s == nil {
		return nil
	}
	var out []Entry
	for _, e := range s.entries {
		if e.Period.Contains(t) {
			out = append(out, e)
		}
	}
	return out
}

// Append returns a new schedule with periods added after the existing ones.
// The receiver is left unchanged.
func (s *Schedule) Append(periods ...period.Period) *Schedule {
	out := &Schedule{loc: time.Local}
	if s != nil {
		out.loc = s.loc
		out.entries = make([]Entry, 0, len(s.entries)+len(periods))
		out.entries = append(out.entries, s.entries...)
	}
	for _, p := range periods {
		out.entries = append(out.entries, Entry{Period: p})
	}
	return out
}

// Entries returns a copy of the schedule entries.
func (s *Schedule) Entries() []Entry {
	if s == nil {
		return nil
	}
	return append([]Entry(nil), s.entries...)
}

// Periods returns the periods in schedule order.
func (s *Schedule) Periods() []period.Period {
	if s == nil {
		return nil
	}
	out := make([]period.Period, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Period
	}
	return out
}

func (s *Schedule) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Location is the zone used by ContainsNow and for zone-less timestamps in
// the definition the schedule was loaded from.
func (s *Schedule) Location() *time.Location {
	if s == nil || s.loc == nil {
		return time.Local
	}
	return s.loc
}

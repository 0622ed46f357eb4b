package model

import "time"

// Window is a single concrete occurrence of a calendar event, after
// recurrence expansion. Windows from calendar sources are merged into the
// schedule as one-off periods covering [Start, End].
type Window struct {
	SourceID string // calendar source ID
	UID      string // iCalendar UID

	// InstanceKey uniquely identifies one occurrence of a recurring event,
	// derived from the start time.
	InstanceKey string

	Summary string
	AllDay  bool

	Start time.Time
	End   time.Time
}

package period

import "time"

// clock is swapped in tests.
var clock = time.Now

// Now returns the current instant in loc. A nil loc means time.Local.
func Now(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return clock().In(loc)
}

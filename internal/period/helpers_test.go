package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// rome returns Europe/Rome, or UTC when the host has no tzdata. None of the
// fixtures below depend on the offset itself.
func rome(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		return time.UTC
	}
	return loc
}

func at(t *testing.T, loc *time.Location, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, loc)
	require.NoError(t, err)
	return ts
}

func withClock(t *testing.T, now time.Time) {
	t.Helper()
	prev := clock
	clock = func() time.Time { return now }
	t.Cleanup(func() { clock = prev })
}

type containsCase struct {
	name string
	at   string
	want bool
}

package schedule

import (
	"errors"
	"fmt"

	"timegate/internal/period"
)

// Definition errors. Every error returned by the loader wraps one of these
// in a *DefinitionError.
var (
	ErrMalformed        = errors.New("schedule: malformed definition")
	ErrMissingPeriods   = errors.New("schedule: periods field is required and must be a list")
	ErrMissingType      = errors.New("schedule: period type is required")
	ErrUnknownType      = errors.New("schedule: unknown period type")
	ErrMissingEdge      = errors.New("schedule: period edge is required")
	ErrInvalidTimestamp = errors.New("schedule: invalid timestamp")

	ErrInvalidWeekday   = period.ErrInvalidWeekday
	ErrInvalidTimeOfDay = period.ErrInvalidTimeOfDay
)

// DefinitionError reports where in a definition loading failed. Index is the
// position of the offending period, or -1 for document-level errors.
type DefinitionError struct {
	Index int
	Type  string
	Field string
	Err   error
}

func (e *DefinitionError) Error() string {
	if e.Index < 0 {
		return e.Err.Error()
	}
	where := fmt.Sprintf("period %d", e.Index)
	if e.Type != "" {
		where += " (" + e.Type + ")"
	}
	if e.Field != "" {
		where += " " + e.Field
	}
	return where + ": " + e.Err.Error()
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

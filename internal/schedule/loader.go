package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"timegate/internal/period"
)

const (
	defaultDailyFrom  = "00:00"
	defaultDailyTo    = "23:59"
	defaultWeeklyHour = "00:00"
)

// zonedLayouts cover ISO 8601 offsets that RFC 3339 rejects: basic
// (+0100), hour-only (+01), and a space or minute-precision variant.
var zonedLayouts = []string{
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05-07",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04-07:00",
}

// timestampLayouts are tried in order for zone-less once timestamps.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parse builds a schedule from a JSON definition.
func Parse(data []byte, opts ...Option) (*Schedule, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, &DefinitionError{Index: -1, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return FromDefinition(def, opts...)
}

// ParseYAML builds a schedule from a YAML definition with the same shape as
// the JSON one.
func ParseYAML(data []byte, opts ...Option) (*Schedule, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &DefinitionError{Index: -1, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return FromDefinition(def, opts...)
}

// LoadFile reads a definition from path. Files ending in .yaml or .yml are
// decoded as YAML, anything else as JSON.
func LoadFile(path string, opts ...Option) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data, opts...)
	default:
		return Parse(data, opts...)
	}
}

// FromDefinition validates def and builds the schedule. Either every period
// is valid and a schedule is returned, or the first invalid period is
// reported and no schedule is returned.
func FromDefinition(def Definition, opts ...Option) (*Schedule, error) {
	if def.Periods == nil {
		return nil, &DefinitionError{Index: -1, Err: ErrMissingPeriods}
	}
	o := newOptions(opts)

	entries := make([]Entry, 0, len(def.Periods))
	for i, pd := range def.Periods {
		p, err := buildPeriod(i, pd, o.Location)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: pd.Name, Description: pd.Description, Period: p})
	}
	return &Schedule{entries: entries, loc: o.Location}, nil
}

func buildPeriod(i int, pd PeriodDefinition, loc *time.Location) (period.Period, error) {
	fail := func(field string, err error) error {
		return &DefinitionError{Index: i, Type: pd.Type, Field: field, Err: err}
	}

	switch pd.Type {
	case TypeAlways:
		return period.Always{}, nil
	case TypeNever:
		return period.Never{}, nil
	case TypeOnce:
		if pd.From == nil {
			return nil, fail("from", ErrMissingEdge)
		}
		if pd.To == nil {
			return nil, fail("to", ErrMissingEdge)
		}
		from, err := parseTimestamp(pd.From.Timestamp, loc)
		if err != nil {
			return nil, fail("from.timestamp", err)
		}
		to, err := parseTimestamp(pd.To.Timestamp, loc)
		if err != nil {
			return nil, fail("to.timestamp", err)
		}
		return period.NewOnce(from, to), nil
	case TypeDaily:
		if pd.From == nil {
			return nil, fail("from", ErrMissingEdge)
		}
		if pd.To == nil {
			return nil, fail("to", ErrMissingEdge)
		}
		from, err := period.NewTimeEdge(hourOr(pd.From.Hour, defaultDailyFrom))
		if err != nil {
			return nil, fail("from.hour", err)
		}
		to, err := period.NewTimeEdge(hourOr(pd.To.Hour, defaultDailyTo))
		if err != nil {
			return nil, fail("to.hour", err)
		}
		return period.Daily{From: from, To: to}, nil
	case TypeWeekly:
		if pd.From == nil {
			return nil, fail("from", ErrMissingEdge)
		}
		if pd.To == nil {
			return nil, fail("to", ErrMissingEdge)
		}
		from, field, err := dayTimeEdge("from", pd.From)
		if err != nil {
			return nil, fail(field, err)
		}
		to, field, err := dayTimeEdge("to", pd.To)
		if err != nil {
			return nil, fail(field, err)
		}
		return period.Weekly{From: from, To: to}, nil
	case "":
		return nil, fail("type", ErrMissingType)
	default:
		return nil, fail("type", fmt.Errorf("%w: %q", ErrUnknownType, pd.Type))
	}
}

func dayTimeEdge(side string, ed *EdgeDefinition) (period.DayTimeEdge, string, error) {
	if ed.Day == nil {
		return period.DayTimeEdge{}, side + ".day", fmt.Errorf("%w: missing", ErrInvalidWeekday)
	}
	day, err := period.ParseWeekday(string(*ed.Day))
	if err != nil {
		return period.DayTimeEdge{}, side + ".day", err
	}
	e, err := period.NewDayTimeEdge(day, hourOr(ed.Hour, defaultWeeklyHour))
	if err != nil {
		return period.DayTimeEdge{}, side + ".hour", err
	}
	return e, "", nil
}

func hourOr(h *string, def string) string {
	if h == nil {
		return def
	}
	return strings.TrimSpace(*h)
}

// parseTimestamp accepts RFC 3339, one of zonedLayouts, or one of
// timestampLayouts; zone-less values are read in loc.
func parseTimestamp(s *string, loc *time.Location) (time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return time.Time{}, fmt.Errorf("%w: missing", ErrInvalidTimestamp)
	}
	v := strings.TrimSpace(*s)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, v)
}

package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Period types accepted in a definition.
const (
	TypeAlways = "always"
	TypeNever  = "never"
	TypeOnce   = "once"
	TypeDaily  = "daily"
	TypeWeekly = "weekly"
)

// Definition is the document form of a schedule.
type Definition struct {
	Periods []PeriodDefinition `json:"periods" yaml:"periods"`
}

// PeriodDefinition describes one period. Which edge fields are read depends
// on Type.
type PeriodDefinition struct {
	Name        string          `json:"name,omitempty" yaml:"name,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string          `json:"type" yaml:"type"`
	From        *EdgeDefinition `json:"from,omitempty" yaml:"from,omitempty"`
	To          *EdgeDefinition `json:"to,omitempty" yaml:"to,omitempty"`
}

// EdgeDefinition holds the union of edge fields:
// once uses Timestamp, daily uses Hour, weekly uses Day and Hour.
type EdgeDefinition struct {
	Timestamp *string   `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Day       *DayValue `json:"day,omitempty" yaml:"day,omitempty"`
	Hour      *string   `json:"hour,omitempty" yaml:"hour,omitempty"`
}

// DayValue is a weekday as written in a definition: an ISO weekday number or
// an English day name. It is validated when the schedule is built.
type DayValue string

func (d *DayValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = DayValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("day must be a number or a string: %w", err)
	}
	*d = DayValue(n.String())
	return nil
}

func (d *DayValue) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("day must be a scalar, got %s at line %d", kindName(value.Kind), value.Line)
	}
	*d = DayValue(value.Value)
	return nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "scalar"
	}
}

package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "timegate/internal/log"
	"timegate/internal/model"
	"timegate/internal/period"
)

const defaultMaxPerEvent = 5000

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// RangeStart and RangeEnd select the windows that overlap
	// [RangeStart, RangeEnd].
	RangeStart time.Time
	RangeEnd   time.Time

	// Location is the zone windows are reported in. Nil means time.Local.
	Location *time.Location

	// MaxPerEvent caps the instances of one recurring event.
	MaxPerEvent int
}

// ExpandResult holds the expanded windows sorted by start time.
type ExpandResult struct {
	Windows []model.Window
	// Truncated lists the UIDs that hit MaxPerEvent.
	Truncated []string
}

// Expand turns parsed events into concrete windows. Recurring events are
// expanded with their RRULE minus EXDATEs, and instances named by a
// RECURRENCE-ID override are replaced by the override.
func Expand(events []Event, cfg ExpandConfig) (ExpandResult, error) {
	var res ExpandResult
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return res, errors.New("expand: range end before range start")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.MaxPerEvent <= 0 {
		cfg.MaxPerEvent = defaultMaxPerEvent
	}

	var bases []Event
	overrides := make(map[string][]Event)
	for _, ev := range events {
		if ev.IsOverride() {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	for _, ev := range bases {
		if ev.RRule == "" {
			// A lone override of a single event still replaces it.
			w := ev
			if o, ok := overrideFor(overrides[ev.UID], ev.Start); ok {
				w = o
			}
			if overlaps(w.Start, w.End, cfg.RangeStart, cfg.RangeEnd) {
				res.Windows = append(res.Windows, window(w, w.Start, w.End, cfg.Location))
			}
			continue
		}

		ws, capped, err := expandRecurring(ev, overrides[ev.UID], cfg)
		if err != nil {
			appLog.Warn("ics rrule skipped", "uid", ev.UID, "rrule", ev.RRule, "err", err)
			continue
		}
		if capped {
			appLog.Warn("ics expansion truncated", "uid", ev.UID, "cap", cfg.MaxPerEvent)
			res.Truncated = append(res.Truncated, ev.UID)
		}
		res.Windows = append(res.Windows, ws...)
	}

	sort.SliceStable(res.Windows, func(i, j int) bool {
		return res.Windows[i].Start.Before(res.Windows[j].Start)
	})
	return res, nil
}

func expandRecurring(ev Event, overrides []Event, cfg ExpandConfig) ([]model.Window, bool, error) {
	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil, false, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Look back by one duration so instances already running at RangeStart
	// are kept.
	dur := ev.End.Sub(ev.Start)
	from := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	to := cfg.RangeEnd.In(ev.Start.Location())

	starts := set.Between(from, to, true)
	capped := false
	if len(starts) > cfg.MaxPerEvent {
		starts = starts[:cfg.MaxPerEvent]
		capped = true
	}

	out := make([]model.Window, 0, len(starts))
	for _, s := range starts {
		var e time.Time
		if ev.AllDay {
			s = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, s.Location())
			e = s.AddDate(0, 0, 1)
		} else {
			e = s.Add(dur)
		}

		src, ws, we := ev, s, e
		if o, ok := overrideFor(overrides, s); ok {
			src, ws, we = o, o.Start, o.End
		}
		if !overlaps(ws, we, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		out = append(out, window(src, ws, we, cfg.Location))
	}
	return out, capped, nil
}

func overrideFor(overrides []Event, start time.Time) (Event, bool) {
	for _, o := range overrides {
		if o.Recurrence != nil && o.Recurrence.Equal(start) {
			return o, true
		}
	}
	return Event{}, false
}

func window(ev Event, start, end time.Time, loc *time.Location) model.Window {
	start, end = start.In(loc), end.In(loc)
	return model.Window{
		SourceID:    ev.Source.ID,
		UID:         ev.UID,
		InstanceKey: start.Format(time.RFC3339),
		Summary:     ev.Summary,
		AllDay:      ev.AllDay,
		Start:       start,
		End:         end,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

// Periods converts windows into one-off periods. All-day windows end at the
// next midnight, which is exclusive in iCalendar, so one second is taken off
// to keep the following day closed.
func Periods(windows []model.Window) []period.Period {
	out := make([]period.Period, 0, len(windows))
	for _, w := range windows {
		end := w.End
		if w.AllDay && end.After(w.Start) {
			end = end.Add(-time.Second)
		}
		out = append(out, period.NewOnce(w.Start, end))
	}
	return out
}

// Package gate holds the live schedule of a running process: the periods of
// the schedule file plus one-off windows taken from calendar sources. The
// effective schedule is swapped as a whole on reload and never observed half
// built.
package gate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"timegate/internal/config"
	"timegate/internal/ics"
	appLog "timegate/internal/log"
	"timegate/internal/model"
	"timegate/internal/schedule"
)

// Options configures a Gate.
type Options struct {
	// SchedulePath is the schedule definition file.
	SchedulePath string
	// Location is used for "now" and for zone-less timestamps.
	Location *time.Location
	// Sources are calendar subscriptions merged as one-off windows.
	Sources []ics.Source
	// Horizon bounds recurrence expansion ahead of now.
	Horizon time.Duration
	// Fetcher downloads calendars; nil means no disk cache.
	Fetcher *ics.Fetcher
}

// Snapshot is a consistent view of the gate.
type Snapshot struct {
	Schedule *schedule.Schedule
	Windows  []model.Window
	LoadedAt time.Time
}

// Gate is safe for concurrent use.
type Gate struct {
	opts Options
	now  func() time.Time

	mu    sync.RWMutex
	state Snapshot
}

// New returns a gate with an empty schedule. Call Reload to load it.
func New(opts Options) *Gate {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Horizon <= 0 {
		opts.Horizon = time.Duration(config.DefaultHorizonDays) * 24 * time.Hour
	}
	if opts.Fetcher == nil {
		opts.Fetcher = ics.NewFetcher("")
	}
	empty := schedule.NewWithOptions([]schedule.Option{schedule.WithLocation(opts.Location)})
	return &Gate{
		opts:  opts,
		now:   time.Now,
		state: Snapshot{Schedule: empty},
	}
}

// FromConfig builds gate options from the application config.
func FromConfig(cfg *config.Config, loc *time.Location) Options {
	return Options{
		SchedulePath: cfg.Schedule,
		Location:     loc,
		Sources:      SourcesFromConfig(cfg.ICS),
		Horizon:      time.Duration(cfg.HorizonDays) * 24 * time.Hour,
		Fetcher:      ics.NewFetcher(cfg.CacheDir),
	}
}

// SourcesFromConfig maps configured calendars to fetch sources. The ID falls
// back to the name, then the URL.
func SourcesFromConfig(cals []config.ICSConfig) []ics.Source {
	out := make([]ics.Source, 0, len(cals))
	for _, c := range cals {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = c.Name
		}
		if id == "" {
			id = c.URL
		}
		out = append(out, ics.Source{ID: id, URL: c.URL})
	}
	return out
}

// Reload re-reads the schedule file and refreshes calendar windows.
//
// A schedule that fails to load is reported and the previous one stays in
// force. Calendar failures are logged only: the windows of a source that
// could not be fetched or parsed are carried over from the previous load.
func (g *Gate) Reload(ctx context.Context) error {
	base, err := schedule.LoadFile(g.opts.SchedulePath, schedule.WithLocation(g.opts.Location))
	if err != nil {
		appLog.Error("schedule reload failed, keeping previous schedule", err, "path", g.opts.SchedulePath)
		return err
	}

	windows := g.refreshWindows(ctx)

	entries := base.Entries()
	for _, w := range windows {
		entries = append(entries, windowEntry(w))
	}
	merged := schedule.FromEntries(entries, schedule.WithLocation(g.opts.Location))

	g.mu.Lock()
	g.state = Snapshot{Schedule: merged, Windows: windows, LoadedAt: g.now()}
	g.mu.Unlock()

	appLog.Info("schedule loaded",
		"path", g.opts.SchedulePath,
		"periods", base.Len(),
		"windows", len(windows),
		"timezone", g.opts.Location.String(),
	)
	return nil
}

func (g *Gate) refreshWindows(ctx context.Context) []model.Window {
	if len(g.opts.Sources) == 0 {
		return nil
	}

	failed := make(map[string]bool, len(g.opts.Sources))
	for _, s := range g.opts.Sources {
		failed[s.ID] = true
	}

	results, errs := g.opts.Fetcher.FetchAll(ctx, g.opts.Sources)
	if len(errs) > 0 {
		appLog.Warn("calendar refresh incomplete", "failed", len(errs), "err", errors.Join(errs...))
	}

	var events []ics.Event
	for _, res := range results {
		evs, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("calendar parse failed", err, "id", res.Source.ID)
			continue
		}
		failed[res.Source.ID] = false
		events = append(events, evs...)
	}

	now := g.now().In(g.opts.Location)
	expanded, err := ics.Expand(events, ics.ExpandConfig{
		RangeStart: now,
		RangeEnd:   now.Add(g.opts.Horizon),
		Location:   g.opts.Location,
	})
	if err != nil {
		appLog.Error("calendar expand failed", err)
	}

	windows := expanded.Windows
	for _, w := range g.Snapshot().Windows {
		if failed[w.SourceID] && !w.End.Before(now) {
			windows = append(windows, w)
		}
	}
	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].Start.Before(windows[j].Start)
	})
	return windows
}

func windowEntry(w model.Window) schedule.Entry {
	p := ics.Periods([]model.Window{w})[0]
	return schedule.Entry{
		Name:        w.Summary,
		Description: "calendar " + w.SourceID,
		Period:      p,
	}
}

// Contains reports whether t falls inside the effective schedule.
func (g *Gate) Contains(t time.Time) bool {
	return g.current().Contains(t)
}

// ContainsNow evaluates the current instant in the gate's location.
func (g *Gate) ContainsNow() bool {
	return g.current().ContainsNow()
}

// Active returns the entries containing t.
func (g *Gate) Active(t time.Time) []schedule.Entry {
	return g.current().Active(t)
}

func (g *Gate) current() *schedule.Schedule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state.Schedule
}

// Location is the zone the gate evaluates "now" in.
func (g *Gate) Location() *time.Location {
	return g.opts.Location
}

// Snapshot returns the current state. The schedule is immutable and the
// windows slice is a copy.
func (g *Gate) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := g.state
	s.Windows = append([]model.Window(nil), g.state.Windows...)
	return s
}

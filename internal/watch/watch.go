// Package watch drives a gate from cron schedules: one job re-evaluates the
// gate and reports open/close transitions, another reloads it.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"timegate/internal/config"
	appLog "timegate/internal/log"
)

// Target is what the watcher evaluates and reloads. *gate.Gate satisfies it.
type Target interface {
	ContainsNow() bool
	Reload(ctx context.Context) error
}

// Config holds the two cron specs. Empty fields take the config defaults;
// Refresh config.RefreshDisabled turns reloading off.
type Config struct {
	Evaluate string
	Refresh  string
	Location *time.Location

	// OnChange is called after every transition, and once for the initial
	// state.
	OnChange func(open bool, at time.Time)
}

// Watcher is started once and stopped once.
type Watcher struct {
	cfg    Config
	target Target
	cron   *cron.Cron
	now    func() time.Time

	mu  sync.Mutex
	ctx context.Context

	// evalMu serializes Evaluate so that transitions are observed and
	// reported in the same order.
	evalMu sync.Mutex
	known  bool
	open   bool
}

// New returns a stopped watcher.
func New(target Target, cfg Config) *Watcher {
	if cfg.Evaluate == "" {
		cfg.Evaluate = config.DefaultEvaluate
	}
	if cfg.Refresh == "" {
		cfg.Refresh = config.DefaultRefreshCron
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Watcher{
		cfg:    cfg,
		target: target,
		cron:   cron.New(cron.WithLocation(cfg.Location)),
		now:    time.Now,
		ctx:    context.Background(),
	}
}

// Start registers both jobs, evaluates once and starts the scheduler. ctx
// bounds the reloads triggered by the refresh job.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.cron.AddFunc(w.cfg.Evaluate, func() { w.Evaluate() }); err != nil {
		return fmt.Errorf("invalid evaluate spec %q: %w", w.cfg.Evaluate, err)
	}
	if w.cfg.Refresh != config.RefreshDisabled {
		if _, err := w.cron.AddFunc(w.cfg.Refresh, func() { w.Refresh() }); err != nil {
			return fmt.Errorf("invalid refresh spec %q: %w", w.cfg.Refresh, err)
		}
	}

	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.Evaluate()
	w.cron.Start()
	appLog.Info("watcher started", "evaluate", w.cfg.Evaluate, "refresh", w.cfg.Refresh)
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (w *Watcher) Stop() {
	<-w.cron.Stop().Done()
	appLog.Info("watcher stopped")
}

// Evaluate checks the target and reports whether it is open and whether
// that differs from the previous evaluation. Concurrent calls from the two
// jobs run one at a time, OnChange included.
func (w *Watcher) Evaluate() (open, changed bool) {
	w.evalMu.Lock()
	defer w.evalMu.Unlock()

	open = w.target.ContainsNow()
	at := w.now().In(w.cfg.Location)

	changed = !w.known || open != w.open
	w.known, w.open = true, open

	if !changed {
		appLog.Debug("gate unchanged", "open", open)
		return open, false
	}

	appLog.Info("gate "+stateName(open), "at", at.Format(time.RFC3339))
	if w.cfg.OnChange != nil {
		w.cfg.OnChange(open, at)
	}
	return open, true
}

// Refresh reloads the target and re-evaluates it. A failed reload is logged
// by the target and leaves its previous schedule in force.
func (w *Watcher) Refresh() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()

	if err := w.target.Reload(ctx); err != nil {
		appLog.Warn("refresh failed", "err", err)
	}
	w.Evaluate()
}

func stateName(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}

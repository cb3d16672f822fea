// Package app wires the tables file, registry, scheduler, watcher and
// display together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/npratt/griddash/internal/config"
	"github.com/npratt/griddash/internal/dashboard"
	"github.com/npratt/griddash/internal/refresh"
	"github.com/npratt/griddash/internal/registry"
	"github.com/npratt/griddash/internal/scheduler"
	"github.com/npratt/griddash/internal/source"
	"github.com/npratt/griddash/internal/watcher"
)

// UI is a display that runs until ctx ends or the user quits.
type UI interface {
	Run(ctx context.Context) error
}

// App owns the table registry and everything that reads or writes it.
type App struct {
	cfg     *config.Config
	base    *slog.Logger
	logger  *slog.Logger
	clock   refresh.Clock
	fetcher source.Fetcher

	reg   *registry.Registry
	sched *scheduler.Scheduler
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithFetcher replaces the default file and HTTP loader.
func WithFetcher(f source.Fetcher) Option {
	return func(a *App) {
		a.fetcher = f
	}
}

// WithClock sets the time source.
func WithClock(c refresh.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}

// New loads the tables file named by cfg and builds the engine around it.
// A tables file that cannot be read or parsed is an error.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: slog.Default(),
		clock:  refresh.SystemClock{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.base = a.logger
	a.logger = a.base.With("component", "app")
	if a.fetcher == nil {
		a.fetcher = source.NewLoader(source.WithUserAgent(cfg.Refresh.UserAgent))
	}

	layout, err := dashboard.Load(cfg.Tables)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}

	a.reg = registry.New(layout)
	a.sched = scheduler.New(a.reg, a.fetcher,
		scheduler.WithPolicy(cfg.Policy()),
		scheduler.WithClock(a.clock),
		scheduler.WithTick(cfg.Refresh.Tick),
		scheduler.WithLogger(a.base),
	)

	a.logger.Info("tables loaded", "path", cfg.Tables, "tables", layout.Len())
	return a, nil
}

// Registry returns the table registry.
func (a *App) Registry() *registry.Registry {
	return a.reg
}

// Scheduler returns the refresh scheduler.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.sched
}

// Snapshot returns the state of every table at now.
func (a *App) Snapshot(now time.Time) registry.Snapshot {
	return a.reg.Snapshot(now, a.sched.Policy())
}

// Refresh asks the scheduler to check for due tables now.
func (a *App) Refresh() {
	a.sched.Nudge()
}

// Reload re-reads the tables file. On failure the current tables stay in
// place and the error is recorded for display.
func (a *App) Reload() error {
	now := a.clock.Now()

	layout, err := dashboard.Load(a.cfg.Tables)
	if err != nil {
		a.reg.SetReloadStatus(now, err)
		a.logger.Warn("reload failed, keeping previous tables", "path", a.cfg.Tables, "error", err)
		return err
	}

	stats := a.reg.Rebuild(layout)
	a.reg.SetReloadStatus(now, nil)
	a.logger.Info("tables reloaded",
		"generation", a.reg.Generation(),
		"kept", stats.Kept,
		"reset", stats.Reset,
		"added", stats.Added,
		"removed", stats.Removed,
	)
	a.sched.Nudge()
	return nil
}

// Once fetches every due table a single time and returns the result.
func (a *App) Once(ctx context.Context) registry.Snapshot {
	n := a.sched.RunOnce(ctx)
	a.logger.Debug("refresh pass complete", "fetched", n)
	return a.Snapshot(a.clock.Now())
}

// Run starts the scheduler and, when enabled, the tables file watcher. If ui
// is non-nil it runs alongside them and everything stops when it returns;
// otherwise Run blocks until ctx ends.
func (a *App) Run(ctx context.Context, ui UI) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Watch.Enabled {
		w := watcher.New(a.cfg.Tables, a.cfg.Watch.Debounce, a.base)
		if err := w.Start(gctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		g.Go(func() error {
			defer func() { _ = w.Stop() }()
			a.reloadLoop(gctx, w.Changes())
			return nil
		})
	}

	g.Go(func() error {
		return a.sched.Run(gctx)
	})

	if ui != nil {
		g.Go(func() error {
			defer cancel()
			return ui.Run(gctx)
		})
	}

	err := g.Wait()
	stats := a.sched.Stats()
	a.logger.Info("griddash stopped",
		"dispatched", stats.Dispatched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"stale", stats.Stale,
	)
	return err
}

// reloadLoop reloads the tables file after each change notification.
func (a *App) reloadLoop(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			_ = a.Reload()
		}
	}
}

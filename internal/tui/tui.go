// Package tui draws the table grid in the terminal using bubbletea.
package tui

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/griddash/internal/registry"
)

// DefaultFrameInterval is how often the display re-reads the registry.
const DefaultFrameInterval = 500 * time.Millisecond

// SnapshotGetter provides the state to draw. It must not block on fetches.
type SnapshotGetter interface {
	Snapshot(now time.Time) registry.Snapshot
}

// SnapshotFunc adapts a function to SnapshotGetter.
type SnapshotFunc func(now time.Time) registry.Snapshot

// Snapshot calls f(now).
func (f SnapshotFunc) Snapshot(now time.Time) registry.Snapshot { return f(now) }

// TUI is the terminal display of the table grid.
type TUI struct {
	source        SnapshotGetter
	onRefresh     func()
	onQuit        func()
	frameInterval time.Duration
	out           io.Writer
	forceSimple   bool
}

// Option configures the TUI.
type Option func(*TUI)

// New creates a new TUI that draws snapshots from source.
func New(source SnapshotGetter, opts ...Option) *TUI {
	t := &TUI{
		source:        source,
		frameInterval: DefaultFrameInterval,
		out:           os.Stdout,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithOnRefresh sets the callback invoked when the user presses 'r'.
func WithOnRefresh(fn func()) Option {
	return func(t *TUI) {
		t.onRefresh = fn
	}
}

// WithOnQuit sets the callback invoked when the user presses 'q'.
func WithOnQuit(fn func()) Option {
	return func(t *TUI) {
		t.onQuit = fn
	}
}

// WithFrameInterval sets how often the display is redrawn.
func WithFrameInterval(d time.Duration) Option {
	return func(t *TUI) {
		if d > 0 {
			t.frameInterval = d
		}
	}
}

// WithSimpleOutput forces line mode, printing the grid to w whenever it
// changes instead of taking over the terminal.
func WithSimpleOutput(w io.Writer) Option {
	return func(t *TUI) {
		t.out = w
		t.forceSimple = true
	}
}

// Run starts the display and blocks until the user quits or ctx ends.
// Without a terminal it falls back to line mode.
func (t *TUI) Run(ctx context.Context) error {
	if t.forceSimple || !IsTerminal() {
		return t.runSimple(ctx)
	}

	m := newModel(t.source, t.onRefresh, t.onQuit, t.frameInterval)

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

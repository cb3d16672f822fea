package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

// simpleWidth is used in line mode when stdout has no size.
const simpleWidth = 100

// IsTerminal reports whether both stdout and stdin are TTYs.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd()))
}

// TerminalSize returns the current terminal width and height.
// Returns 0, 0 if the terminal size cannot be determined.
func TerminalSize() (width, height int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0, 0
	}
	return width, height
}

// runSimple provides line output for non-interactive environments. It prints
// the grid each time the data behind it changes and exits when ctx ends.
func (t *TUI) runSimple(ctx context.Context) error {
	ticker := time.NewTicker(t.frameInterval)
	defer ticker.Stop()

	var last string
	emit := func(now time.Time) {
		snap := t.source.Snapshot(now)
		sig := signature(snap)
		if sig == last {
			return
		}
		last = sig

		width, _ := TerminalSize()
		if width <= 0 {
			width = simpleWidth
		}
		frame := RenderGrid(snap, width, GridHeight(snap, width), now)
		_, _ = fmt.Fprintf(t.out, "%s\n%s\n", now.Format("15:04:05"), frame)
	}

	emit(time.Now())
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			emit(now)
		}
	}
}

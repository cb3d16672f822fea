package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/npratt/griddash/internal/registry"
)

// model is the bubbletea model for the TUI. It only ever reads snapshots;
// fetching happens elsewhere.
type model struct {
	source        SnapshotGetter
	frameInterval time.Duration

	// State
	snap          registry.Snapshot
	now           time.Time
	refreshedAt   time.Time // last time the user asked for a refresh
	width, height int
	showHelp      bool

	keys    keyMap
	help    help.Model
	spinner spinner.Model

	// Callbacks
	onRefresh func()
	onQuit    func()
}

// newModel creates a new model with the given configuration.
func newModel(source SnapshotGetter, onRefresh, onQuit func(), frameInterval time.Duration) model {
	if frameInterval <= 0 {
		frameInterval = DefaultFrameInterval
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return model{
		source:        source,
		frameInterval: frameInterval,
		keys:          defaultKeyMap(),
		help:          help.New(),
		spinner:       sp,
		onRefresh:     onRefresh,
		onQuit:        onQuit,
	}
}

// Init implements tea.Model. It takes the first snapshot immediately.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return frameMsg(time.Now()) },
		m.spinner.Tick,
	)
}

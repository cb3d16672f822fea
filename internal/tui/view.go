package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const (
	minWidth  = 20
	minHeight = 5
)

// View implements tea.Model. This renders the full TUI display.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.width < minWidth || m.height < minHeight {
		return m.renderTooSmall()
	}

	footer := m.renderFooter()
	gridHeight := m.height - lipgloss.Height(footer)
	if gridHeight < 1 {
		return footer
	}

	grid := RenderGrid(m.snap, m.width, gridHeight, m.now)
	return lipgloss.JoinVertical(lipgloss.Left, grid, footer)
}

// renderFooter shows the reload status, table health and key help.
func (m model) renderFooter() string {
	var parts []string

	if n := m.snap.Loading(); n > 0 {
		parts = append(parts, fmt.Sprintf("%s loading %d", m.spinner.View(), n))
	}
	if n := m.snap.Failing(); n > 0 {
		parts = append(parts, styles.Error.Render(fmt.Sprintf("%d failing", n)))
	}

	reload := m.snap.Reload
	switch {
	case reload.Err != "":
		msg := strings.ReplaceAll(safeString(reload.Err), "\n", " ")
		parts = append(parts, styles.ReloadError.Render("reload failed, keeping previous tables: "+msg))
	case !reload.At.IsZero():
		parts = append(parts, styles.ReloadOK.Render("reloaded "+formatAgo(m.now, reload.At)))
	}

	if !m.refreshedAt.IsZero() && m.now.Sub(m.refreshedAt) < 2*m.frameInterval {
		parts = append(parts, "refresh requested")
	}

	status := styles.Footer.Render(strings.Join(parts, " · "))
	helpView := m.help.View(m.keys)

	if m.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left,
			ansi.Truncate(status, m.width, ""),
			helpView,
		)
	}

	line := status
	if status != "" {
		line += "  "
	}
	line += helpView
	return ansi.Truncate(line, m.width, "")
}

// renderTooSmall renders a message when the terminal is too small.
func (m model) renderTooSmall() string {
	msg := fmt.Sprintf("Terminal too small (%dx%d)\nMinimum: %dx%d", m.width, m.height, minWidth, minHeight)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}

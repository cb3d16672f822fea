package tui

import "github.com/charmbracelet/lipgloss"

// styles contains all lipgloss styles used by the TUI. Table colours from
// the tables file override the table styles per table.
var styles = struct {
	// Table styles
	Border lipgloss.Style
	Header lipgloss.Style
	Rule   lipgloss.Style
	Cell   lipgloss.Style
	Error  lipgloss.Style

	// Footer styles
	Footer      lipgloss.Style
	ReloadOK    lipgloss.Style
	ReloadError lipgloss.Style
	Spinner     lipgloss.Style
}{
	Border: lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")),

	Header: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")),

	Rule: lipgloss.NewStyle().
		Foreground(lipgloss.Color("238")),

	Cell: lipgloss.NewStyle(),

	Error: lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")),

	Footer: lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")),

	ReloadOK: lipgloss.NewStyle().
		Foreground(lipgloss.Color("114")),

	ReloadError: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196")),

	Spinner: lipgloss.NewStyle().
		Foreground(lipgloss.Color("39")),
}

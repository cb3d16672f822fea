package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/npratt/griddash/internal/dashboard"
	"github.com/npratt/griddash/internal/registry"
)

const (
	columnGap = 1
	ellipsis  = "..."
)

// tableStyles are the per-table colours from the design section.
type tableStyles struct {
	border lipgloss.Style
	header lipgloss.Style
	column lipgloss.Style
	cell   lipgloss.Style
}

func designStyles(d dashboard.Design) tableStyles {
	return tableStyles{
		border: colorStyle(d.Border, styles.Border),
		header: colorStyle(d.Header, styles.Header),
		column: colorStyle(d.Column, styles.Rule),
		cell:   colorStyle(d.Cell, styles.Cell),
	}
}

func colorStyle(hex string, fallback lipgloss.Style) lipgloss.Style {
	if hex == "" {
		return fallback
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
}

// RenderGrid draws the whole grid into exactly width x height cells. Rows of
// tables share the height equally and tables in a row share its width.
func RenderGrid(snap registry.Snapshot, width, height int, now time.Time) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	if len(snap.Rows) == 0 {
		return fill([]string{styles.Footer.Render("no tables configured")}, width, height)
	}

	heights := split(height, len(snap.Rows))
	rows := make([]string, 0, len(snap.Rows))
	for i, row := range snap.Rows {
		if heights[i] == 0 {
			continue
		}
		widths := split(width, len(row))
		blocks := make([]string, 0, len(row))
		for j, v := range row {
			if widths[j] == 0 {
				continue
			}
			blocks = append(blocks, strings.Join(renderTable(v, widths[j], heights[i], now), "\n"))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, blocks...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// GridHeight returns the number of lines needed to show every row of every
// table at width without clipping.
func GridHeight(snap registry.Snapshot, width int) int {
	total := 0
	for _, row := range snap.Rows {
		widths := split(width, len(row))
		tallest := 1
		for j, v := range row {
			tallest = max(tallest, naturalHeight(v, widths[j]))
		}
		total += tallest
	}
	return max(total, 1)
}

// renderTable returns exactly h lines of display width w.
func renderTable(v registry.TableView, w, h int, now time.Time) []string {
	st := designStyles(v.Design)
	bordered := v.Title != ""
	if bordered && (w < 3 || h < 3) {
		bordered = false
	}

	iw, ih := w, h
	if bordered {
		iw, ih = w-2, h-2
	}
	body := tableBody(v, iw, ih, st, now)
	if !bordered {
		return body
	}

	title := ansi.Truncate(safeString(strings.ReplaceAll(v.Title, "\n", " ")), iw, "")
	top := "┌" + title + strings.Repeat("─", iw-ansi.StringWidth(title)) + "┐"

	out := make([]string, 0, h)
	out = append(out, st.border.Render(top))
	side := st.border.Render("│")
	for _, line := range body {
		out = append(out, side+line+side)
	}
	out = append(out, st.border.Render("└"+strings.Repeat("─", iw)+"┘"))
	return out
}

// tableBody lays out headers, rows and the status line into exactly ih lines
// of width iw. Rows that do not fit are cut off.
func tableBody(v registry.TableView, iw, ih int, st tableStyles, now time.Time) []string {
	if ih <= 0 {
		return nil
	}

	status := statusLine(v, now)
	avail := ih
	if status != "" {
		avail--
	}

	widths := columnWidths(v, iw)
	lines := make([]string, 0, ih)

	if len(v.Headers) > 0 && len(lines) < avail {
		lines = append(lines, joinCells(v.Headers, widths, iw, st.header))
		if len(lines) < avail {
			lines = append(lines, rule(widths, iw, st.column))
		}
	}

	for _, row := range v.Rows {
		if len(lines) >= avail {
			break
		}
		cells, height := wrapRow(row, widths, v.MaxCellHeight)
		for k := 0; k < height && len(lines) < avail; k++ {
			parts := make([]string, len(cells))
			for c, cell := range cells {
				if k < len(cell) {
					parts[c] = cell[k]
				}
			}
			lines = append(lines, joinCells(parts, widths, iw, st.cell))
		}
	}

	for len(lines) < avail {
		lines = append(lines, strings.Repeat(" ", iw))
	}
	if status != "" {
		lines = append(lines, styles.Error.Render(pad(ansi.Truncate(status, iw, ""), iw)))
	}
	return lines
}

// naturalHeight is the height renderTable needs to show v in full.
func naturalHeight(v registry.TableView, w int) int {
	h := 0
	iw := w
	if v.Title != "" {
		h += 2
		iw = w - 2
	}
	if len(v.Headers) > 0 {
		h += 2
	}
	widths := columnWidths(v, iw)
	for _, row := range v.Rows {
		_, rh := wrapRow(row, widths, v.MaxCellHeight)
		h += rh
	}
	if v.LastError != "" {
		h++
	}
	return max(h, 1)
}

// columnWidths splits iw between the columns, using the configured
// percentages when there is one per column.
func columnWidths(v registry.TableView, iw int) []int {
	n := len(v.Headers)
	if n == 0 {
		n = len(v.Ratios)
	}
	if n == 0 {
		for _, row := range v.Rows {
			n = max(n, len(row))
		}
	}
	n = max(n, 1)

	avail := max(iw-columnGap*(n-1), 0)
	if len(v.Ratios) != n {
		return split(avail, n)
	}
	widths := make([]int, n)
	for i, ratio := range v.Ratios {
		widths[i] = avail * ratio / 100
	}
	return widths
}

// wrapRow wraps each cell of row to its column and returns the lines per
// cell and the height of the tallest cell.
func wrapRow(row []string, widths []int, maxLines int) ([][]string, int) {
	cells := make([][]string, len(widths))
	height := 1
	for c, w := range widths {
		text := ""
		if c < len(row) {
			text = row[c]
		}
		cells[c] = wrapCell(text, w, maxLines)
		height = max(height, len(cells[c]))
	}
	return cells, height
}

// wrapCell word-wraps text to width and keeps at most maxLines lines. When
// lines are dropped the last kept line ends in "...".
func wrapCell(text string, width, maxLines int) []string {
	if width <= 0 {
		return []string{""}
	}

	var lines []string
	for _, para := range strings.Split(safeString(text), "\n") {
		lines = append(lines, strings.Split(ansi.Wrap(para, width, ""), "\n")...)
	}
	if maxLines <= 0 || len(lines) <= maxLines {
		return lines
	}

	lines = lines[:maxLines]
	last := strings.TrimRight(lines[maxLines-1], ". ")
	if ansi.StringWidth(last)+len(ellipsis) > width {
		last = ansi.Truncate(last, max(width-len(ellipsis), 0), "")
	}
	lines[maxLines-1] = last + ellipsis
	return lines
}

// joinCells lays out one line of cells and pads it to iw.
func joinCells(parts []string, widths []int, iw int, style lipgloss.Style) string {
	var b strings.Builder
	used := 0
	for c, w := range widths {
		if c > 0 {
			b.WriteString(strings.Repeat(" ", columnGap))
			used += columnGap
		}
		text := ""
		if c < len(parts) {
			text = strings.ReplaceAll(safeString(parts[c]), "\n", " ")
		}
		b.WriteString(style.Render(pad(ansi.Truncate(text, w, ""), w)))
		used += w
	}
	if used > iw {
		return ansi.Truncate(b.String(), iw, "")
	}
	b.WriteString(strings.Repeat(" ", iw-used))
	return b.String()
}

// rule draws the line under the headers.
func rule(widths []int, iw int, style lipgloss.Style) string {
	parts := make([]string, len(widths))
	for c, w := range widths {
		parts[c] = strings.Repeat("─", w)
	}
	return joinCells(parts, widths, iw, style)
}

// split divides total into n near-equal parts, larger parts first.
func split(total, n int) []int {
	if n <= 0 {
		return nil
	}
	parts := make([]int, n)
	base, extra := total/n, total%n
	for i := range parts {
		parts[i] = base
		if i < extra {
			parts[i]++
		}
	}
	return parts
}

func pad(s string, w int) string {
	if gap := w - ansi.StringWidth(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// fill pads lines to width and height.
func fill(lines []string, width, height int) string {
	out := make([]string, 0, height)
	for _, l := range lines {
		if len(out) == height {
			break
		}
		out = append(out, pad(ansi.Truncate(l, width, ""), width))
	}
	for len(out) < height {
		out = append(out, strings.Repeat(" ", width))
	}
	return strings.Join(out, "\n")
}

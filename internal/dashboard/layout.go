// Package dashboard loads the table grid configuration file.
package dashboard

import (
	"fmt"
	"regexp"

	"github.com/npratt/griddash/internal/source"
)

// DefaultMaxCellHeight is used when a table does not set max_cell_height.
const DefaultMaxCellHeight = 3

// Layout is a grid of tables: rows of tables, each row laid out left to right.
type Layout struct {
	Rows [][]Table
}

// Table is one table in the grid together with its data source.
type Table struct {
	ID            string
	Title         string
	Headers       []string
	Ratios        []int
	MaxCellHeight int
	Design        Design
	Source        source.Descriptor
}

// Design holds optional hex colours for the parts of a table.
type Design struct {
	Border string
	Header string
	Column string
	Cell   string
}

// Tables returns every table in row order.
func (l *Layout) Tables() []Table {
	var out []Table
	for _, row := range l.Rows {
		out = append(out, row...)
	}
	return out
}

// Len returns the number of tables in the grid.
func (l *Layout) Len() int {
	n := 0
	for _, row := range l.Rows {
		n += len(row)
	}
	return n
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks the grid for problems that make it unusable.
func (l *Layout) Validate() error {
	if len(l.Rows) == 0 {
		return fmt.Errorf("no tables configured")
	}

	seen := make(map[string]bool)
	for r, row := range l.Rows {
		if len(row) == 0 {
			return fmt.Errorf("row %d has no tables", r)
		}
		for c, t := range row {
			where := fmt.Sprintf("row %d table %d", r, c)
			if t.ID == "" {
				return fmt.Errorf("%s: id is required", where)
			}
			if seen[t.ID] {
				return fmt.Errorf("%s: duplicate id %q", where, t.ID)
			}
			seen[t.ID] = true

			if len(t.Ratios) > 0 && len(t.Headers) > 0 && len(t.Ratios) != len(t.Headers) {
				return fmt.Errorf("table %q: %d column_ratios for %d column_headers", t.ID, len(t.Ratios), len(t.Headers))
			}
			for _, ratio := range t.Ratios {
				if ratio < 0 {
					return fmt.Errorf("table %q: negative column ratio %d", t.ID, ratio)
				}
			}
			if t.MaxCellHeight < 0 {
				return fmt.Errorf("table %q: max_cell_height must not be negative", t.ID)
			}
			for name, color := range map[string]string{
				"border": t.Design.Border,
				"header": t.Design.Header,
				"column": t.Design.Column,
				"cell":   t.Design.Cell,
			} {
				if color != "" && !hexColor.MatchString(color) {
					return fmt.Errorf("table %q: design.%s color %q is not #rrggbb", t.ID, name, color)
				}
			}
			if t.Source == nil {
				return fmt.Errorf("table %q: source is required", t.ID)
			}
			if source.KindOf(t.Source) != source.KindStatic && source.TargetOf(t.Source) == "" {
				return fmt.Errorf("table %q: %s source needs a target", t.ID, source.KindOf(t.Source))
			}
		}
	}
	return nil
}

package dashboard

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/npratt/griddash/internal/source"
)

// fileConfig mirrors the on-disk shape of the tables file.
type fileConfig struct {
	Tables [][]tableConfig `json:"tables" yaml:"tables"`
}

type tableConfig struct {
	ID            string        `json:"id" yaml:"id"`
	TableHeader   string        `json:"table_header" yaml:"table_header"`
	ColumnHeaders []string      `json:"column_headers" yaml:"column_headers"`
	ColumnRatios  []int         `json:"column_ratios" yaml:"column_ratios"`
	MaxCellHeight int           `json:"max_cell_height" yaml:"max_cell_height"`
	Source        *sourceConfig `json:"source" yaml:"source"`
	Design        *designConfig `json:"design" yaml:"design"`
}

type sourceConfig struct {
	Type           string     `json:"type" yaml:"type"`
	Data           [][]string `json:"data" yaml:"data"`
	Path           string     `json:"path" yaml:"path"`
	URL            string     `json:"url" yaml:"url"`
	RefreshSeconds *float64   `json:"refresh_seconds" yaml:"refresh_seconds"`
	Refresh        string     `json:"refresh" yaml:"refresh"`
	Mapping        []string   `json:"mapping" yaml:"mapping"`
}

type designConfig struct {
	Border *styleConfig `json:"border" yaml:"border"`
	Header *styleConfig `json:"header" yaml:"header"`
	Column *styleConfig `json:"column" yaml:"column"`
	Cell   *styleConfig `json:"cell" yaml:"cell"`
}

type styleConfig struct {
	Color string `json:"color" yaml:"color"`
}

func (s *styleConfig) color() string {
	if s == nil {
		return ""
	}
	return s.Color
}

// Load reads, decodes and validates the tables file at path.
// Files ending in .yaml or .yml are decoded as YAML; anything else is
// treated as JSON, with comments and trailing commas allowed.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables file: %w", err)
	}

	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	default:
		format = "json"
	}

	layout, err := Parse(data, format, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return layout, nil
}

// Parse decodes tables file content in the given format ("json" or "yaml").
// Relative file source paths are resolved against baseDir.
func Parse(data []byte, format, baseDir string) (*Layout, error) {
	var cfg fileConfig
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case "json":
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	layout := &Layout{Rows: make([][]Table, 0, len(cfg.Tables))}
	for _, row := range cfg.Tables {
		tables := make([]Table, 0, len(row))
		for _, tc := range row {
			t, err := tc.toTable(baseDir)
			if err != nil {
				return nil, err
			}
			tables = append(tables, t)
		}
		layout.Rows = append(layout.Rows, tables)
	}

	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return layout, nil
}

func (tc tableConfig) toTable(baseDir string) (Table, error) {
	t := Table{
		ID:            tc.ID,
		Title:         tc.TableHeader,
		Headers:       tc.ColumnHeaders,
		Ratios:        tc.ColumnRatios,
		MaxCellHeight: tc.MaxCellHeight,
	}
	if t.MaxCellHeight == 0 {
		t.MaxCellHeight = DefaultMaxCellHeight
	}
	if tc.Design != nil {
		t.Design = Design{
			Border: tc.Design.Border.color(),
			Header: tc.Design.Header.color(),
			Column: tc.Design.Column.color(),
			Cell:   tc.Design.Cell.color(),
		}
	}

	if tc.Source == nil {
		return Table{}, fmt.Errorf("table %q: source is required", tc.ID)
	}
	d, err := tc.Source.descriptor(baseDir)
	if err != nil {
		return Table{}, fmt.Errorf("table %q: %w", tc.ID, err)
	}
	t.Source = d
	return t, nil
}

func (sc *sourceConfig) descriptor(baseDir string) (source.Descriptor, error) {
	switch strings.ToLower(sc.Type) {
	case "static":
		return source.Static{Rows: sc.Data}, nil
	case "file":
		interval, err := sc.interval()
		if err != nil {
			return nil, err
		}
		path := sc.Path
		if path != "" && !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		return source.File{Path: path, Interval: interval, Mapping: sc.Mapping}, nil
	case "http", "remote":
		interval, err := sc.interval()
		if err != nil {
			return nil, err
		}
		return source.Remote{URL: sc.URL, Interval: interval, Mapping: sc.Mapping}, nil
	case "":
		return nil, fmt.Errorf("source type is required")
	default:
		return nil, fmt.Errorf("unknown source type %q", sc.Type)
	}
}

// maxRefreshSeconds is the first refresh_seconds value that no longer fits
// in a time.Duration.
var maxRefreshSeconds = float64(math.MaxInt64) / float64(time.Second)

// interval returns the refresh interval. refresh_seconds wins over refresh.
// Omitted means zero, so the table is refreshed on every tick.
func (sc *sourceConfig) interval() (time.Duration, error) {
	if sc.RefreshSeconds != nil {
		secs := *sc.RefreshSeconds
		if secs < 0 {
			return 0, fmt.Errorf("refresh_seconds must not be negative")
		}
		if math.IsNaN(secs) || secs >= maxRefreshSeconds {
			return 0, fmt.Errorf("refresh_seconds %v is out of range", secs)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	if sc.Refresh == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(sc.Refresh)
	if err != nil {
		return 0, fmt.Errorf("invalid refresh %q: %w", sc.Refresh, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("refresh must not be negative")
	}
	return d, nil
}

// Summary returns a short human readable description of the grid.
func (l *Layout) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows, %d tables\n", len(l.Rows), l.Len())
	for r, row := range l.Rows {
		for _, t := range row {
			kind := source.KindOf(t.Source)
			fmt.Fprintf(&b, "  [%d] %-20s %-6s", r, t.ID, kind)
			if target := source.TargetOf(t.Source); target != "" {
				fmt.Fprintf(&b, " %s", target)
			}
			if iv := source.IntervalOf(t.Source); kind != source.KindStatic {
				fmt.Fprintf(&b, " every %s", iv)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

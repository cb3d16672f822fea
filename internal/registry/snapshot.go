package registry

import (
	"slices"
	"time"

	"github.com/npratt/griddash/internal/dashboard"
	"github.com/npratt/griddash/internal/refresh"
	"github.com/npratt/griddash/internal/source"
)

// TableView is the display state of one table.
type TableView struct {
	ID            string
	Title         string
	Headers       []string
	Ratios        []int
	MaxCellHeight int
	Design        dashboard.Design
	Kind          source.Kind

	Rows         [][]string
	Fetched      bool // false while a non-static table shows its placeholder
	LastError    string
	Failures     int
	LastAttempt  time.Time
	BackoffUntil time.Time
	State        refresh.State
}

// Snapshot is a point-in-time copy of the registry. It shares no memory with
// the registry and is never mutated after creation.
type Snapshot struct {
	Rows       [][]TableView
	Generation uint64
	Reload     ReloadStatus
	Taken      time.Time
}

// Snapshot copies the full state at now under the read lock.
func (r *Registry) Snapshot(now time.Time, policy refresh.Policy) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Rows:       make([][]TableView, 0, len(r.grid)),
		Generation: r.generation,
		Reload:     r.reload,
		Taken:      now,
	}
	for _, row := range r.grid {
		views := make([]TableView, 0, len(row))
		for _, id := range row {
			e := r.entries[id]
			views = append(views, TableView{
				ID:            id,
				Title:         e.table.Title,
				Headers:       slices.Clone(e.table.Headers),
				Ratios:        slices.Clone(e.table.Ratios),
				MaxCellHeight: e.table.MaxCellHeight,
				Design:        e.table.Design,
				Kind:          source.KindOf(e.desc),
				Rows:          source.CloneRows(e.record.Rows),
				Fetched:       e.record.Fetched,
				LastError:     e.record.LastError,
				Failures:      e.record.Failures,
				LastAttempt:   e.record.LastAttempt,
				BackoffUntil:  e.record.BackoffUntil,
				State:         policy.StateOf(now, e.desc, e.record),
			})
		}
		snap.Rows = append(snap.Rows, views)
	}
	return snap
}

// Table returns the view for id, if present.
func (s Snapshot) Table(id string) (TableView, bool) {
	for _, row := range s.Rows {
		for _, v := range row {
			if v.ID == id {
				return v, true
			}
		}
	}
	return TableView{}, false
}

// Loading returns the number of tables still waiting for their first data.
func (s Snapshot) Loading() int {
	n := 0
	for _, row := range s.Rows {
		for _, v := range row {
			if !v.Fetched {
				n++
			}
		}
	}
	return n
}

// Failing returns the number of tables whose last fetch failed.
func (s Snapshot) Failing() int {
	n := 0
	for _, row := range s.Rows {
		for _, v := range row {
			if v.Failures > 0 {
				n++
			}
		}
	}
	return n
}

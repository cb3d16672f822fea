// Package registry holds the live set of tables: their configuration, their
// current source descriptors and their refresh records. The scheduler is its
// only writer of records; the display reads immutable snapshots.
package registry

import (
	"sync"
	"time"

	"github.com/npratt/griddash/internal/dashboard"
	"github.com/npratt/griddash/internal/refresh"
	"github.com/npratt/griddash/internal/source"
)

type entry struct {
	table  dashboard.Table
	desc   source.Descriptor
	record refresh.Record
}

// ReloadStatus describes the last attempt to reload the tables file.
type ReloadStatus struct {
	At  time.Time // zero until the first reload attempt
	Err string    // empty when the last reload succeeded
}

// RebuildStats counts what a Rebuild did with each table.
type RebuildStats struct {
	Kept    int // same source, record carried over
	Reset   int // same ID but a different source, record started over
	Added   int
	Removed int
}

// Job is a fetch the scheduler should run.
type Job struct {
	ID   string
	Desc source.Descriptor
}

// Registry is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	grid       [][]string
	generation uint64
	reload     ReloadStatus
}

// New builds a registry for layout with a fresh record per table.
func New(layout *dashboard.Layout) *Registry {
	r := &Registry{entries: make(map[string]*entry)}
	if layout != nil {
		r.Rebuild(layout)
	}
	return r
}

// Rebuild swaps in a new layout under a single write lock. Records survive
// when the table keeps its ID and source; removed IDs are dropped.
func (r *Registry) Rebuild(layout *dashboard.Layout) RebuildStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats RebuildStats
	next := make(map[string]*entry, layout.Len())
	grid := make([][]string, 0, len(layout.Rows))

	for _, row := range layout.Rows {
		ids := make([]string, 0, len(row))
		for _, t := range row {
			ids = append(ids, t.ID)
			next[t.ID] = r.carry(t, &stats)
		}
		grid = append(grid, ids)
	}

	for id := range r.entries {
		if _, ok := next[id]; !ok {
			stats.Removed++
		}
	}

	r.entries = next
	r.grid = grid
	r.generation++
	return stats
}

// carry returns the entry for t, reusing the old record when it applies.
// Caller must hold the write lock.
func (r *Registry) carry(t dashboard.Table, stats *RebuildStats) *entry {
	old, ok := r.entries[t.ID]
	if !ok {
		stats.Added++
		return &entry{table: t, desc: t.Source, record: refresh.NewRecord(t.Source)}
	}
	if !source.SameSource(old.desc, t.Source) {
		stats.Reset++
		return &entry{table: t, desc: t.Source, record: refresh.NewRecord(t.Source)}
	}

	stats.Kept++
	rec := old.record
	if s, isStatic := t.Source.(source.Static); isStatic {
		rec = refresh.NewRecord(s)
	} else if !source.Equal(old.desc, t.Source) {
		// New mapping or interval: give a config-error table another go.
		rec.Permanent = false
	}
	return &entry{table: t, desc: t.Source, record: rec}
}

// Due returns the tables that should be fetched at now, in grid order.
func (r *Registry) Due(now time.Time, policy refresh.Policy) []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var jobs []Job
	for _, row := range r.grid {
		for _, id := range row {
			e := r.entries[id]
			if policy.Due(now, e.desc, e.record) {
				jobs = append(jobs, Job{ID: id, Desc: e.desc})
			}
		}
	}
	return jobs
}

// Commit applies fn to the record of id, but only if the table still exists
// with exactly desc as its descriptor. It reports whether fn ran; a false
// result means the fetch was for a configuration that has since changed.
func (r *Registry) Commit(id string, desc source.Descriptor, fn func(*refresh.Record)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || !source.Equal(e.desc, desc) {
		return false
	}
	fn(&e.record)
	return true
}

// SetReloadStatus records the outcome of a reload attempt.
func (r *Registry) SetReloadStatus(at time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reload = ReloadStatus{At: at}
	if err != nil {
		r.reload.Err = err.Error()
	}
}

// Record returns a copy of the record for id.
func (r *Registry) Record(id string) (refresh.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return refresh.Record{}, false
	}
	return e.record.Clone(), true
}

// Generation is incremented on every successful Rebuild.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

// Len returns the number of tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Package refresh holds the per-table refresh state and the policy that
// decides when a table is fetched and how failures are backed off.
package refresh

import (
	"time"

	"github.com/npratt/griddash/internal/source"
)

// PlaceholderCell is shown for a non-static table before its first success.
const PlaceholderCell = "loading..."

// Record is the runtime state of one table.
type Record struct {
	// Rows is the last good data. Never cleared on failure.
	Rows [][]string

	LastAttempt  time.Time // zero until the first attempt
	Failures     int       // consecutive failures, reset on success
	BackoffUntil time.Time // zero when not backing off
	LastError    string    // empty after a success

	// Fetched is set once any fetch has succeeded.
	Fetched bool
	// Permanent marks a configuration failure that waits for a config change.
	Permanent bool
}

// NewRecord returns the initial record for a table with descriptor d.
// Static tables carry their rows; other sources start with a placeholder row.
func NewRecord(d source.Descriptor) Record {
	if s, ok := d.(source.Static); ok {
		return Record{Rows: source.CloneRows(s.Rows), Fetched: true}
	}
	return Record{Rows: [][]string{{PlaceholderCell}}}
}

// Succeed applies a successful fetch at now.
func (r *Record) Succeed(now time.Time, rows [][]string) {
	r.Rows = rows
	r.LastError = ""
	r.Failures = 0
	r.BackoffUntil = time.Time{}
	r.LastAttempt = now
	r.Fetched = true
	r.Permanent = false
}

// InBackoff reports whether fetches are suppressed at now.
func (r Record) InBackoff(now time.Time) bool {
	return !r.BackoffUntil.IsZero() && now.Before(r.BackoffUntil)
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Rows = source.CloneRows(r.Rows)
	return r
}

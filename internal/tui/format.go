package tui

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/npratt/griddash/internal/refresh"
	"github.com/npratt/griddash/internal/registry"
)

// safeString removes control characters other than newlines so that cell
// text cannot move the cursor or break the grid.
func safeString(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\t", " ")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == '\n' || !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// statusLine describes a failing table, or returns "" for a healthy one.
func statusLine(v registry.TableView, now time.Time) string {
	if v.LastError == "" {
		return ""
	}
	msg := strings.ReplaceAll(safeString(v.LastError), "\n", " ")
	switch v.State {
	case refresh.StateFailed:
		return "config error: " + msg
	case refresh.StateBackoff:
		return fmt.Sprintf("error: %s · retry in %s", msg, formatWait(v.BackoffUntil.Sub(now)))
	default:
		return fmt.Sprintf("error: %s · attempt %d", msg, v.Failures)
	}
}

// formatWait rounds a wait up to whole seconds, e.g. "4s" or "1m20s".
func formatWait(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return (d + time.Second - 1).Truncate(time.Second).String()
}

// formatAgo describes how long ago t was, e.g. "12s ago".
func formatAgo(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	if d < time.Second {
		return "just now"
	}
	return d.Truncate(time.Second).String() + " ago"
}

// signature summarises the data in a snapshot, ignoring timestamps, so line
// mode only prints when something visible changed.
func signature(snap registry.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s\n", snap.Generation, snap.Reload.Err)
	for _, row := range snap.Rows {
		for _, v := range row {
			fmt.Fprintf(&b, "%s|%s|%d|%s|%q\n", v.ID, v.State, v.Failures, v.LastError, v.Rows)
		}
	}
	return b.String()
}

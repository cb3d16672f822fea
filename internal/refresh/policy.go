package refresh

import (
	"math"
	"time"

	"github.com/npratt/griddash/internal/source"
)

const (
	// DefaultRetryThreshold is the number of consecutive failures tolerated
	// before backoff starts.
	DefaultRetryThreshold = 3
	// DefaultInitialBackoff is the delay applied at the threshold.
	DefaultInitialBackoff = 5 * time.Second
)

// State is the refresh state of a table, derived from its record.
type State int

const (
	StateStatic State = iota
	StateFresh
	StateDue
	StateBackoff
	StateFailed // configuration error, waits for a config change
)

// String returns a short label for the state.
func (s State) String() string {
	switch s {
	case StateStatic:
		return "static"
	case StateFresh:
		return "fresh"
	case StateDue:
		return "due"
	case StateBackoff:
		return "backoff"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Policy holds the retry and backoff settings.
type Policy struct {
	RetryThreshold int
	InitialBackoff time.Duration
	// MaxBackoff caps the delay when positive. Zero means no ceiling.
	MaxBackoff time.Duration
}

// DefaultPolicy returns the standard policy: backoff after 3 consecutive
// failures, starting at 5s and doubling with no ceiling.
func DefaultPolicy() Policy {
	return Policy{
		RetryThreshold: DefaultRetryThreshold,
		InitialBackoff: DefaultInitialBackoff,
	}
}

func (p Policy) normalized() Policy {
	if p.RetryThreshold <= 0 {
		p.RetryThreshold = DefaultRetryThreshold
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	return p
}

// StateOf derives the state of a table at now.
func (p Policy) StateOf(now time.Time, d source.Descriptor, r Record) State {
	if source.KindOf(d) == source.KindStatic {
		return StateStatic
	}
	if r.Permanent {
		return StateFailed
	}
	if r.InBackoff(now) {
		return StateBackoff
	}
	if r.Failures == 0 && !r.LastAttempt.IsZero() && now.Sub(r.LastAttempt) < source.IntervalOf(d) {
		return StateFresh
	}
	return StateDue
}

// Due reports whether the table should be fetched at now. Failing tables
// ignore the refresh interval: below the threshold they retry on the next
// tick, above it they retry as soon as the backoff window closes.
func (p Policy) Due(now time.Time, d source.Descriptor, r Record) bool {
	return p.StateOf(now, d, r) == StateDue
}

// Backoff returns the delay applied after the given number of consecutive
// failures, or zero below the threshold.
func (p Policy) Backoff(failures int) time.Duration {
	p = p.normalized()
	if failures < p.RetryThreshold {
		return 0
	}

	delay := p.InitialBackoff
	for i := p.RetryThreshold; i < failures; i++ {
		if delay > math.MaxInt64/2 {
			delay = math.MaxInt64
			break
		}
		delay *= 2
		if p.MaxBackoff > 0 && delay >= p.MaxBackoff {
			break
		}
	}
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}
	return delay
}

// Fail applies a failed fetch at now. Rows are kept. Configuration errors
// mark the record permanent instead of scheduling a backoff.
func (p Policy) Fail(r *Record, now time.Time, err error) {
	if err != nil {
		r.LastError = err.Error()
	} else {
		r.LastError = "unknown error"
	}
	r.Failures++
	r.LastAttempt = now

	if source.IsPermanent(err) {
		r.Permanent = true
		r.BackoffUntil = time.Time{}
		return
	}

	r.Permanent = false
	if delay := p.Backoff(r.Failures); delay > 0 {
		r.BackoffUntil = addClamped(now, delay)
	} else {
		r.BackoffUntil = time.Time{}
	}
}

// RetryIn returns how long until a table in backoff may be fetched again.
func RetryIn(now time.Time, r Record) time.Duration {
	if !r.InBackoff(now) {
		return 0
	}
	return r.BackoffUntil.Sub(now)
}

func addClamped(t time.Time, d time.Duration) time.Time {
	const maxYears = 100
	limit := t.AddDate(maxYears, 0, 0)
	if d == math.MaxInt64 {
		return limit
	}
	out := t.Add(d)
	if out.After(limit) {
		return limit
	}
	return out
}

// Package scheduler drives table refreshes. A single loop goroutine decides
// which tables are due, starts one worker per due table and applies their
// results to the registry, so records only ever have one writer. Workers
// share no pool, so a hung fetch only ever holds up its own table.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/npratt/griddash/internal/refresh"
	"github.com/npratt/griddash/internal/registry"
	"github.com/npratt/griddash/internal/source"
)

// DefaultTick is the interval between due checks.
const DefaultTick = 500 * time.Millisecond

// Stats counts fetch outcomes since the scheduler was created.
type Stats struct {
	Dispatched int64
	Succeeded  int64
	Failed     int64
	Stale      int64 // results discarded because the table changed mid-fetch
}

type result struct {
	job  registry.Job
	rows [][]string
	err  error
}

// Scheduler refreshes the tables of a registry.
type Scheduler struct {
	reg     *registry.Registry
	fetcher source.Fetcher
	policy  refresh.Policy
	clock   refresh.Clock
	tick    time.Duration
	logger  *slog.Logger

	// inFlight is owned by the loop goroutine.
	inFlight map[string]bool
	results  chan result
	nudge    chan struct{}
	workers  sync.WaitGroup

	dispatched atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	stale      atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPolicy sets the retry and backoff policy.
func WithPolicy(p refresh.Policy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithClock sets the time source used for due checks and record timestamps.
func WithClock(c refresh.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithTick sets the interval between due checks.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Scheduler for reg that fetches with f.
func New(reg *registry.Registry, f source.Fetcher, opts ...Option) *Scheduler {
	s := &Scheduler{
		reg:      reg,
		fetcher:  f,
		policy:   refresh.DefaultPolicy(),
		clock:    refresh.SystemClock{},
		tick:     DefaultTick,
		logger:   slog.Default(),
		inFlight: make(map[string]bool),
		results:  make(chan result),
		nudge:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Policy returns the policy in use.
func (s *Scheduler) Policy() refresh.Policy {
	return s.policy
}

// Run checks for due tables on every tick until ctx is cancelled. It is the
// only goroutine that applies fetch results, and it never waits on a fetch.
// Fetches still running at shutdown are cancelled through ctx and awaited.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	defer s.workers.Wait()

	s.logger.Info("scheduler started", "tick", s.tick)
	s.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "in_flight", len(s.inFlight))
			return nil
		case <-ticker.C:
			s.dispatch(ctx)
		case <-s.nudge:
			s.dispatch(ctx)
		case res := <-s.results:
			delete(s.inFlight, res.job.ID)
			s.apply(res)
		}
	}
}

// Nudge asks the loop to check for due tables now. Repeated nudges before
// the loop wakes up collapse into one.
func (s *Scheduler) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// dispatch starts a worker for each due table that has no fetch in flight.
func (s *Scheduler) dispatch(ctx context.Context) {
	for _, job := range s.reg.Due(s.clock.Now(), s.policy) {
		if s.inFlight[job.ID] {
			continue
		}
		s.inFlight[job.ID] = true
		s.dispatched.Add(1)

		s.workers.Add(1)
		go func(job registry.Job) {
			defer s.workers.Done()
			res := s.fetch(ctx, job)
			select {
			case s.results <- res:
			case <-ctx.Done():
			}
		}(job)
	}
}

func (s *Scheduler) fetch(ctx context.Context, job registry.Job) result {
	rows, err := s.fetcher.Fetch(ctx, job.Desc)
	return result{job: job, rows: rows, err: err}
}

// RunOnce fetches every due table, waits for all of them and applies the
// results on the calling goroutine. It must not be used while Run is active.
// It returns the number of fetches made.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	jobs := s.reg.Due(s.clock.Now(), s.policy)
	results := make([]result, len(jobs))

	var g errgroup.Group
	for i, job := range jobs {
		s.dispatched.Add(1)
		g.Go(func() error {
			results[i] = s.fetch(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		s.apply(res)
	}
	return len(jobs)
}

// apply commits a fetch outcome unless the table changed while it ran.
func (s *Scheduler) apply(res result) {
	now := s.clock.Now()
	var rec refresh.Record
	applied := s.reg.Commit(res.job.ID, res.job.Desc, func(r *refresh.Record) {
		if res.err == nil {
			r.Succeed(now, res.rows)
		} else {
			s.policy.Fail(r, now, res.err)
		}
		rec = *r
	})

	log := s.logger.With("table", res.job.ID, "source", source.KindOf(res.job.Desc).String())
	if !applied {
		s.stale.Add(1)
		log.Debug("discarded result for changed table")
		return
	}

	if res.err == nil {
		s.succeeded.Add(1)
		log.Debug("table refreshed", "rows", len(res.rows))
		return
	}

	s.failed.Add(1)
	switch {
	case rec.Permanent:
		log.Error("table source misconfigured", "error", res.err)
	case rec.InBackoff(now):
		log.Warn("fetch failed, backing off",
			"error", res.err,
			"failures", rec.Failures,
			"retry_in", refresh.RetryIn(now, rec))
	default:
		log.Warn("fetch failed", "error", res.err, "failures", rec.Failures)
	}
}

// Stats returns the outcome counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Dispatched: s.dispatched.Load(),
		Succeeded:  s.succeeded.Load(),
		Failed:     s.failed.Load(),
		Stale:      s.stale.Load(),
	}
}

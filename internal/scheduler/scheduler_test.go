package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/npratt/griddash/internal/dashboard"
	"github.com/npratt/griddash/internal/refresh"
	"github.com/npratt/griddash/internal/registry"
	"github.com/npratt/griddash/internal/source"
	"github.com/npratt/griddash/internal/testutil"
)

var t0 = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func remoteTable(id, url string, interval time.Duration, mapping ...string) dashboard.Table {
	return dashboard.Table{ID: id, Source: source.Remote{URL: url, Interval: interval, Mapping: mapping}}
}

func fileTable(id, path string, interval time.Duration, mapping ...string) dashboard.Table {
	return dashboard.Table{ID: id, Source: source.File{Path: path, Interval: interval, Mapping: mapping}}
}

func newRegistry(tables ...dashboard.Table) *registry.Registry {
	return registry.New(&dashboard.Layout{Rows: [][]dashboard.Table{tables}})
}

func networkErr(target string) error {
	return &source.FetchError{Category: source.CategoryNetwork, Target: target, Err: errors.New("connection refused")}
}

func record(t *testing.T, reg *registry.Registry, id string) refresh.Record {
	t.Helper()
	rec, ok := reg.Record(id)
	if !ok {
		t.Fatalf("table %q not in registry", id)
	}
	return rec
}

// TestPricesScenario walks one remote table through success, the interval
// skip, three failures into backoff and a fourth failure doubling it.
func TestPricesScenario(t *testing.T) {
	var fail atomic.Bool
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if fail.Load() {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[{"name":"A","price":1.5}]`)
	}))
	defer srv.Close()

	clock := testutil.NewFakeClock(t0)
	reg := newRegistry(remoteTable("prices", srv.URL, 10*time.Second, "name", "price"))
	s := New(reg, source.NewLoader(), WithClock(clock))
	ctx := context.Background()

	s.RunOnce(ctx)
	rec := record(t, reg, "prices")
	if !reflect.DeepEqual(rec.Rows, [][]string{{"A", "1.5"}}) || rec.Failures != 0 {
		t.Fatalf("after first tick: %+v", rec)
	}

	clock.Advance(5 * time.Second)
	if n := s.RunOnce(ctx); n != 0 || hits.Load() != 1 {
		t.Fatalf("fetched before interval elapsed: dispatched=%d hits=%d", n, hits.Load())
	}

	fail.Store(true)
	clock.Advance(5 * time.Second)
	for i := 0; i < 3; i++ {
		if n := s.RunOnce(ctx); n != 1 {
			t.Fatalf("failure %d: dispatched %d, want 1", i+1, n)
		}
		if i < 2 {
			clock.Advance(500 * time.Millisecond)
		}
	}
	rec = record(t, reg, "prices")
	now := clock.Now()
	if rec.Failures != 3 || !rec.BackoffUntil.Equal(now.Add(5*time.Second)) {
		t.Fatalf("after 3 failures: failures=%d backoff_until=%v, want 3 and %v", rec.Failures, rec.BackoffUntil, now.Add(5*time.Second))
	}
	if !reflect.DeepEqual(rec.Rows, [][]string{{"A", "1.5"}}) {
		t.Errorf("rows = %#v, want last good rows kept", rec.Rows)
	}

	clock.Advance(4 * time.Second)
	if n := s.RunOnce(ctx); n != 0 {
		t.Fatalf("fetched during backoff")
	}

	now = clock.Advance(time.Second)
	s.RunOnce(ctx)
	rec = record(t, reg, "prices")
	if rec.Failures != 4 || !rec.BackoffUntil.Equal(now.Add(10*time.Second)) {
		t.Fatalf("after 4 failures: failures=%d backoff_until=%v, want 4 and %v", rec.Failures, rec.BackoffUntil, now.Add(10*time.Second))
	}

	fail.Store(false)
	clock.Advance(10 * time.Second)
	s.RunOnce(ctx)
	rec = record(t, reg, "prices")
	if rec.Failures != 0 || !rec.BackoffUntil.IsZero() || rec.LastError != "" {
		t.Errorf("after recovery: %+v", rec)
	}
}

func TestIsolation(t *testing.T) {
	mock := testutil.NewMockFetcher()
	mock.SetError("http://broken", networkErr("http://broken"))

	var n atomic.Int32
	mock.DynamicResponse = func(ctx context.Context, d source.Descriptor) ([][]string, error, bool) {
		if source.TargetOf(d) != "/data/ok.json" {
			return nil, nil, false
		}
		return [][]string{{fmt.Sprint(n.Add(1))}}, nil, true
	}

	clock := testutil.NewFakeClock(t0)
	reg := newRegistry(
		remoteTable("broken", "http://broken", time.Second, "a"),
		fileTable("ok", "/data/ok.json", 2*time.Second, "a"),
	)
	s := New(reg, mock, WithClock(clock))

	// 20 ticks of 500ms: ok refreshes every 2s regardless of the broken table.
	for i := 0; i < 20; i++ {
		s.RunOnce(context.Background())
		clock.Advance(500 * time.Millisecond)
	}

	testutil.AssertFetchCount(t, mock, "/data/ok.json", 5)
	ok := record(t, reg, "ok")
	if ok.Failures != 0 || !reflect.DeepEqual(ok.Rows, [][]string{{"5"}}) {
		t.Errorf("ok record = %+v", ok)
	}

	broken := record(t, reg, "broken")
	if broken.Failures < 3 || broken.BackoffUntil.IsZero() {
		t.Errorf("broken record = %+v, want backoff", broken)
	}
	if !reflect.DeepEqual(broken.Rows, [][]string{{refresh.PlaceholderCell}}) {
		t.Errorf("broken rows = %#v, want placeholder kept", broken.Rows)
	}
	// 3 quick retries then backoffs of 5s: attempts at 0, 0.5, 1.0, 6.0.
	testutil.AssertFetchCount(t, mock, "http://broken", 4)
}

func TestRunOnce_ConfigErrorNotRetried(t *testing.T) {
	mock := testutil.NewMockFetcher()
	mock.SetError("/data.json", &source.FetchError{Category: source.CategoryConfig, Target: "/data.json", Err: source.ErrNoMapping})

	clock := testutil.NewFakeClock(t0)
	reg := newRegistry(fileTable("f", "/data.json", time.Second))
	s := New(reg, mock, WithClock(clock))

	for i := 0; i < 5; i++ {
		s.RunOnce(context.Background())
		clock.Advance(time.Minute)
	}
	testutil.AssertFetchCount(t, mock, "/data.json", 1)
	if rec := record(t, reg, "f"); !rec.Permanent {
		t.Errorf("record = %+v, want permanent", rec)
	}
}

func TestRun_AtMostOneInFlight(t *testing.T) {
	mock := testutil.NewMockFetcher()
	mock.SetResponse("http://slow", [][]string{{"done"}})
	release := mock.Block("http://slow")
	defer release()

	reg := newRegistry(remoteTable("slow", "http://slow", 0, "a"))
	s := New(reg, mock, WithClock(testutil.NewFakeClock(t0)), WithTick(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	testutil.WaitFor(t, time.Second, "first fetch", func() bool { return mock.CallCount("http://slow") == 1 })
	time.Sleep(50 * time.Millisecond)
	testutil.AssertFetchCount(t, mock, "http://slow", 1)

	release()
	testutil.WaitFor(t, time.Second, "commit", func() bool { return record(t, reg, "slow").Fetched })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestRun_DiscardsStaleResult(t *testing.T) {
	mock := testutil.NewMockFetcher()
	mock.SetResponse("http://x", [][]string{{"v"}})
	release := mock.Block("http://x")
	defer release()

	reg := newRegistry(remoteTable("t", "http://x", time.Hour, "old"))
	s := New(reg, mock, WithClock(testutil.NewFakeClock(t0)), WithTick(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	testutil.WaitFor(t, time.Second, "fetch started", func() bool { return mock.CallCount("http://x") == 1 })

	reg.Rebuild(&dashboard.Layout{Rows: [][]dashboard.Table{{remoteTable("t", "http://x", time.Hour, "new")}}})
	release()

	testutil.WaitFor(t, time.Second, "stale discard", func() bool { return s.Stats().Stale == 1 })
	// The new descriptor is fetched on a later tick and applied.
	testutil.WaitFor(t, time.Second, "fresh commit", func() bool { return record(t, reg, "t").Fetched })
	testutil.AssertFetchCount(t, mock, "http://x", 2)
}

// TestRun_HungRemotesDoNotStallOtherTables keeps two remote fetches hanging
// while a file table with interval 0 must keep refreshing every tick.
func TestRun_HungRemotesDoNotStallOtherTables(t *testing.T) {
	mock := testutil.NewMockFetcher()
	for _, url := range []string{"http://hang-a", "http://hang-b"} {
		release := mock.Block(url)
		defer release()
	}
	mock.SetResponse("/data/ok.json", [][]string{{"ok"}})

	reg := newRegistry(
		remoteTable("hang-a", "http://hang-a", 0, "a"),
		remoteTable("hang-b", "http://hang-b", 0, "a"),
		fileTable("ok", "/data/ok.json", 0, "a"),
	)
	s := New(reg, mock, WithClock(testutil.NewFakeClock(t0)), WithTick(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	testutil.WaitFor(t, 2*time.Second, "file table to keep refreshing", func() bool {
		return mock.CallCount("/data/ok.json") >= 5
	})
	testutil.AssertFetched(t, mock, "http://hang-a")
	testutil.AssertFetched(t, mock, "http://hang-b")
	testutil.AssertFetchCount(t, mock, "http://hang-a", 1)
	testutil.AssertFetchCount(t, mock, "http://hang-b", 1)
	if rec := record(t, reg, "ok"); !rec.Fetched || rec.Failures != 0 {
		t.Errorf("ok record = %+v", rec)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunOnce_FetchesDueTablesConcurrently(t *testing.T) {
	mock := testutil.NewMockFetcher()
	var tables []dashboard.Table
	var releases []func()
	for i := 0; i < 5; i++ {
		url := fmt.Sprintf("http://t%d", i)
		mock.SetResponse(url, [][]string{{"ok"}})
		releases = append(releases, mock.Block(url))
		tables = append(tables, remoteTable(fmt.Sprintf("t%d", i), url, time.Hour, "a"))
	}
	s := New(newRegistry(tables...), mock, WithClock(testutil.NewFakeClock(t0)))

	done := make(chan int, 1)
	go func() { done <- s.RunOnce(context.Background()) }()

	testutil.WaitFor(t, time.Second, "all fetches started", func() bool { return len(mock.GetCalls()) == 5 })
	if got := mock.MaxConcurrent(); got != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", got)
	}

	for _, release := range releases {
		release()
	}
	select {
	case n := <-done:
		if n != 5 || s.Stats().Succeeded != 5 {
			t.Errorf("RunOnce = %d, succeeded = %d, want 5 and 5", n, s.Stats().Succeeded)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnce did not return")
	}
}

// TestRunOnce_ScriptedRecovery drives one table through a success, three
// failures into backoff and a recovery once the window closes.
func TestRunOnce_ScriptedRecovery(t *testing.T) {
	mock := testutil.NewMockFetcher()
	mock.Script("http://x",
		testutil.Outcome{Rows: [][]string{{"first"}}},
		testutil.Outcome{Err: networkErr("http://x")},
		testutil.Outcome{Err: networkErr("http://x")},
		testutil.Outcome{Err: networkErr("http://x")},
		testutil.Outcome{Rows: [][]string{{"second"}}},
	)

	clock := testutil.NewFakeClock(t0)
	reg := newRegistry(remoteTable("t", "http://x", 0, "a"))
	s := New(reg, mock, WithClock(clock))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		s.RunOnce(ctx)
	}
	rec := record(t, reg, "t")
	if rec.Failures != 3 || !rec.BackoffUntil.Equal(t0.Add(5*time.Second)) {
		t.Fatalf("after 3 failures: %+v", rec)
	}
	if !reflect.DeepEqual(rec.Rows, [][]string{{"first"}}) {
		t.Errorf("rows = %#v, want last good rows kept", rec.Rows)
	}

	if n := s.RunOnce(ctx); n != 0 {
		t.Fatalf("fetched during backoff")
	}

	clock.Advance(5 * time.Second)
	s.RunOnce(ctx)
	rec = record(t, reg, "t")
	if rec.Failures != 0 || rec.LastError != "" || !reflect.DeepEqual(rec.Rows, [][]string{{"second"}}) {
		t.Errorf("after recovery: %+v", rec)
	}
	testutil.AssertFetchCount(t, mock, "http://x", 5)
}

func TestRunOnce_RemovedTableNotFetched(t *testing.T) {
	mock := testutil.NewMockFetcher()
	mock.SetResponse("http://keep", [][]string{{"k"}})
	mock.SetResponse("http://gone", [][]string{{"g"}})

	reg := newRegistry(
		remoteTable("keep", "http://keep", 0, "a"),
		remoteTable("gone", "http://gone", 0, "a"),
	)
	s := New(reg, mock, WithClock(testutil.NewFakeClock(t0)))
	s.RunOnce(context.Background())

	mock.Reset()
	reg.Rebuild(&dashboard.Layout{Rows: [][]dashboard.Table{{remoteTable("keep", "http://keep", 0, "a")}}})
	s.RunOnce(context.Background())

	testutil.AssertFetched(t, mock, "http://keep")
	testutil.AssertNotFetched(t, mock, "http://gone")
}

func TestNudge(t *testing.T) {
	mock := testutil.NewMockFetcher()
	mock.SetResponse("http://x", [][]string{{"v"}})

	clock := testutil.NewFakeClock(t0)
	reg := newRegistry(remoteTable("t", "http://x", 10*time.Second, "a"))
	s := New(reg, mock, WithClock(clock), WithTick(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	testutil.WaitFor(t, time.Second, "initial fetch", func() bool { return record(t, reg, "t").Fetched })

	clock.Advance(10 * time.Second)
	s.Nudge()
	s.Nudge()
	testutil.WaitFor(t, time.Second, "nudged fetch", func() bool { return mock.CallCount("http://x") == 2 })
}

func TestRun_StopsWithBlockedFetch(t *testing.T) {
	mock := testutil.NewMockFetcher()
	release := mock.Block("http://hang")
	defer release()

	reg := newRegistry(remoteTable("t", "http://hang", 0, "a"))
	s := New(reg, mock, WithTick(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	testutil.WaitFor(t, time.Second, "fetch started", func() bool { return mock.CallCount("http://hang") == 1 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

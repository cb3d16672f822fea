package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTables(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write tables file: %v", err)
	}
}

func expectChange(t *testing.T, w *Watcher, timeout time.Duration) {
	t.Helper()
	select {
	case <-w.Changes():
	case <-time.After(timeout):
		t.Fatal("expected a change notification")
	}
}

func expectNoChange(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case <-w.Changes():
		t.Fatal("unexpected change notification")
	case <-time.After(wait):
	}
}

func TestWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	watcher := New(path, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !watcher.Running() {
		t.Error("expected Running() to be true after Start")
	}

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if watcher.Running() {
		t.Error("expected Running() to be false after Stop")
	}
}

func TestWatcher_DoubleStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	watcher := New(path, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("First Start failed: %v", err)
	}
	defer func() { _ = watcher.Stop() }()

	err := watcher.Start(ctx)
	if err == nil {
		t.Fatal("expected second Start to fail")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWatcher_StopIdempotent(t *testing.T) {
	watcher := New(filepath.Join(t.TempDir(), "tables.json"), 0, testLogger())

	if err := watcher.Stop(); err != nil {
		t.Errorf("Stop before Start should not error: %v", err)
	}

	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := watcher.Stop(); err != nil {
			t.Errorf("Stop %d failed: %v", i, err)
		}
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	watcher := New(filepath.Join(t.TempDir(), "nope", "tables.json"), 0, testLogger())
	if err := watcher.Start(context.Background()); err == nil {
		_ = watcher.Stop()
		t.Fatal("expected Start to fail for a missing directory")
	}
}

func TestWatcher_SignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.json")
	writeTables(t, path, `{"tables": []}`)

	watcher := New(path, 20*time.Millisecond, testLogger())
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = watcher.Stop() }()

	writeTables(t, path, `{"tables": [[]]}`)
	expectChange(t, watcher, 2*time.Second)
}

func TestWatcher_SignalsOnAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.json")
	writeTables(t, path, `{}`)

	watcher := New(path, 20*time.Millisecond, testLogger())
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = watcher.Stop() }()

	tmp := filepath.Join(dir, "tables.json.tmp")
	writeTables(t, tmp, `{"tables": []}`)
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
	expectChange(t, watcher, 2*time.Second)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.json")

	watcher := New(path, 20*time.Millisecond, testLogger())
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = watcher.Stop() }()

	writeTables(t, filepath.Join(dir, "other.json"), `{}`)
	expectNoChange(t, watcher, 200*time.Millisecond)
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tables.json")
	writeTables(t, path, `{}`)

	watcher := New(path, 100*time.Millisecond, testLogger())
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = watcher.Stop() }()

	for i := 0; i < 5; i++ {
		writeTables(t, path, strings.Repeat("x", i+1))
		time.Sleep(10 * time.Millisecond)
	}

	expectChange(t, watcher, 2*time.Second)
	expectNoChange(t, watcher, 300*time.Millisecond)
}

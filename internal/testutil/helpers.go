package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile writes content to a file in the given directory.
// It creates parent directories as needed and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ReadFile reads a file and returns its contents.
// It fails the test if the file cannot be read.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// FileExists checks if a file exists.
func FileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}

// WaitFor polls cond every 10ms until it returns true or timeout passes.
func WaitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}

// AssertFetched verifies that target was fetched at least once.
func AssertFetched(t *testing.T, mock *MockFetcher, target string) {
	t.Helper()
	if mock.CallCount(target) == 0 {
		t.Errorf("expected fetch of %s not found in %v", target, mock.GetCalls())
	}
}

// AssertNotFetched verifies that target was never fetched.
func AssertNotFetched(t *testing.T, mock *MockFetcher, target string) {
	t.Helper()
	if n := mock.CallCount(target); n > 0 {
		t.Errorf("unexpected fetch of %s (%d calls)", target, n)
	}
}

// AssertFetchCount verifies the number of times target was fetched.
func AssertFetchCount(t *testing.T, mock *MockFetcher, target string, expected int) {
	t.Helper()
	if n := mock.CallCount(target); n != expected {
		t.Errorf("expected %d fetches of %s, got %d (calls: %v)", expected, target, n, mock.GetCalls())
	}
}

// SetupTablesFile writes a tables file into a fresh temp directory and
// returns its path.
func SetupTablesFile(t *testing.T, name, content string) string {
	t.Helper()
	return WriteFile(t, t.TempDir(), name, content)
}

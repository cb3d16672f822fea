// Package testutil provides test infrastructure for unit and integration testing.
// It includes mocks, fixtures, and helpers that other packages use for testing.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/npratt/griddash/internal/source"
)

// FetchCall records a fetch for assertion purposes.
type FetchCall struct {
	Kind   source.Kind
	Target string
}

// Outcome is one scripted fetch result.
type Outcome struct {
	Rows [][]string
	Err  error
}

// DynamicFetchFunc is consulted before the canned responses. If handled is
// false the normal lookup is used.
type DynamicFetchFunc func(ctx context.Context, d source.Descriptor) (rows [][]string, err error, handled bool)

// MockFetcher returns canned rows keyed by source target (path or URL).
// It records all calls for later assertion. Static descriptors return their
// own rows unless a response is configured.
type MockFetcher struct {
	mu              sync.Mutex
	Responses       map[string][][]string
	Errors          map[string]error
	Scripts         map[string][]Outcome
	Calls           []FetchCall
	DynamicResponse DynamicFetchFunc

	gates     map[string]chan struct{}
	active    int
	maxActive int
}

// NewMockFetcher creates a MockFetcher with initialized maps.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Responses: make(map[string][][]string),
		Errors:    make(map[string]error),
		Scripts:   make(map[string][]Outcome),
		gates:     make(map[string]chan struct{}),
	}
}

// Fetch implements source.Fetcher.
func (m *MockFetcher) Fetch(ctx context.Context, d source.Descriptor) ([][]string, error) {
	target := source.TargetOf(d)

	m.mu.Lock()
	m.Calls = append(m.Calls, FetchCall{Kind: source.KindOf(d), Target: target})
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	gate := m.gates[target]
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, &source.FetchError{Category: source.CategoryNetwork, Target: target, Err: ctx.Err()}
		}
	}

	if m.DynamicResponse != nil {
		if rows, err, handled := m.DynamicResponse(ctx, d); handled {
			return rows, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if script := m.Scripts[target]; len(script) > 0 {
		next := script[0]
		if len(script) > 1 {
			m.Scripts[target] = script[1:]
		}
		return source.CloneRows(next.Rows), next.Err
	}
	if err, ok := m.Errors[target]; ok {
		return nil, err
	}
	if rows, ok := m.Responses[target]; ok {
		return source.CloneRows(rows), nil
	}
	if s, ok := d.(source.Static); ok {
		return source.CloneRows(s.Rows), nil
	}
	return nil, &source.FetchError{Category: source.CategoryNetwork, Target: target, Err: fmt.Errorf("unexpected fetch")}
}

// SetResponse configures the rows returned for target.
func (m *MockFetcher) SetResponse(target string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Errors, target)
	m.Responses[target] = rows
}

// SetError configures an error for target. It takes precedence over rows.
func (m *MockFetcher) SetError(target string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[target] = err
}

// Script queues outcomes for target, consumed one per fetch. The last outcome
// repeats once the rest are used up.
func (m *MockFetcher) Script(target string, outcomes ...Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Scripts[target] = outcomes
}

// Block makes fetches of target wait until the returned release func is
// called or their context ends.
func (m *MockFetcher) Block(target string) (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gates[target] = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.gates, target)
			m.mu.Unlock()
			close(gate)
		})
	}
}

// GetCalls returns a copy of all recorded calls.
func (m *MockFetcher) GetCalls() []FetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]FetchCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// CallCount returns the number of fetches of target.
func (m *MockFetcher) CallCount(target string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Target == target {
			n++
		}
	}
	return n
}

// MaxConcurrent returns the highest number of fetches seen running at once.
func (m *MockFetcher) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

// Reset clears all recorded calls.
func (m *MockFetcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.maxActive = 0
}

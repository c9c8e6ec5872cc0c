package analytics

import (
	"context"
	"sync"
)

var _ Tracker = (*MockTracker)(nil)

// MockTracker records events for tests.
type MockTracker struct {
	mu     sync.Mutex
	events []Event
	// Err is returned from every Track call when set.
	Err error
}

// NewMockTracker creates an empty recorder.
func NewMockTracker() *MockTracker {
	return &MockTracker{}
}

func (m *MockTracker) Track(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.Err
}

// Events returns a copy of what was recorded.
func (m *MockTracker) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Actions lists recorded actions in order.
func (m *MockTracker) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

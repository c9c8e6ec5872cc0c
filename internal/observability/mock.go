package observability

import (
	"strings"
	"sync"
	"time"
)

// MockMetricsRegistry records counter increments for assertions in tests.
// Keys are the metric name followed by its labels, joined with ":".
type MockMetricsRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *MockMetricsRegistry) inc(parts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[strings.Join(parts, ":")]++
}

// Count returns how often the metric with the given labels was incremented.
func (m *MockMetricsRegistry) Count(parts ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[strings.Join(parts, ":")]
}

func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("requests", endpoint, method, status)
}
func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementSubmissions(formType, result string) {
	m.inc("submissions", formType, result)
}
func (m *MockMetricsRegistry) IncrementRelay(outcome string)             { m.inc("relay", outcome) }
func (m *MockMetricsRegistry) RecordRelayLatency(duration time.Duration) {}
func (m *MockMetricsRegistry) IncrementAttribution(medium string)        { m.inc("attribution", medium) }
func (m *MockMetricsRegistry) IncrementStoreErrors(op string)            { m.inc("store_errors", op) }
func (m *MockMetricsRegistry) IncrementAnalyticsEvent(action string)     { m.inc("analytics", action) }
func (m *MockMetricsRegistry) IncrementAnalyticsErrors(sink string)      { m.inc("analytics_errors", sink) }
func (m *MockMetricsRegistry) IncrementRateLimitRequests(scope string)   { m.inc("ratelimit_requests", scope) }
func (m *MockMetricsRegistry) IncrementRateLimitHits(scope string)       { m.inc("ratelimit_hits", scope) }

package observability

import "time"

// MetricsRegistry records application metrics. Handlers and collaborators
// receive it by injection instead of touching the Prometheus globals.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Submission metrics
	IncrementSubmissions(formType, result string)

	// Relay metrics
	IncrementRelay(outcome string)
	RecordRelayLatency(duration time.Duration)

	// Attribution metrics
	IncrementAttribution(medium string)
	IncrementStoreErrors(op string)

	// Analytics metrics
	IncrementAnalyticsEvent(action string)
	IncrementAnalyticsErrors(sink string)

	// Rate limiting metrics
	IncrementRateLimitRequests(scope string)
	IncrementRateLimitHits(scope string)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Submission metrics
func (r *PrometheusRegistry) IncrementSubmissions(formType, result string) {
	SubmissionCount.WithLabelValues(formType, result).Inc()
}

// Relay metrics
func (r *PrometheusRegistry) IncrementRelay(outcome string) {
	RelayCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) RecordRelayLatency(duration time.Duration) {
	RelayLatency.Observe(duration.Seconds())
}

// Attribution metrics
func (r *PrometheusRegistry) IncrementAttribution(medium string) {
	AttributionCount.WithLabelValues(medium).Inc()
}

func (r *PrometheusRegistry) IncrementStoreErrors(op string) {
	StoreErrors.WithLabelValues(op).Inc()
}

// Analytics metrics
func (r *PrometheusRegistry) IncrementAnalyticsEvent(action string) {
	AnalyticsEventCount.WithLabelValues(action).Inc()
}

func (r *PrometheusRegistry) IncrementAnalyticsErrors(sink string) {
	AnalyticsErrors.WithLabelValues(sink).Inc()
}

// Rate limiting metrics
func (r *PrometheusRegistry) IncrementRateLimitRequests(scope string) {
	RateLimitRequests.WithLabelValues(scope).Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitHits(scope string) {
	RateLimitHits.WithLabelValues(scope).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementSubmissions(formType, result string)                         {}
func (r *NoOpRegistry) IncrementRelay(outcome string)                                        {}
func (r *NoOpRegistry) RecordRelayLatency(duration time.Duration)                            {}
func (r *NoOpRegistry) IncrementAttribution(medium string)                                   {}
func (r *NoOpRegistry) IncrementStoreErrors(op string)                                       {}
func (r *NoOpRegistry) IncrementAnalyticsEvent(action string)                                {}
func (r *NoOpRegistry) IncrementAnalyticsErrors(sink string)                                 {}
func (r *NoOpRegistry) IncrementRateLimitRequests(scope string)                              {}
func (r *NoOpRegistry) IncrementRateLimitHits(scope string)                                  {}

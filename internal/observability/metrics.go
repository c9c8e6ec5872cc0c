package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadrelay_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// contact submissions by form type and handling result
	SubmissionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_submissions_total",
			Help: "Total contact form submissions",
		},
		[]string{"form_type", "result"},
	)

	// webhook relays labelled by outcome
	RelayCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_relay_total",
			Help: "Total webhook relay attempts by outcome",
		},
		[]string{"outcome"},
	)

	// latency of webhook calls
	RelayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadrelay_relay_duration_seconds",
			Help:    "Duration of webhook relay calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// attribution snapshots by resolved medium
	AttributionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_attribution_total",
			Help: "Attribution snapshots by medium",
		},
		[]string{"medium"},
	)

	// analytics events handed to the tracker, labelled by action
	AnalyticsEventCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_analytics_events_total",
			Help: "Total analytics events recorded",
		},
		[]string{"action"},
	)

	// analytics sink failures
	AnalyticsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_analytics_errors_total",
			Help: "Total analytics sink errors",
		},
		[]string{"sink"},
	)

	// attribution store failures by operation
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_store_errors_total",
			Help: "Total attribution store errors",
		},
		[]string{"op"},
	)

	// rate limit hits per scope
	RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_ratelimit_hits_total",
			Help: "Total rate limit hits per scope",
		},
		[]string{"scope"},
	)

	// rate limit checks per scope
	RateLimitRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadrelay_ratelimit_requests_total",
			Help: "Total rate limit checks per scope",
		},
		[]string{"scope"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		SubmissionCount,
		RelayCount,
		RelayLatency,
		AttributionCount,
		AnalyticsEventCount,
		AnalyticsErrors,
		StoreErrors,
		RateLimitHits,
		RateLimitRequests,
	)
}

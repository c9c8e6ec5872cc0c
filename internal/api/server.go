package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/analytics"
	"github.com/patrickwarner/leadrelay/internal/attribution"
	"github.com/patrickwarner/leadrelay/internal/config"
	"github.com/patrickwarner/leadrelay/internal/observability"
	"github.com/patrickwarner/leadrelay/internal/ratelimit"
	"github.com/patrickwarner/leadrelay/internal/relay"
)

var tracer = otel.Tracer("leadrelay")

// Notifier delivers formatted lead messages.
type Notifier interface {
	Enabled() bool
	Send(ctx context.Context, msg relay.Message) error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger      *zap.Logger
	Metrics     observability.MetricsRegistry
	Config      config.Config
	Formatter   *relay.Formatter
	Notifier    Notifier
	Persistence *attribution.Persistence
	Analytics   analytics.Tracker
	// Limiter caps the overall relay rate when set.
	Limiter *ratelimit.Limiter
	// Store is pinged by the health check when set.
	Store Pinger
}

// NewServer constructs a Server. Nil collaborators are replaced with
// harmless defaults: in-memory persistence, no-op metrics and analytics.
func NewServer(logger *zap.Logger, cfg config.Config, formatter *relay.Formatter, notifier Notifier, persistence *attribution.Persistence, tracker analytics.Tracker, limiter *ratelimit.Limiter, metrics observability.MetricsRegistry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	if formatter == nil {
		formatter = relay.NewFormatter(nil, nil, cfg.Timezone, cfg.SiteName)
	}
	if persistence == nil {
		persistence = attribution.NewPersistence(attribution.NewMemoryStore(), logger, metrics)
	}
	if tracker == nil {
		tracker = analytics.NoopTracker{}
	}
	return &Server{
		Logger:      logger,
		Metrics:     metrics,
		Config:      cfg,
		Formatter:   formatter,
		Notifier:    notifier,
		Persistence: persistence,
		Analytics:   tracker,
		Limiter:     limiter,
	}
}

// response is the JSON envelope returned by the API.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

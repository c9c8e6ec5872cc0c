package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthHandler reports liveness, and the attribution store's reachability
// when one is configured.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "health"
	const method = "GET"

	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if s.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.Store.Ping(ctx); err != nil {
			s.Logger.Warn("health check: store unreachable", zap.Error(err))
			status = http.StatusServiceUnavailable
			body = map[string]string{"status": "degraded", "store": "unreachable"}
		} else {
			body["store"] = "ok"
		}
	}
	_ = writeJSON(w, status, body)

	s.Metrics.IncrementRequests(endpoint, method, statusLabel(status))
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/attribution"
	"github.com/patrickwarner/leadrelay/internal/middleware"
	"github.com/patrickwarner/leadrelay/internal/models"
	"github.com/patrickwarner/leadrelay/internal/relay"
)

// contactPath is the page whose links carry campaign parameters.
const contactPath = "/contact"

// attributionResponse is the snapshot plus a contact-page link carrying the
// visitor's campaign parameters.
type attributionResponse struct {
	models.AttributionSnapshot
	ContactLink string `json:"contactLink"`
}

// AttributionHandler handles GET /api/attribution?url=&referrer=. url is the
// page the visitor is on (the Referer header when omitted) and referrer is
// that page's document referrer. Campaign parameters on url are persisted
// for the visitor before the snapshot is built.
func (s *Server) AttributionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "AttributionHandler",
		trace.WithAttributes(
			attribute.String("http.method", "GET"),
			attribute.String("http.route", "/api/attribution"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "attribution"
	const method = "GET"

	q := r.URL.Query()
	current := q.Get("url")
	if current == "" {
		current = r.Referer()
	}

	params := attribution.ExtractParams(current)
	if visitor := middleware.VisitorFromContext(ctx); visitor != "" {
		s.Persistence.Track(ctx, visitor, current)
		params = s.Persistence.MergeWithCurrent(ctx, visitor, current)
	}
	snap := s.buildSnapshot(ctx, r, current, q.Get("referrer"))
	span.SetAttributes(
		attribute.String("attribution.source", snap.Source),
		attribute.String("attribution.medium", snap.Medium),
	)

	body := attributionResponse{
		AttributionSnapshot: snap,
		ContactLink:         attribution.DecorateLink(contactLink(current), params),
	}
	if err := writeJSON(w, http.StatusOK, body); err != nil {
		logger.Warn("write attribution response", zap.Error(err))
	}
	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// buildSnapshot collects attribution from request headers and the visitor's
// persisted campaign parameters.
func (s *Server) buildSnapshot(ctx context.Context, r *http.Request, currentURL, referrer string) models.AttributionSnapshot {
	var persisted attribution.Params
	if visitor := middleware.VisitorFromContext(ctx); visitor != "" {
		persisted = s.Persistence.Load(ctx, visitor)
	}
	snap := attribution.Collect(attribution.Input{
		CurrentURL: currentURL,
		Referrer:   referrer,
		UserAgent:  r.UserAgent(),
		Languages:  attribution.ParseAcceptLanguage(r.Header.Get("Accept-Language")),
		Persisted:  persisted,
	})
	snap.ClientIP = relay.ResolveClientIP(r.Header)
	s.Metrics.IncrementAttribution(snap.Medium)
	return snap
}

// contactLink returns the contact page on the same site as current, or the
// bare path when current has no host.
func contactLink(current string) string {
	u, err := url.Parse(current)
	if err != nil || u.Host == "" {
		return contactPath
	}
	return u.ResolveReference(&url.URL{Path: contactPath}).String()
}

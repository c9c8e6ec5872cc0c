package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/analytics"
	"github.com/patrickwarner/leadrelay/internal/middleware"
)

const maxEventBody = 8 << 10

type eventRequest struct {
	Action   string   `json:"action"`
	Category string   `json:"category"`
	Label    string   `json:"label"`
	Value    *float64 `json:"value"`
	Currency string   `json:"currency"`
	Page     string   `json:"page"`

	// click and dwell beacons
	Button   string  `json:"button"`
	Location string  `json:"location"`
	Seconds  float64 `json:"seconds"`
}

// event maps the beacon onto the typed helpers where one exists.
func (req eventRequest) event(page string) analytics.Event {
	switch {
	case req.Action == analytics.ActionClick && req.Button != "":
		return analytics.ButtonClick(req.Button, req.Location)
	case req.Action == analytics.ActionPageDwellTime && req.Seconds > 0:
		return analytics.PageDwellTime(page, time.Duration(req.Seconds*float64(time.Second)))
	case req.Action == analytics.ActionPageView:
		return analytics.PageView(page)
	}
	e := analytics.NewEvent(req.Action, req.Category, req.Label, req.Value)
	e.Currency = req.Currency
	return e
}

// EventsHandler handles POST /api/events, the browser's analytics beacon.
// Events are handed off without waiting and the reply is always 204, so a
// broken sink never surfaces to the page.
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "events"
	const method = "POST"

	logger := middleware.LoggerFromRequest(r, s.Logger)

	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&req); err != nil {
		logger.Debug("discarding malformed analytics event", zap.Error(err))
	} else {
		page := req.Page
		if page == "" {
			page = r.Referer()
		}
		e := req.event(page)
		e.VisitorID = middleware.VisitorFromContext(r.Context())
		e.Page = page
		if err := s.Analytics.Track(r.Context(), e); err != nil {
			logger.Debug("analytics event not recorded", zap.String("action", req.Action), zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
	s.Metrics.IncrementRequests(endpoint, method, "204")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

package middleware

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultVisitorCookie names the first-party cookie holding the visitor id.
const DefaultVisitorCookie = "lr_vid"

type visitorKey struct{}

// VisitorOptions configures WithVisitor.
type VisitorOptions struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// WithVisitor resolves the visitor id from its cookie, minting and setting a
// new one when absent or malformed, and stores it in the request context.
func WithVisitor(opts VisitorOptions) func(http.Handler) http.Handler {
	name := opts.CookieName
	if name == "" {
		name = DefaultVisitorCookie
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(name); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					id = c.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     name,
					Value:    id,
					Path:     "/",
					MaxAge:   int(maxAge.Seconds()),
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithVisitorID(r.Context(), id)))
		})
	}
}

// WithVisitorID returns ctx carrying the visitor id.
func WithVisitorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorKey{}, id)
}

// VisitorFromContext returns the visitor id, or "" when none was resolved.
func VisitorFromContext(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey{}).(string)
	return id
}

// PageViewTracker is notified of every page navigation.
type PageViewTracker interface {
	Track(ctx context.Context, visitor, currentURL string)
}

// WithPageViews calls tracker for GET requests that look like page loads.
// API calls and static assets are skipped.
func WithPageViews(tracker PageViewTracker, logger *zap.Logger, sampleRate float64, sample func(float64) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && isPageRequest(r.URL.Path) {
				visitor := VisitorFromContext(r.Context())
				current := RequestURL(r)
				tracker.Track(r.Context(), visitor, current)
				if sample == nil || sample(sampleRate) {
					LoggerFromRequest(r, logger).Debug("page view",
						zap.String("visitor", visitor),
						zap.String("url", current),
						zap.String("referrer", r.Referer()))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPageRequest(p string) bool {
	if strings.HasPrefix(p, "/api/") || p == "/metrics" || p == "/health" {
		return false
	}
	ext := path.Ext(p)
	return ext == "" || ext == ".html" || ext == ".htm"
}

// RequestURL rebuilds the absolute URL the visitor requested, honouring
// X-Forwarded-Proto and X-Forwarded-Host from the fronting proxy.
func RequestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

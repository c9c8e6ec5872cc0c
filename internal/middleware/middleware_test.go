package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func visitorEcho(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = VisitorFromContext(r.Context())
	})
}

func TestWithVisitorMintsCookie(t *testing.T) {
	var got string
	h := WithVisitor(VisitorOptions{Secure: true})(visitorEcho(&got))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	_, err := uuid.Parse(got)
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, DefaultVisitorCookie, cookies[0].Name)
	assert.Equal(t, got, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
}

func TestWithVisitorReusesValidCookie(t *testing.T) {
	var got string
	h := WithVisitor(VisitorOptions{CookieName: "vid"})(visitorEcho(&got))
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "vid", Value: id})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, id, got)
	assert.Empty(t, rec.Result().Cookies())
}

func TestWithVisitorReplacesMalformedCookie(t *testing.T) {
	var got string
	h := WithVisitor(VisitorOptions{})(visitorEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultVisitorCookie, Value: "not-a-uuid"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEqual(t, "not-a-uuid", got)
	assert.Len(t, rec.Result().Cookies(), 1)
}

type recordingTracker struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingTracker) Track(_ context.Context, visitor, currentURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, visitor+" "+currentURL)
}

func TestWithPageViewsTracksPagesOnly(t *testing.T) {
	tracker := &recordingTracker{}
	h := WithPageViews(tracker, zap.NewNop(), 1, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	for _, target := range []string{
		"/contact?utm_source=wechat",
		"/index.html",
		"/app.js",
		"/api/contact",
		"/health",
	} {
		req := httptest.NewRequest(http.MethodGet, "http://sportstreamhd.com"+target, nil)
		req = req.WithContext(WithVisitorID(req.Context(), "v1"))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	req := httptest.NewRequest(http.MethodPost, "http://sportstreamhd.com/contact", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, []string{
		"v1 http://sportstreamhd.com/contact?utm_source=wechat",
		"v1 http://sportstreamhd.com/index.html",
	}, tracker.urls)
}

func TestRequestURLHonoursProxyHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://internal:8787/pricing?gclid=x", nil)
	assert.Equal(t, "http://internal:8787/pricing?gclid=x", RequestURL(req))

	req.Header.Set("X-Forwarded-Proto", "https, http")
	req.Header.Set("X-Forwarded-Host", "sportstreamhd.com")
	assert.Equal(t, "https://sportstreamhd.com/pricing?gclid=x", RequestURL(req))
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS("POST, OPTIONS")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/events", nil))

	assert.True(t, called)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestLoggerFromContextFallback(t *testing.T) {
	fallback := zap.NewNop()
	assert.Same(t, fallback, LoggerFromContext(context.Background(), fallback))
}

func TestWithTraceLoggerAddsRequestFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := WithTraceLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LoggerFromRequest(r, zap.NewNop()).Info("handled")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/contact", nil))

	entries := logs.FilterMessage("handled").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/contact", fields["path"])
	assert.NotContains(t, fields, "trace_id")
}

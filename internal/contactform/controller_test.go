package contactform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/leadrelay/internal/analytics"
	"github.com/patrickwarner/leadrelay/internal/models"
	"github.com/patrickwarner/leadrelay/internal/validation"
)

func relayStub(t *testing.T, reply Response, status int, got *[]byte, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		*got = body
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fill(t *testing.T, c *Controller, useCase string) {
	t.Helper()
	require.NoError(t, c.Set(FieldEmail, "buyer@example.com"))
	require.NoError(t, c.Set(FieldContactMethod, "@alice_dev"))
	require.NoError(t, c.SetSports([]string{"football", "esports"}))
	require.NoError(t, c.Set(FieldUseCase, useCase))
}

func snapshot() *models.AttributionSnapshot {
	return &models.AttributionSnapshot{Source: "google", Medium: models.MediumCPC, Campaign: "spring"}
}

func TestSetValidatesEagerly(t *testing.T) {
	c := New("http://unused", nil, nil, nil, nil)
	assert.Equal(t, Idle, c.State())

	err := c.Set(FieldContactMethod, "alice_dev")
	require.Error(t, err)
	assert.Equal(t, Editing, c.State())
	assert.Equal(t, validation.MsgInvalidHandle, c.Errors()[FieldContactMethod])

	require.NoError(t, c.Set(FieldContactMethod, "12345678"))
	assert.NotContains(t, c.Errors(), FieldContactMethod)

	assert.ErrorIs(t, c.Set("fax", "1"), ErrUnknownField)
}

func TestConditionalFields(t *testing.T) {
	c := New("http://unused", nil, nil, nil, nil)

	require.NoError(t, c.Set(FieldUseCase, models.UseCaseOBSStreaming))
	assert.True(t, c.Visible(FieldStreamerType))
	assert.False(t, c.Visible(FieldPlatformInfo))

	require.NoError(t, c.Set(FieldUseCase, models.UseCaseWebsiteApp))
	assert.False(t, c.Visible(FieldStreamerType))
	assert.True(t, c.Visible(FieldPlatformInfo))

	require.NoError(t, c.Set(FieldUseCase, models.UseCaseBothScenarios))
	assert.True(t, c.Visible(FieldPlatformInfo))
	assert.True(t, c.Visible(FieldEmail))
}

func TestStreamerTypeRequiredForOBS(t *testing.T) {
	c := New("http://unused", nil, nil, nil, nil)
	fill(t, c, models.UseCaseOBSStreaming)

	_, err := c.Payload()
	var fe *validation.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, string(FieldStreamerType), fe.Field)

	require.NoError(t, c.Set(FieldStreamerType, StreamerTeam))
	p, err := c.Payload()
	require.NoError(t, err)
	assert.Equal(t, StreamerTeam, p.StreamerType)
}

func TestPayloadDropsHiddenFields(t *testing.T) {
	c := New("http://unused", nil, nil, nil, nil)
	fill(t, c, models.UseCaseOBSStreaming)
	require.NoError(t, c.Set(FieldStreamerType, StreamerIndividual))
	require.NoError(t, c.Set(FieldPlatformInfo, "our app"))

	p, err := c.Payload()
	require.NoError(t, err)
	assert.Empty(t, p.PlatformInfo)

	require.NoError(t, c.Set(FieldUseCase, models.UseCaseWebsiteApp))
	p, err = c.Payload()
	require.NoError(t, err)
	assert.Empty(t, p.StreamerType)
	assert.Equal(t, "our app", p.PlatformInfo)
}

func TestToggleSport(t *testing.T) {
	c := New("http://unused", nil, nil, nil, nil)
	require.NoError(t, c.ToggleSport("football"))
	require.NoError(t, c.ToggleSport("tennis"))
	require.NoError(t, c.ToggleSport("football"))

	err := c.ToggleSport("tennis")
	assert.Equal(t, validation.MsgNoSports, validation.Message(err))
	assert.Equal(t, validation.MsgNoSports, c.Errors()[FieldSportsInterests])
}

func TestSubmitSuccess(t *testing.T) {
	var body []byte
	var calls int32
	srv := relayStub(t, Response{Success: true, Message: "感谢您的咨询"}, http.StatusOK, &body, &calls)
	tracker := analytics.NewMockTracker()
	source := AttributionFunc(func(context.Context) *models.AttributionSnapshot { return snapshot() })

	c := New(srv.URL, srv.Client(), tracker, source, nil)
	fill(t, c, models.UseCaseWebsiteApp)
	require.NoError(t, c.Set(FieldPlatformInfo, "https://example.tv"))

	resp, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, Submitted, c.State())
	assert.Equal(t, "感谢您的咨询", c.Outcome())
	assert.Equal(t, int32(1), calls)

	sub, err := models.DecodeSubmission(body)
	require.NoError(t, err)
	simple, ok := sub.(*models.SimpleSubmission)
	require.True(t, ok)
	assert.Equal(t, "buyer@example.com", simple.Email)
	assert.Equal(t, []string{"football", "esports"}, simple.SportsInterests)
	assert.Equal(t, "https://example.tv", simple.PlatformInfo)
	require.NotNil(t, simple.UserSource)
	assert.Equal(t, "spring", simple.UserSource.Campaign)

	assert.Equal(t, []string{
		analytics.ActionServiceInterest,
		analytics.ActionContactPreference,
		analytics.ActionFormSubmit,
		analytics.ActionConversion,
	}, tracker.Actions())
	events := tracker.Events()
	assert.Equal(t, models.UseCaseWebsiteApp, events[0].Label)
	assert.Equal(t, 2.0, *events[0].Value)
	assert.Equal(t, "telegram", events[1].Label)

	_, err = c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitted)
	assert.ErrorIs(t, c.Set(FieldEmail, "x@y.io"), ErrSubmitted)
}

func TestSubmitServerRejects(t *testing.T) {
	var body []byte
	var calls int32
	srv := relayStub(t, Response{Success: false, Error: "请填写所有必填字段"}, http.StatusBadRequest, &body, &calls)
	tracker := analytics.NewMockTracker()

	c := New(srv.URL, srv.Client(), tracker, nil, nil)
	fill(t, c, models.UseCaseWebsiteApp)

	resp, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, Error, c.State())
	assert.Equal(t, "请填写所有必填字段", c.Outcome())

	actions := tracker.Actions()
	assert.Equal(t, analytics.ActionFormSubmit, actions[len(actions)-1])
	assert.NotContains(t, actions, analytics.ActionConversion)
	assert.Equal(t, 0.0, *tracker.Events()[len(actions)-1].Value)

	// a failed submit can be retried by the visitor
	require.NoError(t, c.Set(FieldEmail, "other@example.com"))
	assert.Equal(t, Editing, c.State())
}

func TestSubmitNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, nil, nil, nil, nil)
	fill(t, c, models.UseCaseWebsiteApp)

	_, err := c.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, Error, c.State())
	assert.Equal(t, MsgNetworkError, c.Outcome())
}

func TestSubmitNonJSONReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client(), nil, nil, nil)
	fill(t, c, models.UseCaseWebsiteApp)
	_, err := c.Submit(context.Background())
	assert.Error(t, err)
	assert.Equal(t, MsgNetworkError, c.Outcome())
}

func TestSubmitInvalidDoesNotPost(t *testing.T) {
	var body []byte
	var calls int32
	srv := relayStub(t, Response{Success: true}, http.StatusOK, &body, &calls)
	tracker := analytics.NewMockTracker()

	c := New(srv.URL, srv.Client(), tracker, nil, nil)
	require.NoError(t, c.Set(FieldEmail, "buyer@example.com"))

	_, err := c.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, Editing, c.State())
	assert.Equal(t, int32(0), calls)
	assert.Empty(t, tracker.Events())

	errs := c.Errors()
	assert.Contains(t, errs, FieldContactMethod)
	assert.Contains(t, errs, FieldSportsInterests)
	assert.Contains(t, errs, FieldUseCase)
}

func TestSubmitAnalyticsFailureIgnored(t *testing.T) {
	var body []byte
	var calls int32
	srv := relayStub(t, Response{Success: true}, http.StatusOK, &body, &calls)
	tracker := analytics.NewMockTracker()
	tracker.Err = assert.AnError

	c := New(srv.URL, srv.Client(), tracker, nil, nil)
	fill(t, c, models.UseCaseWebsiteApp)
	_, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Submitted, c.State())
}

func TestReset(t *testing.T) {
	c := New("http://unused", nil, nil, nil, nil)
	_ = c.Set(FieldEmail, "bad")
	c.Reset()
	assert.Equal(t, Idle, c.State())
	assert.Empty(t, c.Errors())
	assert.Equal(t, "idle", c.State().String())
}

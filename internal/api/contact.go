package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/middleware"
	"github.com/patrickwarner/leadrelay/internal/models"
	"github.com/patrickwarner/leadrelay/internal/relay"
	"github.com/patrickwarner/leadrelay/internal/validation"
)

// ContactMethods are the methods allowed on /api/contact.
const ContactMethods = "POST, OPTIONS"

// MsgAccepted is shown to the visitor once a lead is accepted, whether or
// not the chat notification went out.
const MsgAccepted = "咨询提交成功！我们的专业团队将在4小时内与您联系，为您提供定制化的解决方案和报价。"

const maxContactBody = 64 << 10

const defaultRelayTimeout = 5 * time.Second

// Relay outcomes, as counted by the relay metric.
const (
	RelaySent      = "sent"
	RelayRejected  = "rejected"
	RelayFailed    = "failed"
	RelayDisabled  = "disabled"
	RelayThrottled = "throttled"
)

// relayBudgetKey is the single limiter key shared by every relay. Client
// addresses come from spoofable headers and are never used as keys.
const relayBudgetKey = "webhook"

var errThrottled = errors.New("relay budget exhausted")

// attributable is implemented by every submission shape.
type attributable interface {
	SetAttribution(a *models.AttributionSnapshot)
}

// ContactHandler handles POST /api/contact.
func (s *Server) ContactHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ContactHandler",
		trace.WithAttributes(
			attribute.String("http.method", "POST"),
			attribute.String("http.route", "/api/contact"),
		))
	defer span.End()

	logger := middleware.LoggerFromRequest(r, s.Logger)

	start := time.Now()
	const endpoint = "contact"
	const method = "POST"

	middleware.SetCORSHeaders(w, ContactMethods)

	reply := func(status int, body response) {
		if err := writeJSON(w, status, body); err != nil {
			logger.Warn("write contact response", zap.Error(err))
		}
		s.Metrics.IncrementRequests(endpoint, method, statusLabel(status))
		s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxContactBody))
	if err != nil {
		logger.Error("read contact body", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		s.Metrics.IncrementSubmissions("unknown", "malformed")
		reply(http.StatusInternalServerError, response{Error: s.supportMessage()})
		return
	}

	sub, err := models.DecodeSubmission(body)
	if err != nil {
		if errors.Is(err, models.ErrUnknownFormType) {
			logger.Warn("unknown form type", zap.Error(err))
			s.Metrics.IncrementSubmissions("unknown", "invalid")
			reply(http.StatusBadRequest, response{Error: validation.MsgRequired})
			return
		}
		logger.Error("decode contact submission", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		s.Metrics.IncrementSubmissions("unknown", "malformed")
		reply(http.StatusInternalServerError, response{Error: s.supportMessage()})
		return
	}

	formType := string(sub.FormType())
	span.SetAttributes(attribute.String("lead.form_type", formType))

	if err := validation.Submission(sub); err != nil {
		logger.Info("contact submission rejected",
			zap.String("form_type", formType),
			zap.Error(err))
		s.Metrics.IncrementSubmissions(formType, "invalid")
		if !validation.IsValidationError(err) {
			reply(http.StatusInternalServerError, response{Error: s.supportMessage()})
			return
		}
		reply(http.StatusBadRequest, response{Error: validation.Message(err)})
		return
	}

	clientIP := relay.ResolveClientIP(r.Header)
	if sub.Attribution() == nil {
		if a, ok := sub.(attributable); ok {
			snap := s.buildSnapshot(ctx, r, r.Referer(), "")
			a.SetAttribution(&snap)
		}
	}
	if snap := sub.Attribution(); snap != nil {
		span.SetAttributes(
			attribute.String("lead.source", snap.Source),
			attribute.String("lead.medium", snap.Medium),
		)
	}

	outcome := s.relayLead(ctx, logger, sub, clientIP)
	span.SetAttributes(attribute.String("lead.relay", outcome))
	s.Metrics.IncrementSubmissions(formType, "accepted")

	reply(http.StatusOK, response{Success: true, Message: MsgAccepted})
}

// ContactPreflightHandler answers CORS preflight for /api/contact.
func (s *Server) ContactPreflightHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	const endpoint = "contact"
	const method = "OPTIONS"

	middleware.SetCORSHeaders(w, ContactMethods)
	w.WriteHeader(http.StatusOK)

	s.Metrics.IncrementRequests(endpoint, method, "200")
	s.Metrics.RecordRequestLatency(endpoint, method, time.Since(start))
}

// relayLead forwards a validated lead to the chat webhook. It is the only
// place relay failures are absorbed: every error is logged and counted, and
// the caller only learns the outcome label.
func (s *Server) relayLead(ctx context.Context, logger *zap.Logger, sub models.Submission, clientIP string) string {
	err := s.deliver(ctx, sub, clientIP)

	outcome := RelaySent
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrDisabled):
		outcome = RelayDisabled
	case errors.Is(err, errThrottled):
		outcome = RelayThrottled
	case errors.Is(err, relay.ErrRejected):
		outcome = RelayRejected
	default:
		outcome = RelayFailed
	}
	s.Metrics.IncrementRelay(outcome)

	fields := []zap.Field{
		zap.String("form_type", string(sub.FormType())),
		zap.String("client_ip", clientIP),
		zap.String("outcome", outcome),
	}
	switch outcome {
	case RelaySent:
		logger.Info("lead relayed", fields...)
	case RelayDisabled, RelayThrottled:
		logger.Warn("lead not relayed", append(fields, zap.Error(err))...)
	default:
		logger.Error("lead relay failed", append(fields, zap.Error(err))...)
	}
	return outcome
}

func (s *Server) deliver(ctx context.Context, sub models.Submission, clientIP string) error {
	if s.Notifier == nil || !s.Notifier.Enabled() {
		return relay.ErrDisabled
	}
	if !s.Limiter.Allow(relayBudgetKey) {
		return errThrottled
	}
	msg, err := s.Formatter.Format(sub, clientIP)
	if err != nil {
		return err
	}

	timeout := s.Config.RelayTimeout
	if timeout <= 0 {
		timeout = defaultRelayTimeout
	}
	// the visitor hanging up must not cut the notification short
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return s.Notifier.Send(ctx, msg)
}

func (s *Server) supportMessage() string {
	email := s.Config.SupportEmail
	if email == "" {
		email = "business@sportstreamhd.com"
	}
	return "服务器暂时繁忙，请稍后重试或直接邮件联系：" + email
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

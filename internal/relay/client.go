// Package relay formats contact submissions as chat messages and delivers
// them to the team's webhook.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/observability"
)

var (
	// ErrDisabled is returned when no webhook URL is configured.
	ErrDisabled = errors.New("webhook relay disabled")
	// ErrRejected is returned when the webhook answers with a non-zero errcode.
	ErrRejected = errors.New("webhook rejected message")
)

// maxResponseBody bounds how much of a webhook reply is read.
const maxResponseBody = 64 << 10

// RejectedError carries the webhook's own error code and message.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("webhook rejected message: errcode=%d errmsg=%q", e.Code, e.Message)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

type markdownBody struct {
	MsgType  string          `json:"msgtype"`
	Markdown markdownContent `json:"markdown"`
}

type markdownContent struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type webhookReply struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Client posts markdown messages to a DingTalk-style webhook.
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
	now        func() time.Time
}

// NewClient creates a webhook client. timeout bounds each call.
func NewClient(webhookURL, secret string, timeout time.Duration, logger *zap.Logger, metrics observability.MetricsRegistry) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Client{
		url:    webhookURL,
		secret: secret,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Signed reports whether requests carry a signature.
func (c *Client) Signed() bool {
	return c != nil && c.secret != ""
}

// Send delivers msg. Success requires errcode 0 in the reply body; HTTP
// status alone is not trusted.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	start := time.Now()
	defer func() {
		c.metrics.RecordRelayLatency(time.Since(start))
	}()

	target, err := SignURL(c.url, c.secret, c.now())
	if err != nil {
		return err
	}

	body, err := json.Marshal(markdownBody{
		MsgType:  "markdown",
		Markdown: markdownContent{Title: msg.Title, Text: msg.Text},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close webhook response body", zap.Error(err))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var reply webhookReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if reply.ErrCode == nil {
		return &RejectedError{Code: -1, Message: fmt.Sprintf("status %d without errcode", resp.StatusCode)}
	}
	if *reply.ErrCode != 0 {
		return &RejectedError{Code: *reply.ErrCode, Message: reply.ErrMsg}
	}
	return nil
}

// Package contactform drives the simple contact form: it holds field values,
// validates them as they change, hides fields that do not apply to the
// chosen use case, and submits the payload to the relay endpoint.
package contactform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/patrickwarner/leadrelay/internal/analytics"
	"github.com/patrickwarner/leadrelay/internal/models"
	"github.com/patrickwarner/leadrelay/internal/validation"
)

// FormName labels this form in analytics events.
const FormName = "contact_form"

// User-facing outcome messages.
const (
	MsgSubmitFailed = "提交失败，请稍后重试"
	MsgNetworkError = "网络错误，请检查网络连接后重试"
)

// Streamer scales offered for OBS streaming.
const (
	StreamerTeam       = "team"
	StreamerIndividual = "individual"
)

var (
	// ErrSubmitting is returned when Submit is called while a submission is
	// already in flight.
	ErrSubmitting = errors.New("submission already in progress")
	// ErrSubmitted is returned when the form has already been accepted.
	ErrSubmitted = errors.New("form already submitted")
	// ErrUnknownField is returned by Set for names the form does not have.
	ErrUnknownField = errors.New("unknown field")
)

// State is the controller's lifecycle position.
type State int

const (
	Idle State = iota
	Editing
	Submitting
	Submitted
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Field names, matching the JSON payload.
type Field string

const (
	FieldEmail           Field = "email"
	FieldContactMethod   Field = "contactMethod"
	FieldSportsInterests Field = "sportsInterests"
	FieldUseCase         Field = "useCase"
	FieldStreamerType    Field = "streamerType"
	FieldPlatformInfo    Field = "platformInfo"
	FieldRequirements    Field = "requirements"
)

// AttributionSource produces the snapshot attached at submit time.
type AttributionSource interface {
	Snapshot(ctx context.Context) *models.AttributionSnapshot
}

// AttributionFunc adapts a function to AttributionSource.
type AttributionFunc func(ctx context.Context) *models.AttributionSnapshot

func (f AttributionFunc) Snapshot(ctx context.Context) *models.AttributionSnapshot { return f(ctx) }

// Doer sends HTTP requests.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Response is the relay endpoint's reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Controller is safe for concurrent use; Submit serializes through the
// Submitting state.
type Controller struct {
	Endpoint string
	HTTP     Doer
	// Analytics must not block; wrap slow sinks in analytics.AsyncTracker.
	Analytics   analytics.Tracker
	Attribution AttributionSource
	Logger      *zap.Logger

	mu      sync.Mutex
	state   State
	values  models.SimpleSubmission
	errs    map[Field]string
	outcome string
}

// New returns an idle controller posting to endpoint.
func New(endpoint string, client Doer, tracker analytics.Tracker, source AttributionSource, logger *zap.Logger) *Controller {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		Endpoint:    endpoint,
		HTTP:        client,
		Analytics:   tracker,
		Attribution: source,
		Logger:      logger,
		errs:        make(map[Field]string),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Outcome returns the message shown after the last submit: the server's
// confirmation on success, or the error text.
func (c *Controller) Outcome() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// Errors returns the current per-field error messages.
func (c *Controller) Errors() map[Field]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Field]string, len(c.errs))
	for k, v := range c.errs {
		out[k] = v
	}
	return out
}

// Visible reports whether field applies to the current use case.
func (c *Controller) Visible(field Field) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return visible(field, c.values.UseCase)
}

func visible(field Field, useCase string) bool {
	switch field {
	case FieldStreamerType:
		return useCase == models.UseCaseOBSStreaming
	case FieldPlatformInfo:
		return useCase == models.UseCaseWebsiteApp || useCase == models.UseCaseBothScenarios
	default:
		return true
	}
}

// Set stores a string field and validates it immediately. The returned
// error is the field's validation failure, also visible through Errors.
func (c *Controller) Set(field Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}

	switch field {
	case FieldEmail:
		c.values.Email = value
	case FieldContactMethod:
		c.values.ContactMethod = value
	case FieldUseCase:
		c.values.UseCase = value
		if !visible(FieldStreamerType, value) {
			delete(c.errs, FieldStreamerType)
		}
	case FieldStreamerType:
		c.values.StreamerType = value
	case FieldPlatformInfo:
		c.values.PlatformInfo = value
	case FieldRequirements:
		c.values.Requirements = value
	case FieldSportsInterests:
		c.values.SportsInterests = splitList(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	c.state = Editing
	return c.check(field)
}

// SetSports replaces the sports selection.
func (c *Controller) SetSports(sports []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	c.values.SportsInterests = append([]string(nil), sports...)
	c.state = Editing
	return c.check(FieldSportsInterests)
}

// ToggleSport adds sport to the selection, or removes it when present.
func (c *Controller) ToggleSport(sport string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	out := c.values.SportsInterests[:0:0]
	found := false
	for _, s := range c.values.SportsInterests {
		if s == sport {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, sport)
	}
	c.values.SportsInterests = out
	c.state = Editing
	return c.check(FieldSportsInterests)
}

func (c *Controller) editable() error {
	switch c.state {
	case Submitting:
		return ErrSubmitting
	case Submitted:
		return ErrSubmitted
	}
	return nil
}

// check validates one field and records the result.
func (c *Controller) check(field Field) error {
	err := c.validateField(field)
	if err != nil {
		c.errs[field] = validation.Message(err)
	} else {
		delete(c.errs, field)
	}
	return err
}

func (c *Controller) validateField(field Field) error {
	v := c.values
	name := string(field)
	switch field {
	case FieldEmail:
		return validation.Email(name, v.Email)
	case FieldContactMethod:
		return validation.Handle(name, v.ContactMethod)
	case FieldSportsInterests:
		return validation.Sports(name, v.SportsInterests)
	case FieldUseCase:
		return validation.UseCase(name, v.UseCase)
	case FieldStreamerType:
		if !visible(FieldStreamerType, v.UseCase) {
			return nil
		}
		if v.StreamerType != StreamerTeam && v.StreamerType != StreamerIndividual {
			return &validation.FieldError{Field: name, Message: validation.MsgNoStreamer}
		}
	}
	return nil
}

// validateAll checks every field and returns the first failure.
func (c *Controller) validateAll() error {
	var first error
	for _, f := range []Field{FieldEmail, FieldContactMethod, FieldSportsInterests, FieldUseCase, FieldStreamerType} {
		if err := c.check(f); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// payload copies the visible fields.
func (c *Controller) payload() *models.SimpleSubmission {
	p := c.values
	p.Type = models.FormTypeSimple
	p.SportsInterests = append([]string(nil), c.values.SportsInterests...)
	if !visible(FieldStreamerType, p.UseCase) {
		p.StreamerType = ""
	}
	if !visible(FieldPlatformInfo, p.UseCase) {
		p.PlatformInfo = ""
	}
	p.UserSource = nil
	return &p
}

// Payload validates the form and returns what Submit would send, without
// attribution.
func (c *Controller) Payload() (*models.SimpleSubmission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.validateAll(); err != nil {
		return nil, err
	}
	return c.payload(), nil
}

// Submit validates every field, posts the form with its attribution
// snapshot, and moves to Submitted or Error. Validation failures leave the
// form in Editing and return the first failing field. Submit never retries;
// after Error it may be called again.
func (c *Controller) Submit(ctx context.Context) (Response, error) {
	c.mu.Lock()
	if err := c.editable(); err != nil {
		c.mu.Unlock()
		return Response{}, err
	}
	if err := c.validateAll(); err != nil {
		c.state = Editing
		c.mu.Unlock()
		return Response{}, err
	}
	sub := c.payload()
	c.state = Submitting
	c.mu.Unlock()

	c.track(ctx, analytics.ServiceInterest(sub.UseCase, len(sub.SportsInterests)))
	c.track(ctx, analytics.ContactPreference(sub.ContactMethod))

	if c.Attribution != nil {
		sub.UserSource = c.Attribution.Snapshot(ctx)
	}

	resp, err := c.post(ctx, sub)

	c.mu.Lock()
	switch {
	case err != nil:
		c.state = Error
		c.outcome = MsgNetworkError
	case resp.Success:
		c.state = Submitted
		c.outcome = resp.Message
	default:
		c.state = Error
		c.outcome = firstNonEmpty(resp.Error, resp.Message, MsgSubmitFailed)
	}
	success := c.state == Submitted
	c.mu.Unlock()

	for _, e := range analytics.FormSubmitEvents(FormName, success) {
		c.track(ctx, e)
	}

	if err != nil {
		c.Logger.Warn("contact form submit failed", zap.Error(err))
		return resp, err
	}
	return resp, nil
}

// Reset clears values and errors and returns to Idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = models.SimpleSubmission{}
	c.errs = make(map[Field]string)
	c.outcome = ""
	c.state = Idle
}

func (c *Controller) post(ctx context.Context, sub *models.SimpleSubmission) (Response, error) {
	body, err := models.EncodeSubmission(sub)
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("post contact form: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("decode response (status %d): %w", res.StatusCode, err)
	}
	return out, nil
}

// track forwards an event without letting analytics affect the submission.
func (c *Controller) track(ctx context.Context, e analytics.Event) {
	if c.Analytics == nil {
		return
	}
	if err := c.Analytics.Track(ctx, e); err != nil {
		c.Logger.Debug("analytics event not recorded", zap.String("action", e.Action), zap.Error(err))
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

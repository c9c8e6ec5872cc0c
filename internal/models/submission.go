package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FormType discriminates the two contact form shapes.
type FormType string

const (
	FormTypeSimple   FormType = "simple"
	FormTypeDetailed FormType = "multi_step"
)

// Use cases offered by the simple form.
const (
	UseCaseWebsiteApp    = "website_app"
	UseCaseOBSStreaming  = "obs_streaming"
	UseCaseBothScenarios = "both_scenarios"
)

// ErrUnknownFormType is returned when formType carries an unsupported value.
var ErrUnknownFormType = errors.New("unknown form type")

// Submission is a contact form payload. The set of implementations is closed:
// callers branch on the concrete shape through a SubmissionVisitor so that a
// new shape cannot be added without every visitor handling it.
type Submission interface {
	FormType() FormType
	Attribution() *AttributionSnapshot
	Accept(v SubmissionVisitor) error
}

// SubmissionVisitor handles each submission shape.
type SubmissionVisitor interface {
	VisitSimple(s *SimpleSubmission) error
	VisitDetailed(s *DetailedSubmission) error
}

// SimpleSubmission is the short lead form shown on most pages.
type SimpleSubmission struct {
	Type            FormType             `json:"formType,omitempty"`
	Email           string               `json:"email"`
	ContactMethod   string               `json:"contactMethod"`
	SportsInterests []string             `json:"sportsInterests"`
	UseCase         string               `json:"useCase"`
	StreamerType    string               `json:"streamerType,omitempty"`
	PlatformInfo    string               `json:"platformInfo,omitempty"`
	Requirements    string               `json:"requirements,omitempty"`
	UserSource      *AttributionSnapshot `json:"userSource,omitempty"`
}

func (s *SimpleSubmission) FormType() FormType { return FormTypeSimple }
func (s *SimpleSubmission) Attribution() *AttributionSnapshot { return s.UserSource }
func (s *SimpleSubmission) Accept(v SubmissionVisitor) error { return v.VisitSimple(s) }
func (s *SimpleSubmission) SetAttribution(a *AttributionSnapshot) { s.UserSource = a }

// DetailedSubmission is the four-step enterprise inquiry form.
type DetailedSubmission struct {
	Type                FormType             `json:"formType"`
	CompanyName         string               `json:"companyName"`
	ContactName         string               `json:"contactName"`
	Position            string               `json:"position"`
	Email               string               `json:"email"`
	Phone               string               `json:"phone"`
	SportsInterests     []string             `json:"sportsInterests"`
	IntegrationType     string               `json:"integrationType"`
	TargetAudience      string               `json:"targetAudience"`
	ConcurrentViewers   string               `json:"concurrentViewers"`
	ExistingProductURL  string               `json:"existingProductUrl,omitempty"`
	TechStack           string               `json:"techStack"`
	NeedAPI             bool                 `json:"needApi"`
	LaunchTimeline      string               `json:"launchTimeline"`
	SpecialRequirements string               `json:"specialRequirements,omitempty"`
	BudgetRange         string               `json:"budgetRange"`
	CooperationModel    string               `json:"cooperationModel"`
	OtherRequirements   string               `json:"otherRequirements,omitempty"`
	UserSource          *AttributionSnapshot `json:"userSource,omitempty"`
}

func (s *DetailedSubmission) FormType() FormType { return FormTypeDetailed }
func (s *DetailedSubmission) Attribution() *AttributionSnapshot { return s.UserSource }
func (s *DetailedSubmission) Accept(v SubmissionVisitor) error { return v.VisitDetailed(s) }
func (s *DetailedSubmission) SetAttribution(a *AttributionSnapshot) { s.UserSource = a }

// DecodeSubmission parses a JSON payload into the shape named by formType.
// A missing or empty formType selects the simple form.
func DecodeSubmission(data []byte) (Submission, error) {
	var head struct {
		FormType string `json:"formType"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}

	var sub Submission
	switch strings.TrimSpace(head.FormType) {
	case "", string(FormTypeSimple):
		sub = &SimpleSubmission{}
	case string(FormTypeDetailed), "detailed":
		sub = &DetailedSubmission{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormType, head.FormType)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(sub); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	return sub, nil
}

// EncodeSubmission renders a submission with its formType tag populated.
func EncodeSubmission(sub Submission) ([]byte, error) {
	switch s := sub.(type) {
	case *SimpleSubmission:
		cp := *s
		cp.Type = FormTypeSimple
		return json.Marshal(&cp)
	case *DetailedSubmission:
		cp := *s
		cp.Type = FormTypeDetailed
		return json.Marshal(&cp)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownFormType, sub)
	}
}

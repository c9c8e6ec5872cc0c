package validation

import (
	"errors"

	"github.com/patrickwarner/leadrelay/internal/models"
)

// UseCases lists the accepted simple-form use cases.
var UseCases = []string{models.UseCaseWebsiteApp, models.UseCaseOBSStreaming, models.UseCaseBothScenarios}

// UseCase validates the simple form's use case.
func UseCase(field, v string) error {
	if v == "" {
		return &FieldError{Field: field, Message: MsgNoUseCase}
	}
	for _, u := range UseCases {
		if v == u {
			return nil
		}
	}
	return &FieldError{Field: field, Message: MsgBadUseCase}
}

// Sports validates the sports selection.
func Sports(field string, vs []string) error {
	var r Required
	r.List(field, vs)
	if r.Err() != nil {
		return &FieldError{Field: field, Message: MsgNoSports}
	}
	return nil
}

// Submission re-validates a decoded submission: required fields first, then
// formats. The first failure is returned.
func Submission(sub models.Submission) error {
	if sub == nil {
		return errors.New("nil submission")
	}
	return sub.Accept(submissionValidator{})
}

type submissionValidator struct{}

func (submissionValidator) VisitSimple(s *models.SimpleSubmission) error {
	var r Required
	r.String("email", s.Email)
	r.String("contactMethod", s.ContactMethod)
	r.List("sportsInterests", s.SportsInterests)
	r.String("useCase", s.UseCase)
	if err := r.Err(); err != nil {
		return err
	}
	if err := Email("email", s.Email); err != nil {
		return err
	}
	if err := Handle("contactMethod", s.ContactMethod); err != nil {
		return err
	}
	return UseCase("useCase", s.UseCase)
}

func (submissionValidator) VisitDetailed(s *models.DetailedSubmission) error {
	var r Required
	r.String("companyName", s.CompanyName)
	r.String("contactName", s.ContactName)
	r.String("position", s.Position)
	r.String("email", s.Email)
	r.String("phone", s.Phone)
	r.List("sportsInterests", s.SportsInterests)
	r.String("integrationType", s.IntegrationType)
	r.String("targetAudience", s.TargetAudience)
	r.String("concurrentViewers", s.ConcurrentViewers)
	r.String("techStack", s.TechStack)
	r.String("launchTimeline", s.LaunchTimeline)
	r.String("budgetRange", s.BudgetRange)
	r.String("cooperationModel", s.CooperationModel)
	if err := r.Err(); err != nil {
		return err
	}
	return Email("email", s.Email)
}

// Message returns the user-facing text for a validation error.
func Message(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Message
	}
	var me *MissingFieldsError
	if errors.As(err, &me) {
		return me.Error()
	}
	return err.Error()
}

// IsValidationError reports whether err came from this package.
func IsValidationError(err error) bool {
	var fe *FieldError
	var me *MissingFieldsError
	return errors.As(err, &fe) || errors.As(err, &me)
}

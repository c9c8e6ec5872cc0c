// Package analytics records marketing events: form interest, contact
// preference, submission outcome and page engagement. Tracking is best
// effort and never blocks the caller's main path.
package analytics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnavailable is returned when a sink is not configured.
var ErrUnavailable = errors.New("analytics unavailable")

// Event categories.
const (
	CategoryBusiness   = "business"
	CategoryEngagement = "engagement"
	CategoryAds        = "ads"
)

// Event actions.
const (
	ActionServiceInterest   = "service_interest"
	ActionContactPreference = "contact_preference"
	ActionFormSubmit        = "form_submit"
	ActionConversion        = "conversion"
	ActionClick             = "click"
	ActionPageView          = "page_view"
	ActionPageDwellTime     = "page_dwell_time"
)

// Event is a single analytics hit.
type Event struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Category  string    `json:"category"`
	Label     string    `json:"label,omitempty"`
	Value     *float64  `json:"value,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	VisitorID string    `json:"visitorId,omitempty"`
	Page      string    `json:"page,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Tracker records events.
type Tracker interface {
	Track(ctx context.Context, e Event) error
}

// Valid reports whether e carries the minimum fields a sink needs.
func (e Event) Valid() bool {
	return strings.TrimSpace(e.Action) != "" && strings.TrimSpace(e.Category) != ""
}

// Stamp fills ID and Timestamp when unset.
func (e Event) Stamp(now time.Time) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	return e
}

func value(v float64) *float64 { return &v }

// NewEvent builds a generic event.
func NewEvent(action, category, label string, v *float64) Event {
	return Event{Action: action, Category: category, Label: label, Value: v}
}

// ServiceInterest records the chosen use case and how many sports were picked.
func ServiceInterest(useCase string, sportsCount int) Event {
	return NewEvent(ActionServiceInterest, CategoryBusiness, useCase, value(float64(sportsCount)))
}

// ContactPreference records whether the visitor left a Telegram handle or a
// QQ number.
func ContactPreference(handle string) Event {
	method := "qq"
	if strings.HasPrefix(handle, "@") {
		method = "telegram"
	}
	return NewEvent(ActionContactPreference, CategoryBusiness, method, nil)
}

// FormSubmit records a submission outcome as value 1 or 0.
func FormSubmit(formName string, success bool) Event {
	v := 0.0
	if success {
		v = 1
	}
	return NewEvent(ActionFormSubmit, CategoryEngagement, formName, value(v))
}

// Conversion records an ads conversion worth v in currency.
func Conversion(v float64, currency string) Event {
	e := NewEvent(ActionConversion, CategoryAds, "", value(v))
	e.Currency = currency
	return e
}

// ButtonClick records a click on a named button, optionally qualified by
// where on the page it sits.
func ButtonClick(button, location string) Event {
	label := button
	if location != "" {
		label += "_" + location
	}
	return NewEvent(ActionClick, CategoryEngagement, label, nil)
}

// PageView records a page load.
func PageView(page string) Event {
	return NewEvent(ActionPageView, CategoryEngagement, page, nil)
}

// PageDwellTime records time spent on a page, rounded to whole seconds.
func PageDwellTime(page string, d time.Duration) Event {
	return NewEvent(ActionPageDwellTime, CategoryEngagement, page, value(d.Round(time.Second).Seconds()))
}

// FormSubmitEvents returns the events for a finished submission: the
// outcome, plus a conversion when it succeeded.
func FormSubmitEvents(formName string, success bool) []Event {
	events := []Event{FormSubmit(formName, success)}
	if success {
		events = append(events, Conversion(1.0, "SGD"))
	}
	return events
}

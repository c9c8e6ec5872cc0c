// Package validation holds the field rules shared by the contact form
// controller and the relay endpoint. Server-side checks reuse these exact
// rules so the two sides can never disagree about what is acceptable.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// User-facing messages, in the site's language.
const (
	MsgRequired      = "请填写所有必填字段"
	MsgInvalidEmail  = "请输入有效的邮箱地址"
	MsgInvalidHandle = "Telegram格式：@username（5-32位字符），QQ格式：5-11位数字"
	MsgEmptyHandle   = "请输入Telegram或QQ联系方式"
	MsgNoSports      = "请至少选择一种体育项目"
	MsgNoUseCase     = "请选择使用场景"
	MsgBadUseCase    = "请选择有效的使用场景"
	MsgNoStreamer    = "请选择主播规模"
)

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	telegramPattern = regexp.MustCompile(`^@[a-zA-Z0-9_]{5,32}$`)
	qqPattern       = regexp.MustCompile(`^[1-9][0-9]{4,10}$`)
)

// HandleKind identifies which of the accepted contact handle formats matched.
type HandleKind string

const (
	HandleNone     HandleKind = ""
	HandleTelegram HandleKind = "telegram"
	HandleQQ       HandleKind = "qq"
)

// FieldError reports a single invalid field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MissingFieldsError lists required fields that were left empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s（%s）", MsgRequired, strings.Join(e.Fields, ", "))
}

// IsEmail reports whether v has the local@domain.tld shape.
func IsEmail(v string) bool {
	return emailPattern.MatchString(v)
}

// ClassifyHandle returns the handle format v matches, or HandleNone.
func ClassifyHandle(v string) HandleKind {
	switch {
	case telegramPattern.MatchString(v):
		return HandleTelegram
	case qqPattern.MatchString(v):
		return HandleQQ
	default:
		return HandleNone
	}
}

// IsHandle reports whether v is a Telegram @handle or a QQ number.
func IsHandle(v string) bool {
	return ClassifyHandle(v) != HandleNone
}

// Email validates an email field value.
func Email(field, v string) error {
	if !IsEmail(strings.TrimSpace(v)) {
		return &FieldError{Field: field, Message: MsgInvalidEmail}
	}
	return nil
}

// Handle validates a contact handle field value.
func Handle(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &FieldError{Field: field, Message: MsgEmptyHandle}
	}
	if !IsHandle(v) {
		return &FieldError{Field: field, Message: MsgInvalidHandle}
	}
	return nil
}

// Required collects the names of empty fields in the order checked.
type Required struct {
	missing []string
}

// String records name as missing when v is blank.
func (r *Required) String(name, v string) {
	if strings.TrimSpace(v) == "" {
		r.missing = append(r.missing, name)
	}
}

// List records name as missing when vs has no non-blank entry.
func (r *Required) List(name string, vs []string) {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return
		}
	}
	r.missing = append(r.missing, name)
}

// Err returns a MissingFieldsError when anything was missing.
func (r *Required) Err() error {
	if len(r.missing) == 0 {
		return nil
	}
	return &MissingFieldsError{Fields: append([]string(nil), r.missing...)}
}

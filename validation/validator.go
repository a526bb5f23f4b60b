package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kbukum/querykit/problem"
)

// FieldError is a validation failure for one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error lists every field that failed validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	messages := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		messages[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// Name is used as the problem title when a validation error is surfaced.
func (e *Error) Name() string { return "ValidationError" }

// Problem converts the error into a status-0 problem carrying the fields.
func (e *Error) Problem() *problem.Details {
	return problem.FromError(e).WithExtension("fields", e.Fields)
}

// Validator collects field errors.
type Validator struct {
	errors []FieldError
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Err returns an *Error if any check failed, nil otherwise.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return &Error{Fields: append([]FieldError(nil), v.errors...)}
}

// Required checks that a string is non-blank.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
	return v
}

// URL checks that a non-empty value is an absolute http(s) URL.
func (v *Validator) URL(field, value string) *Validator {
	if value == "" {
		return v
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.AddError(field, "must be a valid URL")
	}
	return v
}

// Min checks that a number is at least minVal.
func (v *Validator) Min(field string, value, minVal int) *Validator {
	if value < minVal {
		v.AddError(field, fmt.Sprintf("must be at least %d", minVal))
	}
	return v
}

// OneOf checks that a non-empty value is one of allowed.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, "must be one of: "+strings.Join(allowed, ", "))
	return v
}

// Custom records message when condition is false.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}

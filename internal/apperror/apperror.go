// Package apperror defines the two failure classes surfaced for a record:
// caller input rejected before any network call, and upstream API failures.
package apperror

import (
	"errors"
	"fmt"
)

// Kinds reported by Kind.
const (
	KindValidation = "validation"
	KindUpstream   = "upstream"
	KindOther      = "other"
)

// ValidationError reports malformed caller input. It is always fatal to the
// current record.
type ValidationError struct {
	Field   string // Parameter name, if the error concerns a single field
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError formats a ValidationError that is not tied to a field.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MissingField is the error returned when a required parameter is absent.
func MissingField(field string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("Required field %q is missing", field)}
}

// APIError wraps a transport or HTTP failure returned by the provider.
type APIError struct {
	Message     string // Upstream message, or a generic one when none was given
	Description string // Upstream description, if present
	StatusCode  int    // 0 when no HTTP response was received
	Err         error
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Description)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Kind classifies err for reporting.
func Kind(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	var aerr *APIError
	if errors.As(err, &aerr) {
		return KindUpstream
	}
	return KindOther
}

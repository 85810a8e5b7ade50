package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the authorization predicate rejects the principal
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidQuery is returned when a search filter cannot be translated into a query
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUnauthenticated is returned when no principal is attached to the request
	ErrUnauthenticated = errors.New("authentication required")
)

// FieldError describes one failed field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a record or request fails validation
type ValidationError struct {
	Message string       `json:"error"`
	Fields  []FieldError `json:"details,omitempty"`
}

// Error implements error
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Message: "validation failed",
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

// IsValidationError reports whether err wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrCommitFailed    = errors.New("commit failed")
	ErrCommitTimeout   = errors.New("commit timed out")
	ErrSuperseded      = errors.New("superseded by a newer mutation")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrVersionConflict = errors.New("version conflict")
)

// ValidationError reports malformed input rejected before any persistence.
type ValidationError struct {
	Field  string
	Reason string
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

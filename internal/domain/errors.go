package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrReasonRequired      = errors.New("rejection reason is required")
	ErrValidation          = errors.New("validation failed")
	ErrSchemaMissing       = errors.New("storage schema missing")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrMalformedResponse   = errors.New("malformed provider response")
	ErrEmptyCompanyName    = errors.New("company name is required")
	ErrRunCancelled        = errors.New("run cancelled")
)

// ValidationError reports which stage boundary rejected its payload.
type ValidationError struct {
	Stage string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Stage, ErrValidation, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// IsClientError reports whether err should be surfaced as a caller mistake.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrEmptyCompanyName)
}

package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for the service layer.
var (
	ErrNotFound      = errors.New("record not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidJSON   = errors.New("script payload is not valid JSON")
	ErrQuotaExceeded = errors.New("upload quota exceeded")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Cause)
}

func missingField(field string) error {
	return &ValidationError{Field: field, Cause: "required"}
}

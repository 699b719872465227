package models

import (
	"errors"
	"fmt"
)

// Error kinds shared by the payment, reconciliation and notification flows.
// Handlers map them onto HTTP status codes with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrAlreadyPaid            = errors.New("booking already paid")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrSignatureInvalid       = errors.New("webhook signature verification failed")
	ErrPersistence            = errors.New("persistence failure")
	ErrReconciliationConflict = errors.New("no pending charge for booking")
	ErrInvalidDescriptor      = errors.New("invalid reconciliation descriptor")
	ErrDuplicatePendingCharge = errors.New("pending charge already exists for booking")
)

// ValidationError reports a malformed caller-supplied field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

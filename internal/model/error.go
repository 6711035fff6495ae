package model

import "errors"

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error         string            `json:"error"`
	Message       string            `json:"message"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeConflict        = "CONFLICT"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// DomainError is a business-level failure carrying a stable code.
// Err holds the underlying cause for server errors and is never shown to clients.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports a request that can never succeed as submitted.
func NewValidationError(message string) *DomainError {
	return NewDomainError(ErrCodeValidation, message)
}

// NewServerError wraps a storage or infrastructure failure. Clients may retry,
// reusing the same idempotency key.
func NewServerError(message string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeInternalError,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the domain code carried by err, or ErrCodeInternalError.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == code
}

// Common domain errors
var (
	ErrUnauthenticated   = NewDomainError(ErrCodeUnauthenticated, "An authenticated owner is required")
	ErrEmptyCart         = NewDomainError(ErrCodeValidation, "Order must contain at least one item")
	ErrInvalidQuantity   = NewDomainError(ErrCodeValidation, "Quantity must be at least one")
	ErrInvalidPrice      = NewDomainError(ErrCodeValidation, "Unit price cannot be negative")
	ErrOrderNotFound     = NewDomainError(ErrCodeNotFound, "Order not found")
	ErrNotArchived       = NewDomainError(ErrCodeNotFound, "Invoice has not been archived")
	ErrInvalidTransition = NewDomainError(ErrCodeConflict, "Order status does not allow this change")
	ErrKeyOwnedElsewhere = NewDomainError(ErrCodeConflict, "Idempotency key was used by another account")
)

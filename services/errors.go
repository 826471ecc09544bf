package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeForbidden  ErrorType = "forbidden"
	ErrorTypeValidation ErrorType = "validation"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface. Forbidden errors only ever report
// their message so the cause of a denial never reaches a client.
func (e *DomainError) Error() string {
	if e.Type == ErrorTypeForbidden {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Extensions exposes Details to graphql-go, which copies them into the
// "extensions" member of the response error.
func (e *DomainError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": string(e.Type)}
	for k, v := range e.Details {
		ext[k] = v
	}
	return ext
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	// ErrNotAuthorised is returned whenever a permission policy resolves to deny.
	ErrNotAuthorised = NewDomainError(ErrorTypeForbidden, "Not Authorised!", nil)

	// ErrInvalidConfig is the kind of error returned by Config.Validate.
	ErrInvalidConfig = NewDomainError(ErrorTypeValidation, "invalid configuration", nil)
)

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// NotAuthorised builds an authorization error that keeps cause for
// logging while reporting only the generic message.
func NotAuthorised(cause error) error {
	return NewDomainError(ErrorTypeForbidden, ErrNotAuthorised.Message, cause)
}

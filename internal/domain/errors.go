package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrInvalidInput indicates that identifying arguments are invalid or ambiguous.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotBound indicates an operation was invoked without an available API client.
	ErrNotBound = errors.New("entity not bound to an API client")

	// ErrNoData indicates a derived property was accessed before the backing
	// profile data was populated by a read.
	ErrNoData = errors.New("no profile data")

	// ErrNoDocuments indicates a document list operation was requested before
	// any documents were fetched.
	ErrNoDocuments = errors.New("no documents")

	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("not found")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found resource.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ExternalAPIError provides details about an Elsevier API error.
type ExternalAPIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("elsevier API error (status %d) on %s: %s", e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(endpoint string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

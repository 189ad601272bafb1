package domain

import "fmt"

// Error types for consistent error handling across the ingestion service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrParse indicates a matched message carried a field that failed
// normalization. It rejects only that message.
type ErrParse struct {
	Field   string
	Value   string
	Message string
}

func (e *ErrParse) Error() string {
	return fmt.Sprintf("parse error on '%s' (%q): %s", e.Field, e.Value, e.Message)
}

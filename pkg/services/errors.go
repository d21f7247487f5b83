// Package services runs query executions on behalf of the API and the worker.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/insight/pkg/tracker"
	"github.com/dukex/insight/pkg/workflow"
)

// Client errors (4xx responses).
var (
	// ErrInvalidRequest is returned for requests the engine cannot run (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrExecutionNotFound is returned for unknown or evicted executions (404 Not Found).
	ErrExecutionNotFound = tracker.ErrExecutionNotFound

	// ErrExecutionRunning is returned when a result is requested before the execution ends (409 Conflict).
	ErrExecutionRunning = errors.New("execution still running")

	// ErrTooManyExecutions is returned when the concurrent execution cap is reached (429 Too Many Requests).
	ErrTooManyExecutions = errors.New("too many concurrent executions")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsConflictError checks if an error is a state conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrExecutionRunning)
}

// IsMisconfigured reports whether the engine refused to run because its graph is invalid.
func IsMisconfigured(err error) bool {
	return errors.Is(err, workflow.ErrInvalidGraph)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

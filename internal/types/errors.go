package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for coverage planning errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Facet and concept error codes
const (
	FACET_INVALID     ErrorCode = "FACET_INVALID"
	CONCEPT_INVALID   ErrorCode = "CONCEPT_INVALID"
	CONCEPT_DUPLICATE ErrorCode = "CONCEPT_DUPLICATE"
)

// Allocation error codes
const (
	CAPACITY_EXHAUSTED ErrorCode = "CAPACITY_EXHAUSTED"
	SOLVER_FAILED      ErrorCode = "SOLVER_FAILED"
	PLAN_BUILD_FAILED  ErrorCode = "PLAN_BUILD_FAILED"
)

// PlanError represents a structured error with error code, message, and optional cause.
// It supports error wrapping so callers can branch on the code with errors.Is().
type PlanError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *PlanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *PlanError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a PlanError with the same Code.
func (e *PlanError) Is(target error) bool {
	var planErr *PlanError
	if errors.As(target, &planErr) {
		return e.Code == planErr.Code
	}
	return false
}

// NewError creates a new PlanError with the given code and message.
func NewError(code ErrorCode, message string) *PlanError {
	return &PlanError{
		Code:    code,
		Message: message,
	}
}

// NewErrorf creates a new PlanError with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *PlanError {
	return &PlanError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError creates a new PlanError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *PlanError {
	return &PlanError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, not_connected, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context (selectors tried, timeout, target)
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code.
// Copies made through WithCause/WithMessage/WithDetails still match their predefined error.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

func (e *ExecutionError) clone() *ExecutionError {
	c := *e
	return &c
}

// WithCause returns a copy of the error wrapping cause.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage returns a copy of the error with msg in place of the default message.
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithDetails returns a copy whose details are the receiver's overlaid with details.
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	c := e.clone()
	c.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	for k, v := range details {
		c.Details[k] = v
	}
	return c
}

// Detail returns a detail value, or nil.
func (e *ExecutionError) Detail(key string) interface{} {
	return e.Details[key]
}

// Predefined errors
var (
	// Connection errors
	ErrNotConnected = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "not_connected",
		Message:  "driver not initialized: no automation session",
	}
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "could not connect to automation server",
	}

	// Resolution errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryResolution,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrNoMatchingElement = &ExecutionError{
		Category: ErrCategoryResolution,
		Code:     "no_matching_element",
		Message:  "no selector strategy matched",
	}

	// Gesture errors
	ErrGestureFailed = &ExecutionError{
		Category: ErrCategoryGesture,
		Code:     "gesture_failed",
		Message:  "gesture rejected by automation server",
	}

	// Workflow errors
	ErrModalNotDismissed = &ExecutionError{
		Category: ErrCategoryWorkflow,
		Code:     "modal_not_dismissed",
		Message:  "confirmation modal was not dismissed",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}

	// Process errors
	ErrDevServer = &ExecutionError{
		Category: ErrCategoryProcess,
		Code:     "dev_server",
		Message:  "development server failed",
	}
)

package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{
		Category: ErrCategoryResolution,
		Code:     "test_error",
		Message:  "test message",
	}

	if got := err.Error(); got != "test message" {
		t.Errorf("Error() = %q, want %q", got, "test message")
	}
}

func TestExecutionError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Category: ErrCategoryResolution,
		Code:     "test_error",
		Message:  "test message",
		Cause:    cause,
	}

	got := err.Error()
	if !strings.Contains(got, "test message") {
		t.Errorf("Error() = %q, should contain 'test message'", got)
	}
	if !strings.Contains(got, "underlying error") {
		t.Errorf("Error() = %q, should contain 'underlying error'", got)
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Message: "wrapper",
		Cause:   cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestExecutionError_WithCause(t *testing.T) {
	original := ErrElementNotFound
	cause := errors.New("custom cause")

	newErr := original.WithCause(cause)

	if newErr.Cause != cause {
		t.Error("WithCause() did not set cause")
	}
	if newErr.Code != original.Code {
		t.Error("WithCause() changed code")
	}
	if original.Cause != nil {
		t.Error("WithCause() modified original error")
	}
}

func TestExecutionError_WithMessage(t *testing.T) {
	original := ErrNoMatchingElement
	newErr := original.WithMessage(`no element matched "Sign In"`)

	if newErr.Message != `no element matched "Sign In"` {
		t.Errorf("Message = %q", newErr.Message)
	}
	if newErr.Code != original.Code {
		t.Error("WithMessage() changed code")
	}
	if original.Message == newErr.Message {
		t.Error("WithMessage() modified original error")
	}
}

func TestExecutionError_WithDetails(t *testing.T) {
	original := &ExecutionError{
		Code:    "test",
		Message: "test",
		Details: map[string]interface{}{"existing": "value"},
	}

	newErr := original.WithDetails(map[string]interface{}{
		"selector": `//XCUIElementTypeButton[@name="Done"]`,
		"timeout":  800,
	})

	if newErr.Details["selector"] != `//XCUIElementTypeButton[@name="Done"]` {
		t.Error("WithDetails() did not add new details")
	}
	if newErr.Details["existing"] != "value" {
		t.Error("WithDetails() did not preserve existing details")
	}
	if _, ok := original.Details["selector"]; ok {
		t.Error("WithDetails() modified original error")
	}
}

func TestExecutionError_IsMatchesDerivedCopies(t *testing.T) {
	derived := ErrNotConnected.WithMessage("tap failed").WithDetails(map[string]interface{}{"x": 1})
	wrapped := fmt.Errorf("logout: %w", derived)

	if !errors.Is(wrapped, ErrNotConnected) {
		t.Error("errors.Is() should match derived copy through wrapping")
	}
	if errors.Is(wrapped, ErrElementNotFound) {
		t.Error("errors.Is() should not match a different code")
	}
	if derived.Is(errors.New("not_connected")) {
		t.Error("Is() should only match ExecutionError targets")
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
		code     string
	}{
		{ErrNotConnected, ErrCategoryConnection, "not_connected"},
		{ErrServerUnreachable, ErrCategoryConnection, "server_unreachable"},
		{ErrElementNotFound, ErrCategoryResolution, "element_not_found"},
		{ErrNoMatchingElement, ErrCategoryResolution, "no_matching_element"},
		{ErrGestureFailed, ErrCategoryGesture, "gesture_failed"},
		{ErrModalNotDismissed, ErrCategoryWorkflow, "modal_not_dismissed"},
		{ErrInvalidConfig, ErrCategoryConfig, "invalid_config"},
		{ErrMissingRequired, ErrCategoryConfig, "missing_required"},
		{ErrDevServer, ErrCategoryProcess, "dev_server"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("Category = %s, want %s", tt.err.Category, tt.category)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestExecutionError_Detail(t *testing.T) {
	err := ErrModalNotDismissed.WithDetails(map[string]interface{}{"taps": 1})

	if got := err.Detail("taps"); got != 1 {
		t.Errorf("Detail(taps) = %v, want 1", got)
	}
	if got := err.Detail("missing"); got != nil {
		t.Errorf("Detail(missing) = %v, want nil", got)
	}
	if ErrModalNotDismissed.Detail("taps") != nil {
		t.Error("WithDetails() leaked into the predefined error")
	}
}

func TestExecutionError_ErrorsIs(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrGestureFailed.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
}

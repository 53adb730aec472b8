package core

// ScreenState is the observed state of the app under test.
// It is never stored; callers re-derive it by probing anchor elements.
type ScreenState int

const (
	StateUnknown           ScreenState = iota // Nothing recognisable rendered
	StateLoginScreen                          // Login anchor visible
	StateAuthenticatedHome                    // Home anchor visible (logged in)
	StateModalOpen                            // Confirmation dialog on top of the current screen
	StateUnreachable                          // No live session to probe with
)

// String returns the string representation of ScreenState
func (s ScreenState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateLoginScreen:
		return "login"
	case StateAuthenticatedHome:
		return "home"
	case StateModalOpen:
		return "modal"
	case StateUnreachable:
		return "unreachable"
	default:
		return "invalid"
	}
}

// IsKnown returns true if the state was positively identified by an anchor
func (s ScreenState) IsKnown() bool {
	switch s {
	case StateLoginScreen, StateAuthenticatedHome, StateModalOpen:
		return true
	default:
		return false
	}
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryConnection                      // No session, server unreachable
	ErrCategoryResolution                      // Element or cascade could not be resolved
	ErrCategoryGesture                         // Touch command rejected by the server
	ErrCategoryWorkflow                        // Screen-state workflow did not converge
	ErrCategoryConfig                          // Invalid configuration, missing required field
	ErrCategoryProcess                         // Companion process failed
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryResolution:
		return "resolution"
	case ErrCategoryGesture:
		return "gesture"
	case ErrCategoryWorkflow:
		return "workflow"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryProcess:
		return "process"
	default:
		return "unknown"
	}
}

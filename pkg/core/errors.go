package core

import (
	"fmt"
)

// ErrorCategory classifies where in the pipeline an error originates.
type ErrorCategory int

const (
	ErrCategoryNone        ErrorCategory = iota
	ErrCategoryInput                     // Malformed request payload
	ErrCategoryEnvironment               // Driver missing, install failure, timeout
	ErrCategoryDocument                  // Generated/normalized flow document is unusable
	ErrCategoryExecution                 // Classified from driver output
	ErrCategoryStore                     // Persisted store integrity (recovered, rarely surfaced)
)

// String returns the string representation of ErrorCategory.
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryInput:
		return "input"
	case ErrCategoryEnvironment:
		return "environment"
	case ErrCategoryDocument:
		return "document"
	case ErrCategoryExecution:
		return "execution"
	case ErrCategoryStore:
		return "store"
	default:
		return "unknown"
	}
}

// EngineError represents a structured error with category and machine code.
type EngineError struct {
	Category ErrorCategory
	Code     string // Machine-readable code: missing_assertions, timeout, etc.
	Message  string // Human-readable message
	Cause    error  // Underlying error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause.
func (e *EngineError) WithCause(cause error) *EngineError {
	return &EngineError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *EngineError) WithMessage(msg string) *EngineError {
	return &EngineError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Cause:    e.Cause,
	}
}

// Predefined errors for the fixed failure taxonomy.
var (
	ErrMissingAssertions = &EngineError{
		Category: ErrCategoryDocument,
		Code:     CauseMissingAssertions,
		Message:  "flow document contains no assertion commands",
	}
	ErrInvalidDocument = &EngineError{
		Category: ErrCategoryDocument,
		Code:     CauseInvalidYAML,
		Message:  "flow document is not valid YAML",
	}
	ErrDriverNotFound = &EngineError{
		Category: ErrCategoryEnvironment,
		Code:     CauseBinaryNotFound,
		Message:  "automation driver executable not found",
	}
	ErrExecutionTimeout = &EngineError{
		Category: ErrCategoryEnvironment,
		Code:     CauseTimeout,
		Message:  "driver command timed out",
	}
	ErrInvalidPayload = &EngineError{
		Category: ErrCategoryInput,
		Code:     CauseInvalidPayload,
		Message:  "malformed request payload",
	}
)

// NewEngineError creates a new EngineError with the given parameters.
func NewEngineError(category ErrorCategory, code, message string) *EngineError {
	return &EngineError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

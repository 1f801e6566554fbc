package toolerr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zero-day-ai/attack-kb/kberr"
)

// Standard error codes.
const (
	// ErrCodeNotFound indicates the requested entity is not in the index
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeInvalidInput indicates invalid input parameters
	ErrCodeInvalidInput = "INVALID_INPUT"

	// ErrCodeDatasetMalformed indicates the dataset could not be loaded
	ErrCodeDatasetMalformed = "DATASET_MALFORMED"

	// ErrCodeUnknownTool indicates a call named a tool that is not registered
	ErrCodeUnknownTool = "UNKNOWN_TOOL"

	// ErrCodeTimeout indicates the call deadline expired
	ErrCodeTimeout = "TIMEOUT"

	// ErrCodeCanceled indicates the caller canceled the call
	ErrCodeCanceled = "CANCELED"

	// ErrCodeRateLimited indicates the server rejected the call to stay
	// within its request budget
	ErrCodeRateLimited = "RATE_LIMITED"

	// ErrCodeInternal indicates an unexpected failure
	ErrCodeInternal = "INTERNAL"
)

// Error is a structured error for tool operations.
type Error struct {
	// Tool is the name of the tool that generated the error
	Tool string `json:"tool"`

	// Operation is the specific operation that failed
	Operation string `json:"operation,omitempty"`

	// Code is one of the ErrCode constants
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains additional context as key-value pairs
	Details map[string]any `json:"details,omitempty"`

	// Cause is the underlying error
	Cause error `json:"-"`

	// Class categorizes the error by its nature
	Class ErrorClass `json:"class,omitempty"`

	// Hints provides recovery suggestions for this error
	Hints []RecoveryHint `json:"hints,omitempty"`
}

// New creates a new structured tool error.
//
// Example:
//
//	err := toolerr.New("query_mitigations", "list", toolerr.ErrCodeNotFound, "technique T9999 not found")
func New(tool, operation, code, message string) *Error {
	return &Error{
		Tool:      tool,
		Operation: operation,
		Code:      code,
		Message:   message,
	}
}

// WithCause adds an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails adds additional context.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// WithClass sets the error classification.
func (e *Error) WithClass(class ErrorClass) *Error {
	e.Class = class
	return e
}

// WithHints appends recovery suggestions.
func (e *Error) WithHints(hints ...RecoveryHint) *Error {
	e.Hints = append(e.Hints, hints...)
	return e
}

// Error formats the error as "tool [operation/code]: message: cause".
func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("%s [%s/%s]", e.Tool, e.Operation, e.Code)}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same tool, operation and
// code. Empty fields in target match anything.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return (t.Tool == "" || e.Tool == t.Tool) &&
		(t.Operation == "" || e.Operation == t.Operation) &&
		(t.Code == "" || e.Code == t.Code)
}

// Retryable reports whether the same call may succeed later.
func (e *Error) Retryable() bool {
	return e.Class == ErrorClassTransient
}

// FromError converts err into a tool error for tool and operation. An err
// that already is (or wraps) an *Error is returned as is; kberr and context
// errors map to their codes, anything else becomes INTERNAL. The result is
// enriched with the class and registered hints. FromError returns nil for a
// nil err.
func FromError(tool, operation string, err error) *Error {
	if err == nil {
		return nil
	}

	var te *Error
	if errors.As(err, &te) {
		return te
	}

	var code, message string
	switch {
	case errors.Is(err, kberr.ErrNotFound):
		code = ErrCodeNotFound
		message = notFoundMessage(err)
	case errors.Is(err, kberr.ErrInvalidArgument):
		code = ErrCodeInvalidInput
		message = err.Error()
	case errors.Is(err, kberr.ErrDatasetMalformed):
		code = ErrCodeDatasetMalformed
		message = "knowledge base is unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeTimeout
		message = "call deadline exceeded"
	case errors.Is(err, context.Canceled):
		code = ErrCodeCanceled
		message = "call canceled"
	default:
		code = ErrCodeInternal
		message = "internal error"
	}

	return EnrichError(New(tool, operation, code, message).WithCause(err))
}

func notFoundMessage(err error) string {
	var kbErr *kberr.Error
	if errors.As(err, &kbErr) && kbErr.Subject != "" {
		return fmt.Sprintf("%s not found", kbErr.Subject)
	}
	return "not found"
}

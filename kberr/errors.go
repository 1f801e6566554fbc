// Package kberr defines the error taxonomy of the ATT&CK knowledge base.
//
// Three sentinel errors cover every failure the core can report:
//
//   - ErrDatasetMalformed: the raw dataset is not a STIX bundle. Startup-fatal.
//   - ErrNotFound: an exact-ID lookup missed. Recoverable, per query.
//   - ErrInvalidArgument: a query was called without the arguments it needs.
//     Recoverable, per query.
//
// Callers match them with errors.Is. The structured Error type adds the
// operation and the subject (usually an ID) that failed.
package kberr

import (
	"errors"
	"fmt"
)

// Sentinel errors for knowledge-base operations.
var (
	// ErrDatasetMalformed indicates the raw dataset is not in the expected
	// container shape (a JSON object with an "objects" array).
	ErrDatasetMalformed = errors.New("dataset malformed")

	// ErrNotFound indicates the requested entity does not exist in the index.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a query was called with missing or
	// unusable arguments.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error kinds categorize errors by their type.
const (
	// KindDataset represents dataset loading and parsing failures.
	KindDataset = "dataset"

	// KindNotFound represents exact-ID lookup misses.
	KindNotFound = "not_found"

	// KindValidation represents argument validation failures.
	KindValidation = "validation"
)

// Error is a structured error wrapping one of the sentinel errors with the
// operation that failed and the subject it failed on.
//
// Example:
//
//	err := kberr.NotFound("query.ResolveByID", "T9999.999")
//	errors.Is(err, kberr.ErrNotFound) // true
type Error struct {
	// Op is the operation that failed (e.g. "query.ResolveByID").
	Op string

	// Kind categorizes the error (KindDataset, KindNotFound, KindValidation).
	Kind string

	// Subject is the ID, name or path the operation was applied to.
	Subject string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("attackkb: %s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("attackkb: %s (%s) %q: %v", e.Op, e.Kind, e.Subject, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind (and Op when the target sets one), and
// otherwise delegates to the wrapped error.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// NotFound returns an Error wrapping ErrNotFound.
func NotFound(op, subject string) *Error {
	return &Error{Op: op, Kind: KindNotFound, Subject: subject, Err: ErrNotFound}
}

// InvalidArgument returns an Error wrapping ErrInvalidArgument with a reason.
func InvalidArgument(op, reason string) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: fmt.Errorf("%w: %s", ErrInvalidArgument, reason)}
}

// DatasetMalformed returns an Error wrapping ErrDatasetMalformed and the
// cause reported by the decoder.
func DatasetMalformed(op, source string, cause error) *Error {
	err := ErrDatasetMalformed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrDatasetMalformed, cause)
	}
	return &Error{Op: op, Kind: KindDataset, Subject: source, Err: err}
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidArgument reports whether err is, or wraps, ErrInvalidArgument.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

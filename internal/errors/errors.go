// Package errors defines the error taxonomy shared by the analysis
// pipeline. Every failure a user can trigger maps onto one of four
// kinds: unreadable or unwritable paths, malformed input tables, bad
// processing parameters, and signal/reference mismatches. Errors are
// recovered at the operation boundary and reported; none are fatal.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an analysis error.
type Kind string

const (
	KindIO               Kind = "io"
	KindFormat           Kind = "format"
	KindInvalidParameter Kind = "invalid_parameter"
	KindAlignment        Kind = "alignment"
)

// AnalysisError is the structured error type used across the pipeline.
type AnalysisError struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "loader.ReadFile"
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	if e == nil {
		return "unknown analysis error"
	}
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AnalysisError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an AnalysisError of the same kind. This
// lets callers match on the kind sentinels below with errors.Is.
func (e *AnalysisError) Is(target error) bool {
	var t *AnalysisError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Kind sentinels for errors.Is matching.
var (
	ErrIO               = &AnalysisError{Kind: KindIO}
	ErrFormat           = &AnalysisError{Kind: KindFormat}
	ErrInvalidParameter = &AnalysisError{Kind: KindInvalidParameter}
	ErrAlignment        = &AnalysisError{Kind: KindAlignment}
)

// WithContext attaches a key/value pair to the error's context map and
// returns the error for chaining.
func (e *AnalysisError) WithContext(key string, value interface{}) *AnalysisError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewIOError creates an IO-kind error for an unreadable or unwritable path.
func NewIOError(op, path string, cause error) *AnalysisError {
	return &AnalysisError{
		Kind:    KindIO,
		Op:      op,
		Message: fmt.Sprintf("cannot access %s", path),
		Cause:   cause,
		Context: map[string]interface{}{"path": path},
	}
}

// NewFormatError creates a format-kind error for a malformed input table.
func NewFormatError(op, message string) *AnalysisError {
	return &AnalysisError{
		Kind:    KindFormat,
		Op:      op,
		Message: message,
	}
}

// NewInvalidParameterError creates an invalid-parameter error.
func NewInvalidParameterError(op, message string) *AnalysisError {
	return &AnalysisError{
		Kind:    KindInvalidParameter,
		Op:      op,
		Message: message,
	}
}

// NewAlignmentError creates an alignment error for a signal/reference
// mismatch.
func NewAlignmentError(op, message string) *AnalysisError {
	return &AnalysisError{
		Kind:    KindAlignment,
		Op:      op,
		Message: message,
	}
}

// KindOf returns the kind of err if it is (or wraps) an AnalysisError,
// or the empty string otherwise.
func KindOf(err error) Kind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err is an AnalysisError of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

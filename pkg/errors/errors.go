// Package errors provides structured error types for stackforge.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the resolver, the CLI and the remote server
//   - Machine-readable error codes for programmatic handling
//   - User-friendly messages that name the offending references and requirer chain
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures (references, ranges, options, settings)
//   - GRAPH_LOOP, VERSION_CONFLICT, RANGE_CONFLICT: fatal graph resolution errors
//   - RECIPE_ERROR: a recipe callback failed
//   - NOT_FOUND, MISSING_BINARY: resource lookups
//   - NETWORK_*: remote store failures
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeGraphLoop, "loop detected: %s", path)
//	if errors.Is(err, errors.ErrCodeGraphLoop) {
//	    // Handle the loop
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeRecipe, origErr, "%s: configure() failed", ref)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput     Code = "INVALID_INPUT"
	ErrCodeInvalidReference Code = "INVALID_REFERENCE"
	ErrCodeInvalidRange     Code = "INVALID_VERSION_RANGE"
	ErrCodeInvalidOption    Code = "INVALID_OPTION"
	ErrCodeInvalidSetting   Code = "INVALID_SETTING"
	ErrCodeInvalidConfig    Code = "INVALID_CONFIG"

	// Graph resolution errors
	ErrCodeGraphLoop       Code = "GRAPH_LOOP"
	ErrCodeVersionConflict Code = "VERSION_CONFLICT"
	ErrCodeRangeConflict   Code = "RANGE_CONFLICT"
	ErrCodeRecipe          Code = "RECIPE_ERROR"
	ErrCodeValueNotDefined Code = "VALUE_NOT_DEFINED"
	ErrCodeLockMismatch    Code = "LOCK_MISMATCH"

	// Resource not found errors
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeMissingBinary Code = "MISSING_BINARY"
	ErrCodeFileNotFound  Code = "FILE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork     Code = "NETWORK_ERROR"
	ErrCodeTimeout     Code = "TIMEOUT"
	ErrCodeRateLimited Code = "RATE_LIMITED"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code     // Machine-readable error code
	Message string   // Human-readable message
	Cause   error    // Underlying error (optional)
	Refs    []string // Offending references, if any
	Path    []string // Chain of requirers that led to the failure, root first
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if len(e.Path) > 0 {
		fmt.Fprintf(&b, " (required by %s)", strings.Join(e.Path, " -> "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithRefs attaches the offending references and returns e.
func (e *Error) WithRefs(refs ...string) *Error {
	e.Refs = append(e.Refs, refs...)
	return e
}

// WithPath attaches the requirer chain and returns e.
func (e *Error) WithPath(path []string) *Error {
	e.Path = append([]string(nil), path...)
	return e
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if len(e.Path) > 0 {
			return fmt.Sprintf("%s (required by %s)", e.Message, strings.Join(e.Path, " -> "))
		}
		return e.Message
	}
	return err.Error()
}

// IsGraphError reports whether err is one of the fatal graph-building kinds.
func IsGraphError(err error) bool {
	switch GetCode(err) {
	case ErrCodeGraphLoop, ErrCodeVersionConflict, ErrCodeRangeConflict, ErrCodeRecipe, ErrCodeLockMismatch:
		return true
	}
	return false
}


// Package errors provides structured error types for the penplot library.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI, API, and library callers
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes fall into four groups:
//   - INVALID_* / MALFORMED_*: input or model invariant failures, always
//     raised before any command reaches the machine
//   - OUT_OF_BOUNDS / DRAWING_METHOD: compile-time job failures
//   - TRANSPORT / ACK_TIMEOUT / HANDSHAKE / MACHINE_IN_USE: connection and
//     protocol failures; TRANSPORT and ACK_TIMEOUT are retried locally
//     before they surface
//   - JOB_IN_PROGRESS: caller misuse, rejected synchronously
//
// # Usage
//
//	err := errors.New(errors.ErrCodeOutOfBounds, "endpoint (%.1f, %.1f) outside drawable area", x, y)
//	if errors.Is(err, errors.ErrCodeOutOfBounds) {
//	    // Handle compile failure
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTransport, origErr, "writing frame %d", seq)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidMethod Code = "INVALID_METHOD"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// Drawing model errors
	ErrCodeMalformedPath Code = "MALFORMED_PATH"
	ErrCodeDrawingMethod Code = "DRAWING_METHOD"
	ErrCodeOutOfBounds   Code = "OUT_OF_BOUNDS"

	// Connection and protocol errors
	ErrCodeTransport    Code = "TRANSPORT"
	ErrCodeAckTimeout   Code = "ACK_TIMEOUT"
	ErrCodeHandshake    Code = "HANDSHAKE"
	ErrCodeMachineInUse Code = "MACHINE_IN_USE"
	ErrCodeFrameCorrupt Code = "FRAME_CORRUPT"

	// Job lifecycle errors
	ErrCodeJobInProgress Code = "JOB_IN_PROGRESS"
	ErrCodeJobCancelled  Code = "JOB_CANCELLED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
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
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
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
		return e.Message
	}
	return err.Error()
}

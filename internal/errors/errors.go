// Package errors provides structured error types for latch.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes for latch operations.
const (
	// Config errors
	CodeConfigInvalidValue = "CONFIG_001" // Invalid value in latch.toml
	CodeConfigReadError    = "CONFIG_002" // Cannot read config file

	// Pipeline definition errors
	CodePipelineParseError = "PIPE_001" // YAML parse error
	CodePipelineInvalid    = "PIPE_002" // Validation error
	CodePipelineNotFound   = "PIPE_003" // Definition file not found
	CodeMatrixInvalid      = "PIPE_004" // Malformed axis or exclusion rule

	// Run errors
	CodeRunInvalidTransition = "RUN_001" // Illegal status transition
	CodeRunNotFound          = "RUN_002" // Run not found in store

	// Step errors
	CodeStepFailed        = "STEP_001" // External call returned non-success
	CodeStepUnknownAction = "STEP_002" // Managed action not registered

	// Infrastructure errors
	CodeInfraProvision = "INFRA_001" // Environment provisioning failed

	// IO errors
	CodeIOReadError  = "IO_001" // Read error
	CodeIOWriteError = "IO_002" // Write error
)

// Error is the structured error type for latch operations.
type Error struct {
	Code    string         `json:"code"`              // Error code (e.g., "PIPE_002")
	Message string         `json:"message"`           // Human-readable message
	Details map[string]any `json:"details,omitempty"` // Context (run_id, job, step, ...)
	Cause   error          `json:"-"`                 // Wrapped error (not serialized)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// MarshalJSON includes the cause's message in serialized output.
func (e *Error) MarshalJSON() ([]byte, error) {
	type alias Error
	out := struct {
		*alias
		Cause string `json:"cause,omitempty"`
	}{alias: (*alias)(e)}
	if e.Cause != nil {
		out.Cause = e.Cause.Error()
	}
	return json.Marshal(out)
}

// New creates a structured error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a structured error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err carries the given latch error code.
func Is(err error, code string) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// CodeOf returns the latch error code of err, or "" if err is not a
// structured latch error.
func CodeOf(err error) string {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

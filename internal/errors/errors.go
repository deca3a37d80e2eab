// Package errors provides standardized domain errors with codes for the
// driftsync daemon.
//
// Usage:
//
//	// In packages - return typed errors
//	if cfg.Action == nil {
//	    return errors.Config("no action configured")
//	}
//
//	// At the top level - map to an exit code
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    os.Exit(domainErr.Code.ExitCode())
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the daemon.
const (
	CodeConfig   Code = "CONFIG"
	CodeWatch    Code = "WATCH"
	CodeStartup  Code = "STARTUP"
	CodeOverflow Code = "OVERFLOW"
	CodeInternal Code = "INTERNAL"
)

// ExitCode returns the process exit code for an error code.
func (c Code) ExitCode() int {
	switch c {
	case CodeConfig:
		return 1
	case CodeStartup:
		return 2
	case CodeOverflow:
		return 3
	default:
		return 1
	}
}

// Error is a domain error with a code and human-readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Config creates a configuration error.
func Config(msg string) error {
	return &Error{Code: CodeConfig, Message: msg}
}

// Configf creates a configuration error with formatting.
func Configf(format string, args ...any) error {
	return &Error{Code: CodeConfig, Message: fmt.Sprintf(format, args...)}
}

// Watch creates a watch registration error.
func Watch(msg string, err error) error {
	return &Error{Code: CodeWatch, Message: msg, Err: err}
}

// Startup creates a startup-phase error.
func Startup(msg string) error {
	return &Error{Code: CodeStartup, Message: msg}
}

// Overflow creates a kernel event-queue overflow error.
func Overflow(err error) error {
	return &Error{Code: CodeOverflow, Message: "event queue overflow", Err: err}
}

// Internal wraps an unexpected error.
func Internal(msg string, err error) error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

// ExitCodeFor extracts the exit code for err, defaulting to 1 for errors
// without a domain code.
func ExitCodeFor(err error) int {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code.ExitCode()
	}
	return 1
}

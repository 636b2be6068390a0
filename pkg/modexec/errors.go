// Package modexec implements the module invocation channel: it marshals a
// call's arguments into the environment-variable format module executables
// expect, launches the executable as a subprocess, and interprets its exit
// code, standard output, and standard error into a structured result.
package modexec

import (
	"errors"
	"fmt"
)

// ErrorKind classifies invocation channel failures.
type ErrorKind string

const (
	// ErrorKindDecode indicates a malformed argument payload. Decoding
	// degrades to an empty argument mapping, so this kind is diagnostic,
	// never fatal to an invocation.
	ErrorKindDecode ErrorKind = "decode"

	// ErrorKindProtocol indicates the module's standard output could not be
	// parsed as the expected JSON result object. Fatal to that invocation.
	ErrorKindProtocol ErrorKind = "protocol"

	// ErrorKindTimeout indicates the invocation exceeded its deadline and the
	// process was forcibly terminated. Fatal to that invocation.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindLaunch indicates the subprocess could not be started at all.
	// Examples: missing executable, permission denied, unmarshalable args.
	ErrorKindLaunch ErrorKind = "launch"
)

// InvokeError is a classified invocation channel error with enough context
// attached to diagnose the failure without re-running the module.
type InvokeError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Executable is the module path being invoked, if known.
	Executable string `json:"executable,omitempty"`

	// ExitCode is the process exit code, if the process ran.
	ExitCode int `json:"exit_code,omitempty"`

	// RawOutput is the unparsed standard output captured before the failure.
	RawOutput string `json:"raw_output,omitempty"`

	// Stderr is the standard error captured before the failure.
	Stderr string `json:"stderr,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *InvokeError) Error() string {
	if e.Executable != "" {
		return fmt.Sprintf("[%s] %s (executable=%s): %s",
			e.Kind, e.Message, e.Executable, e.unwrapMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.unwrapMessage())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *InvokeError) Unwrap() error {
	return e.Err
}

func (e *InvokeError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *InvokeError) Is(target error) bool {
	t, ok := target.(*InvokeError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewDecodeError creates a new decode error.
func NewDecodeError(message string, err error) *InvokeError {
	return &InvokeError{Kind: ErrorKindDecode, Message: message, Err: err}
}

// NewProtocolError creates a new protocol error.
func NewProtocolError(message string, err error) *InvokeError {
	return &InvokeError{Kind: ErrorKindProtocol, Message: message, Err: err}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, err error) *InvokeError {
	return &InvokeError{Kind: ErrorKindTimeout, Message: message, Err: err}
}

// NewLaunchError creates a new launch error.
func NewLaunchError(message string, err error) *InvokeError {
	return &InvokeError{Kind: ErrorKindLaunch, Message: message, Err: err}
}

// WithExecutable adds the module path to an error.
func (e *InvokeError) WithExecutable(path string) *InvokeError {
	e.Executable = path
	return e
}

// WithExitCode adds the process exit code to an error.
func (e *InvokeError) WithExitCode(code int) *InvokeError {
	e.ExitCode = code
	return e
}

// WithRawOutput attaches the unparsed standard output to an error.
func (e *InvokeError) WithRawOutput(out string) *InvokeError {
	e.RawOutput = out
	return e
}

// WithStderr attaches the captured standard error to an error.
func (e *InvokeError) WithStderr(stderr string) *InvokeError {
	e.Stderr = stderr
	return e
}

// IsDecode returns true if the error is classified as a decode error.
func IsDecode(err error) bool {
	var e *InvokeError
	if errors.As(err, &e) {
		return e.Kind == ErrorKindDecode
	}
	return false
}

// IsProtocol returns true if the error is classified as a protocol error.
func IsProtocol(err error) bool {
	var e *InvokeError
	if errors.As(err, &e) {
		return e.Kind == ErrorKindProtocol
	}
	return false
}

// IsTimeout returns true if the error is classified as a timeout error.
func IsTimeout(err error) bool {
	var e *InvokeError
	if errors.As(err, &e) {
		return e.Kind == ErrorKindTimeout
	}
	return false
}

// IsLaunch returns true if the error is classified as a launch error.
func IsLaunch(err error) bool {
	var e *InvokeError
	if errors.As(err, &e) {
		return e.Kind == ErrorKindLaunch
	}
	return false
}

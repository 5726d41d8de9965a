// Package errors defines the failures surfaced by the driver bridge.
package errors

import (
	stderr "errors"
	"fmt"
	"time"
)

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

var (
	// ErrNoSession reports a command other than status or new session sent before a session exists.
	ErrNoSession = New("no active session")
	// ErrSessionEnded reports use of a lifecycle after it has been stopped.
	ErrSessionEnded = New("session ended")
	// ErrNotReady reports an operation that requires the driver to have accepted connections.
	ErrNotReady = New("driver service is not ready")
	// ErrSessionActive reports a new session request while another session is still active.
	ErrSessionActive = New("a session is already active")
	// ErrMissingParameter reports a path placeholder with no value in the command parameters.
	ErrMissingParameter = New("missing path parameter")
)

// LaunchError indicates that the driver executable could not be started.
type LaunchError struct {
	Path string
	// Hint names where the executable is expected to be installed.
	Hint string
	Err  error
}

// Error is an implementation of the error interface.
func (e *LaunchError) Error() string {
	msg := fmt.Sprintf("launching driver %q: %v", e.Path, e.Err)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Unwrap returns the underlying OS error.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// ReadinessTimeoutError indicates that the driver did not accept connections in time.
type ReadinessTimeoutError struct {
	URL      string
	Timeout  time.Duration
	Attempts int
}

// Error is an implementation of the error interface.
func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("driver at %s not ready after %v (%d attempts)", e.URL, e.Timeout, e.Attempts)
}

// ProcessDiedError indicates that the driver process exited before or during use.
type ProcessDiedError struct {
	Pid      int
	ExitCode int
	// Phase is "startup" when the process exited before accepting connections.
	Phase string
}

// Error is an implementation of the error interface.
func (e *ProcessDiedError) Error() string {
	if e.Phase == PhaseStartup {
		return fmt.Sprintf("driver terminated before accepting connections (pid %d, exit code %d)", e.Pid, e.ExitCode)
	}
	return fmt.Sprintf("driver process %d exited unexpectedly (exit code %d)", e.Pid, e.ExitCode)
}

const (
	// PhaseStartup marks a process death observed during readiness probing.
	PhaseStartup = "startup"
	// PhaseSession marks a process death observed after the driver became ready.
	PhaseSession = "session"
)

// CommandNotFoundError indicates a command name with no table entry for the active protocol variant.
type CommandNotFoundError struct {
	Name    string
	Variant string
}

// Error is an implementation of the error interface.
func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("command %q not found for protocol %q", e.Name, e.Variant)
}

// TransportError indicates a network level failure talking to the driver.
type TransportError struct {
	Method  string
	URL     string
	Timeout bool
	Err     error
}

// Error is an implementation of the error interface.
func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s %s: request timed out: %v", e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying network error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether the error was raised before any request reached the driver
// because the lifecycle was in the wrong state.
func IsPrecondition(e error) bool {
	return stderr.Is(e, ErrNoSession) || stderr.Is(e, ErrSessionEnded) || stderr.Is(e, ErrNotReady) ||
		stderr.Is(e, ErrSessionActive)
}

// IsProcessFailure reports whether the error comes from launching, probing or losing the driver process.
func IsProcessFailure(e error) bool {
	var launchErr *LaunchError
	var timeoutErr *ReadinessTimeoutError
	var diedErr *ProcessDiedError
	return stderr.As(e, &launchErr) || stderr.As(e, &timeoutErr) || stderr.As(e, &diedErr)
}

// Package errors holds the errors raised by the bridge daemon itself.
// Driver and protocol errors come from the webdriver-lib errors package.
package errors

import (
	stderr "errors"
	"fmt"
)

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

var (
	// NoUUIDOnWireError reports that the request is missing the bridged session id.
	NoUUIDOnWireError = New("session id is required")
	// NoDriverOnWireError reports that the request is missing the driver name.
	NoDriverOnWireError = New("driver is required")
	// NoCommandOnWireError reports that the request is missing the command name.
	NoCommandOnWireError = New("command is required")
	// ErrShuttingDown reports that the bridge no longer accepts new sessions.
	ErrShuttingDown = New("bridge is shutting down")
)

// InvalidParamsError reports request parameters that could not be decoded.
type InvalidParamsError struct {
	Method string
	Err    error
}

// Error is an implementation of the error interface.
func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params for %s: %v", e.Method, e.Err)
}

// Unwrap returns the decoding error.
func (e *InvalidParamsError) Unwrap() error {
	return e.Err
}

// IsBadRequest reports whether the error is a bad request from the caller.
func IsBadRequest(e error) bool {
	if stderr.Is(e, NoUUIDOnWireError) || stderr.Is(e, NoDriverOnWireError) || stderr.Is(e, NoCommandOnWireError) {
		return true
	}
	var ip *InvalidParamsError
	var ud *UnknownDriverError
	return stderr.As(e, &ip) || stderr.As(e, &ud)
}

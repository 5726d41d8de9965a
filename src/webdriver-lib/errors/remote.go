package errors

import (
	stderr "errors"
	"fmt"
)

// Code is a normalized WebDriver error code, using the W3C error strings.
type Code string

// W3C WebDriver error codes.
const (
	CodeElementClickIntercepted   Code = "element click intercepted"
	CodeElementNotInteractable    Code = "element not interactable"
	CodeElementNotSelectable      Code = "element not selectable"
	CodeElementNotVisible         Code = "element not visible"
	CodeInsecureCertificate       Code = "insecure certificate"
	CodeInvalidArgument           Code = "invalid argument"
	CodeInvalidCookieDomain       Code = "invalid cookie domain"
	CodeInvalidCoordinates        Code = "invalid coordinates"
	CodeInvalidElementState       Code = "invalid element state"
	CodeInvalidSelector           Code = "invalid selector"
	CodeInvalidSessionID          Code = "invalid session id"
	CodeJavascriptError           Code = "javascript error"
	CodeMoveTargetOutOfBounds     Code = "move target out of bounds"
	CodeNoSuchAlert               Code = "no such alert"
	CodeNoSuchCookie              Code = "no such cookie"
	CodeNoSuchElement             Code = "no such element"
	CodeNoSuchFrame               Code = "no such frame"
	CodeNoSuchWindow              Code = "no such window"
	CodeScriptTimeout             Code = "script timeout"
	CodeSessionNotCreated         Code = "session not created"
	CodeStaleElementReference     Code = "stale element reference"
	CodeTimeout                   Code = "timeout"
	CodeUnableToSetCookie         Code = "unable to set cookie"
	CodeUnableToCaptureScreen     Code = "unable to capture screen"
	CodeUnexpectedAlertOpen       Code = "unexpected alert open"
	CodeUnknownCommand            Code = "unknown command"
	CodeUnknownError              Code = "unknown error"
	CodeUnknownMethod             Code = "unknown method"
	CodeUnsupportedOperation      Code = "unsupported operation"
	CodeIMENotAvailable           Code = "ime not available"
	CodeIMEEngineActivationFailed Code = "ime engine activation failed"
)

// Legacy JSON Wire Protocol status codes mapped onto the W3C error codes.
var _legacyStatusCodes = map[int]Code{
	6:  CodeInvalidSessionID,
	7:  CodeNoSuchElement,
	8:  CodeNoSuchFrame,
	9:  CodeUnknownCommand,
	10: CodeStaleElementReference,
	11: CodeElementNotVisible,
	12: CodeInvalidElementState,
	13: CodeUnknownError,
	15: CodeElementNotSelectable,
	17: CodeJavascriptError,
	19: CodeInvalidSelector,
	21: CodeTimeout,
	23: CodeNoSuchWindow,
	24: CodeInvalidCookieDomain,
	25: CodeUnableToSetCookie,
	26: CodeUnexpectedAlertOpen,
	27: CodeNoSuchAlert,
	28: CodeScriptTimeout,
	29: CodeInvalidCoordinates,
	30: CodeIMENotAvailable,
	31: CodeIMEEngineActivationFailed,
	32: CodeInvalidSelector,
	33: CodeSessionNotCreated,
	34: CodeMoveTargetOutOfBounds,
	51: CodeInvalidSelector,
	60: CodeElementNotInteractable,
	61: CodeInvalidArgument,
	62: CodeNoSuchCookie,
	63: CodeUnableToCaptureScreen,
	64: CodeElementClickIntercepted,
}

// Fallback codes when the driver sends nothing but an HTTP status.
var _httpStatusCodes = map[int]Code{
	400: CodeInvalidArgument,
	404: CodeUnknownCommand,
	405: CodeUnknownMethod,
	408: CodeTimeout,
	500: CodeUnknownError,
	501: CodeUnsupportedOperation,
}

// CodeFromLegacyStatus maps a JSON Wire Protocol numeric status onto a W3C code.
func CodeFromLegacyStatus(status int) Code {
	if c, ok := _legacyStatusCodes[status]; ok {
		return c
	}
	return CodeUnknownError
}

// CodeFromHTTPStatus maps an HTTP status with no usable body onto a W3C code.
func CodeFromHTTPStatus(status int) Code {
	if c, ok := _httpStatusCodes[status]; ok {
		return c
	}
	return CodeUnknownError
}

// RemoteCommandError indicates that the driver answered a command with a failure.
type RemoteCommandError struct {
	Code       Code
	Message    string
	Stacktrace string
	HTTPStatus int
	// LegacyStatus holds the numeric status for JSON Wire Protocol drivers, zero otherwise.
	LegacyStatus int
}

// Error is an implementation of the error interface.
func (e *RemoteCommandError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any RemoteCommandError carrying the same code, so callers can compare against a template.
func (e *RemoteCommandError) Is(target error) bool {
	t, ok := target.(*RemoteCommandError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// RemoteCode returns the code and true if a RemoteCommandError is part of the error chain.
func RemoteCode(e error) (_ Code, ok bool) {
	var rc *RemoteCommandError
	if !stderr.As(e, &rc) {
		return "", false
	}
	return rc.Code, true
}

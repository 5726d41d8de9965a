package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/model"
)

var _null = json.RawMessage("null")

// envelope covers both the W3C reply {"value": ...} and the legacy
// reply {"status": N, "sessionId": ..., "value": ...}.
type envelope struct {
	Status    *int            `json:"status"`
	SessionID *string         `json:"sessionId"`
	Value     json.RawMessage `json:"value"`
}

type errorValue struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Stacktrace string `json:"stacktrace"`
}

// decode turns a driver reply into a response or a RemoteCommandError.
func decode(httpStatus int, data []byte) (*model.CommandResponse, error) {
	resp := &model.CommandResponse{HTTPStatus: httpStatus, Value: _null}
	failed := httpStatus >= http.StatusBadRequest

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 && !failed {
		return resp, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		if failed {
			return nil, &errors.RemoteCommandError{
				Code:       errors.CodeFromHTTPStatus(httpStatus),
				Message:    truncate(trimmed),
				HTTPStatus: httpStatus,
			}
		}
		return nil, &errors.RemoteCommandError{
			Code:       errors.CodeUnknownError,
			Message:    fmt.Sprintf("invalid JSON response: %s", truncate(trimmed)),
			HTTPStatus: httpStatus,
		}
	}
	if len(env.Value) > 0 {
		resp.Value = env.Value
	}
	resp.Status = env.Status
	if env.SessionID != nil {
		resp.SessionID = *env.SessionID
	}

	message, ev := describe(resp.Value)
	switch {
	case ev.Error != "":
		return nil, &errors.RemoteCommandError{
			Code:       errors.Code(ev.Error),
			Message:    ev.Message,
			Stacktrace: ev.Stacktrace,
			HTTPStatus: httpStatus,
		}
	case env.Status != nil && *env.Status != 0:
		return nil, &errors.RemoteCommandError{
			Code:         errors.CodeFromLegacyStatus(*env.Status),
			Message:      message,
			Stacktrace:   ev.Stacktrace,
			HTTPStatus:   httpStatus,
			LegacyStatus: *env.Status,
		}
	case failed:
		return nil, &errors.RemoteCommandError{
			Code:       errors.CodeFromHTTPStatus(httpStatus),
			Message:    message,
			HTTPStatus: httpStatus,
		}
	}
	return resp, nil
}

// describe extracts an error description from a value that is either an object or a bare string.
func describe(value json.RawMessage) (string, errorValue) {
	var ev errorValue
	if err := json.Unmarshal(value, &ev); err == nil {
		return ev.Message, ev
	}
	var message string
	if err := json.Unmarshal(value, &message); err == nil {
		return message, ev
	}
	return "", ev
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

package mapper

import (
	"encoding/json"
	stderr "errors"

	wderrors "github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/errors"
	"go.lsp.dev/jsonrpc2"
)

// JSON-RPC error codes in the implementation defined range.
const (
	// CodeRemoteCommand is a failure reported by the driver. The message is "<code>: <message>".
	CodeRemoteCommand jsonrpc2.Code = -32001
	// CodePrecondition is a command sent to a session in the wrong state.
	CodePrecondition jsonrpc2.Code = -32002
	// CodeProcessFailure is a driver that failed to launch, start or stay alive.
	CodeProcessFailure jsonrpc2.Code = -32003
)

// RemoteErrorData is attached to CodeRemoteCommand errors.
type RemoteErrorData struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	Stacktrace   string `json:"stacktrace,omitempty"`
	HTTPStatus   int    `json:"httpStatus,omitempty"`
	LegacyStatus int    `json:"legacyStatus,omitempty"`
}

// ToJSONRPCError translates bridge and driver errors into JSON-RPC errors.
func ToJSONRPCError(e error) error {
	if e == nil {
		return nil
	}

	var rpcErr *jsonrpc2.Error
	if stderr.As(e, &rpcErr) {
		return rpcErr
	}

	var remote *wderrors.RemoteCommandError
	if stderr.As(e, &remote) {
		return toRemoteError(remote)
	}

	var notFound *wderrors.CommandNotFoundError
	if errors.IsBadRequest(e) || stderr.As(e, &notFound) || stderr.Is(e, wderrors.ErrMissingParameter) {
		return jsonrpc2.NewError(jsonrpc2.InvalidParams, e.Error())
	}

	if _, ok := errors.NotFoundUUID(e); ok {
		return jsonrpc2.NewError(CodePrecondition, e.Error())
	}

	if wderrors.IsPrecondition(e) || stderr.Is(e, errors.ErrShuttingDown) {
		return jsonrpc2.NewError(CodePrecondition, e.Error())
	}

	if wderrors.IsProcessFailure(e) {
		return jsonrpc2.NewError(CodeProcessFailure, e.Error())
	}

	return jsonrpc2.NewError(jsonrpc2.InternalError, e.Error())
}

func toRemoteError(remote *wderrors.RemoteCommandError) error {
	rpcErr := jsonrpc2.NewError(CodeRemoteCommand, remote.Error())
	data, err := json.Marshal(RemoteErrorData{
		Error:        string(remote.Code),
		Message:      remote.Message,
		Stacktrace:   remote.Stacktrace,
		HTTPStatus:   remote.HTTPStatus,
		LegacyStatus: remote.LegacyStatus,
	})
	if err == nil {
		raw := json.RawMessage(data)
		rpcErr.Data = &raw
	}
	return rpcErr
}

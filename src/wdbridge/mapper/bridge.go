// Package mapper converts between entities, repository models and wire types.
package mapper

import (
	"context"
	"encoding/json"

	"github.com/gofrs/uuid"
	"github.com/uber/webdriver-bridge/src/wdbridge/entity"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/errors"
	"github.com/uber/webdriver-bridge/src/wdbridge/model"
	"go.lsp.dev/jsonrpc2"
)

// SessionToModel maps a Session entity to its model equivalent.
func SessionToModel(s *entity.Session) *model.Session {
	return &model.Session{
		UUID:       s.UUID,
		Connection: s.Connection,
		Driver:     s.Driver,
		StartedAt:  s.StartedAt,
		Lifecycle:  s.Lifecycle,
	}
}

// ModelToSession maps a model Session to its entity equivalent.
func ModelToSession(m *model.Session) (*entity.Session, error) {
	return &entity.Session{
		UUID:       m.UUID,
		Connection: m.Connection,
		Driver:     m.Driver,
		StartedAt:  m.StartedAt,
		Lifecycle:  m.Lifecycle,
	}, nil
}

// SessionToInfo describes a Session for clients.
func SessionToInfo(s *entity.Session) *entity.SessionInfo {
	info := &entity.SessionInfo{
		ID:        s.UUID,
		Driver:    s.Driver,
		StartedAt: s.StartedAt,
	}
	if s.Lifecycle == nil {
		return info
	}

	info.State = s.Lifecycle.State().String()
	info.Pid = s.Lifecycle.Pid()
	if addr, ok := s.Lifecycle.Address(); ok {
		info.Address = addr.String()
	}
	if ws := s.Lifecycle.Session(); ws != nil {
		info.SessionID = ws.ID
		info.Variant = ws.Variant
		info.Capabilities = ws.Capabilities
	}
	return info
}

// RequestToStartSessionParams maps the parameters of a wdbridge/startSession request.
func RequestToStartSessionParams(req jsonrpc2.Request) (*entity.StartSessionParams, error) {
	params := entity.StartSessionParams{}
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	if params.Driver == "" {
		return nil, errors.NoDriverOnWireError
	}
	return &params, nil
}

// RequestToExecuteParams maps the parameters of a wdbridge/execute request.
func RequestToExecuteParams(req jsonrpc2.Request) (*entity.ExecuteParams, error) {
	params := entity.ExecuteParams{}
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	if params.ID == uuid.Nil {
		return nil, errors.NoUUIDOnWireError
	}
	if params.Command == "" {
		return nil, errors.NoCommandOnWireError
	}
	return &params, nil
}

// RequestToStopSessionParams maps the parameters of a wdbridge/stopSession request.
func RequestToStopSessionParams(req jsonrpc2.Request) (*entity.StopSessionParams, error) {
	params := entity.StopSessionParams{}
	if err := unmarshalParams(req, &params); err != nil {
		return nil, err
	}
	if params.ID == uuid.Nil {
		return nil, errors.NoUUIDOnWireError
	}
	return &params, nil
}

// ContextToConnectionUUID extracts the connection UUID from a context.
func ContextToConnectionUUID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(entity.ConnectionContextKey).(uuid.UUID)
	return id, ok
}

func unmarshalParams(req jsonrpc2.Request, v interface{}) error {
	raw := req.Params()
	if len(raw) == 0 {
		return &errors.InvalidParamsError{Method: req.Method(), Err: errors.New("params are required")}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &errors.InvalidParamsError{Method: req.Method(), Err: err}
	}
	return nil
}

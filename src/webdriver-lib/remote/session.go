package remote

import (
	"context"
	"encoding/json"

	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/model"
)

// NewSessionParams builds the new session payload understood by both dialects.
func NewSessionParams(caps model.Capabilities) map[string]interface{} {
	if caps == nil {
		caps = model.Capabilities{}
	}
	return map[string]interface{}{
		"capabilities":        map[string]interface{}{"alwaysMatch": caps},
		"desiredCapabilities": caps,
	}
}

// NewSession creates a session with caps requested in both dialects.
func (d *Dispatcher) NewSession(ctx context.Context, caps model.Capabilities) (*model.Session, error) {
	return d.CreateSession(ctx, NewSessionParams(caps))
}

// CreateSession sends the new session command with a caller supplied payload and reports
// the dialect the driver answered in. W3C drivers reply with value.sessionId, legacy
// drivers with a top level sessionId.
func (d *Dispatcher) CreateSession(ctx context.Context, params map[string]interface{}) (*model.Session, error) {
	resp, err := d.Do(ctx, "", command.NewSession, params)
	if err != nil {
		return nil, err
	}

	var w3c struct {
		SessionID    string             `json:"sessionId"`
		Capabilities model.Capabilities `json:"capabilities"`
	}
	session := &model.Session{Address: d.address}
	if err := json.Unmarshal(resp.Value, &w3c); err == nil && w3c.SessionID != "" {
		session.ID = w3c.SessionID
		session.Capabilities = w3c.Capabilities
		session.Variant = string(command.W3C)
	} else if resp.SessionID != "" {
		var legacyCaps model.Capabilities
		_ = json.Unmarshal(resp.Value, &legacyCaps)
		session.ID = resp.SessionID
		session.Capabilities = legacyCaps
		session.Variant = string(command.Legacy)
	} else {
		return nil, &errors.RemoteCommandError{
			Code:       errors.CodeSessionNotCreated,
			Message:    "reply did not contain a session id",
			HTTPStatus: resp.HTTPStatus,
		}
	}

	if d.variant != command.Auto {
		session.Variant = string(d.variant)
	}
	return session, nil
}

package bridge

import (
	"context"

	"github.com/uber/webdriver-bridge/src/wdbridge/mapper"
	"go.lsp.dev/jsonrpc2"
)

// StartSession launches a driver and opens a session on it for this connection.
func (r *jsonRPCRouter) StartSession(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToStartSessionParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	result, err := r.bridge.StartSession(ctx, params)
	if err != nil {
		return reply(ctx, nil, err)
	}

	return reply(ctx, result, nil)
}

// Execute relays one command to a session's driver and answers with the command value.
func (r *jsonRPCRouter) Execute(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToExecuteParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	result, err := r.bridge.Execute(ctx, params)
	if err != nil {
		return reply(ctx, nil, err)
	}

	return reply(ctx, result, nil)
}

// StopSession ends a session and stops its driver.
func (r *jsonRPCRouter) StopSession(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	params, err := mapper.RequestToStopSessionParams(req)
	if err != nil {
		return reply(ctx, nil, err)
	}

	err = r.bridge.StopSession(ctx, params)
	return reply(ctx, nil, err)
}

func (r *jsonRPCRouter) Sessions(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	result, err := r.bridge.Sessions(ctx)
	if err != nil {
		return reply(ctx, nil, err)
	}
	return reply(ctx, result, nil)
}

func (r *jsonRPCRouter) Drivers(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	result, err := r.bridge.Drivers(ctx)
	if err != nil {
		return reply(ctx, nil, err)
	}
	return reply(ctx, result, nil)
}

// Shutdown stops the daemon along with every open session.
func (r *jsonRPCRouter) Shutdown(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	// Reply first to ensure that a reply is sent before the controller initiates the shutdown.
	if err := reply(ctx, nil, nil); err != nil {
		return err
	}
	return r.bridge.Shutdown(ctx)
}

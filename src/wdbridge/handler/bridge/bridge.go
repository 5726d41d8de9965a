// Package bridge exposes the bridge controller over JSON-RPC.
package bridge

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	controller "github.com/uber/webdriver-bridge/src/wdbridge/controller/bridge"
	"github.com/uber/webdriver-bridge/src/wdbridge/entity"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/jsonrpcfx"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// Handler accepts JSON-RPC connections on behalf of the bridge.
type Handler interface {
	jsonrpcfx.ConnectionManager
}

type jsonRPCConnectionManager struct {
	ctrl   controller.Controller
	logger *zap.SugaredLogger
	stats  tally.Scope
}

// New constructs a new bridge Handler and registers it with the JSON-RPC module.
func New(ctrl controller.Controller, jsonrpcmod jsonrpcfx.JSONRPCModule, logger *zap.SugaredLogger, stats tally.Scope) (Handler, error) {
	c := &jsonRPCConnectionManager{
		ctrl:   ctrl,
		logger: logger,
		stats:  stats.SubScope("json_rpc"),
	}
	if err := jsonrpcmod.RegisterConnectionManager(c); err != nil {
		return nil, err
	}
	return c, nil
}

// NewConnection will store a new connection and return a router that includes its UUID.
func (c *jsonRPCConnectionManager) NewConnection(ctx context.Context, conn *jsonrpc2.Conn) (router jsonrpcfx.Router, err error) {
	id, err := c.ctrl.InitConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("error while creating new connection: %w", err)
	}

	r := jsonRPCRouter{
		bridge: c.ctrl,
		uuid:   id,
		logger: c.logger,
		stats:  c.stats,
	}

	return &r, nil
}

// RemoveConnection cleans up a closed connection, stopping the sessions it left open.
func (c *jsonRPCConnectionManager) RemoveConnection(ctx context.Context, id uuid.UUID) {
	ctx = context.WithValue(ctx, entity.ConnectionContextKey, id)
	if err := c.ctrl.EndConnection(ctx, id); err != nil {
		c.logger.Warnw("failed to clean up connection", "connection", id.String(), "error", err)
	}
}

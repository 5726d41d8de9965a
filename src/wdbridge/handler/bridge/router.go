package bridge

import (
	"context"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	controller "github.com/uber/webdriver-bridge/src/wdbridge/controller/bridge"
	"github.com/uber/webdriver-bridge/src/wdbridge/entity"
	"github.com/uber/webdriver-bridge/src/wdbridge/mapper"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/zap"
)

// JSON-RPC methods served by the bridge.
const (
	MethodStartSession = "wdbridge/startSession"
	MethodExecute      = "wdbridge/execute"
	MethodStopSession  = "wdbridge/stopSession"
	MethodSessions     = "wdbridge/sessions"
	MethodDrivers      = "wdbridge/drivers"
	MethodShutdown     = "wdbridge/shutdown"
)

type jsonRPCRouter struct {
	bridge controller.Controller
	uuid   uuid.UUID
	logger *zap.SugaredLogger
	stats  tally.Scope
}

// HandleReq handles routing for a single request.
func (r *jsonRPCRouter) HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	ctx = context.WithValue(ctx, entity.ConnectionContextKey, r.uuid)
	if r.stats != nil {
		r.stats.Tagged(map[string]string{"method": req.Method()}).Counter("requests").Inc(1)
	}

	switch req.Method() {
	case MethodStartSession:
		return r.StartSession(ctx, r.replier(reply, req), req)

	case MethodExecute:
		return r.Execute(ctx, r.replier(reply, req), req)

	case MethodStopSession:
		return r.StopSession(ctx, r.replier(reply, req), req)

	case MethodSessions:
		return r.Sessions(ctx, r.replier(reply, req), req)

	case MethodDrivers:
		return r.Drivers(ctx, r.replier(reply, req), req)

	case MethodShutdown:
		return r.Shutdown(ctx, r.replier(reply, req), req)

	default:
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
}

// UUID returns the id of the connection served by this router.
func (r *jsonRPCRouter) UUID() uuid.UUID {
	return r.uuid
}

// replier converts errors into JSON-RPC errors before they reach the client.
func (r *jsonRPCRouter) replier(reply jsonrpc2.Replier, req jsonrpc2.Request) jsonrpc2.Replier {
	return func(ctx context.Context, result interface{}, err error) error {
		if err != nil {
			if r.logger != nil {
				r.logger.Debugw("request failed", "method", req.Method(), "connection", r.uuid.String(), "error", err)
			}
			return reply(ctx, nil, mapper.ToJSONRPCError(err))
		}
		return reply(ctx, result, nil)
	}
}

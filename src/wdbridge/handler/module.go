package handler

import (
	controller "github.com/uber/webdriver-bridge/src/wdbridge/controller"
	"github.com/uber/webdriver-bridge/src/wdbridge/controller/bridge"
	handler "github.com/uber/webdriver-bridge/src/wdbridge/handler/bridge"
	"github.com/uber/webdriver-bridge/src/wdbridge/repository/session"
	"go.uber.org/fx"
)

// Module provides the bridge JSON-RPC server into an Fx application.
var Module = fx.Options(
	controller.Module,
	fx.Provide(session.New),
	fx.Provide(handler.New),
	fx.Invoke(func(h handler.Handler) {}),
	fx.Invoke(func(c bridge.Controller) {}),
)

package controller

import (
	"github.com/uber/webdriver-bridge/src/wdbridge/controller/bridge"
	"go.uber.org/fx"
)

// Module provides the controllers of the daemon.
var Module = fx.Options(
	fx.Provide(bridge.New),
)

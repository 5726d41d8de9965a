// Package app assembles the wdbridge daemon.
package app

import (
	"context"
	"time"

	tally "github.com/uber-go/tally/v4"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/process"
	"github.com/uber/webdriver-bridge/src/wdbridge/handler"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/core"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/fs"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/jsonrpcfx"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/serverinfofile"
	"go.uber.org/fx"
)

// Module defines the wdbridge application module.
var Module = fx.Options(
	handler.Module, // inbounds
	jsonrpcfx.Module,
	fs.Module,
	process.Module,
	serverinfofile.Module,
	core.ConfigModule,
	core.LoggerModule,
	fx.Provide(newRootScope),
	fx.Decorate(decorateEnvContext),
	fx.Decorate(decorateConfigProvider),
	fx.Provide(func() Context {
		return Context{
			Environment:        EnvLocal,
			RuntimeEnvironment: EnvLocal,
		}
	}),
)

func newRootScope(lc fx.Lifecycle) tally.Scope {
	rs, closer := tally.NewRootScope(tally.ScopeOptions{
		Tags: map[string]string{
			"service": "wdbridge",
		},
	}, 1*time.Second)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closer.Close()
		},
	})

	return rs
}

// Command wdbridge runs the WebDriver bridge daemon.
package main

import (
	"github.com/uber/webdriver-bridge/src/wdbridge/app"
	"go.uber.org/fx"
)

func opts() fx.Option {
	return fx.Options(
		app.Module,
	)
}

func main() {
	fx.New(opts()).Run()
}

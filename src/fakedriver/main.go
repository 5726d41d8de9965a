// Command fakedriver serves an in-memory WebDriver endpoint that accepts the same
// --port flag as real drivers. It is used to exercise the bridge without a browser.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/uber/webdriver-bridge/src/webdriver-lib/testdriver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := testdriver.Run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

package testdriver

import (
	"context"
	stderr "errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
)

// Run parses driver style flags from args and serves a fake driver until ctx is done.
func Run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("fakedriver", flag.ContinueOnError)
	flags.SetOutput(stdout)
	port := flags.Int("port", 9515, "port to listen on")
	host := flags.String("host", "127.0.0.1", "address to listen on")
	variant := flags.String("variant", string(command.W3C), "reply dialect: w3c or legacy")
	basePath := flags.String("base-path", "", "path prefix of every route")
	readyAfter := flags.Int("ready-after", 0, "number of status calls answered with 503 first")
	sessionID := flags.String("session-id", "", "id of the first session created")
	if err := flags.Parse(args); err != nil {
		return err
	}

	v, err := command.ParseVariant(*variant)
	if err != nil {
		return err
	}
	opts := []Option{WithVariant(v), WithBasePath(*basePath), WithReadyAfter(*readyAfter)}
	if *sessionID != "" {
		opts = append(opts, WithSessionIDs(*sessionID))
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(*host, strconv.Itoa(*port)))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           New(opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}
	fmt.Fprintf(stdout, "fake driver (%s) listening on %s\n", v, ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderr.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

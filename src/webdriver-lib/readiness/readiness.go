// Package readiness waits for a freshly started driver to accept HTTP connections.
package readiness

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/uber/webdriver-bridge/src/webdriver-lib/clock"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/model"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the pause between two probes.
	DefaultInterval = 25 * time.Millisecond
	// DefaultTimeout bounds the whole wait when the caller passes no timeout.
	DefaultTimeout = 20 * time.Second
	// DefaultAttemptTimeout bounds a single probe request.
	DefaultAttemptTimeout = time.Second

	_statusPath = "/status"
)

// Prober polls a driver's status endpoint.
type Prober interface {
	// WaitUntilReady returns nil once GET <address>/status answers with a 2xx status.
	// It fails with a ProcessDiedError if exited is closed first, and with a
	// ReadinessTimeoutError once timeout elapses. The process is never killed here.
	WaitUntilReady(ctx context.Context, address model.ServiceAddress, timeout time.Duration, exited <-chan struct{}) error
}

type prober struct {
	logger         *zap.SugaredLogger
	clock          clock.Clock
	client         *http.Client
	interval       time.Duration
	attemptTimeout time.Duration
}

// Option defines options to customize the prober
type Option func(*prober)

// WithLogger overrides the default noop logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(p *prober) {
		p.logger = logger
	}
}

// WithClock overrides the wall clock used between attempts
func WithClock(c clock.Clock) Option {
	return func(p *prober) {
		p.clock = c
	}
}

// WithHTTPClient overrides the client used for probes
func WithHTTPClient(client *http.Client) Option {
	return func(p *prober) {
		p.client = client
	}
}

// WithInterval sets the pause between probes
func WithInterval(interval time.Duration) Option {
	return func(p *prober) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithAttemptTimeout bounds each probe request
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(p *prober) {
		if timeout > 0 {
			p.attemptTimeout = timeout
		}
	}
}

// New creates a Prober.
func New(opts ...Option) Prober {
	p := &prober{
		logger:         zap.NewNop().Sugar(),
		clock:          clock.New(),
		client:         newClient(),
		interval:       DefaultInterval,
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *prober) WaitUntilReady(ctx context.Context, address model.ServiceAddress, timeout time.Duration, exited <-chan struct{}) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	url := address.URL(_statusPath)
	deadline := p.clock.After(timeout)
	expired := make(chan struct{})

	// Cancel an in-flight request as soon as the process is gone or the deadline passes.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-exited:
			cancel()
		case <-deadline:
			close(expired)
			cancel()
		case <-ctx.Done():
		}
	}()

	attempts := 0
	for {
		if closed(exited) {
			return &errors.ProcessDiedError{ExitCode: -1, Phase: errors.PhaseStartup}
		}

		attempts++
		if p.probe(ctx, url) {
			p.logger.Debugw("driver ready", "url", url, "attempts", attempts)
			return nil
		}

		select {
		case <-exited:
			return &errors.ProcessDiedError{ExitCode: -1, Phase: errors.PhaseStartup}
		case <-expired:
			return &errors.ReadinessTimeoutError{URL: url, Timeout: timeout, Attempts: attempts}
		case <-ctx.Done():
			if closed(exited) {
				return &errors.ProcessDiedError{ExitCode: -1, Phase: errors.PhaseStartup}
			}
			if closed(expired) {
				return &errors.ReadinessTimeoutError{URL: url, Timeout: timeout, Attempts: attempts}
			}
			return ctx.Err()
		case <-p.clock.After(p.interval):
		}
	}
}

func (p *prober) probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Probes do not keep idle connections to a driver that may never come up.
func newClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true
	return &http.Client{Transport: transport}
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

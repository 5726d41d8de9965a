// Package service runs one driver process and one remote session through their lifecycle.
package service

import (
	"context"
	"encoding/json"
	stderr "errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/phayes/freeport"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/model"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/process"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/readiness"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/remote"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Lifecycle owns a driver process, its address and at most one session.
// Calls are serialized: a command runs to completion before the next one starts.
type Lifecycle struct {
	params   Params
	launcher process.Launcher
	prober   readiness.Prober
	logger   *zap.SugaredLogger
	stats    tally.Scope
	freePort func() (int, error)

	mu         sync.Mutex
	state      State
	err        error
	proc       process.Process
	address    model.ServiceAddress
	dispatcher *remote.Dispatcher
	session    *model.Session
}

// Option defines options to customize the Lifecycle
type Option func(*Lifecycle)

// WithLauncher overrides the os/exec launcher
func WithLauncher(l process.Launcher) Option {
	return func(lc *Lifecycle) {
		lc.launcher = l
	}
}

// WithProber overrides the HTTP readiness prober
func WithProber(p readiness.Prober) Option {
	return func(lc *Lifecycle) {
		lc.prober = p
	}
}

// WithLogger overrides the default noop logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(lc *Lifecycle) {
		lc.logger = logger
	}
}

// WithStats overrides the default noop metrics scope
func WithStats(stats tally.Scope) Option {
	return func(lc *Lifecycle) {
		lc.stats = stats
	}
}

// WithFreePort overrides how a port is picked when Params.Port is zero
func WithFreePort(f func() (int, error)) Option {
	return func(lc *Lifecycle) {
		lc.freePort = f
	}
}

// New creates a Lifecycle in the NotStarted state. Nothing is launched until Start.
func New(params Params, opts ...Option) *Lifecycle {
	lc := &Lifecycle{
		params:   params.withDefaults(),
		logger:   zap.NewNop().Sugar(),
		stats:    tally.NoopScope,
		freePort: freeport.GetFreePort,
	}
	for _, opt := range opts {
		opt(lc)
	}
	if lc.launcher == nil {
		lc.launcher = process.NewLauncher(process.WithLogger(lc.logger))
	}
	if lc.prober == nil {
		lc.prober = readiness.New(readiness.WithLogger(lc.logger), readiness.WithInterval(lc.params.PollInterval))
	}
	return lc
}

// Open starts the driver and creates a session. The driver is stopped again if either step fails.
func Open(ctx context.Context, params Params, caps model.Capabilities, opts ...Option) (*Lifecycle, error) {
	lc := New(params, opts...)
	if err := lc.Start(ctx); err != nil {
		return nil, multierr.Append(err, lc.Stop(ctx))
	}
	if _, err := lc.NewSession(ctx, caps); err != nil {
		return nil, multierr.Append(err, lc.Stop(ctx))
	}
	return lc, nil
}

// State returns the current state. An unexpected process exit is reported as Failed.
func (lc *Lifecycle) State() State {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.checkProcess()
	return lc.state
}

// Err returns the error that moved the lifecycle to Failed.
func (lc *Lifecycle) Err() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.err
}

// Address returns the driver address; ok is false until the driver accepted connections.
func (lc *Lifecycle) Address() (_ model.ServiceAddress, ok bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.address, !lc.address.IsZero()
}

// Session returns a copy of the active session, or nil.
func (lc *Lifecycle) Session() *model.Session {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if !lc.session.Active() {
		return nil
	}
	s := *lc.session
	return &s
}

// Pid returns the driver process id, or zero before the process was launched.
func (lc *Lifecycle) Pid() int {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.proc == nil {
		return 0
	}
	return lc.proc.Pid()
}

// Start launches the driver and waits for it to accept connections.
func (lc *Lifecycle) Start(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if lc.state != NotStarted {
		if lc.state.Terminal() {
			return errors.ErrSessionEnded
		}
		return fmt.Errorf("driver service already %s", lc.state)
	}
	lc.state = Starting

	if err := lc.start(ctx); err != nil {
		lc.fail(err)
		lc.stats.Counter("start.failure").Inc(1)
		return err
	}
	lc.state = Ready
	lc.stats.Counter("start.success").Inc(1)
	return nil
}

func (lc *Lifecycle) start(ctx context.Context) error {
	port := lc.params.Port
	if port == 0 {
		var err error
		if port, err = lc.freePort(); err != nil {
			return &errors.LaunchError{Path: lc.params.Executable, Err: fmt.Errorf("picking a free port: %w", err)}
		}
	}

	proc, err := lc.launcher.Start(ctx, lc.params.processOptions(fmt.Sprintf(lc.params.PortFlag, port)))
	if err != nil {
		return err
	}
	lc.proc = proc

	address := model.NewServiceAddress(lc.params.Host, port, lc.params.BasePath)
	if err := lc.prober.WaitUntilReady(ctx, address, lc.params.StartTimeout, proc.Done()); err != nil {
		var died *errors.ProcessDiedError
		if stderr.As(err, &died) {
			<-proc.Done()
			died.Pid = proc.Pid()
			died.ExitCode = proc.ExitCode()
		}
		// The prober leaves the process running.
		if killErr := lc.kill(); killErr != nil {
			lc.logger.Warnw("failed to kill driver after unsuccessful start", "pid", proc.Pid(), "error", killErr)
		}
		return err
	}

	lc.address = address
	lc.dispatcher = remote.New(address,
		remote.WithTable(lc.params.Table),
		remote.WithVariant(lc.params.Variant),
		remote.WithCommandTimeout(lc.params.CommandTimeout),
		remote.WithLogger(lc.logger),
		remote.WithStats(lc.stats),
	)
	lc.logger.Infow("driver ready", "executable", lc.params.Executable, "pid", proc.Pid(), "address", address.String())
	return nil
}

// NewSession creates the remote session. When the variant is Auto, the dialect of the reply
// selects the command table used from then on.
func (lc *Lifecycle) NewSession(ctx context.Context, caps model.Capabilities) (*model.Session, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if err := lc.ready(); err != nil {
		return nil, err
	}
	session, err := lc.createSession(ctx, remote.NewSessionParams(caps))
	if err != nil {
		return nil, err
	}
	s := *session
	return &s, nil
}

// Execute sends one command for the active session. Only status and newSession are
// accepted without a session. If the driver process exits while the command is in flight
// the command fails at once with a ProcessDiedError.
func (lc *Lifecycle) Execute(ctx context.Context, name command.Name, params map[string]interface{}) (json.RawMessage, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if err := lc.ready(); err != nil {
		return nil, err
	}

	if name == command.NewSession {
		session, err := lc.createSession(ctx, params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]interface{}{
			"sessionId":    session.ID,
			"capabilities": session.Capabilities,
		})
	}

	sessionID := ""
	if name != command.Status {
		if !lc.session.Active() {
			return nil, errors.ErrNoSession
		}
		sessionID = lc.session.ID
	}

	ctx, cancel := lc.watchProcess(ctx)
	defer cancel()

	value, err := lc.dispatcher.Execute(ctx, sessionID, name, params)
	if err != nil {
		if lc.checkProcess() {
			return nil, lc.err
		}
		return nil, err
	}
	if name == command.DeleteSession {
		lc.session = nil
	}
	return value, nil
}

// Stop deletes the active session, interrupts the driver and kills it if it is still
// running after the kill grace period. Stop may be called in any state and more than once.
func (lc *Lifecycle) Stop(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	switch lc.state {
	case Ended:
		return nil
	case NotStarted:
		lc.state = Ended
		return nil
	case Failed:
		return lc.kill()
	}

	lc.state = Ending
	lc.stats.Counter("stop").Inc(1)
	if lc.session.Active() && lc.proc != nil && !lc.proc.Exited() {
		watched, cancel := lc.watchProcess(ctx)
		if _, err := lc.dispatcher.Execute(watched, lc.session.ID, command.DeleteSession, nil); err != nil {
			lc.logger.Warnw("failed to delete session", "session", lc.session.ID, "error", err)
		}
		cancel()
	}
	lc.session = nil

	err := lc.terminate()
	lc.state = Ended
	lc.logger.Infow("driver stopped", "executable", lc.params.Executable, "address", lc.address.String())
	return err
}

func (lc *Lifecycle) createSession(ctx context.Context, params map[string]interface{}) (*model.Session, error) {
	if lc.session.Active() {
		return nil, errors.ErrSessionActive
	}

	ctx, cancel := lc.watchProcess(ctx)
	defer cancel()

	session, err := lc.dispatcher.CreateSession(ctx, params)
	if err != nil {
		if lc.checkProcess() {
			return nil, lc.err
		}
		return nil, err
	}
	if lc.dispatcher.Variant() == command.Auto {
		lc.dispatcher = lc.dispatcher.WithVariant(command.Variant(session.Variant))
	}
	lc.session = session
	lc.logger.Infow("session created", "session", session.ID, "variant", session.Variant)
	return session, nil
}

// ready checks the preconditions shared by every command.
func (lc *Lifecycle) ready() error {
	lc.checkProcess()
	switch lc.state {
	case Ready:
		return nil
	case Ended:
		return errors.ErrSessionEnded
	case Failed:
		var died *errors.ProcessDiedError
		if stderr.As(lc.err, &died) && died.Phase == errors.PhaseSession {
			return lc.err
		}
		return fmt.Errorf("%w: %v", errors.ErrNotReady, lc.err)
	default:
		return errors.ErrNotReady
	}
}

// checkProcess moves a Ready lifecycle whose process exited to Failed and reports whether it did.
func (lc *Lifecycle) checkProcess() bool {
	if lc.state != Ready || lc.proc == nil || !lc.proc.Exited() {
		return false
	}
	lc.fail(&errors.ProcessDiedError{Pid: lc.proc.Pid(), ExitCode: lc.proc.ExitCode(), Phase: errors.PhaseSession})
	lc.session = nil
	lc.stats.Counter("process.died").Inc(1)
	lc.logger.Warnw("driver exited unexpectedly", "pid", lc.proc.Pid(), "exitCode", lc.proc.ExitCode())
	return true
}

func (lc *Lifecycle) fail(err error) {
	lc.state = Failed
	lc.err = err
}

// watchProcess derives a context that is cancelled when the driver process exits.
func (lc *Lifecycle) watchProcess(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	done := lc.proc.Done()
	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// terminate interrupts the process, escalating to a kill after the grace period.
func (lc *Lifecycle) terminate() error {
	if lc.proc == nil || lc.proc.Exited() {
		return nil
	}
	if err := lc.proc.Kill(os.Interrupt); err != nil {
		lc.logger.Debugw("interrupt failed, killing driver", "pid", lc.proc.Pid(), "error", err)
		return lc.kill()
	}
	select {
	case <-lc.proc.Done():
		return nil
	case <-time.After(lc.params.KillGrace):
	}
	return lc.kill()
}

// kill sends SIGKILL and waits for the process to be reaped.
func (lc *Lifecycle) kill() error {
	if lc.proc == nil || lc.proc.Exited() {
		return nil
	}
	if err := lc.proc.Kill(os.Kill); err != nil {
		return fmt.Errorf("killing driver process %d: %w", lc.proc.Pid(), err)
	}
	select {
	case <-lc.proc.Done():
		return nil
	case <-time.After(lc.params.KillGrace):
		return fmt.Errorf("driver process %d did not exit after kill", lc.proc.Pid())
	}
}

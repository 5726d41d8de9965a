// Package bridge implements the wdbridge business logic: it launches drivers for clients and relays their commands.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/process"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/readiness"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/service"
	"github.com/uber/webdriver-bridge/src/wdbridge/entity"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/errors"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/fs"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/logfilewriter"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/serverinfofile"
	"github.com/uber/webdriver-bridge/src/wdbridge/mapper"
	"github.com/uber/webdriver-bridge/src/wdbridge/repository/session"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Metric names
	_sessionStarted     = "session.started"
	_sessionStartFailed = "session.start_failed"
	_sessionStopped     = "session.stopped"
	_commandExecuted    = "command.executed"
	_commandFailed      = "command.failed"
	_connections        = "connections"
)

// Controller orchestrates the business logic for each request.
type Controller interface {
	// InitConnection registers a new client connection.
	InitConnection(ctx context.Context, conn *jsonrpc2.Conn) (uuid.UUID, error)
	// EndConnection stops every session the connection left open.
	EndConnection(ctx context.Context, id uuid.UUID) error

	// StartSession launches the requested driver and creates a session on it for the connection in ctx.
	StartSession(ctx context.Context, params *entity.StartSessionParams) (*entity.SessionInfo, error)
	Execute(ctx context.Context, params *entity.ExecuteParams) (json.RawMessage, error)
	StopSession(ctx context.Context, params *entity.StopSessionParams) error
	Sessions(ctx context.Context) ([]*entity.SessionInfo, error)
	// Drivers returns the configured driver names, sorted.
	Drivers(ctx context.Context) ([]string, error)

	// Shutdown asks the application to stop. Open sessions are stopped on the way out.
	Shutdown(ctx context.Context) error
}

// Params are inbound parameters to initialize a new controller.
type Params struct {
	fx.In

	Config         config.Provider
	Logger         *zap.SugaredLogger
	Stats          tally.Scope
	Sessions       session.Repository
	Launcher       process.Launcher
	Lifecycle      fx.Lifecycle
	Shutdowner     fx.Shutdowner
	FS             fs.BridgeFS
	ServerInfoFile serverinfofile.ServerInfoFile
}

// driver is a configured driver kind, resolved once at startup.
type driver struct {
	config  entity.DriverConfig
	variant command.Variant
	stdio   process.Stdio
	output  io.Writer
}

type controller struct {
	bridge     entity.BridgeConfig
	drivers    map[string]*driver
	table      *command.Table
	sessions   session.Repository
	launcher   process.Launcher
	prober     readiness.Prober
	shutdowner fx.Shutdowner
	logger     *zap.SugaredLogger
	stats      tally.Scope

	mu          sync.Mutex
	closing     bool
	starting    sync.WaitGroup
	connections map[uuid.UUID]struct{}
}

// New constructs a new top-level controller for the service.
func New(p Params) (Controller, error) {
	var bridgeConfig entity.BridgeConfig
	if err := p.Config.Get(entity.BridgeConfigKey).Populate(&bridgeConfig); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", entity.BridgeConfigKey, err)
	}

	var driverConfigs map[string]entity.DriverConfig
	if err := p.Config.Get(entity.DriversConfigKey).Populate(&driverConfigs); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", entity.DriversConfigKey, err)
	}
	if len(driverConfigs) == 0 {
		return nil, fmt.Errorf("missing field %q in config", entity.DriversConfigKey)
	}

	table, err := loadCommandTable(p.Config, p.FS)
	if err != nil {
		return nil, err
	}

	c := &controller{
		bridge:      bridgeConfig,
		drivers:     make(map[string]*driver, len(driverConfigs)),
		table:       table,
		sessions:    p.Sessions,
		launcher:    p.Launcher,
		shutdowner:  p.Shutdowner,
		logger:      p.Logger,
		stats:       p.Stats,
		connections: make(map[uuid.UUID]struct{}),
		prober: readiness.New(
			readiness.WithLogger(p.Logger),
			readiness.WithInterval(bridgeConfig.PollInterval),
		),
	}

	for _, name := range sortedKeys(driverConfigs) {
		d, err := newDriver(name, driverConfigs[name])
		if err != nil {
			return nil, err
		}
		if d.config.CaptureOutput {
			d.output, err = logfilewriter.SetupOutputWriter(logfilewriter.Params{
				FS:             p.FS,
				Lifecycle:      p.Lifecycle,
				ServerInfoFile: p.ServerInfoFile,
			}, name)
			if err != nil {
				return nil, fmt.Errorf("setting up output for driver %q: %w", name, err)
			}
		}
		c.drivers[name] = d
	}

	// Appended after the output writers so sessions are stopped before their output is closed.
	p.Lifecycle.Append(fx.Hook{
		OnStop: c.onStop,
	})

	return c, nil
}

func newDriver(name string, cfg entity.DriverConfig) (*driver, error) {
	if cfg.Executable == "" {
		return nil, fmt.Errorf("driver %q: executable is required", name)
	}
	variant, err := command.ParseVariant(cfg.Variant)
	if err != nil {
		return nil, fmt.Errorf("driver %q: %w", name, err)
	}

	d := &driver{config: cfg, variant: variant}
	switch {
	case cfg.CaptureOutput:
		d.stdio = process.Pipe
	case cfg.Stdio == "" || cfg.Stdio == entity.StdioIgnore:
		d.stdio = process.Ignore
	case cfg.Stdio == entity.StdioInherit:
		d.stdio = process.Inherit
	default:
		return nil, fmt.Errorf("driver %q: unknown stdio policy %q", name, cfg.Stdio)
	}
	return d, nil
}

// loadCommandTable returns the built-in table with the configured overrides file applied.
func loadCommandTable(cfg config.Provider, bridgeFS fs.BridgeFS) (*command.Table, error) {
	var path string
	if err := cfg.Get(entity.OverridesFileConfigKey).Populate(&path); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", entity.OverridesFileConfigKey, err)
	}
	if path == "" {
		return command.Default(), nil
	}

	exists, err := bridgeFS.FileExists(path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("command overrides file %q does not exist", path)
	}

	f, err := bridgeFS.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	overrides, err := command.LoadOverrides(f)
	if err != nil {
		return nil, fmt.Errorf("loading command overrides from %q: %w", path, err)
	}
	return overrides.Apply(command.Default()), nil
}

// InitConnection registers a new client connection.
func (c *controller) InitConnection(ctx context.Context, conn *jsonrpc2.Conn) (uuid.UUID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating connection id: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connections[id] = struct{}{}
	c.stats.Gauge(_connections).Update(float64(len(c.connections)))
	return id, nil
}

// EndConnection stops the sessions started on the connection.
func (c *controller) EndConnection(ctx context.Context, id uuid.UUID) error {
	// Orphaned sessions are ended even when the serving context is already cancelled.
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	delete(c.connections, id)
	c.stats.Gauge(_connections).Update(float64(len(c.connections)))
	c.mu.Unlock()

	orphans, err := c.sessions.ListByConnection(ctx, id)
	if err != nil {
		return err
	}
	if len(orphans) > 0 {
		c.logger.Infow("stopping sessions of closed connection", "connection", id.String(), "count", len(orphans))
	}
	return c.stopAll(ctx, orphans)
}

// StartSession launches a driver and creates a session on it.
func (c *controller) StartSession(ctx context.Context, params *entity.StartSessionParams) (*entity.SessionInfo, error) {
	d, ok := c.drivers[params.Driver]
	if !ok {
		return nil, &errors.UnknownDriverError{Name: params.Driver}
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil, errors.ErrShuttingDown
	}
	c.starting.Add(1)
	c.mu.Unlock()
	defer c.starting.Done()

	connection, _ := mapper.ContextToConnectionUUID(ctx)
	logger := c.logger.With("driver", params.Driver)
	stats := c.stats.Tagged(map[string]string{"driver": params.Driver})

	lc, err := service.Open(ctx, c.serviceParams(d, params), params.Capabilities,
		service.WithLauncher(c.launcher),
		service.WithProber(c.prober),
		service.WithLogger(logger),
		service.WithStats(stats.SubScope("driver")),
	)
	if err != nil {
		stats.Counter(_sessionStartFailed).Inc(1)
		return nil, fmt.Errorf("starting %s session: %w", params.Driver, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("creating session id: %w", err), lc.Stop(ctx))
	}
	s := &entity.Session{
		UUID:       id,
		Connection: connection,
		Driver:     params.Driver,
		StartedAt:  time.Now(),
		Lifecycle:  lc,
	}
	if err := c.sessions.Set(ctx, s); err != nil {
		return nil, multierr.Append(err, lc.Stop(ctx))
	}

	stats.Counter(_sessionStarted).Inc(1)
	info := mapper.SessionToInfo(s)
	logger.Infow("session started", "id", id.String(), "session", info.SessionID, "address", info.Address)
	return info, nil
}

func (c *controller) serviceParams(d *driver, req *entity.StartSessionParams) service.Params {
	args := make([]string, 0, len(d.config.Args)+len(req.Args))
	args = append(args, d.config.Args...)
	args = append(args, req.Args...)

	env := make(map[string]string, len(d.config.Env)+len(req.Env))
	for k, v := range d.config.Env {
		env[k] = v
	}
	for k, v := range req.Env {
		env[k] = v
	}

	return service.Params{
		Executable:     d.config.Executable,
		Args:           args,
		Env:            env,
		ClearEnv:       d.config.ClearEnv,
		Dir:            d.config.Dir,
		Stdio:          d.stdio,
		Output:         d.output,
		InstallHint:    d.config.InstallHint,
		Host:           c.bridge.Host,
		Port:           d.config.Port,
		PortFlag:       d.config.PortFlag,
		BasePath:       d.config.BasePath,
		Variant:        d.variant,
		StartTimeout:   d.config.StartTimeout,
		PollInterval:   c.bridge.PollInterval,
		CommandTimeout: c.bridge.CommandTimeout,
		KillGrace:      c.bridge.KillGrace,
		Table:          c.table,
	}
}

// Execute relays a command to the session's driver.
func (c *controller) Execute(ctx context.Context, params *entity.ExecuteParams) (json.RawMessage, error) {
	s, err := c.sessions.Get(ctx, params.ID)
	if err != nil {
		return nil, err
	}

	stats := c.stats.Tagged(map[string]string{"driver": s.Driver, "command": params.Command})
	result, err := s.Lifecycle.Execute(ctx, command.Name(params.Command), params.Params)
	if err != nil {
		stats.Counter(_commandFailed).Inc(1)
		return nil, err
	}
	stats.Counter(_commandExecuted).Inc(1)
	return result, nil
}

// StopSession stops the session's driver and forgets the session.
func (c *controller) StopSession(ctx context.Context, params *entity.StopSessionParams) error {
	s, err := c.sessions.Get(ctx, params.ID)
	if err != nil {
		return err
	}
	return c.stop(ctx, s)
}

// Sessions describes every open session, oldest first.
func (c *controller) Sessions(ctx context.Context) ([]*entity.SessionInfo, error) {
	all, err := c.sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]*entity.SessionInfo, 0, len(all))
	for _, s := range all {
		infos = append(infos, mapper.SessionToInfo(s))
	}
	return infos, nil
}

func (c *controller) Drivers(ctx context.Context) ([]string, error) {
	return sortedKeys(c.drivers), nil
}

func (c *controller) Shutdown(ctx context.Context) error {
	c.logger.Info("shutdown requested")
	return c.shutdowner.Shutdown()
}

func (c *controller) stop(ctx context.Context, s *entity.Session) error {
	err := s.Lifecycle.Stop(ctx)
	if delErr := c.sessions.Delete(ctx, s.UUID); delErr != nil {
		err = multierr.Append(err, delErr)
	}
	c.stats.Tagged(map[string]string{"driver": s.Driver}).Counter(_sessionStopped).Inc(1)
	c.logger.Infow("session stopped", "id", s.UUID.String(), "driver", s.Driver)
	return err
}

func (c *controller) stopAll(ctx context.Context, sessions []*entity.Session) error {
	var g errgroup.Group
	errs := make([]error, len(sessions))
	for i, s := range sessions {
		i, s := i, s
		g.Go(func() error {
			if err := c.stop(ctx, s); err != nil {
				errs[i] = fmt.Errorf("stopping session %s: %w", s.UUID, err)
			}
			return errs[i]
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	return multierr.Combine(errs...)
}

// onStop refuses new sessions, then stops the open ones and any driver left running.
func (c *controller) onStop(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	c.starting.Wait()

	all, err := c.sessions.List(ctx)
	if err != nil {
		return multierr.Append(err, process.KillAll())
	}
	return multierr.Append(c.stopAll(ctx, all), process.KillAll())
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

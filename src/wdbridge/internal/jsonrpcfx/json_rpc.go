// Package jsonrpcfx serves JSON-RPC 2.0 over TCP and hands each connection to a registered ConnectionManager.
package jsonrpcfx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/serverinfofile"
	"go.lsp.dev/jsonrpc2"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_configKeyAddress = "jsonrpc.address"
	_outputKey        = "jsonrpc-address"
)

// Module is an fx module to handle JSON-RPC requests.
var Module = fx.Provide(New)

// JSONRPCModule represents a module to manage JSON-RPC requests.
type JSONRPCModule interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	ServeStream(ctx context.Context, conn jsonrpc2.Conn) error
	RegisterConnectionManager(connectionManager ConnectionManager) error
	// Addr returns the address being served, once started.
	Addr() string
}

// Router serves as the interface through which handling of requests will be implemented.
type Router interface {
	HandleReq(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error
	UUID() uuid.UUID
}

// ConnectionManager will manage each active connection and its corresponding Router throughout the lifecycle of a connection.
type ConnectionManager interface {
	NewConnection(ctx context.Context, conn *jsonrpc2.Conn) (router Router, err error)
	RemoveConnection(ctx context.Context, id uuid.UUID)
}

type module struct {
	Address string `json:"address"`

	connectionMgr  ConnectionManager
	ln             *net.TCPListener
	logger         *zap.SugaredLogger
	serverInfoFile serverinfofile.ServerInfoFile

	cancel  context.CancelFunc
	served  chan struct{}
	streams sync.WaitGroup
	connsMu sync.Mutex
	conns   map[jsonrpc2.Conn]struct{}
}

// Params define values to be used by JsonRpcHandler.
type Params struct {
	fx.In

	Config         config.Provider
	Lifecycle      fx.Lifecycle
	Logger         *zap.SugaredLogger
	ServerInfoFile serverinfofile.ServerInfoFile
}

// New creates a new server to handle JSON-RPC requests on the configured address.
func New(p Params) (JSONRPCModule, error) {
	if p.Lifecycle == nil || p.Config == nil {
		return nil, errors.New("required parameters are missing")
	}

	m := module{
		logger:         p.Logger,
		serverInfoFile: p.ServerInfoFile,
		conns:          make(map[jsonrpc2.Conn]struct{}),
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: m.OnStart,
		OnStop:  m.OnStop,
	})

	return &m, nil
}

// OnStart listens on the configured address, publishes it and begins handling incoming connections.
func (m *module) OnStart(ctx context.Context) error {
	if err := m.setup(); err != nil {
		return err
	}

	if err := m.serverInfoFile.UpdateField(_outputKey, m.Address); err != nil {
		m.ln.Close()
		return err
	}

	serveCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.served = make(chan struct{})
	go m.start(serveCtx)
	return nil
}

// OnStop stops accepting connections and closes the open ones.
func (m *module) OnStop(ctx context.Context) error {
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	m.ln.Close()

	m.connsMu.Lock()
	for conn := range m.conns {
		conn.Close()
	}
	m.connsMu.Unlock()

	done := make(chan struct{})
	go func() {
		<-m.served
		m.streams.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeStream is called when a new connection is initiated. Requests received via the connection will be routed to the handler, and answered via the connection's replier.
func (m *module) ServeStream(ctx context.Context, conn jsonrpc2.Conn) error {
	m.streams.Add(1)
	defer m.streams.Done()

	if m.connectionMgr == nil {
		m.logger.Errorf("cannot serve connection, no connection manager set")
		return errors.New("cannot serve connection, no connection manager set")
	}

	handler, err := m.connectionMgr.NewConnection(ctx, &conn)
	if err != nil {
		return err
	}
	m.track(conn, true)
	defer m.track(conn, false)
	if ctx.Err() != nil {
		conn.Close()
	}

	m.logger.Infow("client connected", zap.Stringer("uuid", handler.UUID()))
	conn.Go(ctx, handler.HandleReq)

	// Block until the connection is closed by either side.
	<-conn.Done()

	m.connectionMgr.RemoveConnection(ctx, handler.UUID())
	m.logger.Infow("client disconnected", zap.Stringer("uuid", handler.UUID()))

	return conn.Err()
}

// RegisterConnectionManager sets the connection manager, which keeps track of current active connections and provides a Router implementation.
func (m *module) RegisterConnectionManager(connectionMgr ConnectionManager) error {
	if m.connectionMgr != nil {
		return errors.New("cannot register a duplicate connection manager")
	}
	m.connectionMgr = connectionMgr
	return nil
}

// Addr returns the address being served.
func (m *module) Addr() string {
	return m.Address
}

func (m *module) track(conn jsonrpc2.Conn, open bool) {
	m.connsMu.Lock()
	defer m.connsMu.Unlock()
	if m.conns == nil {
		m.conns = make(map[jsonrpc2.Conn]struct{})
	}
	if open {
		m.conns[conn] = struct{}{}
	} else {
		delete(m.conns, conn)
	}
}

// setup listens on the configured address. A zero port is replaced by the one assigned.
func (m *module) setup() error {
	if m.Address == "" {
		return errors.New("setup called before address is set")
	}

	addr, err := net.ResolveTCPAddr("tcp", m.Address)
	if err != nil {
		return err
	}

	m.ln, err = net.ListenTCP("tcp", addr)
	if err != nil {
		return err
	}
	m.Address = m.ln.Addr().String()
	return nil
}

func (m *module) start(ctx context.Context) {
	defer close(m.served)

	m.logger.Infow("started JSON-RPC inbound", zap.String("address", m.Address))
	err := jsonrpc2.Serve(ctx, m.ln, m, 0)
	if err != nil && ctx.Err() == nil {
		m.logger.Errorw("JSON-RPC inbound stopped", zap.Error(err))
	}
}

// processConfig will parse the configuration for any values required by this module.
func (m *module) processConfig(cfg config.Provider) error {
	val := cfg.Get(_configKeyAddress)
	if err := val.Populate(&m.Address); err != nil {
		// incorrectly formatted config
		return fmt.Errorf("getting config field %q: %w", _configKeyAddress, err)
	}

	if m.Address == "" {
		// yaml is missing either the key or value
		return fmt.Errorf("missing field %q in config", _configKeyAddress)
	}

	return nil
}

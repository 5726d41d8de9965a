// Package factory builds values for tests.
package factory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	wdmodel "github.com/uber/webdriver-bridge/src/webdriver-lib/model"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/service"
	"go.lsp.dev/jsonrpc2"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// JSONRPCRequest is a user-defined factory for a JSON-RPC request containing the specified method and parameters.
func JSONRPCRequest(method string, params interface{}) jsonrpc2.Request {
	req, _ := jsonrpc2.NewCall(jsonrpc2.NewNumberID(5), method, params)
	return req
}

// DriverSession is a scripted entity.DriverSession.
type DriverSession struct {
	SessionID    string
	Variant      string
	Capabilities wdmodel.Capabilities
	Addr         wdmodel.ServiceAddress
	ProcessID    int
	Current      service.State

	// ExecuteFunc answers Execute. A nil func replies with JSON null.
	ExecuteFunc func(ctx context.Context, name command.Name, params map[string]interface{}) (json.RawMessage, error)
	StopErr     error

	mu       sync.Mutex
	executed []command.Name
	stops    int
}

// Execute records the command and delegates to ExecuteFunc.
func (d *DriverSession) Execute(ctx context.Context, name command.Name, params map[string]interface{}) (json.RawMessage, error) {
	d.mu.Lock()
	d.executed = append(d.executed, name)
	d.mu.Unlock()
	if d.ExecuteFunc == nil {
		return json.RawMessage("null"), nil
	}
	return d.ExecuteFunc(ctx, name, params)
}

// Stop moves the session to Ended and returns StopErr.
func (d *DriverSession) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	d.Current = service.Ended
	return d.StopErr
}

// State returns Current.
func (d *DriverSession) State() service.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Current
}

// Session returns the scripted session, or nil when SessionID is empty.
func (d *DriverSession) Session() *wdmodel.Session {
	if d.SessionID == "" {
		return nil
	}
	return &wdmodel.Session{
		ID:           d.SessionID,
		Address:      d.Addr,
		Capabilities: d.Capabilities,
		Variant:      d.Variant,
	}
}

// Address returns Addr.
func (d *DriverSession) Address() (wdmodel.ServiceAddress, bool) {
	return d.Addr, !d.Addr.IsZero()
}

// Pid returns ProcessID.
func (d *DriverSession) Pid() int {
	return d.ProcessID
}

// Executed returns the commands received so far.
func (d *DriverSession) Executed() []command.Name {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]command.Name(nil), d.executed...)
}

// Stops returns how many times Stop was called.
func (d *DriverSession) Stops() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stops
}

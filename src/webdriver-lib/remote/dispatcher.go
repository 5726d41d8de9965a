// Package remote sends symbolic WebDriver commands to a running driver over HTTP.
package remote

import (
	"bytes"
	"context"
	stderr "errors"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	tally "github.com/uber-go/tally/v4"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/model"
	"go.uber.org/zap"
)

// DefaultCommandTimeout bounds a single command round trip.
const DefaultCommandTimeout = 60 * time.Second

const (
	_logLimit    = 1024
	_contentType = "application/json; charset=utf-8"
)

// Dispatcher resolves commands against a table and sends them to one driver.
// It holds no per-call state and may be shared, but a driver processes the commands
// of a session serially so callers should not interleave calls for the same session.
type Dispatcher struct {
	address model.ServiceAddress
	table   *command.Table
	variant command.Variant
	client  *http.Client
	timeout time.Duration
	logger  *zap.SugaredLogger
	stats   tally.Scope
}

// Option defines options to customize the Dispatcher
type Option func(*Dispatcher)

// WithTable overrides the default command table
func WithTable(table *command.Table) Option {
	return func(d *Dispatcher) {
		d.table = table
	}
}

// WithVariant selects the protocol dialect used for lookups
func WithVariant(v command.Variant) Option {
	return func(d *Dispatcher) {
		d.variant = v
	}
}

// WithHTTPClient overrides the client used for commands
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = client
	}
}

// WithCommandTimeout bounds every command round trip
func WithCommandTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger overrides the default noop logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithStats reports per command metrics under the "command" sub scope
func WithStats(stats tally.Scope) Option {
	return func(d *Dispatcher) {
		d.stats = stats.SubScope("command")
	}
}

// New creates a Dispatcher for the driver at address.
func New(address model.ServiceAddress, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		address: address,
		table:   command.Default(),
		variant: command.Auto,
		client:  &http.Client{},
		timeout: DefaultCommandTimeout,
		logger:  zap.NewNop().Sugar(),
		stats:   tally.NoopScope,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WithVariant returns a copy of the dispatcher that looks commands up in another dialect.
func (d *Dispatcher) WithVariant(v command.Variant) *Dispatcher {
	next := *d
	next.variant = v
	return &next
}

// Variant returns the dialect used for lookups.
func (d *Dispatcher) Variant() command.Variant {
	return d.variant
}

// Address returns the driver address.
func (d *Dispatcher) Address() model.ServiceAddress {
	return d.address
}

// Execute sends the command and returns the unwrapped value of the reply.
// sessionID fills the :session_id placeholder; params fill every other placeholder and
// the remainder is sent as the JSON body of POST commands.
func (d *Dispatcher) Execute(ctx context.Context, sessionID string, name command.Name, params map[string]interface{}) (json.RawMessage, error) {
	resp, err := d.Do(ctx, sessionID, name, params)
	if err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// Do is Execute returning the whole decoded reply.
func (d *Dispatcher) Do(ctx context.Context, sessionID string, name command.Name, params map[string]interface{}) (*model.CommandResponse, error) {
	req, err := d.resolve(sessionID, name, params)
	if err != nil {
		return nil, err
	}

	stats := d.stats.Tagged(map[string]string{"command": string(name)})
	sw := stats.Timer("latency").Start()
	resp, err := d.send(ctx, req)
	sw.Stop()
	if err != nil {
		stats.Counter("error").Inc(1)
		return nil, err
	}
	stats.Counter("success").Inc(1)
	return resp, nil
}

func (d *Dispatcher) resolve(sessionID string, name command.Name, params map[string]interface{}) (*model.CommandRequest, error) {
	spec, err := d.table.Lookup(name, d.variant)
	if err != nil {
		return nil, err
	}

	values := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		values[k] = v
	}
	if sessionID != "" {
		values[command.SessionIDParam] = sessionID
	}

	path, rest, err := spec.Resolve(values)
	if err != nil {
		return nil, err
	}
	delete(rest, command.SessionIDParam)

	pathParams := make(map[string]string)
	for _, p := range spec.Placeholders() {
		if v, ok := values[p]; ok {
			pathParams[p] = toString(v)
		}
	}

	req := &model.CommandRequest{
		Name:       string(name),
		Method:     spec.Method,
		URL:        d.address.URL(path),
		PathParams: pathParams,
	}
	if spec.HasBody() {
		req.BodyParams = rest
	}
	return req, nil
}

func (d *Dispatcher) send(ctx context.Context, cr *model.CommandRequest) (*model.CommandResponse, error) {
	var body io.Reader
	var payload []byte
	if cr.BodyParams != nil {
		var err error
		if payload, err = json.Marshal(cr.BodyParams); err != nil {
			return nil, &errors.TransportError{Method: cr.Method, URL: cr.URL, Err: err}
		}
		body = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, cr.Method, cr.URL, body)
	if err != nil {
		return nil, &errors.TransportError{Method: cr.Method, URL: cr.URL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", _contentType)
	}

	d.logger.Debugw(">> "+cr.Method+" "+cr.URL, "command", cr.Name, "body", truncate(payload))
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &errors.TransportError{Method: cr.Method, URL: cr.URL, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.TransportError{Method: cr.Method, URL: cr.URL, Timeout: isTimeout(err), Err: err}
	}
	d.logger.Debugw("<< "+resp.Status, "command", cr.Name, "body", truncate(data))

	return decode(resp.StatusCode, data)
}

func isTimeout(err error) bool {
	if stderr.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderr.As(err, &netErr) && netErr.Timeout()
}

func truncate(data []byte) string {
	if len(data) <= _logLimit {
		return string(data)
	}
	return string(data[:_logLimit]) + "..."
}

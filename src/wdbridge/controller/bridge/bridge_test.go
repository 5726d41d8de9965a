package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	wderrors "github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/model"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/process"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/process/processmock"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/service"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/testdriver"
	"github.com/uber/webdriver-bridge/src/wdbridge/entity"
	"github.com/uber/webdriver-bridge/src/wdbridge/factory"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/errors"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/fs"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/serverinfofile/serverinfofilemock"
	"github.com/uber/webdriver-bridge/src/wdbridge/repository/session"
	"github.com/uber/webdriver-bridge/src/wdbridge/repository/session/sessionmock"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const _baseConfig = `
bridge:
  host: 127.0.0.1
  pollInterval: 5ms
  killGrace: 100ms
commands:
  overridesFile: ""
drivers:
  fakedriver:
    executable: fakedriver
    args: ["--verbose"]
    port: %d
    variant: w3c
    env:
      FAKE_DRIVER_MODE: quiet
  other:
    executable: otherdriver
    port: %d
`

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProcess stands in for a driver process whose HTTP side is served in-process.
type fakeProcess struct {
	done chan struct{}
	once sync.Once
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{done: make(chan struct{})}
}

func (p *fakeProcess) Pid() int { return 4242 }

func (p *fakeProcess) Kill(sig os.Signal) error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *fakeProcess) ExitCode() int { return -1 }

func (p *fakeProcess) Wait() error {
	<-p.done
	return nil
}

type fakeShutdowner struct {
	calls int
}

func (s *fakeShutdowner) Shutdown(...fx.ShutdownOption) error {
	s.calls++
	return nil
}

type harness struct {
	ctrl       Controller
	lifecycle  *fxtest.Lifecycle
	launcher   *processmock.MockLauncher
	fake       *testdriver.Server
	sessions   session.Repository
	shutdowner *fakeShutdowner
	stats      tally.TestScope
	port       int
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithSessions(t, nil)
}

// newHarnessWithSessions uses repo as the session store, or a real one when repo is nil.
func newHarnessWithSessions(t *testing.T, repo session.Repository) *harness {
	fake := testdriver.New(testdriver.WithSessionIDs("abc123", "def456", "ghi789"))
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	_, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	provider, err := config.NewYAML(config.Source(strings.NewReader(fmt.Sprintf(_baseConfig, port, port))))
	require.NoError(t, err)

	mockCtrl := gomock.NewController(t)
	h := &harness{
		lifecycle:  fxtest.NewLifecycle(t),
		launcher:   processmock.NewMockLauncher(mockCtrl),
		fake:       fake,
		shutdowner: &fakeShutdowner{},
		stats:      tally.NewTestScope("testing", make(map[string]string, 0)),
		port:       port,
	}
	h.sessions = repo
	if h.sessions == nil {
		h.sessions = session.New(h.stats)
	}

	h.ctrl, err = New(Params{
		Config:         provider,
		Logger:         zap.NewNop().Sugar(),
		Stats:          h.stats,
		Sessions:       h.sessions,
		Launcher:       h.launcher,
		Lifecycle:      h.lifecycle,
		Shutdowner:     h.shutdowner,
		FS:             fs.New(),
		ServerInfoFile: serverinfofilemock.NewMockServerInfoFile(mockCtrl),
	})
	require.NoError(t, err)
	h.lifecycle.RequireStart()
	return h
}

// expectLaunches answers n driver launches with fake processes.
func (h *harness) expectLaunches(t *testing.T, n int) {
	h.launcher.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts process.Options) (process.Process, error) {
			assert.Equal(t, "fakedriver", opts.Path)
			assert.Equal(t, []string{"--verbose", fmt.Sprintf("--port=%d", h.port)}, opts.Args)
			assert.Equal(t, "quiet", opts.Env["FAKE_DRIVER_MODE"])
			return newFakeProcess(), nil
		}).Times(n)
}

func counterValue(scope tally.TestScope, name string) int64 {
	var total int64
	for _, c := range scope.Snapshot().Counters() {
		if c.Name() == name {
			total += c.Value()
		}
	}
	return total
}

func TestNew(t *testing.T) {
	overrides := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(overrides, []byte("w3c:\n  fly:\n    method: POST\n    path: /session/:session_id/fly\n"), 0o644))

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid",
			yaml: "drivers:\n  chromedriver:\n    executable: chromedriver\n",
		},
		{
			name: "overrides file",
			yaml: fmt.Sprintf("commands:\n  overridesFile: %s\ndrivers:\n  chromedriver:\n    executable: chromedriver\n", overrides),
		},
		{
			name:    "missing overrides file",
			yaml:    "commands:\n  overridesFile: /does/not/exist.yaml\ndrivers:\n  chromedriver:\n    executable: chromedriver\n",
			wantErr: "does not exist",
		},
		{
			name:    "no drivers",
			yaml:    "bridge:\n  host: 127.0.0.1\n",
			wantErr: `missing field "drivers"`,
		},
		{
			name:    "missing executable",
			yaml:    "drivers:\n  chromedriver:\n    port: 9515\n",
			wantErr: "executable is required",
		},
		{
			name:    "bad variant",
			yaml:    "drivers:\n  chromedriver:\n    executable: chromedriver\n    variant: selenium5\n",
			wantErr: "unknown protocol variant",
		},
		{
			name:    "bad stdio",
			yaml:    "drivers:\n  chromedriver:\n    executable: chromedriver\n    stdio: tee\n",
			wantErr: "unknown stdio policy",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			provider, err := config.NewYAML(config.Source(strings.NewReader(tt.yaml)))
			require.NoError(t, err)

			ctrl := gomock.NewController(t)
			c, err := New(Params{
				Config:         provider,
				Logger:         zap.NewNop().Sugar(),
				Stats:          tally.NoopScope,
				Sessions:       session.New(tally.NoopScope),
				Launcher:       processmock.NewMockLauncher(ctrl),
				Lifecycle:      fxtest.NewLifecycle(t),
				Shutdowner:     &fakeShutdowner{},
				FS:             fs.New(),
				ServerInfoFile: serverinfofilemock.NewMockServerInfoFile(ctrl),
			})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestNewCaptureOutput(t *testing.T) {
	provider, err := config.NewYAML(config.Source(strings.NewReader(
		"drivers:\n  chromedriver:\n    executable: chromedriver\n    captureOutput: true\n")))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	infoFile := serverinfofilemock.NewMockServerInfoFile(ctrl)
	infoFile.EXPECT().UpdateField("output:chromedriver", gomock.Any()).Return(nil)
	infoFile.EXPECT().RemoveField("output:chromedriver").Return(nil)

	lifecycle := fxtest.NewLifecycle(t)
	c, err := New(Params{
		Config:         provider,
		Logger:         zap.NewNop().Sugar(),
		Stats:          tally.NoopScope,
		Sessions:       session.New(tally.NoopScope),
		Launcher:       processmock.NewMockLauncher(ctrl),
		Lifecycle:      lifecycle,
		Shutdowner:     &fakeShutdowner{},
		FS:             fs.New(),
		ServerInfoFile: infoFile,
	})
	require.NoError(t, err)

	d := c.(*controller).drivers["chromedriver"]
	assert.Equal(t, process.Pipe, d.stdio)
	assert.NotNil(t, d.output)

	lifecycle.RequireStart()
	lifecycle.RequireStop()
}

func TestSessionRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.expectLaunches(t, 1)
	connection := factory.UUID()
	ctx := context.WithValue(context.Background(), entity.ConnectionContextKey, connection)

	info, err := h.ctrl.StartSession(ctx, &entity.StartSessionParams{
		Driver:       "fakedriver",
		Capabilities: model.Capabilities{"browserName": "fake"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.SessionID)
	assert.Equal(t, "fakedriver", info.Driver)
	assert.Equal(t, service.Ready.String(), info.State)
	assert.Equal(t, 4242, info.Pid)
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d", h.port), info.Address)
	assert.Equal(t, int64(1), counterValue(h.stats, "testing.session.started"))

	stored, err := h.sessions.Get(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, connection, stored.Connection)

	result, err := h.ctrl.Execute(ctx, &entity.ExecuteParams{ID: info.ID, Command: string(command.GetTitle)})
	require.NoError(t, err)
	var title string
	require.NoError(t, json.Unmarshal(result, &title))
	assert.Equal(t, testdriver.Title, title)
	assert.Equal(t, int64(1), counterValue(h.stats, "testing.command.executed"))

	_, err = h.ctrl.Execute(ctx, &entity.ExecuteParams{ID: info.ID, Command: "fly"})
	var notFound *wderrors.CommandNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(1), counterValue(h.stats, "testing.command.failed"))

	all, err := h.ctrl.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, info.ID, all[0].ID)

	require.NoError(t, h.ctrl.StopSession(ctx, &entity.StopSessionParams{ID: info.ID}))
	assert.Empty(t, h.fake.Sessions())
	_, err = h.sessions.Get(ctx, info.ID)
	var uuidNotFound *errors.UUIDNotFoundError
	assert.ErrorAs(t, err, &uuidNotFound)

	err = h.ctrl.StopSession(ctx, &entity.StopSessionParams{ID: info.ID})
	assert.ErrorAs(t, err, &uuidNotFound)
	_, err = h.ctrl.Execute(ctx, &entity.ExecuteParams{ID: info.ID, Command: string(command.GetTitle)})
	assert.ErrorAs(t, err, &uuidNotFound)

	h.lifecycle.RequireStop()
}

func TestStartSessionUnknownDriver(t *testing.T) {
	h := newHarness(t)

	_, err := h.ctrl.StartSession(context.Background(), &entity.StartSessionParams{Driver: "operadriver"})
	var unknown *errors.UnknownDriverError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "operadriver", unknown.Name)
	assert.True(t, errors.IsBadRequest(err))

	h.lifecycle.RequireStop()
}

func TestStartSessionLaunchFailure(t *testing.T) {
	h := newHarness(t)
	h.launcher.EXPECT().Start(gomock.Any(), gomock.Any()).Return(nil, &wderrors.LaunchError{Path: "fakedriver", Err: os.ErrNotExist})

	_, err := h.ctrl.StartSession(context.Background(), &entity.StartSessionParams{Driver: "fakedriver"})
	require.Error(t, err)
	assert.True(t, wderrors.IsProcessFailure(err))
	assert.Equal(t, int64(1), counterValue(h.stats, "testing.session.start_failed"))

	count, err := h.sessions.SessionCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	h.lifecycle.RequireStop()
}

func TestStartSessionMergesRequestArgs(t *testing.T) {
	h := newHarness(t)
	h.launcher.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, opts process.Options) (process.Process, error) {
			assert.Equal(t, []string{"--verbose", "--log-level=debug", fmt.Sprintf("--port=%d", h.port)}, opts.Args)
			assert.Equal(t, map[string]string{"FAKE_DRIVER_MODE": "loud", "EXTRA": "1"}, opts.Env)
			assert.Equal(t, process.Ignore, opts.Stdio)
			return newFakeProcess(), nil
		})

	_, err := h.ctrl.StartSession(context.Background(), &entity.StartSessionParams{
		Driver: "fakedriver",
		Args:   []string{"--log-level=debug"},
		Env:    map[string]string{"FAKE_DRIVER_MODE": "loud", "EXTRA": "1"},
	})
	require.NoError(t, err)

	h.lifecycle.RequireStop()
	assert.Empty(t, h.fake.Sessions())
}

func TestEndConnectionStopsItsSessions(t *testing.T) {
	h := newHarness(t)
	h.expectLaunches(t, 2)

	mine, err := h.ctrl.InitConnection(context.Background(), nil)
	require.NoError(t, err)
	theirs, err := h.ctrl.InitConnection(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, mine, theirs)

	kept, err := h.ctrl.StartSession(context.WithValue(context.Background(), entity.ConnectionContextKey, theirs),
		&entity.StartSessionParams{Driver: "fakedriver"})
	require.NoError(t, err)
	_, err = h.ctrl.StartSession(context.WithValue(context.Background(), entity.ConnectionContextKey, mine),
		&entity.StartSessionParams{Driver: "fakedriver"})
	require.NoError(t, err)

	require.NoError(t, h.ctrl.EndConnection(context.Background(), mine))

	remaining, err := h.ctrl.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)
	assert.Equal(t, []string{kept.SessionID}, h.fake.Sessions())

	h.lifecycle.RequireStop()
	assert.Empty(t, h.fake.Sessions())
}

func TestEndConnectionDeletesSessionWithCancelledContext(t *testing.T) {
	h := newHarness(t)
	h.expectLaunches(t, 1)

	connection, err := h.ctrl.InitConnection(context.Background(), nil)
	require.NoError(t, err)
	info, err := h.ctrl.StartSession(context.WithValue(context.Background(), entity.ConnectionContextKey, connection),
		&entity.StartSessionParams{Driver: "fakedriver"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.ctrl.EndConnection(ctx, connection))

	assert.Empty(t, h.fake.Sessions())
	assert.Contains(t, h.fake.Requests(), testdriver.Request{Method: http.MethodDelete, Path: "/session/" + info.SessionID})
	assert.Equal(t, int64(1), counterValue(h.stats, "testing.session.stopped"))

	h.lifecycle.RequireStop()
}

func TestEndConnectionReportsEveryStopFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	connection := factory.UUID()

	var ids []string
	for _, msg := range []string{"kill failed", "delete failed"} {
		id := factory.UUID()
		ids = append(ids, id.String())
		require.NoError(t, h.sessions.Set(ctx, &entity.Session{
			UUID:       id,
			Connection: connection,
			Driver:     "fakedriver",
			Lifecycle:  &factory.DriverSession{StopErr: errors.New(msg)},
		}))
	}

	err := h.ctrl.EndConnection(ctx, connection)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	for _, id := range ids {
		assert.Contains(t, err.Error(), "stopping session "+id)
	}
	assert.Contains(t, err.Error(), "kill failed")
	assert.Contains(t, err.Error(), "delete failed")

	count, err := h.sessions.SessionCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	h.lifecycle.RequireStop()
}

func TestStartSessionRepositoryFailure(t *testing.T) {
	repo := sessionmock.NewMockRepository(gomock.NewController(t))
	h := newHarnessWithSessions(t, repo)

	var proc *fakeProcess
	h.launcher.EXPECT().Start(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, process.Options) (process.Process, error) {
			proc = newFakeProcess()
			return proc, nil
		})
	repo.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("repository unavailable"))

	_, err := h.ctrl.StartSession(context.Background(), &entity.StartSessionParams{Driver: "fakedriver"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository unavailable")

	assert.Empty(t, h.fake.Sessions())
	require.NotNil(t, proc)
	assert.True(t, proc.Exited())
	assert.Zero(t, counterValue(h.stats, "testing.session.started"))

	repo.EXPECT().List(gomock.Any()).Return(nil, nil)
	h.lifecycle.RequireStop()
}

func TestStopRefusesNewSessions(t *testing.T) {
	h := newHarness(t)
	h.expectLaunches(t, 1)

	_, err := h.ctrl.StartSession(context.Background(), &entity.StartSessionParams{Driver: "fakedriver"})
	require.NoError(t, err)

	h.lifecycle.RequireStop()
	count, err := h.sessions.SessionCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, int64(1), counterValue(h.stats, "testing.session.stopped"))

	_, err = h.ctrl.StartSession(context.Background(), &entity.StartSessionParams{Driver: "fakedriver"})
	assert.ErrorIs(t, err, errors.ErrShuttingDown)
}

func TestStopSessionReportsDriverError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	driver := &factory.DriverSession{StopErr: errors.New("kill failed")}
	id := factory.UUID()
	require.NoError(t, h.sessions.Set(ctx, &entity.Session{UUID: id, Driver: "fakedriver", Lifecycle: driver}))

	err := h.ctrl.StopSession(ctx, &entity.StopSessionParams{ID: id})
	assert.EqualError(t, err, "kill failed")
	assert.Equal(t, 1, driver.Stops())

	_, err = h.sessions.Get(ctx, id)
	assert.Error(t, err)

	h.lifecycle.RequireStop()
}

func TestDriversAndShutdown(t *testing.T) {
	h := newHarness(t)

	drivers, err := h.ctrl.Drivers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"fakedriver", "other"}, drivers)

	require.NoError(t, h.ctrl.Shutdown(context.Background()))
	assert.Equal(t, 1, h.shutdowner.calls)

	h.lifecycle.RequireStop()
}

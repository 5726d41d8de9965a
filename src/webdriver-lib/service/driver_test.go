package service

import (
	"context"
	stderr "errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/model"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/process"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// driverParams runs the test binary itself as the driver executable.
func driverParams(t *testing.T, mode string, args ...string) Params {
	self, err := os.Executable()
	require.NoError(t, err)
	return Params{
		Executable:   self,
		Args:         args,
		Env:          map[string]string{_driverEnv: mode},
		Stdio:        process.Ignore,
		PollInterval: 10 * time.Millisecond,
		StartTimeout: 10 * time.Second,
		KillGrace:    2 * time.Second,
		Table:        testTable(),
	}
}

func killExternally(t *testing.T, pid int) {
	p, err := os.FindProcess(pid)
	require.NoError(t, err)
	require.NoError(t, p.Signal(syscall.SIGKILL))
}

func TestOpenRealDriver(t *testing.T) {
	for _, variant := range []string{"w3c", "legacy"} {
		variant := variant
		t.Run(variant, func(t *testing.T) {
			core, recorded := observer.New(zap.InfoLevel)
			params := driverParams(t, "serve", "--session-id=abc123", "--variant="+variant)
			params.BasePath = "/wd/hub"
			params.Args = append(params.Args, "--base-path=/wd/hub")

			ctx := context.Background()
			lc, err := Open(ctx, params, model.Capabilities{"browserName": "fake"}, WithLogger(zap.New(core).Sugar()))
			require.NoError(t, err)

			assert.Equal(t, Ready, lc.State())
			assert.Equal(t, "abc123", lc.Session().ID)
			assert.Equal(t, variant, lc.Session().Variant)

			value, err := lc.Execute(ctx, _dummyCommand, map[string]interface{}{"foo": "bar"})
			require.NoError(t, err)
			assert.JSONEq(t, `{"foo":"bar"}`, string(value))

			require.NoError(t, lc.Stop(ctx))
			assert.Equal(t, Ended, lc.State())
			assert.Equal(t, 1, recorded.FilterMessage("Exec").Len())
			assert.Equal(t, 1, recorded.FilterMessage("driver stopped").Len())

			_, err = lc.Execute(ctx, command.GetTitle, nil)
			assert.ErrorIs(t, err, errors.ErrSessionEnded)
		})
	}
}

func TestMissingExecutable(t *testing.T) {
	params := Params{Executable: "/nonexistent/geckodriver", InstallHint: "install geckodriver into /nonexistent"}

	lc := New(params)
	err := lc.Start(context.Background())

	var launchErr *errors.LaunchError
	require.True(t, stderr.As(err, &launchErr), "got %v", err)
	assert.Equal(t, "/nonexistent/geckodriver", launchErr.Path)
	assert.Contains(t, err.Error(), "install geckodriver into /nonexistent")
	assert.Equal(t, Failed, lc.State())
	_, ok := lc.Address()
	assert.False(t, ok)
	assert.Equal(t, 0, lc.Pid())

	_, err = Open(context.Background(), params, nil)
	assert.True(t, stderr.As(err, &launchErr))
}

func TestDriverCrashesOnStartup(t *testing.T) {
	lc := New(driverParams(t, "crash"))
	err := lc.Start(context.Background())

	var died *errors.ProcessDiedError
	require.True(t, stderr.As(err, &died), "got %v", err)
	assert.Equal(t, errors.PhaseStartup, died.Phase)
	assert.Equal(t, 2, died.ExitCode)
	assert.Contains(t, err.Error(), "driver terminated before accepting connections")
	assert.Equal(t, Failed, lc.State())
	assert.NoError(t, lc.Stop(context.Background()))
}

func TestDriverKilledExternally(t *testing.T) {
	ctx := context.Background()
	lc, err := Open(ctx, driverParams(t, "serve", "--session-id=abc123"), nil)
	require.NoError(t, err)
	defer lc.Stop(ctx)

	killExternally(t, lc.Pid())
	assert.Eventually(t, func() bool { return lc.State() == Failed }, 5*time.Second, 10*time.Millisecond)

	_, err = lc.Execute(ctx, command.GetTitle, nil)
	var died *errors.ProcessDiedError
	require.True(t, stderr.As(err, &died), "got %v", err)
	assert.Equal(t, errors.PhaseSession, died.Phase)
}

func TestInFlightCommandFailsWhenDriverDies(t *testing.T) {
	ctx := context.Background()
	lc, err := Open(ctx, driverParams(t, "serve", "--session-id=abc123"), nil)
	require.NoError(t, err)
	defer lc.Stop(ctx)
	pid := lc.Pid()

	result := make(chan error, 1)
	start := time.Now()
	go func() {
		_, err := lc.Execute(ctx, "hang", nil)
		result <- err
	}()

	time.Sleep(100 * time.Millisecond)
	killExternally(t, pid)

	select {
	case err := <-result:
		var died *errors.ProcessDiedError
		assert.True(t, stderr.As(err, &died), "got %v", err)
		assert.Less(t, time.Since(start), 10*time.Second)
	case <-time.After(10 * time.Second):
		t.Fatal("in-flight command did not fail after the driver died")
	}
}

func TestStopEscalatesToKill(t *testing.T) {
	ctx := context.Background()
	params := driverParams(t, "stubborn", "--session-id=abc123")
	params.KillGrace = 200 * time.Millisecond

	lc, err := Open(ctx, params, nil)
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, lc.Stop(ctx))
	assert.GreaterOrEqual(t, time.Since(start), params.KillGrace)
	assert.Equal(t, Ended, lc.State())
	assert.Eventually(t, func() bool { return process.Live() == 0 }, 5*time.Second, 10*time.Millisecond)
}

// Package process starts driver executables and keeps track of them until they exit.
package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a Launcher that logs through the application logger.
var Module = fx.Options(
	fx.Provide(func(logger *zap.SugaredLogger) Launcher {
		return NewLauncher(WithLogger(logger))
	}),
)

// Stdio selects what happens to the driver's standard streams.
type Stdio int

const (
	// Ignore discards the driver output.
	Ignore Stdio = iota
	// Inherit shares the parent's stdout and stderr.
	Inherit
	// Pipe copies stdout and stderr into Options.Output.
	Pipe
)

// Options describes a driver executable to start.
type Options struct {
	// Path is an absolute path, a relative path or a name looked up on PATH.
	Path string
	Args []string
	// Env overrides individual variables of the inherited environment.
	Env map[string]string
	// ClearEnv starts the driver with only Env, without the parent environment.
	ClearEnv bool
	Dir      string
	Stdio    Stdio
	// Output receives stdout and stderr when Stdio is Pipe.
	Output io.Writer
	// InstallHint describes where the executable is expected to be installed.
	InstallHint string
}

// Launcher starts driver processes.
type Launcher interface {
	// Start returns as soon as the OS process exists. It does not wait for the driver to be usable.
	Start(ctx context.Context, opts Options) (Process, error)
}

// launcherImp implements Launcher
type launcherImp struct {
	Logger *zap.SugaredLogger
	// StartFunc starts the command without waiting for it.
	StartFunc func(cmd *exec.Cmd) error
	// LookPath resolves Options.Path to an executable.
	LookPath func(file string) (string, error)
}

// Option defines options to customize launcherImp's behavior
type Option func(*launcherImp)

// WithLogger overrides the default noop logger
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(l *launcherImp) {
		l.Logger = logger
	}
}

// WithStartFunc provides customized start behavior for launcherImp
func WithStartFunc(startFunc func(cmd *exec.Cmd) error) Option {
	return func(l *launcherImp) {
		l.StartFunc = startFunc
	}
}

// WithLookPath provides customized executable resolution for launcherImp
func WithLookPath(lookPath func(file string) (string, error)) Option {
	return func(l *launcherImp) {
		l.LookPath = lookPath
	}
}

// NewLauncher creates a Launcher backed by os/exec.
func NewLauncher(opts ...Option) Launcher {
	l := &launcherImp{
		Logger:    zap.NewNop().Sugar(),
		StartFunc: func(cmd *exec.Cmd) error { return cmd.Start() },
		LookPath:  exec.LookPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start resolves the executable, logs the command and starts it.
func (l *launcherImp) Start(ctx context.Context, opts Options) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := l.LookPath(opts.Path)
	if err != nil {
		return nil, &errors.LaunchError{Path: opts.Path, Hint: installHint(opts), Err: err}
	}

	cmd := exec.Command(path, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = environ(opts)
	cmd.SysProcAttr = sysProcAttr()
	switch opts.Stdio {
	case Inherit:
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	case Pipe:
		cmd.Stdout = opts.Output
		cmd.Stderr = opts.Output
	}

	l.logCommand(cmd)
	if err := l.StartFunc(cmd); err != nil {
		return nil, &errors.LaunchError{Path: path, Err: err}
	}
	if cmd.Process == nil {
		return nil, &errors.LaunchError{Path: path, Err: errors.New("process was not started")}
	}

	p := newProcess(cmd.Process.Pid, cmd.Process.Signal, func() (int, error) {
		err := cmd.Wait()
		return cmd.ProcessState.ExitCode(), err
	})
	_reaper.add(p)
	go func() {
		<-p.Done()
		_reaper.remove(p)
		l.Logger.Infow("Exited", "Path", path, "Pid", p.Pid(), "ExitCode", p.ExitCode())
	}()

	return p, nil
}

// Logs the command specified: Path, Dir, Args
func (l *launcherImp) logCommand(cmd *exec.Cmd) {
	l.Logger.Infow("Exec",
		"Path", cmd.Path,
		"Dir", cmd.Dir,
		"Args", cmd.Args[1:], // First arg is always the command itself
	)
}

func installHint(opts Options) string {
	if opts.InstallHint != "" {
		return opts.InstallHint
	}
	if !strings.ContainsRune(opts.Path, os.PathSeparator) {
		return fmt.Sprintf("make sure %s is installed and on PATH", opts.Path)
	}
	return ""
}

func environ(opts Options) []string {
	var env []string
	if !opts.ClearEnv {
		env = os.Environ()
	}
	if len(opts.Env) == 0 {
		return env
	}

	keys := make([]string, 0, len(opts.Env))
	for k := range opts.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(env)+len(keys))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := opts.Env[name]; !ok {
			result = append(result, kv)
		}
	}
	for _, k := range keys {
		result = append(result, k+"="+opts.Env[k])
	}
	return result
}

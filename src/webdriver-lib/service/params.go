package service

import (
	"io"
	"time"

	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/process"
)

const (
	// DefaultHost is where drivers are expected to listen.
	DefaultHost = "127.0.0.1"
	// DefaultPortFlag is appended to the driver arguments with the chosen port.
	DefaultPortFlag = "--port=%d"
	// DefaultStartTimeout bounds the wait for a new driver to accept connections.
	DefaultStartTimeout = 20 * time.Second
	// DefaultKillGrace is the pause between the interrupt and the kill signal on stop.
	DefaultKillGrace = 5 * time.Second
)

// Params describes the driver executable and how to talk to it.
type Params struct {
	Executable string
	Args       []string
	Env        map[string]string
	ClearEnv   bool
	Dir        string
	Stdio      process.Stdio
	// Output receives the driver output when Stdio is process.Pipe.
	Output      io.Writer
	InstallHint string

	Host string
	// Port is the port the driver is told to listen on. Zero picks a free port.
	Port int
	// PortFlag formats the port argument, for example "--port=%d".
	PortFlag string
	BasePath string
	Variant  command.Variant

	StartTimeout   time.Duration
	PollInterval   time.Duration
	CommandTimeout time.Duration
	KillGrace      time.Duration

	// Table overrides the built-in command table.
	Table *command.Table
}

func (p Params) withDefaults() Params {
	if p.Host == "" {
		p.Host = DefaultHost
	}
	if p.PortFlag == "" {
		p.PortFlag = DefaultPortFlag
	}
	if p.Variant == "" {
		p.Variant = command.Auto
	}
	if p.StartTimeout <= 0 {
		p.StartTimeout = DefaultStartTimeout
	}
	if p.KillGrace <= 0 {
		p.KillGrace = DefaultKillGrace
	}
	if p.Table == nil {
		p.Table = command.Default()
	}
	return p
}

func (p Params) processOptions(port string) process.Options {
	args := make([]string, 0, len(p.Args)+1)
	args = append(args, p.Args...)
	args = append(args, port)
	return process.Options{
		Path:        p.Executable,
		Args:        args,
		Env:         p.Env,
		ClearEnv:    p.ClearEnv,
		Dir:         p.Dir,
		Stdio:       p.Stdio,
		Output:      p.Output,
		InstallHint: p.InstallHint,
	}
}

// Package entity contains the domain types of the wdbridge daemon.
package entity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/command"
	wdmodel "github.com/uber/webdriver-bridge/src/webdriver-lib/model"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/service"
)

type keyType string

// ConnectionContextKey identifies the JSON-RPC connection UUID in a request context.
const ConnectionContextKey keyType = "ConnectionUUID"

// Configuration keys.
const (
	BridgeConfigKey        = "bridge"
	DriversConfigKey       = "drivers"
	OverridesFileConfigKey = "commands.overridesFile"
)

// Stdio policies accepted in driver configuration.
const (
	StdioIgnore  = "ignore"
	StdioInherit = "inherit"
)

// BridgeConfig holds the settings shared by every driver.
type BridgeConfig struct {
	Host           string        `yaml:"host"`
	PollInterval   time.Duration `yaml:"pollInterval"`
	CommandTimeout time.Duration `yaml:"commandTimeout"`
	KillGrace      time.Duration `yaml:"killGrace"`
}

// DriverConfig describes how to launch one kind of driver.
type DriverConfig struct {
	Executable   string            `yaml:"executable"`
	Args         []string          `yaml:"args"`
	Env          map[string]string `yaml:"env"`
	ClearEnv     bool              `yaml:"clearEnv"`
	Dir          string            `yaml:"dir"`
	PortFlag     string            `yaml:"portFlag"`
	Port         int               `yaml:"port"`
	BasePath     string            `yaml:"basePath"`
	Variant      string            `yaml:"variant"`
	StartTimeout time.Duration     `yaml:"startTimeout"`
	InstallHint  string            `yaml:"installHint"`
	// Stdio is "ignore" or "inherit". It is ignored when CaptureOutput is set.
	Stdio         string `yaml:"stdio"`
	CaptureOutput bool   `yaml:"captureOutput"`
}

// DriverSession is the part of a driver lifecycle used by the bridge.
// It is implemented by *service.Lifecycle.
type DriverSession interface {
	Execute(ctx context.Context, name command.Name, params map[string]interface{}) (json.RawMessage, error)
	Stop(ctx context.Context) error
	State() service.State
	Session() *wdmodel.Session
	Address() (wdmodel.ServiceAddress, bool)
	Pid() int
}

// Session is a driver session bridged on behalf of a JSON-RPC client.
type Session struct {
	UUID       uuid.UUID     `json:"id"`
	Connection uuid.UUID     `json:"connection"`
	Driver     string        `json:"driver"`
	StartedAt  time.Time     `json:"startedAt"`
	Lifecycle  DriverSession `json:"-"`
}

// StartSessionParams are the parameters of wdbridge/startSession.
type StartSessionParams struct {
	Driver       string               `json:"driver"`
	Capabilities wdmodel.Capabilities `json:"capabilities,omitempty"`
	// Args and Env are added to the configured ones.
	Args []string          `json:"args,omitempty"`
	Env  map[string]string `json:"env,omitempty"`
}

// ExecuteParams are the parameters of wdbridge/execute.
type ExecuteParams struct {
	ID      uuid.UUID              `json:"id"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// StopSessionParams are the parameters of wdbridge/stopSession.
type StopSessionParams struct {
	ID uuid.UUID `json:"id"`
}

// SessionInfo describes a bridged session to clients.
type SessionInfo struct {
	ID           uuid.UUID            `json:"id"`
	SessionID    string               `json:"sessionId"`
	Driver       string               `json:"driver"`
	Variant      string               `json:"variant"`
	Address      string               `json:"address"`
	Pid          int                  `json:"pid"`
	State        string               `json:"state"`
	Capabilities wdmodel.Capabilities `json:"capabilities,omitempty"`
	StartedAt    time.Time            `json:"startedAt"`
}

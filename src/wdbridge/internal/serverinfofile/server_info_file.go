// Package serverinfofile publishes connection details of the running daemon for clients and tools.
package serverinfofile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _configKeyInfoFile = "serverInfoFilePath"

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// ServerInfoFile manages the contents of a single JSON info file.
// Clients read it to find the JSON-RPC address and the driver log files.
type ServerInfoFile interface {
	UpdateField(key string, value string) error
	RemoveField(key string) error
}

type module struct {
	infofile     string
	logger       *zap.SugaredLogger
	fileContents map[string]string
	mu           sync.Mutex
}

// Params define values to be used by ServerInfoFile.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
}

// New creates a ServerInfoFile at the configured path. The file is removed on stop.
func New(p Params) (ServerInfoFile, error) {
	m := module{
		logger:       p.Logger,
		fileContents: make(map[string]string),
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: m.OnStop,
	})

	return &m, nil
}

func (m *module) OnStop(ctx context.Context) error {
	if m.infofile == "" {
		return nil
	}
	if err := os.Remove(m.infofile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (m *module) UpdateField(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fileContents[key] = value
	if err := m.write(); err != nil {
		return err
	}
	m.logger.Infow("connection info saved", zap.String("file", m.infofile), zap.String(key, value))
	return nil
}

func (m *module) RemoveField(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.fileContents[key]; !ok {
		return nil
	}
	delete(m.fileContents, key)
	return m.write()
}

func (m *module) write() error {
	jsonOutput, err := json.Marshal(m.fileContents)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.infofile), os.ModePerm); err != nil {
		return fmt.Errorf("creating info file directory: %w", err)
	}
	if err := os.WriteFile(m.infofile, jsonOutput, 0644); err != nil {
		return fmt.Errorf("creating info file: %w", err)
	}
	return nil
}

func (m *module) processConfig(cfg config.Provider) error {
	val := cfg.Get(_configKeyInfoFile)
	if err := val.Populate(&m.infofile); err != nil {
		// incorrectly formatted config
		return fmt.Errorf("getting config field %q: %w", _configKeyInfoFile, err)
	}

	if m.infofile == "" {
		return fmt.Errorf("missing field %q in config", _configKeyInfoFile)
	}

	return nil
}

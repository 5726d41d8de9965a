package core

import (
	"fmt"
	"os"
	"path/filepath"

	uber_config "go.uber.org/config"
	"go.uber.org/fx"
)

const (
	_envConfigDir     = "WDBRIDGE_CONFIG_DIR"
	_defaultConfigDir = "src/wdbridge/config"
	_metaFile         = "meta.yaml"
)

// ConfigModule provides the config.Provider.
var ConfigModule = fx.Options(
	fx.Provide(NewConfig),
)

// Config wraps the YAML provider assembled from the files listed in meta.yaml.
type Config struct {
	provider uber_config.Provider
}

// Get implements config.Provider.
func (c Config) Get(path string) uber_config.Value {
	return c.provider.Get(path)
}

// Name implements config.Provider.
func (c Config) Name() string {
	return "config"
}

// NewConfig loads every file named in meta.yaml that exists in the config directory, in order.
// Later files override earlier ones and ${VAR:default} references are expanded from the environment.
func NewConfig() (uber_config.Provider, error) {
	return NewConfigFromDir(getConfigDir())
}

// NewConfigFromDir is NewConfig for an explicit directory.
func NewConfigFromDir(configDir string) (uber_config.Provider, error) {
	metaPath := filepath.Join(configDir, _metaFile)
	metaProvider, err := uber_config.NewYAML(
		uber_config.File(metaPath),
		uber_config.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load meta configuration: %w", err)
	}

	var configFiles []string
	if err := metaProvider.Get("files").Populate(&configFiles); err != nil {
		return nil, fmt.Errorf("failed to read files list from %s: %w", _metaFile, err)
	}

	var options []uber_config.YAMLOption
	for _, file := range configFiles {
		fullPath := filepath.Join(configDir, file)
		if _, err := os.Stat(fullPath); err == nil {
			options = append(options, uber_config.File(fullPath))
		}
	}

	if len(options) == 0 {
		return nil, fmt.Errorf("no configuration files found in %s", configDir)
	}
	options = append(options, uber_config.Expand(os.LookupEnv))

	provider, err := uber_config.NewYAML(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return Config{provider: provider}, nil
}

// getConfigDir assumes the binary runs from the repository root unless the directory is set explicitly.
func getConfigDir() string {
	if configDir := os.Getenv(_envConfigDir); configDir != "" {
		return configDir
	}
	return _defaultConfigDir
}

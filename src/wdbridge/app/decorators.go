package app

import (
	"fmt"
	"os"
	"path"

	"github.com/uber/webdriver-bridge/src/wdbridge/internal/core"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/fs"
	"go.uber.org/config"
	"go.uber.org/fx"
)

// Context describes where the daemon runs.
type Context struct {
	Environment        string `yaml:"environment"`
	RuntimeEnvironment string `yaml:"runtimeEnvironment"`
}

const (
	// EnvLocal indicates that the service is running locally.
	EnvLocal = "local"

	// EnvDevelopment indicates that the service is running in a development environment.
	EnvDevelopment = "development"

	// Environment variables
	_envBridgeEnvironment = "WDBRIDGE_ENVIRONMENT"
)

func decorateEnvContext(env Context) Context {
	envValue := EnvLocal
	if os.Getenv(_envBridgeEnvironment) == EnvDevelopment {
		envValue = EnvDevelopment
	}

	env.Environment = envValue
	env.RuntimeEnvironment = envValue
	return env
}

// DecorateConfigParams is the set of dependencies required to decorate the config.Provider.
type DecorateConfigParams struct {
	fx.In

	Env Context
	Cfg config.Provider
	FS  fs.BridgeFS
}

// decorateConfigProvider runs the startup steps that depend on configuration before anything else reads it.
func decorateConfigProvider(p DecorateConfigParams) (config.Provider, error) {
	combined, err := ensureLogFolder(p.Cfg, p.FS)
	if err != nil {
		return nil, fmt.Errorf("ensuring log folder: %v", err)
	}

	return combined, nil
}

// Ensure that all configured logging output directories exist or create if necessary.
func ensureLogFolder(cfg config.Provider, bridgeFS fs.BridgeFS) (config.Provider, error) {
	var c core.LoggingConfig
	if err := cfg.Get("logging").Populate(&c); err != nil {
		return nil, fmt.Errorf("loading logging config: %v", err)
	}

	for _, outputPath := range c.OutputPaths {
		if outputPath == "stdout" || outputPath == "stderr" {
			continue
		}
		dir := path.Dir(outputPath)
		if err := bridgeFS.MkdirAll(dir); err != nil {
			return nil, fmt.Errorf("creating logging directory: %v", err)
		}
	}

	return cfg, nil
}

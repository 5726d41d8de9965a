package core

import (
	"fmt"

	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const _loggingKey = "logging"

// LoggingConfig is the "logging" section of the configuration.
type LoggingConfig struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"outputPaths"`
}

// LoggerModule provides the logger dependencies.
var LoggerModule = fx.Options(
	fx.Provide(NewSugaredLogger),
	fx.Provide(NewLogger),
)

// NewLogger exposes the desugared logger for components that want the strongly typed API.
func NewLogger(sugar *zap.SugaredLogger) *zap.Logger {
	return sugar.Desugar()
}

// NewSugaredLogger builds the daemon logger from the configuration.
func NewSugaredLogger(provider config.Provider) (*zap.SugaredLogger, error) {
	var loggingConfig LoggingConfig
	if err := provider.Get(_loggingKey).Populate(&loggingConfig); err != nil {
		return nil, err
	}

	level, err := zapcore.ParseLevel(loggingConfig.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if loggingConfig.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	var encoder zapcore.Encoder
	switch loggingConfig.Encoding {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	outputPaths := loggingConfig.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}
	sink, _, err := zap.Open(outputPaths...)
	if err != nil {
		return nil, fmt.Errorf("opening log outputs: %w", err)
	}

	core := zapcore.NewCore(encoder, sink, level)

	var logger *zap.Logger
	if loggingConfig.Development {
		logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		logger = zap.New(core)
	}

	return logger.Sugar(), nil
}

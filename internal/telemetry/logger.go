// Package telemetry builds the process-wide structured logger.
package telemetry

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger. level accepts the usual zap level names
// ("debug", "info", "warn", "error"); an empty level defaults to "info"
// and an unrecognized one is an error. In development mode the encoder switches to a
// human-readable console format instead of JSON.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if level == "" {
		zapLevel = zapcore.InfoLevel
	} else if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("telemetry: invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("telemetry: build logger: %w", err)
	}
	return logger, nil
}

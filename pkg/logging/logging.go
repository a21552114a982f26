// Package logging builds the zap loggers used across gatekeep.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Formats accepted by New.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ParseLevel maps a level name to a zap level. The empty string is info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

// New builds a logger writing to stderr. The returned level can be changed
// at runtime, e.g. on config reload.
func New(level, format string) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}
	switch strings.ToLower(format) {
	case "", FormatConsole:
		config.Encoding = FormatConsole
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		config.Sampling = nil
	case FormatJSON:
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("logging: unknown format %q", format)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, config.Level, nil
}

// Package logging builds the zap logger shared by the bridge and the sqflite plugin.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"guru-bridge/config"
)

// Off disables every level.
const Off = zapcore.InvalidLevel

// New builds a logger writing to stderr. The returned level can be changed at runtime.
func New(cfg config.LogConfig) (*zap.Logger, zap.AtomicLevel, error) {
	return NewWithSink(cfg, zapcore.Lock(os.Stderr))
}

// NewWithSink is New with an explicit output.
func NewWithSink(cfg config.LogConfig, sink zapcore.WriteSyncer) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	atom := zap.NewAtomicLevelAt(level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch cfg.Format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logger := zap.New(zapcore.NewCore(enc, sink, atom), zap.AddCaller())
	return logger, atom, nil
}

// ParseLevel maps a configured level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	switch name {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "none":
		return Off, nil
	default:
		return Off, fmt.Errorf("unknown log level %q", name)
	}
}

// HostLevel maps the integer level used by the Unity host (0 none, 1 error, 2 warning,
// 3 info, 4 debug) to a zap level. Values past either end are clamped.
func HostLevel(n int) zapcore.Level {
	switch {
	case n <= 0:
		return Off
	case n == 1:
		return zapcore.ErrorLevel
	case n == 2:
		return zapcore.WarnLevel
	case n == 3:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

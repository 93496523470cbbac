// Package host assembles a ready-to-use bridge from configuration: logger, sqflite plugin,
// middleware chain, bridge and optional call trace.
package host

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"guru-bridge/bridge"
	"guru-bridge/codec"
	"guru-bridge/config"
	"guru-bridge/logging"
	"guru-bridge/message"
	"guru-bridge/middleware"
	"guru-bridge/result"
	"guru-bridge/sqflite"
	"guru-bridge/trace"
)

type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Level    zap.AtomicLevel
	Plugin   *sqflite.Plugin
	Bridge   *bridge.Bridge
	Recorder *trace.Recorder // nil unless trace.path is set
}

// Start builds a runtime logging to stderr.
func Start(cfg *config.Config) (*Runtime, error) {
	logger, level, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	return StartWithLogger(cfg, logger, level)
}

// StartWithLogger builds a runtime around an existing logger.
func StartWithLogger(cfg *config.Config, logger *zap.Logger, level zap.AtomicLevel) (*Runtime, error) {
	rootPath, err := filepath.Abs(cfg.Database.RootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve database root: %w", err)
	}

	p, err := sqflite.New(sqflite.Options{
		RootPath:    rootPath,
		Driver:      cfg.Database.Driver,
		Workers:     cfg.Database.Workers,
		QueueDepth:  cfg.Database.QueueDepth,
		BusyTimeout: cfg.Database.BusyTimeout.Std(),
		LogLevel:    cfg.Database.LogLevel,
	}, logger)
	if err != nil {
		return nil, err
	}

	mws, err := Middlewares(cfg.Bridge, logger)
	if err != nil {
		p.Close()
		return nil, err
	}

	rt := &Runtime{Config: cfg, Logger: logger, Level: level, Plugin: p}
	opts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithMiddleware(mws...),
		bridge.WithCallIDInEnvelope(cfg.Bridge.IncludeCallID),
		bridge.WithQueueSize(cfg.Bridge.QueueSize),
	}

	if cfg.Trace.Path != "" {
		ct, err := codec.ParseCodecType(cfg.Trace.Codec)
		if err != nil {
			p.Close()
			return nil, err
		}
		rec, err := trace.Create(cfg.Trace.Path, codec.GetCodec(ct))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("open call trace: %w", err)
		}
		rt.Recorder = rec
		opts = append(opts, bridge.WithRecorder(rec))
		logger.Info("call trace enabled", zap.String("path", cfg.Trace.Path), zap.String("session", rec.SessionID()))
	}

	rt.Bridge = bridge.New(p, opts...)
	logger.Info("bridge started",
		zap.String("root", rootPath),
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("methods", p.Methods()))
	return rt, nil
}

// Middlewares builds the chain configured in cfg, outermost first: logging, rate limit,
// argument validation, timeout, retry.
func Middlewares(cfg config.BridgeConfig, logger *zap.Logger) ([]middleware.Middleware, error) {
	mws := []middleware.Middleware{middleware.LoggingMiddleware(logger)}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		mws = append(mws, middleware.RateLimitMiddleware(cfg.RateLimit, burst))
	}
	if cfg.ValidateArguments {
		validate, err := middleware.ValidateArgumentsMiddleware(sqflite.ArgumentSchemas())
		if err != nil {
			return nil, err
		}
		mws = append(mws, validate)
	}
	if cfg.CallTimeout > 0 {
		mws = append(mws, middleware.TimeOutMiddleware(cfg.CallTimeout.Std()))
	}
	if cfg.Retry.MaxRetries > 0 {
		mws = append(mws, middleware.RetryMiddleware(logger, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay.Std(), sqflite.IsRetryable))
	}
	return mws, nil
}

// SetHostLogLevel applies a Unity host log level (0 none .. 4 debug).
func (rt *Runtime) SetHostLogLevel(level int) {
	rt.Level.SetLevel(logging.HostLevel(level))
}

// Close shuts the bridge down, then closes the plugin and the trace.
func (rt *Runtime) Close(timeout time.Duration) error {
	var errs []error
	if err := rt.Bridge.Shutdown(timeout); err != nil {
		errs = append(errs, err)
	}
	if err := rt.Plugin.Close(); err != nil {
		errs = append(errs, err)
	}
	if rt.Recorder != nil {
		if err := rt.Recorder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = rt.Logger.Sync()
	return errors.Join(errs...)
}

// UnavailableEnvelope is the failure sent to a host callback when no runtime could be
// started, so the call still gets its one result.
func UnavailableEnvelope(callID int32, cause error) string {
	envelope, err := codec.EncodeOutcome(result.Outcome{
		CallID: callID,
		Kind:   result.KindError,
		Err:    message.NewError(message.CodeUnavailable, cause.Error(), nil),
	}, false)
	if err != nil {
		return `{"error":{"code":"` + message.CodeUnavailable + `","message":null,"details":null}}`
	}
	return string(envelope)
}

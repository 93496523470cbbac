package bridge

import (
	"go.uber.org/zap"

	"guru-bridge/middleware"
)

// Recorder receives every accepted call and every envelope handed to the host.
type Recorder interface {
	RecordCall(callID int32, method string, arguments map[string]any) error
	RecordResult(callID int32, envelope []byte) error
}

type Option func(*Bridge)

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMiddleware wraps the handler; the first middleware is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(b *Bridge) {
		b.middlewares = append(b.middlewares, mws...)
	}
}

func WithRecorder(r Recorder) Option {
	return func(b *Bridge) {
		b.recorder = r
	}
}

// WithCallIDInEnvelope adds a "callId" member to every result envelope.
func WithCallIDInEnvelope(include bool) Option {
	return func(b *Bridge) {
		b.includeCallID = include
	}
}

// WithQueueSize sets the capacity of the completion queue.
func WithQueueSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

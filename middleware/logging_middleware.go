package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"guru-bridge/message"
	"guru-bridge/result"
)

// LoggingMiddleware logs every call when it resolves, and every late resolution that
// gets discarded.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall, res result.Result) {
			start := time.Now()
			base := []zap.Field{zap.Int32("callId", call.ID()), zap.String("method", call.Method())}
			forwardDiscard := result.DiscardTo(res)

			sink := result.NewSink(call.ID(), func(o result.Outcome) {
				fields := append(base, zap.Duration("duration", time.Since(start)), zap.Stringer("outcome", o.Kind))
				if o.Kind == result.KindError && o.Err != nil {
					logger.Info("call failed", append(fields, zap.String("code", o.Err.Code()), zap.String("message", o.Err.Message()))...)
				} else {
					logger.Debug("call completed", fields...)
				}
				o.Apply(res)
			}, func(o result.Outcome) {
				logger.Warn("result discarded, call already resolved", append(base, zap.Stringer("outcome", o.Kind))...)
				if forwardDiscard != nil {
					forwardDiscard(o)
				}
			})

			next(ctx, call, sink)
		}
	}
}

package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"guru-bridge/message"
	"guru-bridge/result"
)

// RetryMiddleware re-runs a call whose failure satisfies retryable, up to maxRetries
// times with exponential backoff. Only the final attempt's outcome reaches res. It stops
// waiting when ctx ends and leaves res unresolved.
func RetryMiddleware(logger *zap.Logger, maxRetries int, baseDelay time.Duration, retryable func(*message.MethodError) bool) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall, res result.Result) {
			for i := 0; ; i++ {
				outcomes := make(chan result.Outcome, 1)
				attempt := result.NewSink(call.ID(), func(o result.Outcome) { outcomes <- o }, result.DiscardTo(res))
				next(ctx, call, attempt)

				var o result.Outcome
				select {
				case o = <-outcomes:
				case <-ctx.Done():
					// An outer layer owns res once the context ends.
					return
				}
				if o.Kind != result.KindError || o.Err == nil || i >= maxRetries || !retryable(o.Err) {
					o.Apply(res)
					return
				}

				logger.Info("retrying call",
					zap.Int32("callId", call.ID()),
					zap.String("method", call.Method()),
					zap.Int("attempt", i+1),
					zap.String("error", o.Err.Error()))

				select {
				case <-time.After(baseDelay * time.Duration(1<<i)): // Exponential backoff
				case <-ctx.Done():
					o.Apply(res)
					return
				}
			}
		}
	}
}

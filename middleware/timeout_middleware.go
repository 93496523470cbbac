package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guru-bridge/message"
	"guru-bridge/result"
)

// TimeOutMiddleware resolves a call with a timeout error when the handler has not
// resolved it in time. The handler's context is cancelled; a result it produces
// afterwards is discarded.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall, res result.Result) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			sink := result.Forward(call.ID(), res)
			go next(ctx, call, sink)

			select {
			case <-sink.Done():
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					sink.Error(message.NewError(message.CodeTimeout,
						fmt.Sprintf("%s did not complete within %s", call.Method(), timeout), nil))
				} else {
					sink.Error(message.NewError(message.CodeBridgeClosed, "call abandoned", nil))
				}
			}
		}
	}
}

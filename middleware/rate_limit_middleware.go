package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"guru-bridge/message"
	"guru-bridge/result"
)

// RateLimitMiddleware rejects calls beyond a token bucket of r calls per second with burst.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall, res result.Result) {
			if !limiter.Allow() {
				res.Error(message.NewError(message.CodeRateLimited, "rate limit exceeded", nil))
				return
			}
			next(ctx, call, res)
		}
	}
}

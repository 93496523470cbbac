// Package plugin defines the method-dispatch entry point the bridge forwards calls to.
package plugin

import (
	"context"

	"guru-bridge/message"
	"guru-bridge/result"
)

// Handler receives one call and must resolve res exactly once, synchronously or later
// from any goroutine. Unknown methods resolve with res.NotImplemented().
type Handler interface {
	HandleMethod(ctx context.Context, call *message.MethodCall, res result.Result)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, call *message.MethodCall, res result.Result)

func (f HandlerFunc) HandleMethod(ctx context.Context, call *message.MethodCall, res result.Result) {
	f(ctx, call, res)
}

// NotImplemented resolves every call as not implemented.
var NotImplemented HandlerFunc = func(_ context.Context, _ *message.MethodCall, res result.Result) {
	res.NotImplemented()
}

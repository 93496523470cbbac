// Package middleware wraps plugin handlers with cross-cutting behavior.
//
// Results are asynchronous, so a middleware that needs to see the outcome hands next
// its own sink and relays the outcome to the caller's result when it arrives.
package middleware

import "guru-bridge/plugin"

type HandlerFunc = plugin.HandlerFunc

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares; the first one is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Wrap applies middlewares to a plugin.Handler.
func Wrap(h plugin.Handler, middlewares ...Middleware) HandlerFunc {
	return Chain(middlewares...)(h.HandleMethod)
}

// Package result implements the one-shot completion capability a plugin resolves for each call.
//
// A Sink moves from pending to resolved exactly once. The first of Success, Error or
// NotImplemented wins; any later resolution is discarded and counted, never delivered.
// Resolution is safe from any goroutine.
package result

import "guru-bridge/message"

// Result is what a plugin handler receives alongside a MethodCall. Exactly one method
// must be called, exactly once.
type Result interface {
	// Success resolves with a value: nil, a scalar, message.TypedData, or nested
	// map[string]any / []any trees of those.
	Success(value any)
	Error(err *message.MethodError)
	NotImplemented()
}

// Kind tags which of the three outcomes an Outcome carries.
type Kind uint8

const (
	KindSuccess Kind = iota
	KindError
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindNotImplemented:
		return "notImplemented"
	default:
		return "unknown"
	}
}

// Outcome is a resolved result as a value, suitable for sending over a channel.
type Outcome struct {
	CallID int32
	Kind   Kind
	Value  any
	Err    *message.MethodError
}

// Apply replays the outcome onto res.
func (o Outcome) Apply(res Result) {
	switch o.Kind {
	case KindSuccess:
		res.Success(o.Value)
	case KindError:
		res.Error(o.Err)
	default:
		res.NotImplemented()
	}
}

// discarder is implemented by results that want to hear about late resolutions.
type discarder interface {
	Discard(o Outcome)
}

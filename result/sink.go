package result

import (
	"sync/atomic"

	"guru-bridge/message"
)

// Sink is the one-shot Result bound to a single call id.
//
//	Pending ──Success/Error/NotImplemented──► Resolved (terminal)
//	Resolved ──any further call──► discarded (counted, handed to the discard hook)
//
// The compare-and-swap on resolved is the only synchronization: two racing resolutions
// produce exactly one delivery.
type Sink struct {
	callID    int32
	deliver   func(Outcome) // Receives the winning outcome, called once
	onDiscard func(Outcome) // Receives every losing outcome, may be nil
	resolved  atomic.Bool   // Flipped by the first resolution
	discarded atomic.Int64  // Number of resolutions rejected after the first
	done      chan struct{} // Closed on resolution
}

// NewSink creates a pending sink. deliver runs on the goroutine that resolves the sink.
func NewSink(callID int32, deliver func(Outcome), onDiscard func(Outcome)) *Sink {
	return &Sink{
		callID:    callID,
		deliver:   deliver,
		onDiscard: onDiscard,
		done:      make(chan struct{}),
	}
}

// Forward creates a sink that applies its outcome to res. Discards on the returned sink are
// passed on to res when res can absorb them, so counting survives wrapping.
func Forward(callID int32, res Result) *Sink {
	return NewSink(callID, func(o Outcome) { o.Apply(res) }, DiscardTo(res))
}

// DiscardTo returns res's discard hook, or nil when res does not count discards.
func DiscardTo(res Result) func(Outcome) {
	if d, ok := res.(discarder); ok {
		return d.Discard
	}
	return nil
}

func (s *Sink) Success(value any) {
	s.resolve(Outcome{Kind: KindSuccess, Value: value})
}

func (s *Sink) Error(err *message.MethodError) {
	s.resolve(Outcome{Kind: KindError, Err: err})
}

func (s *Sink) NotImplemented() {
	s.resolve(Outcome{Kind: KindNotImplemented})
}

// TryError resolves the sink with err and reports whether this call won. A losing call is
// discarded like any other late resolution.
func (s *Sink) TryError(err *message.MethodError) bool {
	return s.resolve(Outcome{Kind: KindError, Err: err})
}

// Discard records an outcome that lost the race somewhere downstream of this sink.
func (s *Sink) Discard(o Outcome) {
	o.CallID = s.callID
	s.discarded.Add(1)
	if s.onDiscard != nil {
		s.onDiscard(o)
	}
}

func (s *Sink) CallID() int32 { return s.callID }

// Resolved reports whether the sink has been resolved.
func (s *Sink) Resolved() bool { return s.resolved.Load() }

// Discarded returns how many resolutions were rejected.
func (s *Sink) Discarded() int64 { return s.discarded.Load() }

// Done is closed once the sink is resolved.
func (s *Sink) Done() <-chan struct{} { return s.done }

func (s *Sink) resolve(o Outcome) bool {
	o.CallID = s.callID
	if !s.resolved.CompareAndSwap(false, true) {
		s.Discard(o)
		return false
	}
	close(s.done)
	if s.deliver != nil {
		s.deliver(o)
	}
	return true
}

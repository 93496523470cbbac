// Package bridge turns flat host invocations into plugin calls and relays each call's
// outcome back through the host's callback exactly once.
//
// Call pipeline:
//
//	Invoke → decode arguments → register pending id → go dispatch
//	  → middleware chain → plugin handler → Sink resolves
//	    → completion queue → delivery goroutine → encode envelope → onResult
//
// Arguments that do not parse, ids that are still pending and calls made after Shutdown
// are answered immediately on the caller's goroutine without reaching the handler.
package bridge

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"guru-bridge/codec"
	"guru-bridge/message"
	"guru-bridge/middleware"
	"guru-bridge/plugin"
	"guru-bridge/result"
)

const defaultQueueSize = 256

// Stats is a snapshot of the bridge counters.
type Stats struct {
	Outstanding int64 // Calls dispatched and not yet delivered
	Delivered   int64 // Envelopes handed to the host for dispatched calls
	Rejected    int64 // Calls answered without reaching the handler
	Discarded   int64 // Resolutions dropped because the call was already resolved
	Abandoned   int64 // Calls failed by Shutdown because the handler never resolved them
}

type pendingCall struct {
	callID   int32
	method   string
	onResult func(string)
	sink     *result.Sink
}

type completion struct {
	call    *pendingCall
	outcome result.Outcome
}

type Bridge struct {
	handler       plugin.HandlerFunc      // middleware(middleware(...(plugin)))
	middlewares   []middleware.Middleware // Applied in order, first is outermost
	logger        *zap.Logger
	recorder      Recorder
	includeCallID bool
	queueSize     int

	pending     sync.Map        // map[int32]*pendingCall, ids awaiting delivery
	completions chan completion // Resolved outcomes waiting for the delivery goroutine
	ctx         context.Context // Handed to every handler, cancelled by Shutdown
	cancel      context.CancelFunc

	mu       sync.RWMutex   // Orders wg.Add against Shutdown
	closed   bool
	wg       sync.WaitGroup // One count per dispatched call, released after delivery
	stop     chan struct{}
	loopDone chan struct{}

	inCallback atomic.Bool // Set while the delivery goroutine runs a host callback

	outstanding atomic.Int64
	delivered   atomic.Int64
	rejected    atomic.Int64
	discarded   atomic.Int64
	abandoned   atomic.Int64
}

// New creates a bridge in front of h and starts its delivery goroutine.
func New(h plugin.Handler, opts ...Option) *Bridge {
	b := &Bridge{
		logger:    zap.NewNop(),
		queueSize: defaultQueueSize,
		stop:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.handler = middleware.Wrap(h, b.middlewares...)
	b.completions = make(chan completion, b.queueSize)
	b.ctx, b.cancel = context.WithCancel(context.Background())

	go b.deliverLoop()
	return b
}

// Invoke starts one call and returns without waiting for it. onResult receives exactly
// one JSON envelope for the call, possibly before Invoke returns.
func (b *Bridge) Invoke(callID int32, method, jsonArguments string, onResult func(string)) error {
	if onResult == nil {
		return ErrNilCallback
	}

	args, err := codec.DecodeArguments(jsonArguments)
	if err != nil {
		b.reject(callID, method, onResult, message.NewError(message.CodeBadJSON, err.Error(), nil))
		return nil
	}

	pc := &pendingCall{callID: callID, method: method, onResult: onResult}
	pc.sink = result.NewSink(callID,
		func(o result.Outcome) { b.completions <- completion{call: pc, outcome: o} },
		func(o result.Outcome) { b.discard(pc, o) })

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		b.reject(callID, method, onResult, message.NewError(message.CodeBridgeClosed, "bridge is shut down", nil))
		return nil
	}

	if _, loaded := b.pending.LoadOrStore(callID, pc); loaded {
		b.mu.RUnlock()
		b.reject(callID, method, onResult, message.NewError(message.CodeDuplicateCallID,
			fmt.Sprintf("call id %d is still pending", callID), nil))
		return nil
	}
	b.wg.Add(1)
	b.mu.RUnlock()

	b.outstanding.Add(1)

	if b.recorder != nil {
		if err := b.recorder.RecordCall(callID, method, args); err != nil {
			b.logger.Warn("failed to record call", zap.Int32("callId", callID), zap.Error(err))
		}
	}

	go b.dispatch(message.NewMethodCallWithID(method, args, callID), pc.sink)
	return nil
}

// Stats returns the current counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Outstanding: b.outstanding.Load(),
		Delivered:   b.delivered.Load(),
		Rejected:    b.rejected.Load(),
		Discarded:   b.discarded.Load(),
		Abandoned:   b.abandoned.Load(),
	}
}

// Shutdown stops accepting calls and waits up to timeout for pending calls to be
// delivered. Calls still unresolved after that are failed with bridge-closed; their
// handlers' later resolutions are discarded.
//
// Called from inside a result callback, Shutdown cannot wait on the delivery goroutine
// that is running it: it stops intake, returns nil and drains in the background.
func (b *Bridge) Shutdown(timeout time.Duration) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.inCallback.Load() {
		go func() {
			if err := b.drain(timeout); err != nil {
				b.logger.Warn("shutdown from result callback", zap.Error(err))
			}
		}()
		return nil
	}
	return b.drain(timeout)
}

func (b *Bridge) drain(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		n := b.abandonPending()
		err = fmt.Errorf("timeout waiting for pending calls, abandoned %d", n)
		<-done
	}

	b.cancel()
	close(b.stop)
	<-b.loopDone
	return err
}

func (b *Bridge) dispatch(call *message.MethodCall, sink *result.Sink) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.Int32("callId", call.ID()),
				zap.String("method", call.Method()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			sink.Error(message.NewError(message.CodeInternal, fmt.Sprintf("handler panicked: %v", r), nil))
		}
	}()
	b.handler(b.ctx, call, sink)
}

func (b *Bridge) deliverLoop() {
	defer close(b.loopDone)
	for {
		select {
		case c := <-b.completions:
			b.deliver(c)
		case <-b.stop:
			return
		}
	}
}

func (b *Bridge) deliver(c completion) {
	pc := c.call
	if !b.pending.CompareAndDelete(pc.callID, pc) {
		b.logger.Warn("result for unknown call discarded", zap.Int32("callId", pc.callID), zap.String("method", pc.method))
		b.discarded.Add(1)
		return
	}
	b.outstanding.Add(-1)
	defer b.wg.Done()

	envelope, err := codec.EncodeOutcome(c.outcome, b.includeCallID)
	if err != nil {
		b.logger.Error("failed to encode result", zap.Int32("callId", pc.callID), zap.String("method", pc.method), zap.Error(err))
		envelope, _ = codec.EncodeOutcome(result.Outcome{
			CallID: pc.callID,
			Kind:   result.KindError,
			Err:    message.NewError(message.CodeEncodeFailed, err.Error(), nil),
		}, b.includeCallID)
	}

	b.delivered.Add(1)
	b.inCallback.Store(true)
	defer b.inCallback.Store(false)
	b.send(pc.callID, pc.onResult, envelope)
}

func (b *Bridge) reject(callID int32, method string, onResult func(string), merr *message.MethodError) {
	b.logger.Info("call rejected",
		zap.Int32("callId", callID),
		zap.String("method", method),
		zap.String("code", merr.Code()),
		zap.String("message", merr.Message()))
	b.rejected.Add(1)

	envelope, err := codec.EncodeOutcome(result.Outcome{CallID: callID, Kind: result.KindError, Err: merr}, b.includeCallID)
	if err != nil {
		b.logger.Error("failed to encode rejection", zap.Int32("callId", callID), zap.Error(err))
		return
	}
	b.send(callID, onResult, envelope)
}

func (b *Bridge) discard(pc *pendingCall, o result.Outcome) {
	b.discarded.Add(1)
	b.logger.Warn("result discarded, call already resolved",
		zap.Int32("callId", pc.callID),
		zap.String("method", pc.method),
		zap.Stringer("outcome", o.Kind))
}

// send records the envelope and hands it to the host. A panicking callback is logged.
func (b *Bridge) send(callID int32, onResult func(string), envelope []byte) {
	if b.recorder != nil {
		if err := b.recorder.RecordResult(callID, envelope); err != nil {
			b.logger.Warn("failed to record result", zap.Int32("callId", callID), zap.Error(err))
		}
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("result callback panicked", zap.Int32("callId", callID), zap.Any("panic", r))
		}
	}()
	onResult(string(envelope))
}

func (b *Bridge) abandonPending() int {
	n := 0
	b.pending.Range(func(_, value any) bool {
		pc := value.(*pendingCall)
		if pc.sink.Resolved() {
			return true
		}
		if pc.sink.TryError(message.NewError(message.CodeBridgeClosed, "bridge shut down before the call completed", nil)) {
			n++
			b.abandoned.Add(1)
		}
		return true
	})
	return n
}

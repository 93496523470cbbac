package middleware

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"guru-bridge/message"
	"guru-bridge/result"
)

func echoHandler(_ context.Context, call *message.MethodCall, res result.Result) {
	res.Success(call.Arguments())
}

func slowHandler(_ context.Context, call *message.MethodCall, res result.Result) {
	time.Sleep(200 * time.Millisecond)
	res.Success("late")
}

func failHandler(_ context.Context, _ *message.MethodCall, res result.Result) {
	res.Error(message.NewError("E1", "boom", nil))
}

// collect runs h for one call and waits for its outcome.
func collect(t *testing.T, h HandlerFunc, method string) (result.Outcome, *result.Sink) {
	t.Helper()
	outcomes := make(chan result.Outcome, 1)
	sink := result.NewSink(1, func(o result.Outcome) { outcomes <- o }, nil)
	h(context.Background(), message.NewMethodCallWithID(method, map[string]any{"x": int64(1)}, 1), sink)

	select {
	case o := <-outcomes:
		return o, sink
	case <-time.After(2 * time.Second):
		t.Fatal("call never resolved")
		return result.Outcome{}, nil
	}
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := LoggingMiddleware(zap.New(core))(echoHandler)

	o, _ := collect(t, handler, "echo")
	assert.Equal(t, result.KindSuccess, o.Kind)

	entries := logs.FilterMessage("call completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "echo", entries[0].ContextMap()["method"])

	failing := LoggingMiddleware(zap.New(core))(failHandler)
	o, _ = collect(t, failing, "fail")
	assert.Equal(t, "E1", o.Err.Code())
	assert.Equal(t, 1, logs.FilterMessage("call failed").Len())
}

func TestLoggingReportsDiscards(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	twice := func(_ context.Context, _ *message.MethodCall, res result.Result) {
		res.Success(1)
		res.Success(2)
	}

	o, sink := collect(t, LoggingMiddleware(zap.New(core))(twice), "twice")
	assert.Equal(t, 1, o.Value)
	assert.Equal(t, int64(1), sink.Discarded())
	assert.Equal(t, 1, logs.FilterMessage("result discarded, call already resolved").Len())
}

func TestTimeoutPass(t *testing.T) {
	o, _ := collect(t, TimeOutMiddleware(500*time.Millisecond)(echoHandler), "echo")
	assert.Equal(t, result.KindSuccess, o.Kind)
}

func TestTimeoutExceeded(t *testing.T) {
	o, sink := collect(t, TimeOutMiddleware(50*time.Millisecond)(slowHandler), "slow")
	require.Equal(t, result.KindError, o.Kind)
	assert.Equal(t, message.CodeTimeout, o.Err.Code())

	// the handler's late success is absorbed as a discard
	assert.Eventually(t, func() bool { return sink.Discarded() == 1 }, time.Second, 10*time.Millisecond)
}

func TestRetry(t *testing.T) {
	var attempts atomic.Int32
	busy := func(_ context.Context, _ *message.MethodCall, res result.Result) {
		if attempts.Add(1) < 3 {
			res.Error(message.NewError("sqlite_error", "database is locked", nil))
			return
		}
		res.Success("done")
	}
	retryable := func(err *message.MethodError) bool { return err.Message() == "database is locked" }

	o, _ := collect(t, RetryMiddleware(zap.NewNop(), 3, time.Millisecond, retryable)(busy), "execute")
	assert.Equal(t, "done", o.Value)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryGivesUp(t *testing.T) {
	var attempts atomic.Int32
	h := func(ctx context.Context, call *message.MethodCall, res result.Result) {
		attempts.Add(1)
		failHandler(ctx, call, res)
	}

	o, _ := collect(t, RetryMiddleware(zap.NewNop(), 2, time.Millisecond, func(*message.MethodError) bool { return true })(h), "fail")
	assert.Equal(t, "E1", o.Err.Code())
	assert.Equal(t, int32(3), attempts.Load())

	attempts.Store(0)
	o, _ = collect(t, RetryMiddleware(zap.NewNop(), 2, time.Millisecond, func(*message.MethodError) bool { return false })(h), "fail")
	assert.Equal(t, "E1", o.Err.Code())
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRetryStopsWaitingWhenContextEnds(t *testing.T) {
	never := func(context.Context, *message.MethodCall, result.Result) {}
	h := Chain(
		TimeOutMiddleware(20*time.Millisecond),
		RetryMiddleware(zap.NewNop(), 3, time.Millisecond, func(*message.MethodError) bool { return true }),
	)(never)

	baseline := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		o, _ := collect(t, h, "never")
		require.Equal(t, message.CodeTimeout, o.Err.Code())
	}

	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= baseline+5 },
		2*time.Second, 20*time.Millisecond)
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2: the first two pass, the third is rejected
	handler := RateLimitMiddleware(1, 2)(echoHandler)

	for i := 0; i < 2; i++ {
		o, _ := collect(t, handler, "echo")
		assert.Equal(t, result.KindSuccess, o.Kind, "call %d should pass", i)
	}

	o, _ := collect(t, handler, "echo")
	require.Equal(t, result.KindError, o.Kind)
	assert.Equal(t, message.CodeRateLimited, o.Err.Code())
}

func TestValidateArguments(t *testing.T) {
	mw, err := ValidateArgumentsMiddleware(map[string]string{
		"echo": `{"type":"object","required":["x","y"],"properties":{"x":{"type":"integer"}}}`,
	})
	require.NoError(t, err)
	handler := mw(echoHandler)

	o, _ := collect(t, handler, "echo")
	require.Equal(t, result.KindError, o.Kind)
	assert.Equal(t, message.CodeBadParam, o.Err.Code())
	assert.NotEmpty(t, o.Err.Details())

	o, _ = collect(t, handler, "other")
	assert.Equal(t, result.KindSuccess, o.Kind)

	_, err = ValidateArgumentsMiddleware(map[string]string{"bad": `{"type":`})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, call *message.MethodCall, res result.Result) {
				order = append(order, name)
				next(ctx, call, res)
			}
		}
	}

	handler := Chain(tag("outer"), LoggingMiddleware(zap.NewNop()), TimeOutMiddleware(500*time.Millisecond), tag("inner"))(echoHandler)
	o, _ := collect(t, handler, "echo")
	assert.Equal(t, result.KindSuccess, o.Kind)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

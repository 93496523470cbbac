package result

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guru-bridge/message"
)

func TestSinkDeliversOnce(t *testing.T) {
	var delivered []Outcome
	var discarded []Outcome
	sink := NewSink(5, func(o Outcome) { delivered = append(delivered, o) },
		func(o Outcome) { discarded = append(discarded, o) })

	assert.False(t, sink.Resolved())
	sink.Success(map[string]any{"x": int64(1)})
	sink.Error(message.NewError("E1", "late", nil))
	sink.NotImplemented()

	require.Len(t, delivered, 1)
	assert.Equal(t, KindSuccess, delivered[0].Kind)
	assert.Equal(t, int32(5), delivered[0].CallID)
	assert.True(t, sink.Resolved())
	assert.Equal(t, int64(2), sink.Discarded())
	require.Len(t, discarded, 2)
	assert.Equal(t, KindError, discarded[0].Kind)
	assert.Equal(t, KindNotImplemented, discarded[1].Kind)

	select {
	case <-sink.Done():
	default:
		t.Fatal("expect done channel to be closed")
	}
}

func TestSinkRaceDeliversExactlyOnce(t *testing.T) {
	for round := 0; round < 50; round++ {
		var deliveries atomic.Int64
		sink := NewSink(1, func(Outcome) { deliveries.Add(1) }, nil)

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				if i%2 == 0 {
					sink.Success(i)
				} else {
					sink.Error(message.NewError("E", "race", nil))
				}
			}(i)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int64(1), deliveries.Load())
		assert.Equal(t, int64(15), sink.Discarded())
	}
}

func TestForwardPropagatesDiscards(t *testing.T) {
	var delivered atomic.Int64
	outer := NewSink(9, func(Outcome) { delivered.Add(1) }, nil)
	inner := Forward(9, outer)

	inner.Success("first")
	inner.Success("second")

	assert.Equal(t, int64(1), delivered.Load())
	assert.Equal(t, int64(1), inner.Discarded())
	assert.Equal(t, int64(1), outer.Discarded())
}

func TestOutcomeApply(t *testing.T) {
	var got []Kind
	sinkFor := func() *Sink {
		return NewSink(1, func(o Outcome) { got = append(got, o.Kind) }, nil)
	}

	Outcome{Kind: KindSuccess, Value: 1}.Apply(sinkFor())
	Outcome{Kind: KindError, Err: message.NewError("E", "m", nil)}.Apply(sinkFor())
	Outcome{Kind: KindNotImplemented}.Apply(sinkFor())

	assert.Equal(t, []Kind{KindSuccess, KindError, KindNotImplemented}, got)
	assert.Equal(t, "notImplemented", KindNotImplemented.String())
}

func TestTryErrorReportsWinner(t *testing.T) {
	var delivered []Outcome
	sink := NewSink(3, func(o Outcome) { delivered = append(delivered, o) }, nil)

	assert.True(t, sink.TryError(message.NewError("E1", "first", nil)))
	assert.False(t, sink.TryError(message.NewError("E2", "second", nil)))

	require.Len(t, delivered, 1)
	assert.Equal(t, "E1", delivered[0].Err.Code())
	assert.Equal(t, int64(1), sink.Discarded())
}

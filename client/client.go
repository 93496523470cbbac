// Package client is the host side of the bridge, written in Go: it allocates call ids,
// encodes arguments, waits for the envelope and decodes it back into values.
//
// bridgectl and the tests drive the bridge through it the way the Unity host does
// through the C entry point.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"guru-bridge/codec"
	"guru-bridge/message"
	"guru-bridge/result"
)

var ErrNotImplemented = errors.New("method not implemented")

// Invoker is the flat entry point a host calls. *bridge.Bridge implements it.
type Invoker interface {
	Invoke(callID int32, method, jsonArguments string, onResult func(string)) error
}

type Client struct {
	invoker Invoker
	codec   codec.Codec
	seq     atomic.Int32 // Last allocated call id, host ids start at 1
	pending sync.Map     // map[int32]chan string, each call waits on its own channel
}

func New(inv Invoker) *Client {
	return &Client{
		invoker: inv,
		codec:   codec.GetCodec(codec.CodecTypeJSON),
	}
}

// Call invokes method and waits for its envelope. A failure envelope is returned as a
// *message.MethodError; a not-implemented one wraps ErrNotImplemented.
func (c *Client) Call(ctx context.Context, method string, args map[string]any) (any, error) {
	envelope, err := c.CallRaw(ctx, method, args)
	if err != nil {
		return nil, err
	}

	o, err := codec.DecodeOutcome([]byte(envelope))
	if err != nil {
		return nil, fmt.Errorf("decode result of %s: %w", method, err)
	}
	switch o.Kind {
	case result.KindError:
		return nil, o.Err
	case result.KindNotImplemented:
		return nil, fmt.Errorf("%s: %w", method, ErrNotImplemented)
	default:
		return o.Value, nil
	}
}

// CallRaw invokes method and returns the envelope exactly as the bridge produced it.
func (c *Client) CallRaw(ctx context.Context, method string, args map[string]any) (string, error) {
	jsonArgs := "null"
	if args != nil {
		payload, err := c.codec.Encode(args)
		if err != nil {
			return "", fmt.Errorf("encode arguments of %s: %w", method, err)
		}
		jsonArgs = string(payload)
	}
	return c.CallJSON(ctx, method, jsonArgs)
}

// CallJSON invokes method with pre-encoded argument JSON.
func (c *Client) CallJSON(ctx context.Context, method, jsonArgs string) (string, error) {
	id := c.seq.Add(1)
	respChan := make(chan string, 1) // Buffered so the bridge never blocks on a caller that gave up
	c.pending.Store(id, respChan)

	err := c.invoker.Invoke(id, method, jsonArgs, func(envelope string) {
		if ch, ok := c.pending.LoadAndDelete(id); ok {
			ch.(chan string) <- envelope
		}
	})
	if err != nil {
		c.pending.Delete(id)
		return "", err
	}

	select {
	case envelope := <-respChan:
		return envelope, nil
	case <-ctx.Done():
		c.pending.Delete(id)
		return "", ctx.Err()
	}
}

// AsMethodError unwraps err into a *message.MethodError when it is one.
func AsMethodError(err error) (*message.MethodError, bool) {
	var merr *message.MethodError
	ok := errors.As(err, &merr)
	return merr, ok
}

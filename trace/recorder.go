// Package trace records bridge traffic to a frame stream and reads it back.
//
// A trace starts with one session frame, followed by a call frame for every accepted
// invocation and a result frame for every envelope delivered to the host. Call and
// result frames carry the host call id in the frame header so they can be paired.
package trace

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"guru-bridge/codec"
	"guru-bridge/protocol"
)

// Session is the metadata stored in the first frame of a trace.
type Session struct {
	ID      string
	Started time.Time
}

// Recorder appends frames to a writer. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	codec   codec.Codec
	session Session
	closed  bool
}

// NewRecorder writes the session frame to w and returns a recorder for the rest of the trace.
func NewRecorder(w io.Writer, c codec.Codec) (*Recorder, error) {
	if c == nil {
		c = codec.GetCodec(codec.CodecTypeJSON)
	}
	r := &Recorder{
		w:       w,
		codec:   c,
		session: Session{ID: uuid.NewString(), Started: time.Now().UTC()},
	}
	if closer, ok := w.(io.Closer); ok {
		r.closer = closer
	}

	body, err := c.Encode(map[string]any{
		"id":      r.session.ID,
		"started": r.session.Started.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	if err := r.write(protocol.MsgTypeSession, 0, body); err != nil {
		return nil, fmt.Errorf("write session: %w", err)
	}
	return r, nil
}

// Create truncates or creates the file at path and starts a trace in it.
func Create(path string, c codec.Codec) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	r, err := NewRecorder(f, c)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) SessionID() string { return r.session.ID }

// RecordCall stores an accepted invocation.
func (r *Recorder) RecordCall(callID int32, method string, arguments map[string]any) error {
	body, err := r.codec.Encode(map[string]any{"method": method, "arguments": arguments})
	if err != nil {
		return fmt.Errorf("encode call %d: %w", callID, err)
	}
	return r.write(protocol.MsgTypeCall, callID, body)
}

// RecordResult stores the envelope delivered for callID.
func (r *Recorder) RecordResult(callID int32, envelope []byte) error {
	body, err := r.codec.Encode(map[string]any{"envelope": string(envelope)})
	if err != nil {
		return fmt.Errorf("encode result %d: %w", callID, err)
	}
	return r.write(protocol.MsgTypeResult, callID, body)
}

// Close closes the underlying writer when it is closable. Later records fail.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Recorder) write(mt protocol.MsgType, callID int32, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return os.ErrClosed
	}
	return protocol.Encode(r.w, &protocol.Header{
		CodecType: byte(r.codec.Type()),
		MsgType:   mt,
		CallID:    callID,
	}, body)
}

package trace

import (
	"errors"
	"fmt"
	"io"
	"time"

	"guru-bridge/codec"
	"guru-bridge/protocol"
)

// Entry is one decoded call or result frame.
type Entry struct {
	Type      protocol.MsgType
	CallID    int32
	Method    string         // call frames
	Arguments map[string]any // call frames
	Envelope  string         // result frames
}

// Record pairs a call with the envelope delivered for it. Envelope is empty when the
// trace ended before the call completed.
type Record struct {
	CallID    int32
	Method    string
	Arguments map[string]any
	Envelope  string
}

type Reader struct {
	r       io.Reader
	session Session
}

// NewReader consumes the session frame and returns a reader positioned at the first call.
func NewReader(r io.Reader) (*Reader, error) {
	h, body, err := protocol.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if h.MsgType != protocol.MsgTypeSession {
		return nil, fmt.Errorf("trace starts with a %s frame", h.MsgType)
	}
	v, err := decodeBody(h, body)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	tr := &Reader{r: r}
	tr.session.ID, _ = v["id"].(string)
	if started, ok := v["started"].(string); ok {
		tr.session.Started, _ = time.Parse(time.RFC3339Nano, started)
	}
	return tr, nil
}

func (tr *Reader) Session() Session { return tr.session }

// Next returns the next entry, or io.EOF at the end of the trace.
func (tr *Reader) Next() (*Entry, error) {
	h, body, err := protocol.Decode(tr.r)
	if err != nil {
		return nil, err
	}
	v, err := decodeBody(h, body)
	if err != nil {
		return nil, fmt.Errorf("decode %s frame for call %d: %w", h.MsgType, h.CallID, err)
	}

	e := &Entry{Type: h.MsgType, CallID: h.CallID}
	switch h.MsgType {
	case protocol.MsgTypeCall:
		e.Method, _ = v["method"].(string)
		e.Arguments, _ = v["arguments"].(map[string]any)
		if e.Arguments == nil {
			e.Arguments = map[string]any{}
		}
	case protocol.MsgTypeResult:
		e.Envelope, _ = v["envelope"].(string)
	default:
		return nil, fmt.Errorf("unexpected %s frame inside trace", h.MsgType)
	}
	return e, nil
}

// ReadAll pairs every call with its result, in call order.
func (tr *Reader) ReadAll() ([]Record, error) {
	var records []Record
	open := map[int32]int{}
	for {
		e, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}

		switch e.Type {
		case protocol.MsgTypeCall:
			open[e.CallID] = len(records)
			records = append(records, Record{CallID: e.CallID, Method: e.Method, Arguments: e.Arguments})
		case protocol.MsgTypeResult:
			// bad-json and closed-bridge results have no call frame
			i, ok := open[e.CallID]
			if !ok {
				records = append(records, Record{CallID: e.CallID, Envelope: e.Envelope})
				continue
			}
			records[i].Envelope = e.Envelope
			delete(open, e.CallID)
		}
	}
}

func decodeBody(h *protocol.Header, body []byte) (map[string]any, error) {
	var v any
	if err := codec.GetCodec(codec.CodecType(h.CodecType)).Decode(body, &v); err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("frame body is %T, want an object", v)
	}
	return m, nil
}

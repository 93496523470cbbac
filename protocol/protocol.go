// Package protocol implements the binary frame format used by bridge trace files.
//
// A trace is a flat stream of frames: one session frame, then a call frame and a result
// frame per invocation. Each frame is a fixed 14-byte header followed by a
// variable-length body. The reader takes the header first to learn the body length,
// then reads exactly that many bytes.
//
// Frame format:
//
//	0      3  4  5  6         10        14
//	┌──────┬──┬──┬──┬─────────┬─────────┬───────────────┐
//	│magic │v │ct│mt│ callId  │ bodyLen │    body ...    │
//	│ gsb  │01│  │  │  int32  │ uint32  │ bodyLen bytes  │
//	└──────┴──┴──┴──┴─────────┴─────────┴───────────────┘
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic number bytes: "gsb" (guru sqlite bridge).
// Used to reject files that are not bridge traces before any body is read.
const (
	MagicNumber byte = 0x67 // 'g'
	MagicByte2  byte = 0x73 // 's'
	MagicByte3  byte = 0x62 // 'b'
	Version     byte = 0x01
	HeaderSize  int  = 14 // 3 (magic) + 1 (version) + 1 (codec) + 1 (msgType) + 4 (callId) + 4 (bodyLen)

	// MaxBodyLen bounds a single frame body. Database images travel inside result bodies.
	MaxBodyLen uint32 = 256 << 20
)

// MsgType distinguishes session, call, and result frames.
type MsgType byte

const (
	MsgTypeCall    MsgType = 0 // Host → plugin invocation
	MsgTypeResult  MsgType = 1 // Plugin → host result envelope
	MsgTypeSession MsgType = 2 // First frame of a trace, carries session metadata
)

func (t MsgType) String() string {
	switch t {
	case MsgTypeCall:
		return "call"
	case MsgTypeResult:
		return "result"
	case MsgTypeSession:
		return "session"
	default:
		return fmt.Sprintf("msgtype(%d)", byte(t))
	}
}

// Codec type constants, mirrored from codec package to avoid circular import.
const (
	CodecTypeJSON byte = 0
	CodecTypeCBOR byte = 1
)

// Header represents the fixed 14-byte frame header.
type Header struct {
	CodecType byte    // Body serialization: 0=JSON, 1=CBOR
	MsgType   MsgType // Session, Call, or Result
	CallID    int32   // Host call id; pairs a call frame with its result frame
	BodyLen   uint32  // Body length in bytes
}

// Encode writes a complete frame (header + body) to w.
// The caller must hold a write lock if multiple goroutines share the same writer,
// otherwise frames from different calls will interleave and corrupt the stream.
func Encode(w io.Writer, h *Header, body []byte) error {
	if uint64(len(body)) > uint64(MaxBodyLen) {
		return fmt.Errorf("body too large: %d bytes", len(body))
	}
	buf := make([]byte, HeaderSize)

	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = h.CodecType
	buf[5] = byte(h.MsgType)
	// Call id: 4 bytes, big-endian, two's complement so generated negative ids survive
	binary.BigEndian.PutUint32(buf[6:10], uint32(h.CallID))
	// Body length is taken from the body, not from h
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(body)))

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	h.BodyLen = uint32(len(body))
	return nil
}

// Decode reads a complete frame (header + body) from r.
// It validates the magic number, version, codec type, message type and body length.
// A clean end of stream before any header byte is reported as io.EOF.
func Decode(r io.Reader) (*Header, []byte, error) {
	// Step 1: Read the fixed 14-byte header
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, nil, err
	}

	// Step 2: Validate magic number
	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, nil, fmt.Errorf("%w: %x", ErrBadMagic, headerBuf[0:3])
	}

	// Step 3: Validate version
	if headerBuf[3] != Version {
		return nil, nil, fmt.Errorf("unsupported version: %d", headerBuf[3])
	}

	// Step 4: Validate codec type
	if headerBuf[4] != CodecTypeJSON && headerBuf[4] != CodecTypeCBOR {
		return nil, nil, fmt.Errorf("unsupported codec type: %d", headerBuf[4])
	}

	// Step 5: Validate message type
	msgType := MsgType(headerBuf[5])
	if msgType != MsgTypeCall && msgType != MsgTypeResult && msgType != MsgTypeSession {
		return nil, nil, fmt.Errorf("unsupported message type: %d", msgType)
	}

	// Step 6: Parse call id and body length
	callID := int32(binary.BigEndian.Uint32(headerBuf[6:10]))
	bodyLen := binary.BigEndian.Uint32(headerBuf[10:14])
	if bodyLen > MaxBodyLen {
		return nil, nil, fmt.Errorf("body too large: %d bytes", bodyLen)
	}

	// Step 7: Read exactly bodyLen bytes; a short read means a truncated trace
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, err
	}

	return &Header{
		CodecType: headerBuf[4],
		MsgType:   msgType,
		CallID:    callID,
		BodyLen:   bodyLen,
	}, body, nil
}

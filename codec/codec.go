// Package codec converts between the bridge's in-memory value trees and their wire forms.
//
// Two wire formats exist:
//   - JSON: what the host sees. Byte buffers travel as {"__bytes__": "<base64>"} objects.
//   - CBOR: a compact binary form used for trace bodies. Byte buffers are native byte strings.
//
// Value trees are built from nil, bool, int64, float64, string, message.TypedData,
// []any and map[string]any.
package codec

import "fmt"

type CodecType byte

const (
	CodecTypeJSON CodecType = 0
	CodecTypeCBOR CodecType = 1
)

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeCBOR:
		return "cbor"
	default:
		return fmt.Sprintf("codec(%d)", byte(t))
	}
}

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=JSON, 1=CBOR
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeCBOR {
		return &CBORCodec{}
	}

	return &JSONCodec{}
}

// ParseCodecType maps a configuration name to a CodecType.
func ParseCodecType(name string) (CodecType, error) {
	switch name {
	case "", "json":
		return CodecTypeJSON, nil
	case "cbor":
		return CodecTypeCBOR, nil
	default:
		return 0, fmt.Errorf("unknown codec %q", name)
	}
}

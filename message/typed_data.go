package message

import (
	"encoding/base64"
	"encoding/json"
)

// BytesTag is the single key of the JSON object a TypedData is encoded as:
//
//	{"__bytes__": "<base64>"}
const BytesTag = "__bytes__"

// TypedData wraps a raw byte buffer so it stays distinguishable from strings and lists
// inside generic argument and result trees.
type TypedData struct {
	data []byte
}

// NewTypedData copies b; later writes to b do not affect the wrapper.
func NewTypedData(b []byte) TypedData {
	data := make([]byte, len(b))
	copy(data, b)
	return TypedData{data: data}
}

// Bytes returns a copy of the wrapped buffer.
func (d TypedData) Bytes() []byte {
	out := make([]byte, len(d.data))
	copy(out, d.data)
	return out
}

func (d TypedData) Len() int { return len(d.data) }

// MarshalJSON emits the tagged form so TypedData can go through encoding/json unchanged.
func (d TypedData) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{BytesTag: base64.StdEncoding.EncodeToString(d.data)})
}

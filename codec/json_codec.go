package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// JSONCodec is the host-facing wire format. Byte leaves are tagged on the way out and
// recognized on the way in when decoding into *any.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return marshalJSON(toJSONWire(v))
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	target, ok := v.(*any)
	if !ok {
		return json.Unmarshal(data, v)
	}
	raw, err := decodeJSONValue(data)
	if err != nil {
		return err
	}
	*target = fromJSONWire(raw)
	return nil
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}

// marshalJSON encodes without HTML escaping so SQL text reaches the host untouched.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// decodeJSONValue parses exactly one JSON value, keeping numbers as json.Number.
func decodeJSONValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value at offset %d", dec.InputOffset())
	}
	return v, nil
}

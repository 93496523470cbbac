package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// CBORCodec stores value trees with deterministic core encoding. Byte buffers are
// carried as native CBOR byte strings rather than tagged base64.
type CBORCodec struct{}

func (c *CBORCodec) Encode(v any) ([]byte, error) {
	return cborEnc.Marshal(toCBORWire(v))
}

func (c *CBORCodec) Decode(data []byte, v any) error {
	target, ok := v.(*any)
	if !ok {
		return cborDec.Unmarshal(data, v)
	}
	var raw any
	if err := cborDec.Unmarshal(data, &raw); err != nil {
		return err
	}
	*target = fromCBORWire(raw)
	return nil
}

func (c *CBORCodec) Type() CodecType {
	return CodecTypeCBOR
}

package codec

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"guru-bridge/message"
)

// toJSONWire rewrites byte leaves into their tagged form. Containers are copied so the
// caller's tree is never modified.
func toJSONWire(v any) any {
	switch t := v.(type) {
	case message.TypedData:
		return map[string]any{message.BytesTag: base64.StdEncoding.EncodeToString(t.Bytes())}
	case []byte:
		return map[string]any{message.BytesTag: base64.StdEncoding.EncodeToString(t)}
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = toJSONWire(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toJSONWire(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toJSONWire(item)
		}
		return out
	case json.Marshaler:
		return v
	default:
		return walkTyped(v, toJSONWire)
	}
}

// fromJSONWire is the inverse of toJSONWire for trees decoded with UseNumber.
func fromJSONWire(v any) any {
	switch t := v.(type) {
	case json.Number:
		return normalizeNumber(t)
	case map[string]any:
		if data, ok := taggedBytes(t); ok {
			return data
		}
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = fromJSONWire(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromJSONWire(item)
		}
		return out
	default:
		return v
	}
}

// walkTyped handles the containers the type switches above do not name, such as
// map[string][]byte or [][]byte, by rebuilding them as generic trees with leaf applied to
// every element. Named byte slices become []byte. Nil containers and maps with non-string
// keys are returned unchanged.
func walkTyped(v any, leaf func(any) any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return leaf(rv.Bytes())
		}
		return walkSequence(rv, leaf)
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		return walkSequence(rv, leaf)
	case reflect.Map:
		if rv.IsNil() || rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = leaf(iter.Value().Interface())
		}
		return out
	default:
		return v
	}
}

func walkSequence(rv reflect.Value, leaf func(any) any) []any {
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = leaf(rv.Index(i).Interface())
	}
	return out
}

// taggedBytes recognizes {"__bytes__": "<base64>"}: exactly one key holding valid base64.
func taggedBytes(m map[string]any) (message.TypedData, bool) {
	if len(m) != 1 {
		return message.TypedData{}, false
	}
	encoded, ok := m[message.BytesTag].(string)
	if !ok {
		return message.TypedData{}, false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return message.TypedData{}, false
	}
	return message.NewTypedData(raw), true
}

// normalizeNumber keeps integers as int64 and everything else as float64.
func normalizeNumber(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) {
		return n.String()
	}
	return f
}

// toCBORWire unwraps TypedData into native byte strings.
func toCBORWire(v any) any {
	switch t := v.(type) {
	case message.TypedData:
		return t.Bytes()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = toCBORWire(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toCBORWire(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = toCBORWire(item)
		}
		return out
	case cbor.Marshaler:
		return v
	default:
		return walkTyped(v, toCBORWire)
	}
}

// fromCBORWire wraps byte strings back into TypedData and folds CBOR's unsigned integers
// into int64.
func fromCBORWire(v any) any {
	switch t := v.(type) {
	case []byte:
		return message.NewTypedData(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return float64(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = fromCBORWire(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = fromCBORWire(item)
		}
		return out
	default:
		return v
	}
}

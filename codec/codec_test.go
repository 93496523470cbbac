package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guru-bridge/message"
	"guru-bridge/result"
)

func TestDecodeArguments(t *testing.T) {
	args, err := DecodeArguments(`{"x":42,"ratio":0.5,"name":"a<b","blob":{"__bytes__":"AAEC/w=="},"list":[1,null,true]}`)
	require.NoError(t, err)

	assert.Equal(t, int64(42), args["x"])
	assert.Equal(t, 0.5, args["ratio"])
	assert.Equal(t, "a<b", args["name"])
	assert.Equal(t, message.NewTypedData([]byte{0, 1, 2, 255}), args["blob"])
	assert.Equal(t, []any{int64(1), nil, true}, args["list"])
}

func TestDecodeArgumentsNullAndBlank(t *testing.T) {
	for _, in := range []string{"null", "", "  \n"} {
		args, err := DecodeArguments(in)
		require.NoError(t, err, "input %q", in)
		assert.Empty(t, args)
	}
}

func TestDecodeArgumentsRejects(t *testing.T) {
	for _, in := range []string{"{not json", "[1,2]", `"text"`, "42", `{"a":1} {"b":2}`} {
		_, err := DecodeArguments(in)
		assert.Error(t, err, "input %q", in)
	}

	_, err := DecodeArguments("[]")
	assert.ErrorIs(t, err, ErrArgumentsNotObject)
}

func TestDecodeArgumentsTopLevelTagIsAMap(t *testing.T) {
	args, err := DecodeArguments(`{"__bytes__":"AAE="}`)
	require.NoError(t, err)
	assert.Equal(t, "AAE=", args[message.BytesTag])
}

func TestEncodeOutcome(t *testing.T) {
	tests := []struct {
		name string
		o    result.Outcome
		want string
	}{
		{
			name: "success",
			o:    result.Outcome{Kind: result.KindSuccess, Value: map[string]any{"x": int64(42)}},
			want: `{"result":{"x":42}}`,
		},
		{
			name: "null success",
			o:    result.Outcome{Kind: result.KindSuccess},
			want: `{"result":null}`,
		},
		{
			name: "failure",
			o:    result.Outcome{Kind: result.KindError, Err: message.NewError("E1", "boom", nil)},
			want: `{"error":{"code":"E1","message":"boom","details":null}}`,
		},
		{
			name: "failure without message",
			o:    result.Outcome{Kind: result.KindError, Err: message.NewError("E2", "", nil)},
			want: `{"error":{"code":"E2","message":null,"details":null}}`,
		},
		{
			name: "not implemented",
			o:    result.Outcome{Kind: result.KindNotImplemented},
			want: `{"notImplemented":true}`,
		},
		{
			name: "bytes",
			o:    result.Outcome{Kind: result.KindSuccess, Value: []any{message.NewTypedData([]byte{1, 2}), []byte{3}}},
			want: `{"result":[{"__bytes__":"AQI="},{"__bytes__":"Aw=="}]}`,
		},
		{
			name: "bytes in typed map",
			o:    result.Outcome{Kind: result.KindSuccess, Value: map[string][]byte{"a": {1}, "b": nil}},
			want: `{"result":{"a":{"__bytes__":"AQ=="},"b":{"__bytes__":""}}}`,
		},
		{
			name: "bytes in typed slices",
			o: result.Outcome{Kind: result.KindSuccess, Value: map[string]any{
				"raw":   [][]byte{{1, 2}},
				"typed": []message.TypedData{message.NewTypedData([]byte{3})},
			}},
			want: `{"result":{"raw":[{"__bytes__":"AQI="}],"typed":[{"__bytes__":"Aw=="}]}}`,
		},
		{
			name: "typed containers without bytes",
			o:    result.Outcome{Kind: result.KindSuccess, Value: []string{"x"}},
			want: `{"result":["x"]}`,
		},
		{
			name: "raw json passes through",
			o:    result.Outcome{Kind: result.KindSuccess, Value: json.RawMessage(`{"a":1}`)},
			want: `{"result":{"a":1}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := EncodeOutcome(tt.o, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestEncodeOutcomeWithCallID(t *testing.T) {
	out, err := EncodeOutcome(result.Outcome{CallID: 7, Kind: result.KindNotImplemented}, true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"callId":7,"notImplemented":true}`, string(out))

	o, err := DecodeOutcome(out)
	require.NoError(t, err)
	assert.Equal(t, int32(7), o.CallID)
	assert.Equal(t, result.KindNotImplemented, o.Kind)
}

func TestEncodeOutcomeUnencodable(t *testing.T) {
	_, err := EncodeOutcome(result.Outcome{Kind: result.KindSuccess, Value: make(chan int)}, false)
	assert.Error(t, err)
}

func TestDecodeOutcome(t *testing.T) {
	o, err := DecodeOutcome([]byte(`{"error":{"code":"sqlite_error","message":"no such table","details":{"sql":"SELECT 1","arguments":[]}}}`))
	require.NoError(t, err)
	require.Equal(t, result.KindError, o.Kind)
	assert.Equal(t, "sqlite_error", o.Err.Code())
	assert.Equal(t, map[string]any{"sql": "SELECT 1", "arguments": []any{}}, o.Err.Details())

	o, err = DecodeOutcome([]byte(`{"result":{"blob":{"__bytes__":"/w=="}}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"blob": message.NewTypedData([]byte{255})}, o.Value)

	o, err = DecodeOutcome([]byte(`{"error":{"code":"E","message":null,"details":null}}`))
	require.NoError(t, err)
	assert.Equal(t, "E", o.Err.Code())
	assert.Empty(t, o.Err.Message())

	_, err = DecodeOutcome([]byte(`{"other":1}`))
	assert.Error(t, err)
}

func TestCodecsRoundTripValueTrees(t *testing.T) {
	tree := map[string]any{
		"columns": []any{"id", "data"},
		"rows":    []any{[]any{int64(-1), message.NewTypedData([]byte{9, 8})}},
		"ratio":   1.25,
		"ok":      true,
		"none":    nil,
	}

	for _, c := range []Codec{GetCodec(CodecTypeJSON), GetCodec(CodecTypeCBOR)} {
		t.Run(c.Type().String(), func(t *testing.T) {
			data, err := c.Encode(tree)
			require.NoError(t, err)

			var got any
			require.NoError(t, c.Decode(data, &got))
			assert.Equal(t, tree, got)
		})
	}
}

func TestCBORUnwrapsBytesInTypedContainers(t *testing.T) {
	c := GetCodec(CodecTypeCBOR)
	data, err := c.Encode(map[string]any{"blobs": []message.TypedData{message.NewTypedData([]byte{7})}})
	require.NoError(t, err)

	var got any
	require.NoError(t, c.Decode(data, &got))
	assert.Equal(t, map[string]any{"blobs": []any{message.NewTypedData([]byte{7})}}, got)
}

func TestParseCodecType(t *testing.T) {
	ct, err := ParseCodecType("cbor")
	require.NoError(t, err)
	assert.Equal(t, CodecTypeCBOR, ct)

	ct, err = ParseCodecType("")
	require.NoError(t, err)
	assert.Equal(t, CodecTypeJSON, ct)

	_, err = ParseCodecType("gob")
	assert.Error(t, err)
}

package trace

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guru-bridge/codec"
	"guru-bridge/message"
	"guru-bridge/protocol"
)

func TestRecordAndReadBack(t *testing.T) {
	for _, ct := range []codec.CodecType{codec.CodecTypeJSON, codec.CodecTypeCBOR} {
		t.Run(ct.String(), func(t *testing.T) {
			var buf bytes.Buffer
			rec, err := NewRecorder(&buf, codec.GetCodec(ct))
			require.NoError(t, err)

			args := map[string]any{"sql": "SELECT ?", "arguments": []any{message.NewTypedData([]byte{1, 2})}}
			require.NoError(t, rec.RecordCall(1, "query", args))
			require.NoError(t, rec.RecordCall(2, "openDatabase", map[string]any{"path": "a.db"}))
			require.NoError(t, rec.RecordResult(2, []byte(`{"result":{"id":1}}`)))
			require.NoError(t, rec.RecordResult(1, []byte(`{"result":null}`)))
			require.NoError(t, rec.RecordResult(9, []byte(`{"error":{"code":"bad-json","message":"x","details":null}}`)))

			tr, err := NewReader(&buf)
			require.NoError(t, err)
			assert.Equal(t, rec.SessionID(), tr.Session().ID)
			assert.False(t, tr.Session().Started.IsZero())

			records, err := tr.ReadAll()
			require.NoError(t, err)
			require.Len(t, records, 3)

			assert.Equal(t, "query", records[0].Method)
			assert.Equal(t, args, records[0].Arguments)
			assert.Equal(t, `{"result":null}`, records[0].Envelope)
			assert.Equal(t, int32(2), records[1].CallID)
			assert.Equal(t, `{"result":{"id":1}}`, records[1].Envelope)
			assert.Equal(t, int32(9), records[2].CallID)
			assert.Empty(t, records[2].Method)
		})
	}
}

func TestReaderRejectsForeignStream(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("SQLite format 3\x00")))
	assert.True(t, errors.Is(err, protocol.ErrBadMagic), "got %v", err)
}

func TestReaderRequiresSessionFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, protocol.Encode(&buf, &protocol.Header{MsgType: protocol.MsgTypeCall, CallID: 1}, []byte(`{}`)))

	_, err := NewReader(&buf)
	assert.Error(t, err)
}

func TestCreateAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.trace")
	rec, err := Create(path, nil)
	require.NoError(t, err)
	require.NoError(t, rec.RecordCall(1, "getPlatformVersion", nil))
	require.NoError(t, rec.Close())
	assert.ErrorIs(t, rec.RecordResult(1, []byte(`{}`)), os.ErrClosed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	tr, err := NewReader(f)
	require.NoError(t, err)
	e, err := tr.Next()
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgTypeCall, e.Type)
	assert.Equal(t, "getPlatformVersion", e.Method)
	assert.Empty(t, e.Arguments)

	_, err = tr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

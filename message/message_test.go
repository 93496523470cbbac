package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodCallIsImmutable(t *testing.T) {
	args := map[string]any{"path": "a.db"}
	call := NewMethodCallWithID("openDatabase", args, 7)

	args["path"] = "b.db"
	got := call.Arguments()
	got["path"] = "c.db"

	path, ok := call.String("path")
	require.True(t, ok)
	assert.Equal(t, "a.db", path)
	assert.Equal(t, int32(7), call.ID())
	assert.Equal(t, "openDatabase", call.Method())
}

func TestGeneratedIDsAreUniqueAndNegative(t *testing.T) {
	seen := map[int32]bool{}
	for i := 0; i < 1000; i++ {
		call := NewMethodCall("query", nil)
		assert.Less(t, call.ID(), int32(0))
		assert.False(t, seen[call.ID()], "id %d generated twice", call.ID())
		seen[call.ID()] = true
	}
}

func TestTypedArgumentGetters(t *testing.T) {
	call := NewMethodCallWithID("execute", map[string]any{
		"id":            int64(3),
		"pageSize":      float64(10),
		"ratio":         1.5,
		"big":           json.Number("9007199254740993"),
		"inTransaction": true,
		"arguments":     []any{"x"},
		"options":       map[string]any{"k": "v"},
		"transactionId": nil,
	}, 1)

	id, ok := call.Int("id")
	require.True(t, ok)
	assert.Equal(t, int64(3), id)

	size, ok := call.Int("pageSize")
	require.True(t, ok)
	assert.Equal(t, int64(10), size)

	_, ok = call.Int("ratio")
	assert.False(t, ok)

	big, ok := call.Int("big")
	require.True(t, ok)
	assert.Equal(t, int64(9007199254740993), big)

	inTx, ok := call.Bool("inTransaction")
	require.True(t, ok)
	assert.True(t, inTx)

	list, ok := call.List("arguments")
	require.True(t, ok)
	assert.Equal(t, []any{"x"}, list)

	opts, ok := call.Map("options")
	require.True(t, ok)
	assert.Equal(t, "v", opts["k"])

	assert.True(t, call.HasArgument("transactionId"))
	assert.False(t, call.HasArgument("missing"))
}

func TestMethodError(t *testing.T) {
	err := NewError("E1", "boom", map[string]any{"sql": "SELECT 1"})
	assert.Equal(t, "E1", err.Code())
	assert.Equal(t, "boom", err.Message())
	assert.Equal(t, "E1: boom", err.Error())
	assert.Equal(t, "E2", NewError("E2", "", nil).Error())
}

func TestTypedDataCopiesAndTags(t *testing.T) {
	raw := []byte{0, 1, 2, 255}
	data := NewTypedData(raw)
	raw[0] = 9

	b := data.Bytes()
	assert.Equal(t, []byte{0, 1, 2, 255}, b)
	b[1] = 9
	assert.Equal(t, []byte{0, 1, 2, 255}, data.Bytes())
	assert.Equal(t, 4, data.Len())

	out, err := json.Marshal(map[string]any{"blob": data})
	require.NoError(t, err)
	assert.JSONEq(t, `{"blob":{"__bytes__":"AAEC/w=="}}`, string(out))
}

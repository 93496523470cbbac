package sqflite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"guru-bridge/message"
)

const sqliteTimeLayout = "2006-01-02 15:04:05.999999999"

// bindArguments converts decoded call arguments into driver values.
func bindArguments(args []any) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil, string, int64, float64:
			out[i] = v
		case int:
			out[i] = int64(v)
		case int32:
			out[i] = int64(v)
		case bool:
			if v {
				out[i] = int64(1)
			} else {
				out[i] = int64(0)
			}
		case message.TypedData:
			out[i] = v.Bytes()
		case []byte:
			out[i] = v
		default:
			return nil, fmt.Errorf("argument %d has unsupported type %T", i, a)
		}
	}
	return out, nil
}

// textColumn reports whether a declared column type has text affinity.
func textColumn(ct *sql.ColumnType) bool {
	if ct == nil {
		return false
	}
	name := strings.ToUpper(ct.DatabaseTypeName())
	return strings.Contains(name, "CHAR") || strings.Contains(name, "TEXT") || strings.Contains(name, "CLOB")
}

// columnValue converts a scanned value into the shape sent back to the host.
func columnValue(v any, ct *sql.ColumnType) any {
	switch t := v.(type) {
	case []byte:
		if textColumn(ct) {
			return string(t)
		}
		return message.NewTypedData(t)
	case time.Time:
		return t.Format(sqliteTimeLayout)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	default:
		return v
	}
}

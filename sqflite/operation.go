package sqflite

import (
	"strings"

	"guru-bridge/message"
)

// operation is one SQL request, either a whole method call or one entry of a batch.
type operation struct {
	method string
	args   map[string]any
}

func newOperation(method string, args map[string]any) *operation {
	if args == nil {
		args = map[string]any{}
	}
	return &operation{method: method, args: args}
}

func (o *operation) sql() string {
	s, _ := o.args[ParamSQL].(string)
	return s
}

func (o *operation) sqlArguments() []any {
	l, _ := o.args[ParamSQLArguments].([]any)
	return l
}

func (o *operation) noResult() bool {
	b, _ := o.args[ParamNoResult].(bool)
	return b
}

func (o *operation) continueOnError() bool {
	b, _ := o.args[ParamContinueOnError].(bool)
	return b
}

// inTransactionChange returns the requested transaction state change, if any.
func (o *operation) inTransactionChange() (bool, bool) {
	for _, key := range []string{ParamInTransaction, ParamInTransactionChange} {
		if b, ok := o.args[key].(bool); ok {
			return b, true
		}
	}
	return false, false
}

// hasNullTransactionID reports a transactionId key explicitly set to null, the marker of a
// client asking for a new transaction id.
func (o *operation) hasNullTransactionID() bool {
	v, ok := o.args[ParamTransactionID]
	return ok && v == nil
}

// transactionID returns the transaction the operation belongs to.
func (o *operation) transactionID() (int64, bool) {
	v, ok := o.args[ParamTransactionID]
	if !ok || v == nil {
		return 0, false
	}
	if s, ok := v.(string); ok && strings.EqualFold(s, TransactionIDForceString) {
		return TransactionIDForce, true
	}
	return message.AsInt(v)
}

func (o *operation) cursorPageSize() (int, bool) {
	n, ok := message.AsInt(o.args[ParamCursorPageSize])
	if !ok || n <= 0 {
		return 0, false
	}
	return int(n), true
}

// details is attached to SQL errors.
func (o *operation) details() map[string]any {
	d := map[string]any{ParamSQL: o.sql()}
	if args := o.sqlArguments(); args != nil {
		d[ParamSQLArguments] = args
	}
	return d
}

package sqflite

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"guru-bridge/message"
)

// queued is an operation waiting for the running transaction to finish.
type queued struct {
	run   func()
	abort func()
}

// cursor holds the rows of a paged query not yet sent to the host. Rows are read in full
// when the query runs since the database has a single connection.
type cursor struct {
	id       int64
	pageSize int
	columns  []any
	rows     []any
}

// Database is one open sqlite database. Apart from construction, every field is only
// touched from the worker that owns the database's path.
type Database struct {
	id             int64
	path           string
	readOnly       bool
	singleInstance bool
	db             *sqlx.DB
	logger         *zap.Logger
	logLevel       *atomic.Int32

	inTransaction bool
	currentTxID   int64 // 0 when no transaction id is active
	lastTxID      int64
	cursors       map[int64]*cursor
	lastCursorID  int64
	queue         []queued
	closed        bool
}

func (d *Database) String() string {
	return fmt.Sprintf("[%d] %s", d.id, d.path)
}

// run executes action now, or queues it while a transaction owned by another id is active.
// Queued actions run in arrival order once the transaction ends.
func (d *Database) run(op *operation, action, abort func()) {
	if d.blocked(op) {
		d.verbose("operation queued behind transaction",
			zap.String("method", op.method), zap.Int64("transactionId", d.currentTxID))
		d.queue = append(d.queue, queued{run: action, abort: abort})
		return
	}
	action()
	d.drain()
}

func (d *Database) blocked(op *operation) bool {
	if d.currentTxID == 0 {
		return false
	}
	id, ok := op.transactionID()
	return !ok || (id != d.currentTxID && id != TransactionIDForce)
}

func (d *Database) drain() {
	for len(d.queue) > 0 && d.currentTxID == 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		next.run()
	}
}

// execute runs a statement without result. It also tracks transaction state: a statement
// flagged inTransaction=true with a null transactionId opens a new transaction and returns
// its id; inTransaction=false ends it.
func (d *Database) execute(ctx context.Context, op *operation) (any, *message.MethodError) {
	change, hasChange := op.inTransactionChange()
	entering := hasChange && change
	if entering {
		d.inTransaction = true
	}

	if _, merr := d.exec(ctx, op); merr != nil {
		if entering {
			d.inTransaction = false
		}
		if hasChange && !change {
			d.endTransaction()
		}
		return nil, merr
	}

	if hasChange && !change {
		d.endTransaction()
		return nil, nil
	}
	if entering && op.hasNullTransactionID() {
		d.lastTxID++
		d.currentTxID = d.lastTxID
		return map[string]any{ParamTransactionID: d.currentTxID}, nil
	}
	return nil, nil
}

func (d *Database) endTransaction() {
	d.inTransaction = false
	d.currentTxID = 0
}

func (d *Database) exec(ctx context.Context, op *operation) (int64, *message.MethodError) {
	args, err := bindArguments(op.sqlArguments())
	if err != nil {
		return 0, message.NewError(ErrorBadParam, err.Error(), op.details())
	}
	d.logSQL(op, args)

	res, err := d.db.ExecContext(ctx, op.sql(), args...)
	if err != nil {
		return 0, d.sqlError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, d.sqlError(op, err)
	}
	return n, nil
}

// insert returns the last inserted row id, or nil when no row was inserted.
func (d *Database) insert(ctx context.Context, op *operation) (any, *message.MethodError) {
	args, err := bindArguments(op.sqlArguments())
	if err != nil {
		return nil, message.NewError(ErrorBadParam, err.Error(), op.details())
	}
	d.logSQL(op, args)

	res, err := d.db.ExecContext(ctx, op.sql(), args...)
	if err != nil {
		return nil, d.sqlError(op, err)
	}
	if op.noResult() {
		return nil, nil
	}
	changes, err := res.RowsAffected()
	if err != nil {
		return nil, d.sqlError(op, err)
	}
	if changes == 0 {
		return nil, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, d.sqlError(op, err)
	}
	return id, nil
}

// update returns the number of changed rows.
func (d *Database) update(ctx context.Context, op *operation) (any, *message.MethodError) {
	n, merr := d.exec(ctx, op)
	if merr != nil {
		return nil, merr
	}
	if op.noResult() {
		return nil, nil
	}
	return n, nil
}

// query returns {"columns": [...], "rows": [[...], ...]}. With cursorPageSize only the
// first page is returned and "cursorId" names the cursor holding the rest.
func (d *Database) query(ctx context.Context, op *operation) (any, *message.MethodError) {
	args, err := bindArguments(op.sqlArguments())
	if err != nil {
		return nil, message.NewError(ErrorBadParam, err.Error(), op.details())
	}
	d.logSQL(op, args)

	rows, err := d.db.QueryxContext(ctx, op.sql(), args...)
	if err != nil {
		return nil, d.sqlError(op, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, d.sqlError(op, err)
	}
	types, _ := rows.ColumnTypes()
	columns := make([]any, len(names))
	for i, name := range names {
		columns[i] = name
	}

	data := []any{}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, d.sqlError(op, err)
		}
		row := make([]any, len(values))
		for i, v := range values {
			if i < len(types) {
				row[i] = columnValue(v, types[i])
			} else {
				row[i] = columnValue(v, nil)
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, d.sqlError(op, err)
	}

	pageSize, paged := op.cursorPageSize()
	if !paged || len(data) <= pageSize {
		return map[string]any{ParamColumns: columns, ParamRows: data}, nil
	}

	d.lastCursorID++
	c := &cursor{id: d.lastCursorID, pageSize: pageSize, columns: columns, rows: data[pageSize:]}
	if d.cursors == nil {
		d.cursors = map[int64]*cursor{}
	}
	d.cursors[c.id] = c
	d.verbose("cursor opened", zap.Int64("cursorId", c.id), zap.Int("remaining", len(c.rows)))
	return map[string]any{ParamColumns: columns, ParamRows: data[:pageSize], ParamCursorID: c.id}, nil
}

// cursorNext returns the next page of a cursor. The cursor is dropped once exhausted or
// when cancel is set.
func (d *Database) cursorNext(cursorID int64, cancel bool) (any, *message.MethodError) {
	c, ok := d.cursors[cursorID]
	if !ok {
		if cancel {
			return nil, nil
		}
		return nil, message.NewError(ErrorSQLite, fmt.Sprintf("Cursor %d not found", cursorID), nil)
	}
	if cancel {
		delete(d.cursors, cursorID)
		d.verbose("cursor cancelled", zap.Int64("cursorId", cursorID))
		return nil, nil
	}

	n := min(c.pageSize, len(c.rows))
	page := c.rows[:n]
	c.rows = c.rows[n:]
	out := map[string]any{ParamColumns: c.columns, ParamRows: page}
	if len(c.rows) == 0 {
		delete(d.cursors, cursorID)
		d.verbose("cursor closed", zap.Int64("cursorId", cursorID))
	} else {
		out[ParamCursorID] = cursorID
	}
	return out, nil
}

// batch runs each entry of operations in order. Entry results are {"result": v}; failures
// either abort the batch or, with continueOnError, are reported as {"error": {...}}.
func (d *Database) batch(ctx context.Context, op *operation) (any, *message.MethodError) {
	entries, ok := op.args[ParamOperations].([]any)
	if !ok {
		return nil, message.NewError(ErrorBadParam, "operations must be a list", nil)
	}

	results := make([]any, 0, len(entries))
	for i, e := range entries {
		fields, ok := e.(map[string]any)
		if !ok {
			return nil, message.NewError(ErrorBadParam, fmt.Sprintf("batch operation %d is not an object", i), nil)
		}
		method, _ := fields[ParamMethod].(string)
		sub := newOperation(method, fields)

		v, merr := d.batchEntry(ctx, sub)
		if merr != nil {
			if !op.continueOnError() {
				return nil, merr
			}
			results = append(results, map[string]any{ParamError: map[string]any{
				ParamErrorCode:    merr.Code(),
				ParamErrorMessage: merr.Message(),
				ParamErrorData:    merr.Details(),
			}})
			continue
		}
		results = append(results, map[string]any{ParamResult: v})
	}

	if op.noResult() {
		return nil, nil
	}
	return results, nil
}

func (d *Database) batchEntry(ctx context.Context, op *operation) (any, *message.MethodError) {
	switch op.method {
	case MethodExecute:
		_, merr := d.exec(ctx, op)
		return nil, merr
	case MethodInsert:
		return d.insert(ctx, op)
	case MethodUpdate:
		return d.update(ctx, op)
	case MethodQuery:
		return d.query(ctx, op)
	default:
		return nil, message.NewError(ErrorBadParam, fmt.Sprintf("Batch method '%s' not supported", op.method), nil)
	}
}

// close releases the connection and fails every queued operation.
func (d *Database) close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.cursors = nil
	pending := d.queue
	d.queue = nil
	for _, q := range pending {
		q.abort()
	}
	return d.db.Close()
}

func (d *Database) sqlError(op *operation, err error) *message.MethodError {
	d.logger.Info("sql failed", zap.String("sql", op.sql()), zap.Error(err))
	return message.NewError(ErrorSQLite, err.Error(), op.details())
}

func (d *Database) logSQL(op *operation, args []any) {
	if d.logLevel.Load() < LogLevelSQL {
		return
	}
	d.logger.Info("sql", zap.String("method", op.method), zap.String("sql", op.sql()), zap.Any("arguments", args))
}

func (d *Database) verbose(msg string, fields ...zap.Field) {
	if d.logLevel.Load() < LogLevelVerbose {
		return
	}
	d.logger.Info(msg, fields...)
}

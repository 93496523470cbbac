package sqflite

import (
	"strings"

	"guru-bridge/message"
)

const (
	idSchema = `{
	"type": "object",
	"required": ["id"],
	"properties": {"id": {"type": "integer"}}
}`
	sqlSchema = `{
	"type": "object",
	"required": ["id", "sql"],
	"properties": {
		"id": {"type": "integer"},
		"sql": {"type": "string", "minLength": 1},
		"arguments": {"type": ["array", "null"]},
		"noResult": {"type": "boolean"},
		"cursorPageSize": {"type": "integer", "minimum": 1}
	}
}`
	pathSchema = `{
	"type": "object",
	"required": ["path"],
	"properties": {"path": {"type": "string", "minLength": 1}}
}`
	openSchema = `{
	"type": "object",
	"required": ["path"],
	"properties": {
		"path": {"type": "string", "minLength": 1},
		"readOnly": {"type": "boolean"},
		"singleInstance": {"type": "boolean"}
	}
}`
	cursorSchema = `{
	"type": "object",
	"required": ["id", "cursorId"],
	"properties": {
		"id": {"type": "integer"},
		"cursorId": {"type": "integer"},
		"cancel": {"type": "boolean"}
	}
}`
	batchSchema = `{
	"type": "object",
	"required": ["id", "operations"],
	"properties": {
		"id": {"type": "integer"},
		"noResult": {"type": "boolean"},
		"continueOnError": {"type": "boolean"},
		"operations": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["method"],
				"properties": {
					"method": {"enum": ["execute", "insert", "update", "query"]},
					"sql": {"type": "string"},
					"arguments": {"type": ["array", "null"]}
				}
			}
		}
	}
}`
)

// ArgumentSchemas returns JSON schemas for the argument maps of the methods that take
// structured arguments, keyed by method name.
func ArgumentSchemas() map[string]string {
	return map[string]string{
		MethodOpenDatabase:       openSchema,
		MethodCloseDatabase:      idSchema,
		MethodDeleteDatabase:     pathSchema,
		MethodDatabaseExists:     pathSchema,
		MethodExecute:            sqlSchema,
		MethodInsert:             sqlSchema,
		MethodUpdate:             sqlSchema,
		MethodQuery:              sqlSchema,
		MethodQueryCursorNext:    cursorSchema,
		MethodBatch:              batchSchema,
		MethodReadDatabaseBytes:  pathSchema,
		MethodWriteDatabaseBytes: pathSchema,
	}
}

// IsRetryable reports failures caused by another connection holding the database lock.
func IsRetryable(merr *message.MethodError) bool {
	if merr == nil || merr.Code() != ErrorSQLite {
		return false
	}
	msg := strings.ToLower(merr.Message())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

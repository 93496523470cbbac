package message

import "fmt"

// Error codes raised by the bridge itself, as opposed to those a plugin chooses.
const (
	CodeBadJSON         = "bad-json"
	CodeDuplicateCallID = "duplicate-call-id"
	CodeBridgeClosed    = "bridge-closed"
	CodeEncodeFailed    = "encode-failed"
	CodeInternal        = "internal"
	CodeTimeout         = "timeout"
	CodeRateLimited     = "rate-limited"
	CodeUnavailable     = "bridge-unavailable"

	// CodeBadParam is shared with the sqflite plugin for missing or invalid arguments.
	CodeBadParam = "bad_param"
)

// MethodError is the failure triple a plugin reports for a call.
// Code and Message are what hosts match on; Details is an opaque payload (may be nil).
type MethodError struct {
	code    string
	message string
	details any
}

func NewError(code, message string, details any) *MethodError {
	return &MethodError{code: code, message: message, details: details}
}

func (e *MethodError) Code() string { return e.code }

func (e *MethodError) Message() string { return e.message }

func (e *MethodError) Details() any { return e.details }

func (e *MethodError) Error() string {
	if e.message == "" {
		return e.code
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

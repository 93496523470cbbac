// Package message defines the values that cross the bridge between the host and the plugin.
//
// MethodCall is the "envelope" for every inbound invocation. MethodError and TypedData are the
// two tagged leaf shapes the plugin can hand back: a failure triple and a raw byte buffer.
// All three are immutable after construction and safe to share between goroutines.
package message

import (
	"encoding/json"
	"math"
	"sync/atomic"
)

// lastGeneratedID counts down from 0. Hosts allocate positive ids starting at 1, so ids minted
// here live in the negative half of the int32 space and never collide with host ids.
var lastGeneratedID atomic.Int32

// NextCallID returns a process-unique call id for calls constructed without one.
func NextCallID() int32 {
	return lastGeneratedID.Add(-1)
}

// MethodCall carries a single inbound invocation.
//
//   - method:    the plugin method name, e.g. "openDatabase"
//   - arguments: the decoded argument map (never nil)
//   - id:        the call id the result is routed back with
type MethodCall struct {
	method    string
	arguments map[string]any
	id        int32
}

// NewMethodCall creates a call with a generated id.
func NewMethodCall(method string, arguments map[string]any) *MethodCall {
	return NewMethodCallWithID(method, arguments, NextCallID())
}

// NewMethodCallWithID creates a call with a caller-supplied id.
func NewMethodCallWithID(method string, arguments map[string]any, id int32) *MethodCall {
	args := make(map[string]any, len(arguments))
	for k, v := range arguments {
		args[k] = v
	}
	return &MethodCall{
		method:    method,
		arguments: args,
		id:        id,
	}
}

func (c *MethodCall) Method() string { return c.method }

func (c *MethodCall) ID() int32 { return c.id }

// Arguments returns a shallow copy of the argument map.
func (c *MethodCall) Arguments() map[string]any {
	args := make(map[string]any, len(c.arguments))
	for k, v := range c.arguments {
		args[k] = v
	}
	return args
}

// Argument returns the raw value stored under key.
func (c *MethodCall) Argument(key string) (any, bool) {
	v, ok := c.arguments[key]
	return v, ok
}

// HasArgument reports whether key is present, even when its value is null.
func (c *MethodCall) HasArgument(key string) bool {
	_, ok := c.arguments[key]
	return ok
}

// String returns the string argument under key.
func (c *MethodCall) String(key string) (string, bool) {
	s, ok := c.arguments[key].(string)
	return s, ok
}

// Int returns the integer argument under key. Floats with an integral value and json.Number
// are accepted because hosts do not always preserve the integer/float distinction.
func (c *MethodCall) Int(key string) (int64, bool) {
	return AsInt(c.arguments[key])
}

// Bool returns the boolean argument under key.
func (c *MethodCall) Bool(key string) (bool, bool) {
	b, ok := c.arguments[key].(bool)
	return b, ok
}

// List returns the list argument under key.
func (c *MethodCall) List(key string) ([]any, bool) {
	l, ok := c.arguments[key].([]any)
	return l, ok
}

// Map returns the map argument under key.
func (c *MethodCall) Map(key string) (map[string]any, bool) {
	m, ok := c.arguments[key].(map[string]any)
	return m, ok
}

// AsInt converts a decoded numeric value into an int64.
func AsInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}

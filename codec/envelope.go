package codec

import (
	"bytes"
	"errors"
	"fmt"

	"guru-bridge/message"
	"guru-bridge/result"
)

// ErrArgumentsNotObject is returned when the argument JSON parses but is not an object or null.
var ErrArgumentsNotObject = errors.New("arguments must be a JSON object or null")

// DecodeArguments parses the argument JSON of an incoming call. Null and blank input yield
// an empty map. Numbers become int64 when integral, float64 otherwise; tagged byte objects
// become message.TypedData.
func DecodeArguments(jsonArguments string) (map[string]any, error) {
	data := bytes.TrimSpace([]byte(jsonArguments))
	if len(data) == 0 {
		return map[string]any{}, nil
	}

	raw, err := decodeJSONValue(data)
	if err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		// the top level is always the argument map, even when it looks like a tagged buffer
		args := make(map[string]any, len(v))
		for k, item := range v {
			args[k] = fromJSONWire(item)
		}
		return args, nil
	default:
		return nil, fmt.Errorf("%w, got %T", ErrArgumentsNotObject, v)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message *string `json:"message"` // null when the plugin gave no message
	Details any    `json:"details"`
}

type successEnvelope struct {
	CallID *int32 `json:"callId,omitempty"`
	Result any    `json:"result"`
}

type errorEnvelope struct {
	CallID *int32    `json:"callId,omitempty"`
	Error  errorBody `json:"error"`
}

type notImplementedEnvelope struct {
	CallID         *int32 `json:"callId,omitempty"`
	NotImplemented bool   `json:"notImplemented"`
}

// EncodeOutcome renders o as the single JSON document handed to the host callback.
//
//	success         {"result": <value>}
//	failure         {"error": {"code": ..., "message": ..., "details": ...}}
//	not implemented {"notImplemented": true}
//
// With includeCallID the envelope also carries "callId".
func EncodeOutcome(o result.Outcome, includeCallID bool) ([]byte, error) {
	var id *int32
	if includeCallID {
		callID := o.CallID
		id = &callID
	}

	switch o.Kind {
	case result.KindSuccess:
		return marshalJSON(successEnvelope{CallID: id, Result: toJSONWire(o.Value)})
	case result.KindError:
		merr := o.Err
		if merr == nil {
			merr = message.NewError(message.CodeInternal, "failure resolved without an error", nil)
		}
		return marshalJSON(errorEnvelope{CallID: id, Error: errorBody{
			Code:    merr.Code(),
			Message: optionalString(merr.Message()),
			Details: toJSONWire(merr.Details()),
		}})
	case result.KindNotImplemented:
		return marshalJSON(notImplementedEnvelope{CallID: id, NotImplemented: true})
	default:
		return nil, fmt.Errorf("unknown outcome kind %d", o.Kind)
	}
}

// DecodeOutcome parses an envelope produced by EncodeOutcome. CallID is filled in only when
// the envelope carries one.
func DecodeOutcome(data []byte) (result.Outcome, error) {
	raw, err := decodeJSONValue(data)
	if err != nil {
		return result.Outcome{}, err
	}
	env, ok := raw.(map[string]any)
	if !ok {
		return result.Outcome{}, fmt.Errorf("envelope must be a JSON object, got %T", raw)
	}

	var o result.Outcome
	if id, ok := message.AsInt(fromJSONWire(env["callId"])); ok {
		o.CallID = int32(id)
	}

	if flag, ok := env["notImplemented"].(bool); ok && flag {
		o.Kind = result.KindNotImplemented
		return o, nil
	}
	if body, ok := env["error"]; ok {
		fields, ok := body.(map[string]any)
		if !ok {
			return result.Outcome{}, fmt.Errorf("error envelope must hold an object, got %T", body)
		}
		code, _ := fields["code"].(string)
		msg, _ := fields["message"].(string)
		o.Kind = result.KindError
		o.Err = message.NewError(code, msg, fromJSONWire(fields["details"]))
		return o, nil
	}
	if value, ok := env["result"]; ok {
		o.Kind = result.KindSuccess
		o.Value = fromJSONWire(value)
		return o, nil
	}
	return result.Outcome{}, errors.New("envelope has none of result, error, notImplemented")
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

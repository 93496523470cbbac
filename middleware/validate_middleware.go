package middleware

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"guru-bridge/message"
	"guru-bridge/result"
)

// ValidateArgumentsMiddleware checks the argument map of each call against the JSON
// schema registered for its method. Methods without a schema pass through. A call that
// fails validation resolves with bad_param and the list of violations as details.
func ValidateArgumentsMiddleware(schemas map[string]string) (Middleware, error) {
	compiled := make(map[string]*gojsonschema.Schema, len(schemas))
	for method, src := range schemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile schema for %s: %w", method, err)
		}
		compiled[method] = schema
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *message.MethodCall, res result.Result) {
			schema, ok := compiled[call.Method()]
			if !ok {
				next(ctx, call, res)
				return
			}

			violations, err := validate(schema, call.Arguments())
			if err != nil {
				res.Error(message.NewError(message.CodeBadParam, err.Error(), nil))
				return
			}
			if len(violations) > 0 {
				res.Error(message.NewError(message.CodeBadParam,
					fmt.Sprintf("invalid arguments for %s", call.Method()), violations))
				return
			}
			next(ctx, call, res)
		}
	}, nil
}

func validate(schema *gojsonschema.Schema, args map[string]any) ([]any, error) {
	doc, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal arguments for validation: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate arguments: %w", err)
	}
	if res.Valid() {
		return nil, nil
	}
	violations := make([]any, 0, len(res.Errors()))
	for _, desc := range res.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}

package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Invoke normalizes name, authorizes auth against the tool's required
// scope, validates required parameters, and runs the handler, recovering
// from handler panics into an error result.
func (r *Registry) Invoke(ctx context.Context, name string, params map[string]interface{}, auth AuthContext) (content Content, err error) {
	tool, ok := r.Get(name)

	// Unknown tools require the admin scope before their absence is even
	// disclosed.
	required := ScopeAdmin
	if ok {
		required = tool.RequiredScope
	}
	if aerr := authorize(auth, required, r.config.AllowAnonymousRead); aerr != nil {
		if r.onFailed != nil {
			r.onFailed(name, auth, aerr)
		}
		return Content{}, aerr
	}
	if !ok {
		return Content{}, errors.Wrapf(errUnknownTool, "%q", name)
	}

	for _, req := range tool.Required {
		if _, present := params[req]; !present {
			return Content{Success: false, Error: fmt.Sprintf("missing required parameter %q", req), Logs: []string{}}, nil
		}
	}
	if r.config.Strict {
		for param, want := range tool.Types {
			v, present := params[param]
			if !present {
				continue
			}
			if got := jsonTypeOf(v); got != want {
				return Content{Success: false, Error: fmt.Sprintf("parameter %q must be %s, got %s", param, want, got), Logs: []string{}}, nil
			}
		}
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			content = Content{Success: false, Error: fmt.Sprintf("panic: %v", rec), Logs: []string{}, Duration: time.Since(start)}
			err = nil
		}
	}()

	result, herr := tool.Handler(ctx, params, r.fs)
	result.Duration = time.Since(start)
	if result.Logs == nil {
		result.Logs = []string{}
	}
	if herr != nil {
		result.Success = false
		result.Error = herr.Error()
		return result, nil
	}
	result.Success = true
	return result, nil
}

// jsonTypeOf names the JSON type a decoded interface{} value carries.
func jsonTypeOf(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float64, int, int64:
		return "number"
	case bool:
		return "boolean"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case nil:
		return "null"
	default:
		return "unknown"
	}
}

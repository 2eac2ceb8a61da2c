// Package rpc implements the JSON-RPC 2.0 surface: single and batch
// request dispatch, notifications, a normalized error envelope, and the
// mapping of error codes to HTTP statuses.
package rpc

import "encoding/json"

// rawRequest captures presence of each field explicitly (via pointers),
// which plain struct tags with omitempty cannot distinguish from a
// present-but-zero-value field. That distinction drives two decisions:
// whether this is a notification (no "id") and whether the caller wants
// the jsonrpc-2.0 envelope or bare compatibility responses (no "jsonrpc").
type rawRequest struct {
	JSONRPC *string          `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id"`
	Method  *string          `json:"method"`
	Params  json.RawMessage  `json:"params"`
}

// Code is the subset of the symbolic error taxonomy the RPC layer itself
// can produce (VFS/auth codes pass through unchanged from their own
// packages).
type Code string

const (
	CodeParseError       Code = "PARSE_ERROR"
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeMethodNotFound   Code = "METHOD_NOT_FOUND"
	CodeTimeout          Code = "TIMEOUT"
	CodeInternalError    Code = "INTERNAL_ERROR"
	CodeAuthRequired     Code = "AUTH_REQUIRED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
)

// RPCError is the {code, message, path?} wire envelope.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

func (e *RPCError) Error() string { return e.Code + ": " + e.Message }

func newError(code Code, message string) *RPCError {
	return &RPCError{Code: string(code), Message: message}
}

// response is the wire shape for one request's outcome. jsonrpc is only
// populated (and only serialized) when the originating request declared
// its own "jsonrpc" field, selecting jsonrpc-2.0 mode over the bare
// compatibility mode.
type response struct {
	jsonrpcMode bool
	id          *json.RawMessage
	result      interface{}
	errVal      *RPCError
}

// MarshalJSON renders either the bare result/error (compatibility mode) or
// the {jsonrpc, id, result|error} envelope.
func (r response) MarshalJSON() ([]byte, error) {
	if !r.jsonrpcMode {
		if r.errVal != nil {
			return json.Marshal(r.errVal)
		}
		if r.result == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(r.result)
	}
	envelope := map[string]interface{}{"jsonrpc": "2.0"}
	if r.id != nil {
		envelope["id"] = r.id
	}
	if r.errVal != nil {
		envelope["error"] = r.errVal
	} else {
		if r.result == nil {
			r.result = map[string]interface{}{}
		}
		envelope["result"] = r.result
	}
	return json.Marshal(envelope)
}

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/fsxd/fsxd/tools"
	"github.com/fsxd/fsxd/vfs"
	"golang.org/x/sync/errgroup"
)

// Handler is a registered RPC method. params is the raw "params" member;
// ctx carries the request's deadline.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Router is the method registry and dispatcher.
type Router struct {
	methods map[string]Handler
}

// NewRouter builds an empty Router. Call Register for each method.
func NewRouter() *Router {
	return &Router{methods: make(map[string]Handler)}
}

// Register binds name to handler. Names beginning with "_" are reserved
// and would never be dispatchable, so Register rejects them.
func (r *Router) Register(name string, handler Handler) {
	if strings.HasPrefix(name, "_") {
		panic("rpc: method names beginning with _ are reserved: " + name)
	}
	r.methods[name] = handler
}

// HandleRaw parses body (a single object or a non-empty array of objects)
// and returns the JSON-encodable response value plus the HTTP status to
// use. Notifications produce no response body, so their entries are
// dropped from the batch output and a lone notification returns
// (nil, 204).
func (r *Router) HandleRaw(ctx context.Context, body []byte) (interface{}, int) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return errorEnvelope(false, nil, newError(CodeInvalidRequest, "empty request body")), 400
	}

	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(body, &raws); err != nil {
			return errorEnvelope(false, nil, newError(CodeParseError, "invalid JSON: "+err.Error())), 400
		}
		if len(raws) == 0 {
			return errorEnvelope(false, nil, newError(CodeInvalidRequest, "batch must not be empty")), 400
		}
		return r.handleBatch(ctx, raws)
	}

	if trimmed[0] != '{' {
		if !json.Valid(body) {
			return errorEnvelope(false, nil, newError(CodeParseError, "invalid JSON")), 400
		}
		return errorEnvelope(false, nil, newError(CodeInvalidRequest, "body must be a JSON object or array")), 400
	}

	resp, status, isNotification := r.handleOne(ctx, body)
	if isNotification {
		return nil, 204
	}
	return resp, status
}

func (r *Router) handleBatch(ctx context.Context, raws []json.RawMessage) (interface{}, int) {
	responses := make([]interface{}, len(raws))
	present := make([]bool, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	for i, raw := range raws {
		i, raw := i, raw
		g.Go(func() error {
			resp, _, isNotification := r.handleOne(gctx, raw)
			if !isNotification {
				responses[i] = resp
				present[i] = true
			}
			return nil
		})
	}
	_ = g.Wait() // individual handler errors are already captured per-item in resp

	out := make([]interface{}, 0, len(responses))
	for i, ok := range present {
		if ok {
			out = append(out, responses[i])
		}
	}
	if len(out) == 0 {
		return nil, 204
	}
	return out, 200
}

// handleOne parses and dispatches a single request object, returning its
// response (nil if it was a notification), the HTTP status for that
// response alone, and whether it was a notification.
func (r *Router) handleOne(ctx context.Context, raw json.RawMessage) (interface{}, int, bool) {
	var req rawRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorEnvelope(false, nil, newError(CodeParseError, "invalid JSON: "+err.Error())), 400, false
	}

	jsonrpcMode := req.JSONRPC != nil
	isNotification := req.ID == nil

	if req.Method == nil || *req.Method == "" {
		return errorEnvelope(jsonrpcMode, req.ID, newError(CodeInvalidRequest, "method is required")), 400, isNotification
	}

	handler, ok := r.methods[*req.Method]
	if !ok || strings.HasPrefix(*req.Method, "_") {
		return errorEnvelope(jsonrpcMode, req.ID, newError(CodeMethodNotFound, "unknown method: "+*req.Method)), 404, isNotification
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		rerr, status := errorToRPC(err)
		return errorEnvelope(jsonrpcMode, req.ID, rerr), status, isNotification
	}
	return resultEnvelope(jsonrpcMode, req.ID, result), 200, isNotification
}

func errorEnvelope(jsonrpcMode bool, id *json.RawMessage, rerr *RPCError) response {
	return response{jsonrpcMode: jsonrpcMode, id: id, errVal: rerr}
}

func resultEnvelope(jsonrpcMode bool, id *json.RawMessage, result interface{}) response {
	return response{jsonrpcMode: jsonrpcMode, id: id, result: result}
}

// errorToRPC maps a handler error to the wire {code,message,path} shape
// and its HTTP status. An expired request deadline becomes
// {code:"TIMEOUT"}.
func errorToRPC(err error) (*RPCError, int) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(CodeTimeout, "request deadline exceeded"), statusForCode(string(CodeTimeout))
	}
	if rerr, ok := err.(*RPCError); ok {
		return rerr, statusForCode(rerr.Code)
	}
	if verr, ok := err.(*vfs.Error); ok {
		return &RPCError{Code: string(verr.Code), Message: verr.Message, Path: verr.Path}, statusForCode(string(verr.Code))
	}
	if aerr, ok := err.(*tools.AuthError); ok {
		return &RPCError{Code: aerr.Code, Message: aerr.Message}, statusForCode(aerr.Code)
	}
	return newError(CodeInternalError, err.Error()), 500
}

func statusForCode(code string) int {
	switch code {
	case "PARSE_ERROR", "INVALID_REQUEST",
		string(vfs.ENOENT), string(vfs.EEXIST), string(vfs.ENOTDIR), string(vfs.EISDIR),
		string(vfs.ENOTEMPTY), string(vfs.EINVAL):
		return 400
	case string(vfs.EACCES), "AUTH_REQUIRED", "PERMISSION_DENIED":
		return 403
	case "METHOD_NOT_FOUND":
		return 404
	case "TIMEOUT":
		return 408
	default:
		return 500
	}
}

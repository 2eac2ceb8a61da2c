// Package tools implements the bounded set of named capabilities exposed
// to external agents over the FsCapability surface, gated by scope-based
// authorization.
package tools

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Scope is a capability token understood by the Tool-Auth middleware.
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
	ScopeAdmin Scope = "admin"
)

// Handler is a registered tool's implementation. params are the
// already-normalized invocation arguments; fs is the FsCapability surface
// it may use.
type Handler func(ctx context.Context, params map[string]interface{}, fs FsCapability) (Content, error)

// Tool is one registered capability.
type Tool struct {
	Name          string
	RequiredScope Scope
	Required      []string // required parameter names, validated before Handler runs
	// Types maps parameter names to their expected JSON type ("string",
	// "number", "boolean", "object", "array"); checked only when the
	// registry runs in strict mode.
	Types   map[string]string
	Handler Handler
}

// Content is the {success, value|error, logs, duration} result shape
// tool handlers produce.
type Content struct {
	Success  bool          `json:"success"`
	Value    interface{}   `json:"value,omitempty"`
	Error    string        `json:"error,omitempty"`
	Logs     []string      `json:"logs"`
	Duration time.Duration `json:"duration"`
}

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

const (
	builtinSearch = "search"
	builtinFetch  = "fetch"
	builtinDo     = "do"
)

// Registry holds the registered tools and dispatches invocations through
// the Tool-Auth middleware.
type Registry struct {
	fs       FsCapability
	tools    map[string]*Tool
	config   Config
	onFailed FailureCallback
}

// OnAuthFailure installs cb to be invoked whenever Invoke rejects a call
// for authorization reasons.
func (r *Registry) OnAuthFailure(cb FailureCallback) {
	r.onFailed = cb
}

// Config is the server-side authorization configuration.
type Config struct {
	AllowAnonymousRead bool
	// Strict additionally validates declared parameter types, not just
	// their presence, before a handler runs.
	Strict bool
}

// NewRegistry builds a Registry over fs with the three built-in tools
// already registered.
func NewRegistry(fs FsCapability, cfg Config) *Registry {
	r := &Registry{fs: fs, tools: make(map[string]*Tool), config: cfg}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	r.tools[builtinSearch] = &Tool{Name: builtinSearch, RequiredScope: ScopeRead, Required: []string{"query"}, Types: map[string]string{"query": "string", "path": "string", "limit": "number"}, Handler: searchHandler}
	r.tools[builtinFetch] = &Tool{Name: builtinFetch, RequiredScope: ScopeRead, Required: []string{"resource"}, Types: map[string]string{"resource": "string"}, Handler: fetchHandler}
	r.tools[builtinDo] = &Tool{Name: builtinDo, RequiredScope: ScopeAdmin, Required: []string{"code"}, Types: map[string]string{"code": "string", "scope": "object"}, Handler: doHandler}
}

// Register adds a tool. It fails if name is malformed or already
// registered; Unregister first to replace one.
func (r *Registry) Register(t *Tool) error {
	if !nameRe.MatchString(t.Name) {
		return errors.Errorf("invalid tool name %q", t.Name)
	}
	key := normalizeName(t.Name)
	if _, exists := r.tools[key]; exists {
		return errors.Errorf("tool %q is already registered", t.Name)
	}
	r.tools[key] = t
	return nil
}

// Unregister removes a tool by name. A no-op if the name isn't registered.
func (r *Registry) Unregister(name string) {
	delete(r.tools, normalizeName(name))
}

// Clear removes every registered tool except the three built-ins.
func (r *Registry) Clear() {
	r.tools = make(map[string]*Tool)
	r.registerBuiltins()
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[normalizeName(name)]
	return t, ok
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

package tools

import (
	"strings"

	"github.com/pkg/errors"
)

type contextKey string

// AuthContextKey is the context.Context key callers (the RPC layer, the
// HTTP tool endpoint) use to attach an AuthContext before calling Invoke.
const AuthContextKey contextKey = "tools.authContext"

// AuthContext carries the per-invocation authorization state the
// middleware checks.
type AuthContext struct {
	Authenticated    bool
	UserID           string
	TenantID         string
	Scopes           []string
	AnonymousAllowed bool
}

// AuthError is {code: "AUTH_REQUIRED" | "PERMISSION_DENIED", ...}.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string { return e.Code + ": " + e.Message }

// FailureCallback, when set on a Registry, is invoked on every
// authorization failure.
type FailureCallback func(toolName string, auth AuthContext, err *AuthError)

func satisfiesScope(scopes []string, required Scope) bool {
	for _, s := range scopes {
		token := s
		if idx := strings.Index(s, ":"); idx >= 0 {
			token = s[idx+1:]
		}
		switch Scope(token) {
		case required:
			return true
		case ScopeAdmin:
			return true
		case ScopeWrite:
			if required == ScopeRead || required == ScopeWrite {
				return true
			}
		}
	}
	return false
}

// authorize decides whether auth may invoke a tool requiring scope,
// given the server's allowAnonymousRead config.
func authorize(auth AuthContext, required Scope, allowAnonymousRead bool) *AuthError {
	if satisfiesScope(auth.Scopes, required) {
		return nil
	}
	if required == ScopeRead && !auth.Authenticated {
		if auth.AnonymousAllowed && allowAnonymousRead {
			return nil
		}
		return &AuthError{Code: "AUTH_REQUIRED", Message: "authentication required for read access"}
	}
	if !auth.Authenticated {
		return &AuthError{Code: "AUTH_REQUIRED", Message: "authentication required"}
	}
	return &AuthError{Code: "PERMISSION_DENIED", Message: "missing required scope: " + string(required)}
}

var errUnknownTool = errors.New("unknown tool")

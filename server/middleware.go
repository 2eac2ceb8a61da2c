package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fsxd/fsxd/auth"
	"github.com/fsxd/fsxd/tools"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := uuid.NewString()
			w.Header().Set("X-Request-Id", reqID)
			next.ServeHTTP(w, r)
			log.WithFields(logrus.Fields{
				"requestId": reqID, "method": r.Method, "path": r.URL.Path, "duration": time.Since(start),
			}).Debug("request")
		})
	}
}

// authMiddleware validates a Bearer token against cfg and attaches a
// tools.AuthContext to the request context for downstream RPC tool calls.
// Missing tokens still proceed (anonymous), since individual tools decide
// their own authorization requirements; this middleware only establishes
// identity.
func authMiddleware(cfg auth.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := tools.AuthContext{AnonymousAllowed: true}

			header := r.Header.Get("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				token := strings.TrimPrefix(header, "Bearer ")
				claims, err := auth.Validate(token, cfg)
				if err != nil {
					writeAuthError(w, err)
					return
				}
				authCtx.Authenticated = true
				authCtx.UserID = claims.Subject
				authCtx.TenantID = claims.TenantID
				authCtx.Scopes = scopesFromClaims(claims)
			}

			ctx := context.WithValue(r.Context(), tools.AuthContextKey, authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func scopesFromClaims(claims *auth.Claims) []string {
	raw, ok := claims.Raw["scopes"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return strings.Fields(v)
	default:
		return nil
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	aerr, ok := err.(*auth.Error)
	if !ok {
		_, _ = w.Write([]byte(`{"code":"INVALID_TOKEN","message":"token validation failed"}`))
		return
	}
	_, _ = w.Write([]byte(`{"code":"` + string(aerr.Code) + `","message":"` + aerr.Message + `"}`))
}

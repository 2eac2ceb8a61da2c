// Package auth implements the JWT validation contract external clients
// are authenticated against: given a bearer token and a Config, it
// returns the validated claims or a symbolic auth error code.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Code is one of the symbolic JWT validation outcomes.
type Code string

const (
	CodeInvalidToken     Code = "INVALID_TOKEN"
	CodeInvalidSignature Code = "INVALID_SIGNATURE"
	CodeTokenExpired     Code = "TOKEN_EXPIRED"
	CodeMissingTenant    Code = "MISSING_TENANT"
)

// Error pairs a Code with a human message, matching the shape the RPC and
// tool layers already use for vfs.Error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// Claims is the subset of the JWT payload this service cares about.
type Claims struct {
	Subject  string
	TenantID string
	Issuer   string
	Audience []string
	IssuedAt time.Time
	Expiry   time.Time
	Raw      jwt.MapClaims
}

// Config configures token verification. Secret is used for HS* algorithms;
// PublicKey for RS* algorithms. Exactly one should be set for a given
// deployment, but both fields may be populated to support key rotation
// across algorithm families.
type Config struct {
	Secret            []byte
	PublicKeyPEM      []byte
	Issuer            string // empty disables issuer validation
	Audience          string // empty disables audience validation
	ClockToleranceSec int64  // default 60
}

var hmacAlgs = map[string]bool{"HS256": true, "HS384": true, "HS512": true}
var rsaAlgs = map[string]bool{"RS256": true, "RS384": true, "RS512": true}

// Validate parses and verifies tokenString against cfg, returning Claims
// or one of the four validation error codes.
func Validate(tokenString string, cfg Config) (*Claims, error) {
	tolerance := cfg.ClockToleranceSec
	if tolerance == 0 {
		tolerance = 60
	}

	var publicKey interface{}
	if len(cfg.PublicKeyPEM) > 0 {
		key, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, &Error{CodeInvalidToken, "malformed public key: " + err.Error()}
		}
		publicKey = key
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		alg, _ := t.Header["alg"].(string)
		switch {
		case hmacAlgs[alg]:
			if len(cfg.Secret) == 0 {
				return nil, errors.New("no HMAC secret configured")
			}
			return cfg.Secret, nil
		case rsaAlgs[alg]:
			if publicKey == nil {
				return nil, errors.New("no RSA public key configured")
			}
			return publicKey, nil
		default:
			return nil, errors.Errorf("unsupported signing algorithm %q", alg)
		}
	}, jwt.WithLeeway(time.Duration(tolerance)*time.Second))

	if err != nil {
		return nil, classifyError(err)
	}
	if !parsed.Valid {
		return nil, &Error{CodeInvalidToken, "token failed validation"}
	}

	if cfg.Issuer != "" {
		iss, _ := claims["iss"].(string)
		if iss != cfg.Issuer {
			return nil, &Error{CodeInvalidToken, "issuer mismatch"}
		}
	}
	if cfg.Audience != "" && !claimsHaveAudience(claims, cfg.Audience) {
		return nil, &Error{CodeInvalidToken, "audience mismatch"}
	}

	tenantID, _ := claims["tenant_id"].(string)
	if tenantID == "" {
		return nil, &Error{CodeMissingTenant, "tenant_id claim is required"}
	}

	out := &Claims{
		TenantID: tenantID,
		Raw:      claims,
	}
	if sub, ok := claims["sub"].(string); ok {
		out.Subject = sub
	}
	if iss, ok := claims["iss"].(string); ok {
		out.Issuer = iss
	}
	if exp, ok := claims["exp"].(float64); ok {
		out.Expiry = time.Unix(int64(exp), 0)
	}
	if iat, ok := claims["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(iat), 0)
	}
	return out, nil
}

func claimsHaveAudience(claims jwt.MapClaims, want string) bool {
	switch aud := claims["aud"].(type) {
	case string:
		return aud == want
	case []interface{}:
		for _, a := range aud {
			if s, ok := a.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func classifyError(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &Error{CodeTokenExpired, "token expired"}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &Error{CodeInvalidSignature, "signature invalid"}
	}
	if strings.Contains(err.Error(), "signature is invalid") {
		return &Error{CodeInvalidSignature, "signature invalid"}
	}
	return &Error{CodeInvalidToken, err.Error()}
}

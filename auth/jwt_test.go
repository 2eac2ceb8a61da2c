package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(secret)
	require.NoError(t, err)
	return s
}

func TestValidateAcceptsWellFormedToken(t *testing.T) {
	secret := []byte("s3cr3t")
	tok := signHS256(t, secret, jwt.MapClaims{
		"sub": "user-1", "tenant_id": "tenant-a",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	claims, err := Validate(tok, Config{Secret: secret})
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "tenant-a", claims.TenantID)
}

func TestValidateRejectsMissingTenant(t *testing.T) {
	secret := []byte("s3cr3t")
	tok := signHS256(t, secret, jwt.MapClaims{"sub": "user-1"})
	_, err := Validate(tok, Config{Secret: secret})
	require.Error(t, err)
	assert.Equal(t, CodeMissingTenant, err.(*Error).Code)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	secret := []byte("s3cr3t")
	tok := signHS256(t, secret, jwt.MapClaims{
		"tenant_id": "t", "exp": time.Now().Add(-time.Hour).Unix(),
	})
	_, err := Validate(tok, Config{Secret: secret})
	require.Error(t, err)
	assert.Equal(t, CodeTokenExpired, err.(*Error).Code)
}

func TestValidateRejectsBadSignature(t *testing.T) {
	tok := signHS256(t, []byte("correct"), jwt.MapClaims{"tenant_id": "t"})
	_, err := Validate(tok, Config{Secret: []byte("wrong")})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidSignature, err.(*Error).Code)
}

func TestValidateHonorsClockTolerance(t *testing.T) {
	secret := []byte("s3cr3t")
	tok := signHS256(t, secret, jwt.MapClaims{
		"tenant_id": "t", "exp": time.Now().Add(-5 * time.Second).Unix(),
	})
	_, err := Validate(tok, Config{Secret: secret, ClockToleranceSec: 30})
	require.NoError(t, err)
}

func TestValidateChecksIssuerAndAudience(t *testing.T) {
	secret := []byte("s3cr3t")
	tok := signHS256(t, secret, jwt.MapClaims{
		"tenant_id": "t", "iss": "fsxd-auth", "aud": "fsxd-api",
	})
	_, err := Validate(tok, Config{Secret: secret, Issuer: "fsxd-auth", Audience: "fsxd-api"})
	require.NoError(t, err)

	_, err = Validate(tok, Config{Secret: secret, Issuer: "someone-else"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidToken, err.(*Error).Code)
}

func TestValidateRejectsUnparsableToken(t *testing.T) {
	_, err := Validate("not.a.jwt", Config{Secret: []byte("x")})
	require.Error(t, err)
}

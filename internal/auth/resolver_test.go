package auth

import (
	"context"
	"testing"
	"time"

	gopkgztoken "github.com/go-pkgz/auth/v2/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolverConfig() ResolverConfig {
	return ResolverConfig{
		CacheSize:            100,
		CacheTTL:             time.Minute,
		RevocationCacheSize:  100,
		RevocationTTLCeiling: time.Minute,
	}
}

func signTestToken(t *testing.T, secret, issuer, subject, username, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{
		Claims: gopkgztoken.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   subject,
				Issuer:    issuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
				NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
			User: &gopkgztoken.User{
				Name:       username,
				Attributes: map[string]interface{}{"role": role},
			},
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestResolver_PasswordHappyPath(t *testing.T) {
	backend := func(ctx context.Context, username, password, ip, ua string) (BackendAuthResult, error) {
		if username == "alice" && password == "pw" {
			return BackendAuthResult{Success: true, UserID: "42", Role: "USER"}, nil
		}
		return BackendAuthResult{Success: false}, nil
	}

	r := NewResolver(testResolverConfig(), backend, NewTokenValidator("secret", "davgateway"), nil)

	p, authErr := r.Authenticate(context.Background(), "alice", "pw", "10.0.0.5", "client/1.0")
	require.Nil(t, authErr)
	assert.Equal(t, "42", p.UserID)
	assert.Equal(t, "USER", p.Role)
}

func TestResolver_PasswordCachesFailure(t *testing.T) {
	calls := 0
	backend := func(ctx context.Context, username, password, ip, ua string) (BackendAuthResult, error) {
		calls++
		return BackendAuthResult{Success: false}, nil
	}

	r := NewResolver(testResolverConfig(), backend, nil, nil)

	_, err1 := r.Authenticate(context.Background(), "alice", "wrong", "", "")
	_, err2 := r.Authenticate(context.Background(), "alice", "wrong", "", "")

	require.NotNil(t, err1)
	require.NotNil(t, err2)
	assert.Equal(t, FailureInvalidCredentials, err1.Kind)
	assert.Equal(t, 1, calls, "second call should be served from cache")
}

func TestResolver_TokenUsernameMismatch(t *testing.T) {
	secret := "s3cr3t"
	validator := NewTokenValidator(secret, "davgateway")
	r := NewResolver(testResolverConfig(), nil, validator, nil)

	tok := signTestToken(t, secret, "davgateway", "u1", "bob", "USER", time.Hour)

	_, authErr := r.Authenticate(context.Background(), "alice", tok, "", "")
	require.NotNil(t, authErr)
	assert.Equal(t, FailureUsernameMismatch, authErr.Kind)
}

func TestResolver_TokenRevoked(t *testing.T) {
	secret := "s3cr3t"
	validator := NewTokenValidator(secret, "davgateway")
	revocation := revocationCheckerFunc(func(ctx context.Context, token, tokenID, userID string) (bool, error) {
		return true, nil
	})

	r := NewResolver(testResolverConfig(), nil, validator, revocation)
	tok := signTestToken(t, secret, "davgateway", "u1", "alice", "USER", time.Hour)

	_, authErr := r.Authenticate(context.Background(), "alice", tok, "", "")
	require.NotNil(t, authErr)
	assert.Equal(t, FailureTokenRevoked, authErr.Kind)
}

func TestResolver_TokenRevocationCachedAfterFirstCall(t *testing.T) {
	secret := "s3cr3t"
	validator := NewTokenValidator(secret, "davgateway")
	calls := 0
	revocation := revocationCheckerFunc(func(ctx context.Context, token, tokenID, userID string) (bool, error) {
		calls++
		return false, nil
	})

	r := NewResolver(testResolverConfig(), nil, validator, revocation)
	tok := signTestToken(t, secret, "davgateway", "u1", "alice", "USER", time.Hour)

	_, err1 := r.Authenticate(context.Background(), "alice", tok, "", "")
	_, err2 := r.Authenticate(context.Background(), "alice", tok, "", "")

	require.Nil(t, err1)
	require.Nil(t, err2)
	assert.Equal(t, 1, calls)
}

func TestResolver_TokenExpired(t *testing.T) {
	secret := "s3cr3t"
	validator := NewTokenValidator(secret, "davgateway")
	r := NewResolver(testResolverConfig(), nil, validator, nil)

	tok := signTestToken(t, secret, "davgateway", "u1", "alice", "USER", -time.Hour)

	_, authErr := r.Authenticate(context.Background(), "alice", tok, "", "")
	require.NotNil(t, authErr)
	assert.Equal(t, FailureTokenExpired, authErr.Kind)
}

func TestResolver_TokenBadSignature(t *testing.T) {
	validator := NewTokenValidator("real-secret", "davgateway")
	r := NewResolver(testResolverConfig(), nil, validator, nil)

	tok := signTestToken(t, "wrong-secret", "davgateway", "u1", "alice", "USER", time.Hour)

	_, authErr := r.Authenticate(context.Background(), "alice", tok, "", "")
	require.NotNil(t, authErr)
	assert.Equal(t, FailureTokenSignatureInvalid, authErr.Kind)
}

func TestLooksLikeToken(t *testing.T) {
	assert.True(t, looksLikeToken("aaa.bbb.ccc"))
	assert.False(t, looksLikeToken("plain-password"))
	assert.False(t, looksLikeToken("a.b"))
}

func TestMaskSecret(t *testing.T) {
	long := "abcdefghijklmnopqrstuvwxyz0123456789"
	masked := maskSecret(long)
	assert.Equal(t, long[:10], masked[:10])
	assert.Equal(t, long[len(long)-10:], masked[len(masked)-10:])
	assert.NotEqual(t, long, masked)

	short := "short"
	assert.Equal(t, "*****", maskSecret(short))
}

type revocationCheckerFunc func(ctx context.Context, token, tokenID, userID string) (bool, error)

func (f revocationCheckerFunc) CheckRevocation(ctx context.Context, token, tokenID, userID string) (bool, error) {
	return f(ctx, token, tokenID, userID)
}

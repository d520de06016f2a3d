package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the claims a bearer token must/may carry (spec §4.2 step 1).
// It embeds go-pkgz/auth's token.Claims (itself wrapping
// jwt.RegisteredClaims) so the username/role travel in the same
// token.User/Attributes shape the teacher's own WebDAV server reads off
// tokenService.Get(r) (internal/webdav/server.go), rather than a
// bespoke flat struct.
type Claims struct {
	token.Claims
}

// username reads the backend-asserted username out of the embedded
// token.User, the same field the teacher dereferences as
// claims.User.ID/claims.Subject in internal/webdav/server.go.
func (c *Claims) username() string {
	if c.User == nil {
		return ""
	}
	return c.User.Name
}

// role reads an optional role out of token.User.Attributes, go-pkgz's
// extension point for claims it doesn't model natively.
func (c *Claims) role() string {
	if c.User == nil || c.User.Attributes == nil {
		return ""
	}
	if r, ok := c.User.Attributes["role"].(string); ok {
		return r
	}
	return ""
}

// TokenValidator verifies bearer-token signature and standard claims
// locally, grounded on the HS256 validate pattern used across the
// example pack's jwt helpers.
type TokenValidator struct {
	secret []byte
	issuer string
}

// NewTokenValidator builds a validator bound to the configured secret
// and issuer (spec §6 `jwt.secret`, `jwt.issuer`).
func NewTokenValidator(secret, issuer string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), issuer: issuer}
}

// Verify checks signature, issuer, not-before and expiry, and returns
// the parsed claims. It does not check the username match or
// revocation; those are the resolver's job (spec §4.2 steps 2-3).
func (v *TokenValidator) Verify(tokenString string) (*Claims, *AuthError) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fail(FailureTokenExpired, "token has expired")
		}
		return nil, fail(FailureTokenSignatureInvalid, "token signature or claims invalid: "+err.Error())
	}

	if !token.Valid {
		return nil, fail(FailureTokenSignatureInvalid, "token failed validation")
	}

	if claims.Subject == "" || claims.username() == "" {
		return nil, fail(FailureTokenSignatureInvalid, "token missing required subject/username claims")
	}

	return claims, nil
}

// tokenHash is the key under which a token's revocation answer is
// cached; it never stores the token itself.
func tokenHash(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// RevocationChecker consults the backend's revocation service
// (spec §4.2 step 3). A real implementation calls out over RPC; the
// reference backend is a placeholder that always reports "valid"
// (spec §9 Open Questions) — callers should wire a real one when
// available.
type RevocationChecker interface {
	CheckRevocation(ctx context.Context, token, tokenID, userID string) (revoked bool, err error)
}

// remainingTTL bounds a cached revocation answer's lifetime to the
// token's own remaining lifetime, per spec §4.2 step 3.
func remainingTTL(claims *Claims, ceiling time.Duration) time.Duration {
	if claims.ExpiresAt == nil {
		return ceiling
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return 0
	}
	if remaining < ceiling {
		return remaining
	}
	return ceiling
}

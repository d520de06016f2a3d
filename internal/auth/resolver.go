package auth

import (
	"context"
	"log/slog"
	"time"
)

// BackendAuthenticate is the shape of the backend RPC's authenticate
// method (spec §6). Returning an error distinct from invalid
// credentials signals BACKEND_UNAVAILABLE to the resolver.
type BackendAuthenticate func(ctx context.Context, username, password, clientIP, userAgent string) (BackendAuthResult, error)

// BackendAuthResult is what the backend's authenticate RPC returns.
type BackendAuthResult struct {
	Success bool
	UserID  string
	Role    string
	Error   string
}

// Resolver implements the Authentication Resolver (spec §4.2): it
// classifies the secret, consults the auth/revocation caches, and
// falls back to the backend RPC or the local token validator.
type Resolver struct {
	backend    BackendAuthenticate
	validator  *TokenValidator
	revocation RevocationChecker
	authCache  *authCache
	revCache   *revocationCache
	cacheTTL   time.Duration
	revTTLCap  time.Duration
}

// ResolverConfig bounds the two caches (spec §6 cache.*).
type ResolverConfig struct {
	CacheSize            int
	CacheTTL             time.Duration
	RevocationCacheSize  int
	RevocationTTLCeiling time.Duration
}

// NewResolver builds a Resolver. backend and revocation may both be
// nil if only one auth mode is wired; validator must always be set to
// support bearer tokens.
func NewResolver(cfg ResolverConfig, backend BackendAuthenticate, validator *TokenValidator, revocation RevocationChecker) *Resolver {
	return &Resolver{
		backend:    backend,
		validator:  validator,
		revocation: revocation,
		authCache:  newAuthCache(cfg.CacheSize, cfg.CacheTTL),
		revCache:   newRevocationCache(cfg.RevocationCacheSize),
		cacheTTL:   cfg.CacheTTL,
		revTTLCap:  cfg.RevocationTTLCeiling,
	}
}

// Authenticate produces a Principal from a (username, secret) pair
// delivered via HTTP Basic or equivalent (spec §4.2).
func (r *Resolver) Authenticate(ctx context.Context, username, secret, clientIP, userAgent string) (*Principal, *AuthError) {
	if looksLikeToken(secret) {
		return r.authenticateToken(ctx, username, secret)
	}
	return r.authenticatePassword(ctx, username, secret, clientIP, userAgent)
}

func (r *Resolver) authenticatePassword(ctx context.Context, username, password, clientIP, userAgent string) (*Principal, *AuthError) {
	key := cacheKey(username, password)

	if entry, ok := r.authCache.get(key); ok {
		if !entry.Authenticated {
			return nil, fail(FailureInvalidCredentials, "invalid username or password")
		}
		return &Principal{UserID: entry.UserID, Username: entry.Username, Role: entry.Role}, nil
	}

	if r.backend == nil {
		return nil, fail(FailureBackendUnavailable, "no password backend configured")
	}

	result, err := r.backend(ctx, username, password, clientIP, userAgent)
	if err != nil {
		slog.Warn("backend authenticate call failed", "username", username, "err", err)
		return nil, fail(FailureBackendUnavailable, "authentication backend unavailable")
	}

	if !result.Success {
		r.authCache.put(key, cacheEntry{Username: username, Authenticated: false, CreatedAt: time.Now()})
		return nil, fail(FailureInvalidCredentials, "invalid username or password")
	}

	entry := cacheEntry{
		UserID:        result.UserID,
		Username:      username,
		Role:          result.Role,
		Authenticated: true,
		CreatedAt:     time.Now(),
	}
	r.authCache.put(key, entry)

	return &Principal{UserID: result.UserID, Username: username, Role: result.Role}, nil
}

func (r *Resolver) authenticateToken(ctx context.Context, username, tokenString string) (*Principal, *AuthError) {
	if r.validator == nil {
		return nil, fail(FailureInternal, "no token validator configured")
	}

	claims, authErr := r.validator.Verify(tokenString)
	if authErr != nil {
		return nil, authErr
	}

	if claims.username() != username {
		return nil, fail(FailureUsernameMismatch, "token username does not match requested username")
	}

	revoked, authErr := r.checkRevocation(ctx, tokenString, claims)
	if authErr != nil {
		return nil, authErr
	}
	if revoked {
		return nil, fail(FailureTokenRevoked, "token has been revoked")
	}

	return &Principal{UserID: claims.Subject, Username: claims.username(), Role: claims.role()}, nil
}

func (r *Resolver) checkRevocation(ctx context.Context, tokenString string, claims *Claims) (bool, *AuthError) {
	hash := tokenHash(tokenString)

	if entry, ok := r.revCache.get(hash); ok {
		return entry.Revoked, nil
	}

	if r.revocation == nil {
		// Reference placeholder: always valid (spec §9 Open Questions).
		r.revCache.put(hash, false, remainingTTL(claims, r.revTTLCap))
		return false, nil
	}

	revoked, err := r.revocation.CheckRevocation(ctx, tokenString, claims.ID, claims.Subject)
	if err != nil {
		return false, fail(FailureBackendUnavailable, "revocation check unavailable")
	}

	r.revCache.put(hash, revoked, remainingTTL(claims, r.revTTLCap))
	return revoked, nil
}

// ClearUserCache evicts all cached auth entries for a user, e.g. on a
// password change (spec §4.4 mutation rules apply the same pattern to
// path caches; this is the authentication-side equivalent).
func (r *Resolver) ClearUserCache(username string) {
	r.authCache.clearUser(username)
}

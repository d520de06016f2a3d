package auth

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheEntry is the Auth Cache Entry from spec §3. Authenticated is
// false when the entry records a prior authentication failure, which
// the resolver re-rejects without calling the backend again.
type cacheEntry struct {
	UserID        string
	Username      string
	Role          string
	Authenticated bool
	CreatedAt     time.Time
}

// authCache wraps an expirable LRU so both size and a fixed TTL
// (counted from insertion, not refreshed on reads) bound it,
// matching internal/edge's caching convention (see DESIGN.md).
type authCache struct {
	c *expirable.LRU[string, cacheEntry]
}

func newAuthCache(size int, ttl time.Duration) *authCache {
	return &authCache{c: expirable.NewLRU[string, cacheEntry](size, nil, ttl)}
}

func (a *authCache) get(key string) (cacheEntry, bool) {
	return a.c.Get(key)
}

func (a *authCache) put(key string, e cacheEntry) {
	a.c.Add(key, e)
}

// revocationEntry is the Revocation Cache Entry from spec §3. Unlike
// the auth cache, each entry carries its own expiry because its TTL
// is capped per-token to the token's remaining lifetime (spec §4.2
// step 3), not a single configured duration.
type revocationEntry struct {
	Revoked   bool
	ExpiresAt time.Time
}

type revocationCache struct {
	c *lru.Cache[string, revocationEntry]
}

func newRevocationCache(size int) *revocationCache {
	c, _ := lru.New[string, revocationEntry](size)
	return &revocationCache{c: c}
}

func (r *revocationCache) get(tokenHash string) (revocationEntry, bool) {
	e, ok := r.c.Get(tokenHash)
	if !ok {
		return revocationEntry{}, false
	}
	if time.Now().After(e.ExpiresAt) {
		r.c.Remove(tokenHash)
		return revocationEntry{}, false
	}
	return e, true
}

// put stores the revocation answer with the given TTL, which the
// caller has already capped to the token's remaining lifetime.
func (r *revocationCache) put(tokenHash string, revoked bool, ttl time.Duration) {
	r.c.Add(tokenHash, revocationEntry{Revoked: revoked, ExpiresAt: time.Now().Add(ttl)})
}

// clearUser evicts every cache entry belonging to a user. The auth and
// revocation caches are keyed by credential hash, not user id, so a
// full sweep is required; callers invalidate on password change.
func (a *authCache) clearUser(username string) {
	for _, key := range a.c.Keys() {
		if e, ok := a.c.Peek(key); ok && e.Username == username {
			a.c.Remove(key)
		}
	}
}

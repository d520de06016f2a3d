package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAuthCache_ClearUser(t *testing.T) {
	c := newAuthCache(10, time.Minute)
	c.put("key-alice", cacheEntry{Username: "alice", Authenticated: true})
	c.put("key-bob", cacheEntry{Username: "bob", Authenticated: true})

	c.clearUser("alice")

	_, ok := c.get("key-alice")
	assert.False(t, ok)
	_, ok = c.get("key-bob")
	assert.True(t, ok)
}

func TestRevocationCache_ExpiresPerEntry(t *testing.T) {
	c := newRevocationCache(10)
	c.put("tok-1", true, time.Millisecond)
	c.put("tok-2", false, time.Hour)

	time.Sleep(5 * time.Millisecond)

	_, ok := c.get("tok-1")
	assert.False(t, ok, "short-TTL entry should have expired")

	entry, ok := c.get("tok-2")
	assert.True(t, ok)
	assert.False(t, entry.Revoked)
}

func TestCacheKey_NeverContainsSecret(t *testing.T) {
	key := cacheKey("alice", "super-secret-password")
	assert.NotContains(t, key, "super-secret-password")
	assert.NotContains(t, key, "alice")
}

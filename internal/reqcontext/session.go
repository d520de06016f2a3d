package reqcontext

import (
	"context"
	"sync"
	"time"

	"github.com/javi11/davgateway/internal/auth"
)

type sessionEntry struct {
	principal *auth.Principal
	expiresAt time.Time
}

// SessionStore holds the last known Principal per session id with a
// short TTL (spec §4.3), plus a process-wide "most recent principal"
// slot used as the last-resort recovery step. Grounded on the
// teacher's sync.Map + periodic-sweep pattern in
// internal/api/stream_tracker.go (StartCleanup).
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	ttl      time.Duration

	mostRecentMu sync.RWMutex
	mostRecent   sessionEntry
}

// NewSessionStore builds a store with the given per-entry TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{sessions: make(map[string]sessionEntry), ttl: ttl}
}

// Put records the principal last seen authenticated for sessionID, and
// updates the most-recent-principal slot.
func (s *SessionStore) Put(sessionID string, p *auth.Principal) {
	entry := sessionEntry{principal: p, expiresAt: time.Now().Add(s.ttl)}

	s.mu.Lock()
	s.sessions[sessionID] = entry
	s.mu.Unlock()

	s.mostRecentMu.Lock()
	s.mostRecent = entry
	s.mostRecentMu.Unlock()
}

// Get returns the principal for sessionID if present and not expired.
func (s *SessionStore) Get(sessionID string) (*auth.Principal, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.principal, true
}

// MostRecent returns the most recently authenticated principal across
// all sessions, if it has not expired. This is the last-resort
// fallback in the recovery order (spec §4.3 step 5) — it never grants
// access by username alone, only by a principal that actually
// authenticated within the TTL.
func (s *SessionStore) MostRecent() (*auth.Principal, bool) {
	s.mostRecentMu.RLock()
	entry := s.mostRecent
	s.mostRecentMu.RUnlock()
	if entry.principal == nil || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.principal, true
}

// StartSweeper periodically removes expired session entries. Stops
// when ctx is cancelled.
func (s *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *SessionStore) sweep() {
	now := time.Now()
	s.mu.Lock()
	for id, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
}

package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/javi11/davgateway/internal/edge"
	"github.com/stretchr/testify/assert"
)

type memStore struct {
	mu     sync.Mutex
	events []Event
}

func (m *memStore) InsertEvent(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestService_EmitGateDecisionPersists(t *testing.T) {
	store := &memStore{}
	svc := NewService(100, 2, true, 5, store, nil)
	svc.Start()
	defer svc.Stop()

	svc.EmitGateDecision(edge.Request{ClientIP: "1.2.3.4", Username: "alice"}, edge.Decision{
		Allowed: false, Action: edge.ActionIPBlock, Reason: "blocked",
	})

	assert.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestService_AllowedDecisionsNotEmitted(t *testing.T) {
	store := &memStore{}
	svc := NewService(100, 1, true, 5, store, nil)
	svc.Start()
	defer svc.Stop()

	svc.EmitGateDecision(edge.Request{ClientIP: "1.2.3.4"}, edge.Decision{Allowed: true, Action: edge.ActionAllow})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, store.count())
}

func TestService_AutoBlacklistAfterThreshold(t *testing.T) {
	store := &memStore{}
	var blocked []string
	var mu sync.Mutex
	svc := NewService(100, 1, false, 3, store, func(ip string) {
		mu.Lock()
		blocked = append(blocked, ip)
		mu.Unlock()
	})
	svc.Start()
	defer svc.Stop()

	for i := 0; i < 3; i++ {
		svc.EmitGateDecision(edge.Request{ClientIP: "9.9.9.9", Path: "/dav/../../etc/passwd"}, edge.Decision{
			Action: edge.ActionDeny, Reason: "path traversal attempt",
		})
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(blocked) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMaskIPv4(t *testing.T) {
	assert.Equal(t, "1.2.*.**", maskIPv4("1.2.3.4"))
	assert.Equal(t, "::1", maskIPv4("::1"))
}

func TestMaskUsername(t *testing.T) {
	assert.Equal(t, "abcd", maskUsername("abcd"))
	assert.Equal(t, "al***e", maskUsername("alanae"))
}

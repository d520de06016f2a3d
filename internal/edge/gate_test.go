package edge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	decisions []Decision
}

func (s *recordingSink) EmitGateDecision(req Request, d Decision) {
	s.decisions = append(s.decisions, d)
}

func newTestGate() (*Gate, *recordingSink) {
	sink := &recordingSink{}
	ipTable := NewIPTable(true, []string{"10.0.0.0/8"}, nil)
	limiter := NewRateLimiter(100, 100, 1000, 1000)
	return NewGate(ipTable, limiter, sink), sink
}

func TestGate_HappyPath(t *testing.T) {
	g, sink := newTestGate()
	d := g.Check(Request{ClientIP: "10.0.0.5", UserAgent: "WebDAVClient/1.0", Path: "/dav/", Method: "PROPFIND"})
	assert.True(t, d.Allowed)
	assert.Equal(t, ActionAllow, d.Action)
	assert.Empty(t, sink.decisions)
}

func TestGate_IPNotWhitelisted(t *testing.T) {
	g, sink := newTestGate()
	d := g.Check(Request{ClientIP: "8.8.8.8", UserAgent: "client", Path: "/dav/"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ActionIPBlock, d.Action)
	assert.Len(t, sink.decisions, 1)
}

func TestGate_EmptyUserAgentDeniedRegardlessOfOtherState(t *testing.T) {
	g, _ := newTestGate()
	d := g.Check(Request{ClientIP: "10.0.0.1", UserAgent: "", Path: "/dav/"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ActionDeny, d.Action)
}

func TestGate_PathTraversalDenied(t *testing.T) {
	g, _ := newTestGate()
	d := g.Check(Request{ClientIP: "10.0.0.1", UserAgent: "client", Path: "/dav/../../etc/passwd"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ActionDeny, d.Action)
}

func TestGate_RateLimitExceeded(t *testing.T) {
	sink := &recordingSink{}
	ipTable := NewIPTable(false, nil, nil)
	limiter := NewRateLimiter(2, 100, 1000, 1000)
	g := NewGate(ipTable, limiter, sink)

	var last Decision
	for i := 0; i < 5; i++ {
		last = g.Check(Request{ClientIP: "1.2.3.4", UserAgent: "client", Path: "/dav/"})
	}
	assert.False(t, last.Allowed)
	assert.Equal(t, ActionRateLimit, last.Action)
}

func TestGate_SuspiciousUserAgentDenied(t *testing.T) {
	g, _ := newTestGate()
	d := g.Check(Request{ClientIP: "10.0.0.1", UserAgent: "evil-crawler/2.0", Path: "/dav/"})
	assert.False(t, d.Allowed)
	assert.Equal(t, ActionDeny, d.Action)
}

package edge

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// bucket is a fixed-window counter (spec §4.1 Rate-Limit Bucket).
type bucket struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// RateLimiter enforces per-key fixed-window limits. Window size is
// implied by key prefix: "ip:"/"user:" buckets use a 1-minute window,
// "global:" uses 1-second, matching spec §4.1.
type RateLimiter struct {
	limitMu     sync.RWMutex
	ipLimit     int
	userLimit   int
	globalLimit int

	createMu sync.Mutex
	buckets  *expirable.LRU[string, *bucket]
	now      func() time.Time
}

// NewRateLimiter builds a limiter with the configured per-scope limits.
// A zero limit denies every request for that scope, per spec.
func NewRateLimiter(ipLimit, userLimit, globalLimit, cacheSize int) *RateLimiter {
	return &RateLimiter{
		ipLimit:     ipLimit,
		userLimit:   userLimit,
		globalLimit: globalLimit,
		buckets:     expirable.NewLRU[string, *bucket](cacheSize, nil, 2*time.Minute),
		now:         time.Now,
	}
}

// Reconfigure swaps in new per-scope limits without losing in-flight
// bucket state, for the config manager's hot-reload path.
func (l *RateLimiter) Reconfigure(ipLimit, userLimit, globalLimit int) {
	l.limitMu.Lock()
	defer l.limitMu.Unlock()
	l.ipLimit = ipLimit
	l.userLimit = userLimit
	l.globalLimit = globalLimit
}

func (l *RateLimiter) windowAndLimit(key string) (time.Duration, int) {
	l.limitMu.RLock()
	defer l.limitMu.RUnlock()
	switch {
	case strings.HasPrefix(key, "ip:"):
		return time.Minute, l.ipLimit
	case strings.HasPrefix(key, "user:"):
		return time.Minute, l.userLimit
	case strings.HasPrefix(key, "global:"):
		return time.Second, l.globalLimit
	default:
		return time.Minute, l.ipLimit
	}
}

// Allow reports whether one more request under key may proceed, and
// increments its bucket as a side effect. Buckets reset atomically when
// the window elapses; two concurrent calls near a boundary may both
// observe a reset, over-allowing by at most one window's worth, which
// spec §5 explicitly accepts.
func (l *RateLimiter) Allow(key string) bool {
	window, max := l.windowAndLimit(key)
	if max <= 0 {
		return false
	}

	l.createMu.Lock()
	b, _ := l.buckets.Get(key)
	if b == nil {
		b = &bucket{windowStart: l.now()}
		l.buckets.Add(key, b)
	}
	l.createMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	if now.Sub(b.windowStart) >= window {
		b.windowStart = now
		b.count = 0
	}

	b.count++
	return b.count <= max
}

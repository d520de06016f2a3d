package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/javi11/davgateway/internal/edge"
	"github.com/sourcegraph/conc"
)

// Store persists audit events for later admin querying. Implemented by
// internal/database.AuditStore.
type Store interface {
	InsertEvent(ctx context.Context, e Event) error
}

// Service is the bounded MPSC audit queue described in spec §4.6/§5:
// a small worker pool drains it so emission never blocks the request
// path beyond an enqueue.
type Service struct {
	queue    chan Event
	store    Store
	maskPII  bool
	workers  int
	wg       *conc.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	blacklistAfter int
	onBlacklist    func(clientIP string)

	mu              sync.Mutex
	criticalByIP    map[string][]time.Time
	blacklistedOnce map[string]bool
}

// NewService builds an audit service. onBlacklist, if non-nil, is
// invoked at most once per IP once it crosses blacklistAfter CRITICAL
// events within a 10-minute window (spec §4.6).
func NewService(queueSize, workers int, maskPII bool, blacklistAfter int, store Store, onBlacklist func(string)) *Service {
	if workers <= 0 {
		workers = 2
	}
	return &Service{
		queue:           make(chan Event, queueSize),
		store:           store,
		maskPII:         maskPII,
		workers:         workers,
		stopCh:          make(chan struct{}),
		blacklistAfter:  blacklistAfter,
		onBlacklist:     onBlacklist,
		criticalByIP:    make(map[string][]time.Time),
		blacklistedOnce: make(map[string]bool),
	}
}

// Start launches the worker pool.
func (s *Service) Start() {
	s.wg = conc.NewWaitGroup()
	for i := 0; i < s.workers; i++ {
		s.wg.Go(s.drain)
	}
}

// Stop signals the workers to persist whatever is already queued and
// exit, then waits for them. The queue channel itself stays open.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	if s.wg != nil {
		s.wg.Wait()
	}
}

func (s *Service) drain() {
	for {
		select {
		case e, ok := <-s.queue:
			if !ok {
				return
			}
			s.persist(e)
		case <-s.stopCh:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case e := <-s.queue:
					s.persist(e)
				default:
					return
				}
			}
		}
	}
}

func (s *Service) persist(e Event) {
	clientIP := e.ClientIP
	if s.maskPII {
		e.ClientIP = maskIPv4(e.ClientIP)
		e.Username = maskUsername(e.Username)
	}

	attrs := []any{
		"event_type", e.EventType,
		"level", e.Level,
		"client_ip", e.ClientIP,
		"username", e.Username,
		"path", e.RequestPath,
		"method", e.RequestMethod,
		"details", e.Details,
	}
	switch e.Level {
	case LevelCritical, LevelError:
		slog.Error("security audit event", attrs...)
	case LevelWarn:
		slog.Warn("security audit event", attrs...)
	default:
		slog.Info("security audit event", attrs...)
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.InsertEvent(ctx, e); err != nil {
			slog.Error("failed to persist audit event", "err", err)
		}
	}

	if e.Level == LevelCritical && e.EventType == EventMaliciousRequest {
		s.maybeBlacklist(clientIP)
	}
}

func (s *Service) maybeBlacklist(clientIP string) {
	if s.onBlacklist == nil || s.blacklistAfter <= 0 || clientIP == "" {
		return
	}

	now := time.Now()
	const window = 10 * time.Minute

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.blacklistedOnce[clientIP] {
		return
	}

	times := s.criticalByIP[clientIP]
	cutoff := now.Add(-window)
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.criticalByIP[clientIP] = kept

	if len(kept) >= s.blacklistAfter {
		s.blacklistedOnce[clientIP] = true
		s.onBlacklist(clientIP)
	}
}

// emit enqueues an event, applying the overflow policy from spec §5:
// drop INFO/WARN when the queue is full, retain ERROR/CRITICAL via a
// brief bounded wait.
func (s *Service) emit(e Event) {
	e.Timestamp = time.Now()

	select {
	case s.queue <- e:
		return
	default:
	}

	if e.Level != LevelError && e.Level != LevelCritical {
		return
	}

	select {
	case s.queue <- e:
	case <-time.After(50 * time.Millisecond):
		slog.Error("audit queue full, dropping event", "event_type", e.EventType)
	}
}

// EmitGateDecision implements edge.AuditSink.
func (s *Service) EmitGateDecision(req edge.Request, d edge.Decision) {
	if d.Action == edge.ActionAllow {
		return
	}

	eventType, level := classifyGateDecision(req, d)
	s.emit(Event{
		Level:         level,
		EventType:     eventType,
		ClientIP:      req.ClientIP,
		Username:      req.Username,
		UserAgent:     req.UserAgent,
		RequestPath:   req.Path,
		RequestMethod: req.Method,
		Details:       d.Reason,
	})
}

func classifyGateDecision(req edge.Request, d edge.Decision) (EventType, Level) {
	switch d.Action {
	case edge.ActionIPBlock:
		return EventIPBlocked, LevelWarn
	case edge.ActionRateLimit:
		return EventRateLimited, LevelWarn
	case edge.ActionCaptchaRequired:
		return EventAuthorizationFailure, LevelWarn
	default:
		if pathTraversalReason(d.Reason) {
			return EventMaliciousRequest, LevelCritical
		}
		return EventSuspiciousActivity, LevelWarn
	}
}

func pathTraversalReason(reason string) bool {
	return reason == "path traversal attempt" || reason == "suspicious path segment"
}

// EmitAuthSuccess records a successful authentication.
func (s *Service) EmitAuthSuccess(username, clientIP, userAgent string) {
	s.emit(Event{
		Level:         LevelInfo,
		EventType:     EventAuthenticationSuccess,
		ClientIP:      clientIP,
		Username:      username,
		UserAgent:     userAgent,
		RequestMethod: "AUTH",
	})
}

// EmitAuthFailure records a failed authentication attempt with a
// reason string (never the credential itself, per spec §4.2).
func (s *Service) EmitAuthFailure(username, clientIP, userAgent, reason string) {
	s.emit(Event{
		Level:         LevelWarn,
		EventType:     EventAuthenticationFailure,
		ClientIP:      clientIP,
		Username:      username,
		UserAgent:     userAgent,
		RequestMethod: "AUTH",
		Details:       reason,
	})
}

// EmitSystemError records an internal failure that should not be
// surfaced to the client.
func (s *Service) EmitSystemError(detail string) {
	s.emit(Event{
		Level:     LevelError,
		EventType: EventSystemError,
		Details:   detail,
	})
}

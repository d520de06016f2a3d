package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/javi11/davgateway/internal/audit"
	"github.com/javi11/davgateway/internal/auth"
	"github.com/javi11/davgateway/internal/edge"
	"github.com/javi11/davgateway/internal/reqcontext"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/webdav"
)

// Config configures the HTTP listener the gateway binds.
type Config struct {
	Addr   string
	Prefix string
	Realm  string

	// StaticUser/StaticPasswordHash are the break-glass admin
	// credential (mirrors the teacher's webdav.User/Password fallback):
	// a bcrypt hash set via the passwd subcommand (config webdav.user /
	// webdav.password), checked before the backend authenticator so the
	// gateway stays reachable without any backend user provisioned yet.
	// Leave StaticUser empty to disable.
	StaticUser         string
	StaticPasswordHash string
}

// Metrics receives a tally of every authentication outcome.
// Implemented by internal/metrics.Collector.
type Metrics interface {
	RecordAuthAttempt(outcome string)
}

// Server composes the full request pipeline spec §2 describes:
// security gate, authentication resolver, request context
// construction, principal recovery, then WebDAV verb handling.
// Grounded on the teacher's internal/webdav/server.go handler closure.
type Server struct {
	cfg      Config
	http     *http.Server
	gate     *edge.Gate
	resolver *auth.Resolver
	sessions *reqcontext.SessionStore
	auditSvc *audit.Service
	metrics  Metrics
	handler  *webdav.Handler
}

// NewServer wires the pipeline into an *http.Server. fs is the
// webdav.FileSystem adapter (see FS); mux lets callers share a
// listener with other endpoints (metrics, health), mirroring the
// teacher's optional shared-mux pattern.
func NewServer(cfg Config, fs webdav.FileSystem, gate *edge.Gate, resolver *auth.Resolver, sessions *reqcontext.SessionStore, auditSvc *audit.Service, mux *http.ServeMux) *Server {
	if mux == nil {
		mux = http.NewServeMux()
	}

	s := &Server{
		cfg:      cfg,
		gate:     gate,
		resolver: resolver,
		sessions: sessions,
		auditSvc: auditSvc,
		handler: &webdav.Handler{
			FileSystem: fs,
			LockSystem: webdav.NewMemLS(),
			Prefix:     cfg.Prefix,
			Logger: func(r *http.Request, err error) {
				if err != nil && !errors.Is(err, context.Canceled) {
					slog.DebugContext(r.Context(), "webdav handler error", "err", err, "method", r.Method, "path", r.URL.Path)
				}
			},
		},
	}

	mux.Handle("/", withSecurityHeaders(http.HandlerFunc(s.serveHTTP)))

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		IdleTimeout:  5 * time.Minute,
		WriteTimeout: 30 * time.Minute,
	}

	return s
}

// WithMetrics attaches a Metrics sink, returning the server for chaining.
func (s *Server) WithMetrics(m Metrics) *Server {
	s.metrics = m
	return s
}

// Start runs the listener until ctx is cancelled, then shuts down
// gracefully (teacher's internal/webdav/server.go Start pattern).
func (s *Server) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "gateway listening", "addr", s.http.Addr, "prefix", s.cfg.Prefix)

	serverErr := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// Stop shuts the server down gracefully, giving in-flight requests up
// to 15 seconds to finish.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.Error("gateway shutdown error", "err", err)
	}
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := ExtractClientIP(r)
	requestID := reqcontext.NewRequestID()

	username, secret, hasAuth := r.BasicAuth()

	gateReq := edge.Request{
		ClientIP:  clientIP,
		UserAgent: r.Header.Get("User-Agent"),
		Path:      r.URL.Path,
		Method:    r.Method,
		Username:  username,
	}

	decision := s.gate.Check(gateReq)
	if !decision.Allowed {
		writeGateRejection(w, decision)
		return
	}

	tag := &principalTag{}
	ctx := r.Context()

	rc := &reqcontext.Context{
		RequestID: requestID,
		ClientIP:  clientIP,
		UserAgent: r.Header.Get("User-Agent"),
		StartTime: time.Now(),
	}

	if hasAuth {
		principal, authErr := s.authenticate(ctx, username, secret, clientIP, r.Header.Get("User-Agent"))
		if authErr != nil {
			if s.auditSvc != nil {
				s.auditSvc.EmitAuthFailure(username, clientIP, r.Header.Get("User-Agent"), string(authErr.Kind))
			}
			if s.metrics != nil {
				s.metrics.RecordAuthAttempt(string(authErr.Kind))
			}
			s.challenge(w)
			return
		}
		if s.auditSvc != nil {
			s.auditSvc.EmitAuthSuccess(principal.Username, clientIP, r.Header.Get("User-Agent"))
		}
		if s.metrics != nil {
			s.metrics.RecordAuthAttempt("success")
		}
		rc.Principal = principal
		tag.SetPrincipal(principal)
		if s.sessions != nil {
			s.sessions.Put(requestID, principal)
		}
	}

	ctx = reqcontext.Attach(ctx, rc)

	var sessionID string
	if c, err := r.Cookie("gateway_session"); err == nil {
		sessionID = c.Value
	}
	ctx, principal, recovered := reqcontext.Recover(ctx, tag, s.sessions, sessionID)
	if !recovered || principal == nil {
		s.challenge(w)
		return
	}

	r = r.WithContext(ctx)

	switch r.Method {
	case "MOVE", "COPY":
		slog.InfoContext(ctx, "webdav "+r.Method,
			"source", r.URL.Path, "destination", r.Header.Get("Destination"), "overwrite", r.Header.Get("Overwrite"))
	}

	w.Header().Set("Accept-Ranges", "bytes")
	s.handler.ServeHTTP(w, r)
}

// authenticate checks the static break-glass credential before
// falling back to the backend-backed resolver, so the gateway admin
// account set by the passwd subcommand works even with no backend
// user provisioned (mirrors the teacher's static webdav.User check
// ahead of its own auth providers).
func (s *Server) authenticate(ctx context.Context, username, secret, clientIP, userAgent string) (*auth.Principal, *auth.AuthError) {
	if s.cfg.StaticUser != "" && username == s.cfg.StaticUser {
		if bcrypt.CompareHashAndPassword([]byte(s.cfg.StaticPasswordHash), []byte(secret)) == nil {
			return &auth.Principal{UserID: s.cfg.StaticUser, Username: s.cfg.StaticUser, Role: "admin"}, nil
		}
		return nil, &auth.AuthError{Kind: auth.FailureInvalidCredentials}
	}
	return s.resolver.Authenticate(ctx, username, secret, clientIP, userAgent)
}

func (s *Server) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q`, s.cfg.Realm))
	writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
}

// writeGateRejection implements spec §6's gate-rejection status
// mapping.
func writeGateRejection(w http.ResponseWriter, d edge.Decision) {
	var status int
	var reason string
	switch d.Action {
	case edge.ActionIPBlock:
		status, reason = http.StatusForbidden, "IP_BLOCK"
	case edge.ActionRateLimit:
		status, reason = http.StatusTooManyRequests, "RATE_LIMIT"
	case edge.ActionCaptchaRequired:
		status, reason = http.StatusUnauthorized, "CAPTCHA_REQUIRED"
	default:
		status, reason = http.StatusForbidden, "DENY"
	}
	w.Header().Set("X-Security-Reason", reason)
	writeJSONError(w, status, reason, d.Reason)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, reason string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":     errCode,
		"reason":    reason,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

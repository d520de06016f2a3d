package edge

import (
	"fmt"
	"log/slog"
)

// Action is the remediation recommended by the gate for a non-allow
// decision (spec §4.1, §6).
type Action string

const (
	ActionAllow           Action = "ALLOW"
	ActionDeny            Action = "DENY"
	ActionRateLimit       Action = "RATE_LIMIT"
	ActionIPBlock         Action = "IP_BLOCK"
	ActionCaptchaRequired Action = "CAPTCHA_REQUIRED"
)

// Decision is the result of evaluating one request.
type Decision struct {
	Allowed bool
	Reason  string
	Action  Action
}

func allow() Decision { return Decision{Allowed: true, Action: ActionAllow} }

func deny(action Action, reason string) Decision {
	return Decision{Allowed: false, Action: action, Reason: reason}
}

// Request is the subset of the Request Context (spec §4.3) the gate
// needs. Defined locally to avoid a dependency on the reqcontext
// package — the gate only ever reads request-shape fields.
type Request struct {
	ClientIP  string
	UserAgent string
	Path      string
	Method    string
	Username  string // empty if no principal is known yet
}

// AuditSink receives a record of every non-ALLOW decision (and,
// optionally, allowed ones a caller wants logged). Implemented by
// internal/audit.Service.
type AuditSink interface {
	EmitGateDecision(req Request, d Decision)
}

// Metrics receives a tally of every decision the gate makes.
// Implemented by internal/metrics.Collector; left nil-able so the
// gate has no hard dependency on prometheus being wired.
type Metrics interface {
	RecordGateDecision(action string)
}

// Gate evaluates ingress requests in the load-bearing order spec §4.1
// requires: cheap/local checks first, expensive ones last.
type Gate struct {
	ipTable *IPTable
	limiter *RateLimiter
	audit   AuditSink
	metrics Metrics
}

// NewGate builds a gate from its collaborators.
func NewGate(ipTable *IPTable, limiter *RateLimiter, audit AuditSink) *Gate {
	return &Gate{ipTable: ipTable, limiter: limiter, audit: audit}
}

// WithMetrics attaches a Metrics sink, returning the gate for chaining.
func (g *Gate) WithMetrics(m Metrics) *Gate {
	g.metrics = m
	return g
}

// Check runs the full evaluation order and returns the first
// non-ALLOW verdict encountered, or ALLOW if every check passes. Any
// panic during evaluation is recovered and converted to a fail-closed
// DENY, per spec §4.1.
func (g *Gate) Check(req Request) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("security check panicked, failing closed", "panic", r)
			d = deny(ActionDeny, "security check error")
		}
		if g.audit != nil && d.Action != ActionAllow {
			g.audit.EmitGateDecision(req, d)
		}
		if g.metrics != nil {
			g.metrics.RecordGateDecision(string(d.Action))
		}
	}()

	if !g.ipTable.IsWhitelisted(req.ClientIP) {
		return deny(ActionIPBlock, fmt.Sprintf("%s is not whitelisted", req.ClientIP))
	}

	if g.ipTable.IsBlacklisted(req.ClientIP) {
		return deny(ActionIPBlock, fmt.Sprintf("%s is blacklisted", req.ClientIP))
	}

	if !g.limiter.Allow("ip:" + req.ClientIP) {
		return deny(ActionRateLimit, "ip rate limit exceeded")
	}

	if req.Username != "" && !g.limiter.Allow("user:"+req.Username) {
		return deny(ActionRateLimit, "user rate limit exceeded")
	}

	if suspiciousUserAgent(req.UserAgent) {
		return deny(ActionDeny, "missing or suspicious user agent")
	}

	if pathTraversal(req.Path) {
		return deny(ActionDeny, "path traversal attempt")
	}

	if suspiciousPath(req.Path) {
		return deny(ActionDeny, "suspicious path segment")
	}

	// Global throughput cap. Not one of the six load-bearing steps
	// above, but cheap enough to check last rather than skip.
	if !g.limiter.Allow("global:gateway") {
		return deny(ActionRateLimit, "global rate limit exceeded")
	}

	return allow()
}

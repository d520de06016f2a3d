// Package reqcontext carries the per-request state (client IP,
// user-agent, request id, principal-once-known) across the WebDAV
// handler stack and downstream RPC calls, and bridges gaps where the
// WebDAV framework loses the principal between calls on one logical
// session (spec §4.3).
package reqcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/javi11/davgateway/internal/auth"
)

// Context is the per-request record. Principal is nil until
// authentication succeeds.
type Context struct {
	RequestID string
	ClientIP  string
	UserAgent string
	Principal *auth.Principal
	StartTime time.Time
}

type ctxKeyType struct{}

var ctxKey ctxKeyType

// NewRequestID mints a request id, following the teacher's use of
// google/uuid for identifying in-flight work (see
// internal/api/stream_tracker.go).
func NewRequestID() string {
	return uuid.NewString()
}

// Attach returns a derived context carrying rc, retrievable with From.
func Attach(parent context.Context, rc *Context) context.Context {
	return context.WithValue(parent, ctxKey, rc)
}

// From retrieves the Context attached by Attach, if any.
func From(ctx context.Context) (*Context, bool) {
	rc, ok := ctx.Value(ctxKey).(*Context)
	return rc, ok
}

// WithPrincipal returns a copy of rc with Principal set, for
// re-attaching after a recovery step succeeds.
func (rc *Context) WithPrincipal(p *auth.Principal) *Context {
	clone := *rc
	clone.Principal = p
	return &clone
}

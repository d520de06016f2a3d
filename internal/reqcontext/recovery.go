package reqcontext

import (
	"context"

	"github.com/javi11/davgateway/internal/auth"
)

// NativeTagHolder is the underlying protocol request object's own
// auth tag (spec §4.3 recovery step 1) — whatever native field the
// WebDAV framework attaches a principal to, when it keeps one at all.
type NativeTagHolder interface {
	Principal() (*auth.Principal, bool)
	SetPrincipal(*auth.Principal)
}

// Recover implements the recovery order from spec §4.3. Go has no
// separate "thread-context holder" distinct from a cooperative
// scheduler's context.Context, so the reference's steps 2 (protocol
// thread-context) and 3 (task-local context) collapse into a single
// context.Context lookup here; the native tag, session store, and
// most-recent-principal steps remain distinct.
//
// On success, the principal is re-attached to both the native tag and
// the context so a subsequent call on the same request short-circuits
// at step 1.
func Recover(ctx context.Context, native NativeTagHolder, sessions *SessionStore, sessionID string) (context.Context, *auth.Principal, bool) {
	if native != nil {
		if p, ok := native.Principal(); ok {
			return ctx, p, true
		}
	}

	if rc, ok := From(ctx); ok && rc.Principal != nil {
		if native != nil {
			native.SetPrincipal(rc.Principal)
		}
		return ctx, rc.Principal, true
	}

	if sessions != nil {
		if p, ok := sessions.Get(sessionID); ok {
			ctx = reattach(ctx, native, p)
			return ctx, p, true
		}

		if p, ok := sessions.MostRecent(); ok {
			ctx = reattach(ctx, native, p)
			return ctx, p, true
		}
	}

	return ctx, nil, false
}

func reattach(ctx context.Context, native NativeTagHolder, p *auth.Principal) context.Context {
	if native != nil {
		native.SetPrincipal(p)
	}
	if rc, ok := From(ctx); ok {
		return Attach(ctx, rc.WithPrincipal(p))
	}
	return ctx
}

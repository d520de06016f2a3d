package gateway

import "github.com/javi11/davgateway/internal/auth"

// principalTag is the native auth tag (reqcontext.NativeTagHolder)
// attached to one request's context: step 1 of the principal
// recovery order (spec §4.3).
type principalTag struct {
	principal *auth.Principal
}

func (t *principalTag) Principal() (*auth.Principal, bool) {
	if t.principal == nil {
		return nil, false
	}
	return t.principal, true
}

func (t *principalTag) SetPrincipal(p *auth.Principal) {
	t.principal = p
}

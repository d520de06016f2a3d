package gateway

import (
	"net"
	"net/http"
	"strings"
)

// headerPrecedence is the client-IP extraction order from spec §6.
var headerPrecedence = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
}

// ExtractClientIP implements spec §6's header precedence, falling
// back to the transport remote address. Bracketed IPv6 with a port is
// stripped to the bare address.
func ExtractClientIP(r *http.Request) string {
	for _, header := range headerPrecedence {
		v := r.Header.Get(header)
		if v == "" {
			continue
		}
		if header == "X-Forwarded-For" {
			parts := strings.Split(v, ",")
			v = strings.TrimSpace(parts[0])
		}
		if ip := stripPort(v); ip != "" {
			return ip
		}
	}

	return stripPort(r.RemoteAddr)
}

func stripPort(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}

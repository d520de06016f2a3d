package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_HeaderPrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dav/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("Forwarded", "for=9.9.9.9")
	r.Header.Set("X-Forwarded-For", "2.2.2.2, 3.3.3.3")
	r.Header.Set("X-Real-IP", "1.1.1.1")

	assert.Equal(t, "1.1.1.1", ExtractClientIP(r))
}

func TestExtractClientIP_XForwardedForFirstHop(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dav/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "2.2.2.2, 3.3.3.3")

	assert.Equal(t, "2.2.2.2", ExtractClientIP(r))
}

func TestExtractClientIP_FallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dav/", nil)
	r.RemoteAddr = "192.168.1.5:4321"

	assert.Equal(t, "192.168.1.5", ExtractClientIP(r))
}

func TestExtractClientIP_BracketedIPv6(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/dav/", nil)
	r.RemoteAddr = "[::1]:8080"

	assert.Equal(t, "::1", ExtractClientIP(r))
}

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Authenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authenticate", r.URL.Path)
		assert.Equal(t, "10.0.0.5", r.Header.Get("X-Client-IP"))
		_ = json.NewEncoder(w).Encode(AuthResult{Success: true, UserID: "42", Role: "USER"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0)
	result, err := c.Authenticate(context.Background(), CallMetadata{ClientIP: "10.0.0.5"}, "alice", "pw")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "42", result.UserID)
}

func TestHTTPClient_GetFileMetadata_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0)
	_, err := c.GetFileMetadata(context.Background(), CallMetadata{}, "id:1")
	assert.Error(t, err)
}

func TestHTTPClient_DownloadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("file contents"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0)
	rc, err := c.DownloadFile(context.Background(), CallMetadata{}, "id:1")
	require.NoError(t, err)
	defer rc.Close()

	buf := make([]byte, 32)
	n, _ := rc.Read(buf)
	assert.Equal(t, "file contents", string(buf[:n]))
}

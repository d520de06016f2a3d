package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient is the reference Client implementation: small JSON-RPC
// style calls over net/http. The backend's real wire format is out of
// scope (spec §1); this is stdlib by design, not by omission — see
// DESIGN.md for why no third-party RPC library is the "right" one
// when the schema itself is unspecified.
type HTTPClient struct {
	target   string
	deadline time.Duration
	http     *http.Client
}

// NewHTTPClient builds a Client against target, applying deadline to
// every call unless the caller's context already carries a shorter
// one (spec §5: every backend RPC call carries a deadline, default 30s).
// DownloadFile applies no deadline of its own; only the caller's context
// bounds it.
func NewHTTPClient(target string, deadline time.Duration) *HTTPClient {
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	return &HTTPClient{target: target, deadline: deadline, http: &http.Client{}}
}

func (c *HTTPClient) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if d, ok := ctx.Deadline(); ok && time.Until(d) <= c.deadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.deadline)
}

func (c *HTTPClient) call(ctx context.Context, meta CallMetadata, method string, in, out any) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("backend: marshaling %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.target+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("backend: building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-IP", meta.ClientIP)
	req.Header.Set("X-User-Agent", meta.UserAgent)
	req.Header.Set("X-Request-ID", meta.RequestID)
	if meta.UserID != "" {
		req.Header.Set("X-User-ID", meta.UserID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend: %s returned %d", method, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("backend: decoding %s response: %w", method, err)
		}
	}
	return nil
}

func (c *HTTPClient) Authenticate(ctx context.Context, meta CallMetadata, username, password string) (AuthResult, error) {
	var out AuthResult
	in := struct{ Username, Password string }{username, password}
	err := c.call(ctx, meta, "authenticate", in, &out)
	return out, err
}

func (c *HTTPClient) CheckJWTRevocation(ctx context.Context, meta CallMetadata, token, tokenID, userID string) (RevocationResult, error) {
	var out RevocationResult
	in := struct{ Token, TokenID, UserID string }{token, tokenID, userID}
	err := c.call(ctx, meta, "checkJwtRevocation", in, &out)
	return out, err
}

func (c *HTTPClient) GetFileMetadata(ctx context.Context, meta CallMetadata, pathOrID string) (Metadata, error) {
	var out Metadata
	in := struct{ PathOrID string }{pathOrID}
	err := c.call(ctx, meta, "getFileMetadata", in, &out)
	return out, err
}

func (c *HTTPClient) ProcessFile(ctx context.Context, meta CallMetadata, req FileRequest) (FileResponse, error) {
	var out FileResponse
	err := c.call(ctx, meta, "processFile", req, &out)
	return out, err
}

func (c *HTTPClient) UploadFile(ctx context.Context, meta CallMetadata, pathOrID string, body io.Reader) error {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.target+"/uploadFile?path="+pathOrID, body)
	if err != nil {
		return fmt.Errorf("backend: building uploadFile request: %w", err)
	}
	req.Header.Set("X-Client-IP", meta.ClientIP)
	req.Header.Set("X-User-Agent", meta.UserAgent)
	req.Header.Set("X-Request-ID", meta.RequestID)
	if meta.UserID != "" {
		req.Header.Set("X-User-ID", meta.UserID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: uploading file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("backend: uploadFile returned %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) DownloadFile(ctx context.Context, meta CallMetadata, pathOrID string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.target+"/downloadFile?path="+pathOrID, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: building downloadFile request: %w", err)
	}
	req.Header.Set("X-Client-IP", meta.ClientIP)
	req.Header.Set("X-User-Agent", meta.UserAgent)
	req.Header.Set("X-Request-ID", meta.RequestID)
	if meta.UserID != "" {
		req.Header.Set("X-User-ID", meta.UserID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: downloading file: %w", err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("backend: downloadFile returned %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Package backend defines the gateway's sole outbound dependency: the
// file-management RPC backend (spec §6). The wire format and schema
// are explicitly out of scope (spec §1) — this package only pins down
// the method set and the out-of-band call metadata every call
// carries.
package backend

import (
	"context"
	"io"
	"time"
)

// CallMetadata is propagated out-of-band on every backend call (spec
// §2 step 6, §6).
type CallMetadata struct {
	ClientIP  string
	UserAgent string
	RequestID string
	UserID    string // empty if not yet authenticated
}

// AuthResult is the response shape of the authenticate RPC (spec §6).
type AuthResult struct {
	Success bool
	UserID  string
	Role    string
	JWT     string
	Error   string
}

// RevocationResult is the response shape of checkJwtRevocation.
type RevocationResult struct {
	Success bool
	Revoked bool
	Message string
}

// Metadata mirrors spec §3's File Metadata record as reported by the
// backend.
type Metadata struct {
	Exists        bool
	BackendFileID uint64
	DisplayName   string
	ParentID      *uint64
	IsDirectory   bool
	Size          uint64
	ContentType   string
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

// FileRequest is a small, unary file operation (PROPPATCH, MKCOL,
// DELETE, MOVE, COPY, ...); ProcessFile is the catch-all for anything
// that isn't a stream.
type FileRequest struct {
	Method      string // the WebDAV verb driving this call
	PathOrID    string
	Destination string // MOVE/COPY target, empty otherwise
	Overwrite   bool
}

// FileResponse is ProcessFile's result. Children is populated for a
// "PROPFIND" (directory listing) request — processFile is the unary
// catch-all spec §6 describes for small operations, and listing a
// directory is one of them.
type FileResponse struct {
	Success  bool
	Error    string
	Meta     *Metadata
	Children []Metadata
}

// Client is the backend RPC surface the gateway core consumes (spec
// §6). Implementations own the actual transport; none is mandated.
type Client interface {
	Authenticate(ctx context.Context, meta CallMetadata, username, password string) (AuthResult, error)
	CheckJWTRevocation(ctx context.Context, meta CallMetadata, token, tokenID, userID string) (RevocationResult, error)
	GetFileMetadata(ctx context.Context, meta CallMetadata, pathOrID string) (Metadata, error)
	ProcessFile(ctx context.Context, meta CallMetadata, req FileRequest) (FileResponse, error)
	UploadFile(ctx context.Context, meta CallMetadata, pathOrID string, body io.Reader) error
	DownloadFile(ctx context.Context, meta CallMetadata, pathOrID string) (io.ReadCloser, error)
}

// UploadChunkSize is the streaming chunk size for bodies larger than
// 1 MiB (spec §6).
const UploadChunkSize = 1 << 20

// StreamingThreshold is the body size above which uploads/downloads
// must use the streaming path rather than a unary call.
const StreamingThreshold = 1 << 20

// Package pathmap translates between the client-visible WebDAV
// namespace (hierarchical paths under a fixed prefix) and the
// backend's flat 64-bit file-id space (spec §4.4), with per-user
// scoping, duplicate-name disambiguation, and multi-level caching.
package pathmap

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a path or id cannot be resolved.
var ErrNotFound = errors.New("pathmap: not found")

// ErrCrossUser is returned when a resolved path would cross into
// another user's subtree. Cross-user resolution is explicitly
// unimplemented (spec §9 Open Questions).
var ErrCrossUser = errors.New("pathmap: path outside authenticated user's subtree")

// FileMetadata is what the backend reports about a file or folder
// (spec §3).
type FileMetadata struct {
	BackendFileID uint64
	DisplayName   string
	ParentID      *uint64
	IsDirectory   bool
	Size          uint64
	ContentType   string
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

// Mapping is the Path Mapping record from spec §3.
type Mapping struct {
	FullPath      string
	BackendFileID uint64
	UserID        uint64
	OriginalName  string
	WebDAVName    string
	ParentID      *uint64
	IsDirectory   bool
	CreatedAt     time.Time
	LastAccess    time.Time
}

// ChildEntry is one row of a backend directory listing, in the order
// the backend returned it — disambiguation depends on that order
// being preserved (spec §4.4).
type ChildEntry struct {
	BackendFileID uint64
	OriginalName  string
	IsDirectory   bool
}

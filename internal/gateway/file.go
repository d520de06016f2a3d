package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/javi11/davgateway/internal/backend"
	"github.com/javi11/davgateway/internal/pathmap"
	"github.com/javi11/davgateway/internal/reqcontext"
)

// dirFile is the webdav.File returned for folders. Reads and writes
// are not supported; Readdir drives PROPFIND listings through the
// Path Mapping Engine's per-directory cache.
type dirFile struct {
	fs       *FS
	ctx      context.Context
	rc       *reqcontext.Context
	userID   uint64
	parentID uint64
	dirPath  string
	info     os.FileInfo

	entries []os.FileInfo
	offset  int
	loaded  bool
}

func (f *dirFile) Close() error                 { return nil }
func (f *dirFile) Read(p []byte) (int, error)   { return 0, os.ErrInvalid }
func (f *dirFile) Write(p []byte) (int, error)  { return 0, os.ErrInvalid }
func (f *dirFile) Seek(off int64, whence int) (int64, error) {
	if off == 0 && whence == io.SeekStart {
		return 0, nil
	}
	return 0, os.ErrInvalid
}
func (f *dirFile) Stat() (os.FileInfo, error) { return f.info, nil }

func (f *dirFile) ensureLoaded() error {
	if f.loaded {
		return nil
	}

	if listing, ok := f.fs.engine.Listing(f.userID, f.parentID); ok {
		f.entries = listingToFileInfo(listing, nil)
		f.loaded = true
		return nil
	}

	meta := f.fs.callMeta(f.rc)
	resp, err := f.fs.client.ProcessFile(f.ctx, meta, backend.FileRequest{
		Method:   "PROPFIND",
		PathOrID: "id:" + strconv.FormatUint(f.parentID, 10),
	})
	if err != nil {
		return fmt.Errorf("gateway: listing %q: %w", f.dirPath, err)
	}
	if !resp.Success {
		return fmt.Errorf("gateway: listing %q rejected: %s", f.dirPath, resp.Error)
	}

	entries := make([]pathmap.ChildEntry, len(resp.Children))
	sizes := make(map[uint64]backend.Metadata, len(resp.Children))
	for i, c := range resp.Children {
		entries[i] = pathmap.ChildEntry{BackendFileID: c.BackendFileID, OriginalName: c.DisplayName, IsDirectory: c.IsDirectory}
		sizes[c.BackendFileID] = c
	}

	listing, err := f.fs.engine.PopulateDirectory(f.userID, f.parentID, f.dirPath, entries)
	if err != nil {
		return fmt.Errorf("gateway: indexing %q: %w", f.dirPath, err)
	}

	f.entries = listingToFileInfo(listing, sizes)
	f.loaded = true
	return nil
}

func (f *dirFile) Readdir(count int) ([]os.FileInfo, error) {
	if err := f.ensureLoaded(); err != nil {
		return nil, err
	}

	remaining := f.entries[f.offset:]
	if count <= 0 {
		f.offset = len(f.entries)
		if len(remaining) == 0 {
			return nil, nil
		}
		return remaining, nil
	}

	if len(remaining) == 0 {
		return nil, io.EOF
	}
	if count > len(remaining) {
		count = len(remaining)
	}
	f.offset += count
	return remaining[:count], nil
}

func listingToFileInfo(listing []pathmap.ListingEntry, sizes map[uint64]backend.Metadata) []os.FileInfo {
	out := make([]os.FileInfo, len(listing))
	for i, e := range listing {
		mode := os.FileMode(0644)
		var size int64
		var modTime time.Time
		if sizes != nil {
			if m, ok := sizes[e.BackendFileID]; ok {
				size = int64(m.Size)
				modTime = m.ModifiedAt
			}
		}
		if e.IsDirectory {
			mode = os.ModeDir | 0755
		}
		out[i] = &fileInfo{name: e.WebDAVName, isDir: e.IsDirectory, mode: mode, size: size, modTime: modTime}
	}
	return out
}

// readFile is the webdav.File returned for a GET/HEAD on an existing
// file: the backend's download stream is fully buffered so
// golang.org/x/net/webdav's Range-request handling (which needs
// io.Seeker) is satisfied without the gateway committing to the
// backend's streaming semantics (spec §1 leaves the wire protocol
// unspecified).
type readFile struct {
	r    *bytes.Reader
	info os.FileInfo
}

func (f *readFile) Close() error                { return nil }
func (f *readFile) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *readFile) Write(p []byte) (int, error) { return 0, os.ErrPermission }
func (f *readFile) Seek(off int64, whence int) (int64, error) {
	return f.r.Seek(off, whence)
}
func (f *readFile) Stat() (os.FileInfo, error)              { return f.info, nil }
func (f *readFile) Readdir(count int) ([]os.FileInfo, error) { return nil, os.ErrInvalid }

// writeFile is the webdav.File returned for PUT: writes accumulate in
// memory and the upload to the backend happens on Close, following
// the same full-buffer simplification as readFile.
type writeFile struct {
	fs     *FS
	ctx    context.Context
	rc     *reqcontext.Context
	userID uint64

	existingID uint64 // 0 means this PUT creates a new file
	parentID   uint64
	fullPath   string
	baseName   string

	buf    bytes.Buffer
	info   os.FileInfo
	closed bool
}

func (f *writeFile) Read(p []byte) (int, error)  { return 0, os.ErrPermission }
func (f *writeFile) Readdir(int) ([]os.FileInfo, error) { return nil, os.ErrInvalid }
func (f *writeFile) Stat() (os.FileInfo, error)  { return f.info, nil }

func (f *writeFile) Seek(off int64, whence int) (int64, error) {
	if off == 0 && (whence == io.SeekStart || whence == io.SeekCurrent) {
		return int64(f.buf.Len()), nil
	}
	return 0, os.ErrInvalid
}

func (f *writeFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *writeFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	meta := f.fs.callMeta(f.rc)
	pathOrID := "new:" + f.fullPath
	if f.existingID != 0 {
		pathOrID = "id:" + strconv.FormatUint(f.existingID, 10)
	}

	if err := f.fs.client.UploadFile(f.ctx, meta, pathOrID, bytes.NewReader(f.buf.Bytes())); err != nil {
		return fmt.Errorf("gateway: uploading %q: %w", f.fullPath, err)
	}

	got, err := f.fs.client.GetFileMetadata(f.ctx, meta, pathOrID)
	if err != nil || !got.Exists {
		return fmt.Errorf("gateway: fetching metadata for uploaded %q: %w", f.fullPath, err)
	}

	entry := pathmap.ChildEntry{BackendFileID: got.BackendFileID, OriginalName: got.DisplayName, IsDirectory: false}
	if f.existingID != 0 {
		if err := f.fs.engine.UpdatePath(f.userID, f.existingID, f.fullPath, f.fullPath, f.parentID, f.baseName, got.DisplayName, false); err != nil {
			return err
		}
	} else {
		f.fs.engine.RegisterPath(f.userID, f.parentID, f.fullPath, entry, f.baseName)
	}
	f.fs.factory.InvalidateMetadata(got.BackendFileID)

	return nil
}

// Package backendtest provides a fake backend.Client for tests that
// need a believable file tree without a real network dependency. The
// backend RPC schema and wire format stay out of scope (spec §1);
// this package only needs believable storage behind the same
// PathOrID conventions internal/gateway's FS speaks ("id:<n>" for a
// known backend id, "new:<path>" for a PUT creating a new file).
//
// File bytes are kept on an in-memory afero filesystem rather than a
// bare []byte map: afero.MemMapFs is the teacher's own storage
// abstraction for its webdav.FileSystem adapter
// (internal/webdav/server.go takes an afero.Fs), reused here as the
// fake backend's storage instead of the production transport.
package backendtest

import (
	"context"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/javi11/davgateway/internal/backend"
	"github.com/spf13/afero"
)

type record struct {
	name     string
	parentID uint64
	isDir    bool
	modified time.Time
}

// Client is an in-memory fake backend.Client. Embedding backend.Client
// (nil) means any method not overridden panics loudly on use rather
// than silently doing nothing, the same stub-embedding pattern
// internal/resource/factory_test.go uses.
type Client struct {
	backend.Client

	fs afero.Fs

	mu        sync.Mutex
	nextID    uint64
	records   map[uint64]*record
	pathIndex map[string]uint64 // "new:<path>" lookup aid for in-flight creates
}

// New builds an empty fake backend with just the implicit root (id 0).
func New() *Client {
	return &Client{
		fs:        afero.NewMemMapFs(),
		nextID:    1,
		records:   map[uint64]*record{0: {name: "", isDir: true}},
		pathIndex: map[string]uint64{},
	}
}

func (c *Client) storageKey(id uint64) string {
	return "/" + strconv.FormatUint(id, 10)
}

func (c *Client) resolve(pathOrID string) (uint64, bool) {
	if strings.HasPrefix(pathOrID, "id:") {
		n, err := strconv.ParseUint(strings.TrimPrefix(pathOrID, "id:"), 10, 64)
		return n, err == nil
	}
	id, ok := c.pathIndex[pathOrID]
	return id, ok
}

// GetFileMetadata implements backend.Client.
func (c *Client) GetFileMetadata(ctx context.Context, meta backend.CallMetadata, pathOrID string) (backend.Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.resolve(pathOrID)
	if !ok {
		return backend.Metadata{Exists: false}, nil
	}
	rec, ok := c.records[id]
	if !ok {
		return backend.Metadata{Exists: false}, nil
	}

	var size uint64
	if !rec.isDir {
		if info, err := c.fs.Stat(c.storageKey(id)); err == nil {
			size = uint64(info.Size())
		}
	}

	var parentID *uint64
	if id != 0 {
		p := rec.parentID
		parentID = &p
	}

	return backend.Metadata{
		Exists:        true,
		BackendFileID: id,
		DisplayName:   rec.name,
		ParentID:      parentID,
		IsDirectory:   rec.isDir,
		Size:          size,
		ModifiedAt:    rec.modified,
		CreatedAt:     rec.modified,
	}, nil
}

// UploadFile implements backend.Client, writing through to the
// backing afero filesystem.
func (c *Client) UploadFile(ctx context.Context, meta backend.CallMetadata, pathOrID string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var id uint64
	if strings.HasPrefix(pathOrID, "new:") {
		full := strings.TrimPrefix(pathOrID, "new:")
		// The first segment is the WebDAV prefix; the rest name folders,
		// walked down from the root to find the new file's parent.
		var parentID uint64
		segs := strings.Split(strings.Trim(path.Dir(full), "/"), "/")
		for _, seg := range segs[1:] {
			for rid, rec := range c.records {
				if rid != 0 && rec.isDir && rec.parentID == parentID && rec.name == seg {
					parentID = rid
					break
				}
			}
		}
		id = c.nextID
		c.nextID++
		c.records[id] = &record{name: path.Base(full), parentID: parentID, modified: time.Now()}
		c.pathIndex[pathOrID] = id
	} else {
		resolved, ok := c.resolve(pathOrID)
		if !ok {
			return errors.New("backendtest: unknown upload target")
		}
		id = resolved
		c.records[id].modified = time.Now()
	}

	return afero.WriteFile(c.fs, c.storageKey(id), data, 0644)
}

// DownloadFile implements backend.Client, reading back through the
// backing afero filesystem.
func (c *Client) DownloadFile(ctx context.Context, meta backend.CallMetadata, pathOrID string) (io.ReadCloser, error) {
	c.mu.Lock()
	id, ok := c.resolve(pathOrID)
	c.mu.Unlock()
	if !ok {
		return nil, errors.New("backendtest: not found")
	}

	f, err := c.fs.Open(c.storageKey(id))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ProcessFile implements backend.Client's unary operations (MKCOL,
// DELETE, MOVE, PROPFIND).
func (c *Client) ProcessFile(ctx context.Context, meta backend.CallMetadata, req backend.FileRequest) (backend.FileResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch req.Method {
	case "MKCOL":
		parentID, _ := c.resolve(req.PathOrID)
		id := c.nextID
		c.nextID++
		c.records[id] = &record{name: req.Destination, parentID: parentID, isDir: true, modified: time.Now()}
		return backend.FileResponse{Success: true, Meta: &backend.Metadata{
			Exists: true, BackendFileID: id, DisplayName: req.Destination, IsDirectory: true,
		}}, nil

	case "DELETE":
		id, ok := c.resolve(req.PathOrID)
		if !ok {
			return backend.FileResponse{Success: false, Error: "not found"}, nil
		}
		delete(c.records, id)
		_ = c.fs.Remove(c.storageKey(id))
		return backend.FileResponse{Success: true}, nil

	case "MOVE":
		id, ok := c.resolve(req.PathOrID)
		if !ok {
			return backend.FileResponse{Success: false, Error: "not found"}, nil
		}
		rec := c.records[id]
		rec.name = path.Base(req.Destination)
		rec.modified = time.Now()
		return backend.FileResponse{Success: true, Meta: &backend.Metadata{
			Exists: true, BackendFileID: id, DisplayName: rec.name, IsDirectory: rec.isDir,
		}}, nil

	case "PROPFIND":
		parentID, _ := c.resolve(req.PathOrID)
		var children []backend.Metadata
		for id, rec := range c.records {
			if id == 0 || rec.parentID != parentID {
				continue
			}
			var size uint64
			if !rec.isDir {
				if info, err := c.fs.Stat(c.storageKey(id)); err == nil {
					size = uint64(info.Size())
				}
			}
			children = append(children, backend.Metadata{
				Exists: true, BackendFileID: id, DisplayName: rec.name,
				IsDirectory: rec.isDir, Size: size, ModifiedAt: rec.modified,
			})
		}
		return backend.FileResponse{Success: true, Children: children}, nil

	default:
		return backend.FileResponse{Success: false, Error: "unsupported method: " + req.Method}, nil
	}
}

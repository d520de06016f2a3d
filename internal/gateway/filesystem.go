package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/javi11/davgateway/internal/backend"
	"github.com/javi11/davgateway/internal/pathmap"
	"github.com/javi11/davgateway/internal/reqcontext"
	"github.com/javi11/davgateway/internal/resource"
	"golang.org/x/net/webdav"
)

// FS adapts the Path Mapping Engine, Resource Factory and backend RPC
// client to golang.org/x/net/webdav.FileSystem, following the
// teacher's resolvePath-dispatch shape in
// internal/webdav/file_system.go.
type FS struct {
	prefix  string
	factory *resource.Factory
	engine  *pathmap.Engine
	client  backend.Client
}

// NewFS builds a FS. prefix is the fixed WebDAV root (e.g. "/dav").
func NewFS(prefix string, factory *resource.Factory, engine *pathmap.Engine, client backend.Client) *FS {
	return &FS{prefix: prefix, factory: factory, engine: engine, client: client}
}

func (fs *FS) request(ctx context.Context) (*reqcontext.Context, uint64, error) {
	rc, ok := reqcontext.From(ctx)
	if !ok || rc.Principal == nil {
		return nil, 0, os.ErrPermission
	}
	userID, err := strconv.ParseUint(rc.Principal.UserID, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("gateway: principal user id %q is not numeric: %w", rc.Principal.UserID, err)
	}
	return rc, userID, nil
}

func (fs *FS) callMeta(rc *reqcontext.Context) backend.CallMetadata {
	return backend.CallMetadata{
		ClientIP:  rc.ClientIP,
		UserAgent: rc.UserAgent,
		RequestID: rc.RequestID,
		UserID:    rc.Principal.UserID,
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if err == pathmap.ErrNotFound {
		return os.ErrNotExist
	}
	if err == pathmap.ErrCrossUser {
		return os.ErrPermission
	}
	return err
}

// Mkdir implements webdav.FileSystem.
func (fs *FS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	rc, userID, err := fs.request(ctx)
	if err != nil {
		return err
	}

	parentPath := path.Dir(name)
	baseName := path.Base(name)

	parent, err := fs.engine.PathToID(userID, parentPath)
	var parentID uint64
	if err != nil {
		if err != pathmap.ErrNotFound {
			return mapErr(err)
		}
		// The engine has not indexed the parent path (the user root
		// itself resolves to id 0 above); the folder is filed under the
		// user root.
		parentID = 0
	} else {
		parentID = parent.BackendFileID
	}

	meta := fs.callMeta(rc)
	resp, err := fs.client.ProcessFile(ctx, meta, backend.FileRequest{
		Method:      "MKCOL",
		PathOrID:    "id:" + strconv.FormatUint(parentID, 10),
		Destination: baseName,
	})
	if err != nil {
		return fmt.Errorf("gateway: mkdir %q: %w", name, err)
	}
	if !resp.Success {
		return fmt.Errorf("gateway: mkdir %q rejected: %s", name, resp.Error)
	}
	if resp.Meta == nil {
		return fmt.Errorf("gateway: mkdir %q: backend returned no metadata", name)
	}

	fs.engine.RegisterPath(userID, parentID, name, pathmap.ChildEntry{
		BackendFileID: resp.Meta.BackendFileID,
		OriginalName:  resp.Meta.DisplayName,
		IsDirectory:   true,
	}, baseName)

	return nil
}

// OpenFile implements webdav.FileSystem.
func (fs *FS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	rc, userID, err := fs.request(ctx)
	if err != nil {
		return nil, err
	}

	norm, err := pathmap.Normalize(name)
	if err != nil {
		return nil, os.ErrInvalid
	}

	if norm == fs.prefix || norm == fs.prefix+"/" || (fs.prefix == "" && norm == "/") {
		return fs.openRoot(ctx, rc, userID)
	}

	mapping, err := fs.engine.PathToID(userID, norm)
	if err != nil && err != pathmap.ErrNotFound {
		return nil, mapErr(err)
	}

	creating := flag&(os.O_CREATE) != 0
	writing := flag&(os.O_WRONLY|os.O_RDWR) != 0

	if mapping == nil {
		if !creating {
			return nil, os.ErrNotExist
		}
		return fs.openForCreate(ctx, rc, userID, norm)
	}

	if mapping.IsDirectory {
		return fs.openDir(ctx, rc, userID, mapping, norm)
	}

	if writing {
		return fs.openForOverwrite(ctx, rc, userID, mapping, norm)
	}

	return fs.openForRead(ctx, rc, mapping.BackendFileID, mapping.WebDAVName)
}

func (fs *FS) openRoot(ctx context.Context, rc *reqcontext.Context, userID uint64) (webdav.File, error) {
	res, err := fs.factory.GetResource(ctx, rc, fs.prefix)
	if err != nil {
		return nil, err
	}
	info := &fileInfo{name: res.DisplayName, isDir: true, mode: os.ModeDir | 0755}
	return &dirFile{fs: fs, ctx: ctx, rc: rc, userID: userID, parentID: 0, dirPath: fs.prefix, info: info}, nil
}

func (fs *FS) openDir(ctx context.Context, rc *reqcontext.Context, userID uint64, mapping *pathmap.Mapping, norm string) (webdav.File, error) {
	res, err := fs.factory.GetResource(ctx, rc, norm)
	if err != nil {
		return nil, err
	}
	info := &fileInfo{name: mapping.WebDAVName, isDir: true, mode: os.ModeDir | 0755, modTime: res.ModifiedAt}
	return &dirFile{fs: fs, ctx: ctx, rc: rc, userID: userID, parentID: mapping.BackendFileID, dirPath: norm, info: info}, nil
}

func (fs *FS) openForRead(ctx context.Context, rc *reqcontext.Context, id uint64, name string) (webdav.File, error) {
	meta := fs.callMeta(rc)
	body, err := fs.client.DownloadFile(ctx, meta, "id:"+strconv.FormatUint(id, 10))
	if err != nil {
		return nil, fmt.Errorf("gateway: downloading %q: %w", name, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("gateway: reading %q: %w", name, err)
	}

	got, err := fs.client.GetFileMetadata(ctx, meta, "id:"+strconv.FormatUint(id, 10))
	var info *fileInfo
	if err == nil && got.Exists {
		info = &fileInfo{name: name, size: int64(got.Size), modTime: got.ModifiedAt, mode: 0644}
	} else {
		info = &fileInfo{name: name, size: int64(len(data)), mode: 0644}
	}

	return &readFile{r: bytes.NewReader(data), info: info}, nil
}

func (fs *FS) openForCreate(ctx context.Context, rc *reqcontext.Context, userID uint64, norm string) (webdav.File, error) {
	parentPath := path.Dir(norm)
	baseName := path.Base(norm)

	var parentID uint64
	if parent, err := fs.engine.PathToID(userID, parentPath); err == nil {
		parentID = parent.BackendFileID
	} else if err != pathmap.ErrNotFound {
		return nil, mapErr(err)
	}

	return &writeFile{
		fs: fs, ctx: ctx, rc: rc, userID: userID,
		parentID: parentID, fullPath: norm, baseName: baseName,
		info: &fileInfo{name: baseName, mode: 0644},
	}, nil
}

func (fs *FS) openForOverwrite(ctx context.Context, rc *reqcontext.Context, userID uint64, mapping *pathmap.Mapping, norm string) (webdav.File, error) {
	return &writeFile{
		fs: fs, ctx: ctx, rc: rc, userID: userID,
		existingID: mapping.BackendFileID, parentID: derefOr(mapping.ParentID, 0),
		fullPath: norm, baseName: mapping.WebDAVName,
		info: &fileInfo{name: mapping.WebDAVName, mode: 0644},
	}, nil
}

func derefOr(p *uint64, def uint64) uint64 {
	if p == nil {
		return def
	}
	return *p
}

// RemoveAll implements webdav.FileSystem.
func (fs *FS) RemoveAll(ctx context.Context, name string) error {
	rc, userID, err := fs.request(ctx)
	if err != nil {
		return err
	}

	mapping, err := fs.engine.PathToID(userID, name)
	if err != nil {
		return mapErr(err)
	}

	meta := fs.callMeta(rc)
	resp, err := fs.client.ProcessFile(ctx, meta, backend.FileRequest{
		Method:   "DELETE",
		PathOrID: "id:" + strconv.FormatUint(mapping.BackendFileID, 10),
	})
	if err != nil {
		return fmt.Errorf("gateway: removing %q: %w", name, err)
	}
	if !resp.Success {
		return fmt.Errorf("gateway: remove %q rejected: %s", name, resp.Error)
	}

	fs.engine.RemovePath(userID, mapping.BackendFileID, name)
	fs.factory.InvalidateMetadata(mapping.BackendFileID)
	return nil
}

// Rename implements webdav.FileSystem.
func (fs *FS) Rename(ctx context.Context, oldName, newName string) error {
	rc, userID, err := fs.request(ctx)
	if err != nil {
		return err
	}

	mapping, err := fs.engine.PathToID(userID, oldName)
	if err != nil {
		return mapErr(err)
	}

	newParentPath := path.Dir(newName)
	newBaseName := path.Base(newName)
	var newParentID uint64
	if parent, err := fs.engine.PathToID(userID, newParentPath); err == nil {
		newParentID = parent.BackendFileID
	} else if err != pathmap.ErrNotFound {
		return mapErr(err)
	}

	meta := fs.callMeta(rc)
	resp, err := fs.client.ProcessFile(ctx, meta, backend.FileRequest{
		Method:      "MOVE",
		PathOrID:    "id:" + strconv.FormatUint(mapping.BackendFileID, 10),
		Destination: newName,
	})
	if err != nil {
		return fmt.Errorf("gateway: renaming %q to %q: %w", oldName, newName, err)
	}
	if !resp.Success {
		return fmt.Errorf("gateway: rename %q to %q rejected: %s", oldName, newName, resp.Error)
	}

	if err := fs.engine.UpdatePath(userID, mapping.BackendFileID, oldName, newName, newParentID, newBaseName, newBaseName, mapping.IsDirectory); err != nil {
		return err
	}
	fs.factory.InvalidateMetadata(mapping.BackendFileID)
	return nil
}

// Stat implements webdav.FileSystem.
func (fs *FS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	rc, _, err := fs.request(ctx)
	if err != nil {
		return nil, err
	}

	res, err := fs.factory.GetResource(ctx, rc, name)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, os.ErrNotExist
	}
	if res.Kind == resource.KindAnonymousChallenge {
		return nil, os.ErrPermission
	}

	isDir := res.Kind == resource.KindFolder || res.Kind == resource.KindUserRoot
	mode := os.FileMode(0644)
	if isDir {
		mode = os.ModeDir | 0755
	}
	return &fileInfo{
		name:    res.DisplayName,
		size:    int64(res.Size),
		isDir:   isDir,
		mode:    mode,
		modTime: res.ModifiedAt,
	}, nil
}

// fileInfo is a minimal os.FileInfo for resources whose full stat_t
// the backend doesn't model.
type fileInfo struct {
	name    string
	size    int64
	isDir   bool
	mode    os.FileMode
	modTime time.Time
}

func (i *fileInfo) Name() string       { return i.name }
func (i *fileInfo) Size() int64        { return i.size }
func (i *fileInfo) Mode() os.FileMode  { return i.mode }
func (i *fileInfo) ModTime() time.Time { return i.modTime }
func (i *fileInfo) IsDir() bool        { return i.isDir }
func (i *fileInfo) Sys() any           { return nil }

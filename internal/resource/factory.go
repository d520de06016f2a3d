package resource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/javi11/davgateway/internal/backend"
	"github.com/javi11/davgateway/internal/pathmap"
	"github.com/javi11/davgateway/internal/reqcontext"
	"github.com/jinzhu/copier"
	"golang.org/x/sync/singleflight"
)

// cachedMetadata is the per-request metadata cache entry (spec §4.5):
// a process-wide backend-id → metadata LRU reducing backend
// round-trips within a short window.
type cachedMetadata struct {
	Size        uint64
	ContentType string
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// Factory implements the Resource Factory (spec §4.5).
type Factory struct {
	prefix     string
	engine     *pathmap.Engine
	client     backend.Client
	metaCache  *lru.Cache[uint64, cachedMetadata]
	fetchGroup singleflight.Group
}

// NewFactory builds a Factory. metaCacheSize bounds the per-request
// metadata cache.
func NewFactory(prefix string, engine *pathmap.Engine, client backend.Client, metaCacheSize int) (*Factory, error) {
	if metaCacheSize <= 0 {
		metaCacheSize = 10_000
	}
	c, err := lru.New[uint64, cachedMetadata](metaCacheSize)
	if err != nil {
		return nil, fmt.Errorf("resource: building metadata cache: %w", err)
	}
	return &Factory{prefix: strings.TrimSuffix(prefix, "/"), engine: engine, client: client, metaCache: c}, nil
}

// GetResource maps requestPath to a Resource per spec §4.5's
// decision table. A nil, nil return means the framework should answer
// 404; a non-nil Resource with Kind == KindAnonymousChallenge means
// 401.
func (f *Factory) GetResource(ctx context.Context, rc *reqcontext.Context, requestPath string) (*Resource, error) {
	if rc == nil || rc.Principal == nil {
		return &Resource{Kind: KindAnonymousChallenge}, nil
	}

	norm, err := pathmap.Normalize(requestPath)
	if err != nil {
		return nil, nil // malformed path degrades to 404, per spec §7
	}

	if norm == f.prefix || norm == f.prefix+"/" || (f.prefix == "" && norm == "/") {
		return &Resource{Kind: KindUserRoot, DisplayName: rc.Principal.Username}, nil
	}

	userID, err := strconv.ParseUint(rc.Principal.UserID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("resource: principal user id %q is not numeric: %w", rc.Principal.UserID, err)
	}

	mapping, err := f.engine.PathToID(userID, norm)
	if err != nil {
		if err == pathmap.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	meta, err := f.metadataFor(ctx, mapping.BackendFileID, rc)
	if err != nil {
		return nil, err
	}

	kind := KindFile
	if mapping.IsDirectory {
		kind = KindFolder
	}

	return &Resource{
		Kind:          kind,
		DisplayName:   mapping.WebDAVName,
		BackendFileID: mapping.BackendFileID,
		Size:          meta.Size,
		ContentType:   meta.ContentType,
		CreatedAt:     meta.CreatedAt,
		ModifiedAt:    meta.ModifiedAt,
	}, nil
}

// metadataFor fetches and caches backend metadata for id. Concurrent
// requests for the same id (e.g. a PROPFIND storm hitting a cold
// cache) are deduplicated through fetchGroup, the same
// singleflight-per-key pattern the teacher's vfs.Downloader uses to
// coalesce concurrent range fetches for one file (internal/fuse/vfs/downloader.go).
func (f *Factory) metadataFor(ctx context.Context, id uint64, rc *reqcontext.Context) (cachedMetadata, error) {
	if m, ok := f.metaCache.Get(id); ok {
		return m, nil
	}

	callMeta := backend.CallMetadata{
		ClientIP:  rc.ClientIP,
		UserAgent: rc.UserAgent,
		RequestID: rc.RequestID,
		UserID:    rc.Principal.UserID,
	}

	key := strconv.FormatUint(id, 10)
	v, err, _ := f.fetchGroup.Do(key, func() (any, error) {
		if m, ok := f.metaCache.Get(id); ok {
			return m, nil
		}

		got, err := f.client.GetFileMetadata(ctx, callMeta, "id:"+key)
		if err != nil {
			return nil, fmt.Errorf("resource: fetching metadata for id %d: %w", id, err)
		}

		// copier snapshots the backend's Metadata fields by value
		// rather than aliasing got, so a later mutation of the
		// caller's copy of got can never leak into the cache entry.
		var m cachedMetadata
		if err := copier.Copy(&m, &got); err != nil {
			return nil, fmt.Errorf("resource: snapshotting metadata for id %d: %w", id, err)
		}
		f.metaCache.Add(id, m)
		return m, nil
	})
	if err != nil {
		return cachedMetadata{}, err
	}
	return v.(cachedMetadata), nil
}

// InvalidateMetadata evicts a cached metadata entry. Callers invoke
// this after an observed mutation (PUT/DELETE/MOVE/COPY/PROPPATCH) on
// a path that touches id (spec §4.5).
func (f *Factory) InvalidateMetadata(id uint64) {
	f.metaCache.Remove(id)
}

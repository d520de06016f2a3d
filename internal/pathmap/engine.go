package pathmap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jinzhu/copier"
)

// MetadataFetcher is the subset of the backend RPC client the engine
// needs to ascend from a backend id to its full path (spec §4.4
// id-to-path resolution).
type MetadataFetcher interface {
	GetFileMetadata(ctx context.Context, id uint64) (*FileMetadata, bool, error)
}

// EngineConfig bounds the four caches (spec §6 cache.path-cache-size
// etc; sizes are independently configurable so an operator can trade
// memory for hit rate per cache).
type EngineConfig struct {
	PathCacheSize    int
	IDCacheSize      int
	TreeCacheSize    int
	ListingCacheSize int
	MaxAscendDepth   int
}

// DefaultMaxAscendDepth bounds id-to-path ascent against pathological
// parent-id cycles (spec §4.4).
const DefaultMaxAscendDepth = 100

// userTree is the per-user tree cache entry: the root Node plus a
// direct id->Node index so mutation and directory-listing population
// don't require a full walk.
type userTree struct {
	mu        sync.RWMutex
	root      *Node
	nodesByID map[uint64]*Node
}

func newUserTree(userID uint64) *userTree {
	root := newRoot(userID)
	return &userTree{root: root, nodesByID: map[uint64]*Node{0: root}}
}

func (ut *userTree) node(id uint64) (*Node, bool) {
	ut.mu.RLock()
	defer ut.mu.RUnlock()
	n, ok := ut.nodesByID[id]
	return n, ok
}

func (ut *userTree) index(n *Node) {
	ut.mu.Lock()
	defer ut.mu.Unlock()
	ut.nodesByID[n.FileID] = n
}

func (ut *userTree) remove(id uint64) {
	ut.mu.Lock()
	defer ut.mu.Unlock()
	delete(ut.nodesByID, id)
}

// Engine implements the Path Mapping Engine (spec §4.4): the four
// caches (path→mapping, id→mapping, per-user tree, per-directory
// listing) plus the mutation helpers that keep them coherent.
type Engine struct {
	prefix string

	pathCache    *lru.Cache[string, *Mapping]
	idCache      *lru.Cache[uint64, *Mapping]
	treeCache    *lru.Cache[uint64, *userTree]
	listingCache *lru.Cache[string, []ListingEntry]

	fetcher  MetadataFetcher
	maxDepth int
}

// ListingEntry is a cached, disambiguated directory entry (spec §4.4's
// "original-to-webdav name mapping" kept alongside each listing).
type ListingEntry struct {
	BackendFileID uint64
	OriginalName  string
	WebDAVName    string
	IsDirectory   bool
}

// NewEngine builds an Engine. prefix is the fixed WebDAV root, e.g.
// "/dav".
func NewEngine(prefix string, cfg EngineConfig, fetcher MetadataFetcher) (*Engine, error) {
	pathCache, err := lru.New[string, *Mapping](orDefault(cfg.PathCacheSize, 10_000))
	if err != nil {
		return nil, fmt.Errorf("pathmap: building path cache: %w", err)
	}
	idCache, err := lru.New[uint64, *Mapping](orDefault(cfg.IDCacheSize, 10_000))
	if err != nil {
		return nil, fmt.Errorf("pathmap: building id cache: %w", err)
	}
	treeCache, err := lru.New[uint64, *userTree](orDefault(cfg.TreeCacheSize, 1_000))
	if err != nil {
		return nil, fmt.Errorf("pathmap: building tree cache: %w", err)
	}
	listingCache, err := lru.New[string, []ListingEntry](orDefault(cfg.ListingCacheSize, 10_000))
	if err != nil {
		return nil, fmt.Errorf("pathmap: building listing cache: %w", err)
	}

	maxDepth := cfg.MaxAscendDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxAscendDepth
	}

	return &Engine{
		prefix:       strings.TrimSuffix(prefix, "/"),
		pathCache:    pathCache,
		idCache:      idCache,
		treeCache:    treeCache,
		listingCache: listingCache,
		fetcher:      fetcher,
		maxDepth:     maxDepth,
	}, nil
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func (e *Engine) treeFor(userID uint64) *userTree {
	if ut, ok := e.treeCache.Get(userID); ok {
		return ut
	}
	ut := newUserTree(userID)
	e.treeCache.Add(userID, ut)
	return ut
}

func pathKey(userID uint64, normalizedPath string) string {
	return fmt.Sprintf("%d|%s", userID, normalizedPath)
}

// PathToID resolves a WebDAV path to a Mapping (spec §4.4
// path-to-id resolution). webdavPath is the raw request path,
// including the fixed prefix.
func (e *Engine) PathToID(userID uint64, webdavPath string) (*Mapping, error) {
	norm, err := Normalize(webdavPath)
	if err != nil {
		return nil, err
	}

	if m, ok := e.pathCache.Get(pathKey(userID, norm)); ok {
		m.LastAccess = time.Now()
		// Hand the caller a snapshot, not the cached pointer itself,
		// so a caller mutating its Mapping can never corrupt the
		// entry shared across concurrent PathToID callers.
		snapshot := &Mapping{}
		if err := copier.Copy(snapshot, m); err != nil {
			return nil, fmt.Errorf("pathmap: snapshotting cached mapping: %w", err)
		}
		return snapshot, nil
	}

	rest, ok := StripPrefix(norm, e.prefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not under prefix %q", ErrBadPath, norm, e.prefix)
	}

	ut := e.treeFor(userID)
	node := ut.root
	for _, seg := range strings.Split(strings.Trim(rest, "/"), "/") {
		if seg == "" {
			continue
		}
		child, ok := node.child(seg)
		if !ok {
			return nil, ErrNotFound
		}
		node = child
	}

	m := mappingFromNode(norm, node)
	e.pathCache.Add(pathKey(userID, norm), m)
	e.idCache.Add(node.FileID, m)
	return m, nil
}

func mappingFromNode(fullPath string, n *Node) *Mapping {
	now := time.Now()
	return &Mapping{
		FullPath:      fullPath,
		BackendFileID: n.FileID,
		UserID:        n.UserID,
		OriginalName:  n.OriginalName,
		WebDAVName:    n.WebDAVName,
		ParentID:      n.ParentID,
		IsDirectory:   n.IsDirectory,
		CreatedAt:     now,
		LastAccess:    now,
	}
}

// IDToPath resolves a backend id to its full WebDAV path (spec §4.4
// id-to-path resolution), ascending via parent-id when not cached.
func (e *Engine) IDToPath(ctx context.Context, userID, id uint64) (string, error) {
	if id == 0 {
		root := e.prefix
		if root == "" {
			root = "/"
		}
		return root, nil
	}

	if m, ok := e.idCache.Get(id); ok {
		if m.UserID != userID {
			return "", ErrCrossUser
		}
		return m.FullPath, nil
	}

	var names []string
	current := id
	depth := 0

	for {
		if depth > e.maxDepth {
			return "", fmt.Errorf("pathmap: ascent exceeded max depth %d", e.maxDepth)
		}
		depth++

		if m, ok := e.idCache.Get(current); ok {
			if m.UserID != userID {
				return "", ErrCrossUser
			}
			full := m.FullPath
			for i := len(names) - 1; i >= 0; i-- {
				full = strings.TrimSuffix(full, "/") + "/" + names[i]
			}
			path, err := Normalize(full)
			if err != nil {
				return "", err
			}
			e.cachePath(userID, path, id)
			return path, nil
		}

		meta, found, err := e.fetcher.GetFileMetadata(ctx, current)
		if err != nil {
			return "", fmt.Errorf("pathmap: fetching metadata for id %d: %w", current, err)
		}
		if !found {
			return "", ErrNotFound
		}

		names = append(names, meta.DisplayName)

		if meta.ParentID == nil || *meta.ParentID == 0 {
			full := e.prefix
			for i := len(names) - 1; i >= 0; i-- {
				full = strings.TrimSuffix(full, "/") + "/" + names[i]
			}
			path, err := Normalize(full)
			if err != nil {
				return "", err
			}
			e.cachePath(userID, path, id)
			return path, nil
		}

		current = *meta.ParentID
	}
}

func (e *Engine) cachePath(userID uint64, path string, id uint64) {
	m := &Mapping{
		FullPath:      path,
		BackendFileID: id,
		UserID:        userID,
		CreatedAt:     time.Now(),
		LastAccess:    time.Now(),
	}
	e.idCache.Add(id, m)
	e.pathCache.Add(pathKey(userID, path), m)
}

// PopulateDirectory disambiguates and indexes one directory's
// children, populating the tree, listing, path, and id caches (spec
// §4.4 duplicate-name disambiguation and directory-listing caching).
// parentWebDAVPath is the already-resolved WebDAV path of parentID.
func (e *Engine) PopulateDirectory(userID, parentID uint64, parentWebDAVPath string, entries []ChildEntry) ([]ListingEntry, error) {
	ut := e.treeFor(userID)

	var parent *Node
	if parentID == 0 {
		parent = ut.root
	} else {
		var ok bool
		parent, ok = ut.node(parentID)
		if !ok {
			return nil, fmt.Errorf("pathmap: parent %d not indexed; populate ancestors first", parentID)
		}
	}

	originals := make([]string, len(entries))
	for i, c := range entries {
		originals[i] = c.OriginalName
	}
	webdavNames := Disambiguate(originals)

	children := make(map[string]*Node, len(entries))
	listing := make([]ListingEntry, len(entries))
	parentIDCopy := parentID

	for i, c := range entries {
		child := &Node{
			FileID:       c.BackendFileID,
			OriginalName: c.OriginalName,
			WebDAVName:   webdavNames[i],
			ParentID:     &parentIDCopy,
			IsDirectory:  c.IsDirectory,
			UserID:       userID,
			Children:     make(map[string]*Node),
		}
		children[webdavNames[i]] = child
		ut.index(child)
		listing[i] = ListingEntry{
			BackendFileID: c.BackendFileID,
			OriginalName:  c.OriginalName,
			WebDAVName:    webdavNames[i],
			IsDirectory:   c.IsDirectory,
		}

		fullPath, err := Normalize(strings.TrimSuffix(parentWebDAVPath, "/") + "/" + webdavNames[i])
		if err == nil {
			m := &Mapping{
				FullPath:      fullPath,
				BackendFileID: c.BackendFileID,
				UserID:        userID,
				OriginalName:  c.OriginalName,
				WebDAVName:    webdavNames[i],
				ParentID:      &parentIDCopy,
				IsDirectory:   c.IsDirectory,
				CreatedAt:     time.Now(),
				LastAccess:    time.Now(),
			}
			e.pathCache.Add(pathKey(userID, fullPath), m)
			e.idCache.Add(c.BackendFileID, m)
		}
	}

	parent.replaceChildren(children)
	e.listingCache.Add(listingKey(userID, parentID), listing)

	return listing, nil
}

func listingKey(userID, parentID uint64) string {
	return fmt.Sprintf("%d:%d", userID, parentID)
}

// Listing returns the cached disambiguated listing for a directory,
// if present.
func (e *Engine) Listing(userID, parentID uint64) ([]ListingEntry, bool) {
	return e.listingCache.Get(listingKey(userID, parentID))
}

// RegisterPath inserts a single mapping directly, used when a file is
// created outside of a directory listing refresh (e.g. after PUT/
// MKCOL succeeds against the backend).
func (e *Engine) RegisterPath(userID, parentID uint64, fullPath string, entry ChildEntry, webdavName string) {
	ut := e.treeFor(userID)
	parent, ok := ut.node(parentID)
	if !ok {
		parent = ut.root
	}

	parentIDCopy := parentID
	node := &Node{
		FileID:       entry.BackendFileID,
		OriginalName: entry.OriginalName,
		WebDAVName:   webdavName,
		ParentID:     &parentIDCopy,
		IsDirectory:  entry.IsDirectory,
		UserID:       userID,
		Children:     make(map[string]*Node),
	}
	parent.setChild(webdavName, node)
	ut.index(node)

	norm, err := Normalize(fullPath)
	if err != nil {
		return
	}
	m := mappingFromNode(norm, node)
	e.pathCache.Add(pathKey(userID, norm), m)
	e.idCache.Add(entry.BackendFileID, m)
}

// RemovePath evicts a mapping from all four caches and detaches it
// from its parent's children.
func (e *Engine) RemovePath(userID, id uint64, fullPath string) {
	ut := e.treeFor(userID)
	if node, ok := ut.node(id); ok {
		if node.ParentID != nil {
			if parent, ok := ut.node(*node.ParentID); ok {
				parent.removeChild(node.WebDAVName)
			}
			e.listingCache.Remove(listingKey(userID, *node.ParentID))
		}
		ut.remove(id)
	}
	e.listingCache.Remove(listingKey(userID, id))

	norm, err := Normalize(fullPath)
	if err == nil {
		e.pathCache.Remove(pathKey(userID, norm))
	}
	e.idCache.Remove(id)
}

// UpdatePath implements spec §4.4's remove-then-put mutation,
// preserving CreatedAt across the rename. isDirectory carries the
// node's directory flag across the rebuild, since RemovePath discards
// the old node entirely.
func (e *Engine) UpdatePath(userID, id uint64, oldPath, newPath string, newParentID uint64, newWebDAVName, newOriginalName string, isDirectory bool) error {
	var createdAt time.Time
	if old, ok := e.idCache.Get(id); ok {
		createdAt = old.CreatedAt
	} else {
		createdAt = time.Now()
	}

	e.RemovePath(userID, id, oldPath)

	ut := e.treeFor(userID)
	parent, ok := ut.node(newParentID)
	if !ok {
		parent = ut.root
	}

	parentIDCopy := newParentID
	node := &Node{
		FileID:       id,
		OriginalName: newOriginalName,
		WebDAVName:   newWebDAVName,
		ParentID:     &parentIDCopy,
		IsDirectory:  isDirectory,
		UserID:       userID,
		Children:     make(map[string]*Node),
	}
	parent.setChild(newWebDAVName, node)
	ut.index(node)

	norm, err := Normalize(newPath)
	if err != nil {
		return err
	}
	m := mappingFromNode(norm, node)
	m.CreatedAt = createdAt
	e.pathCache.Add(pathKey(userID, norm), m)
	e.idCache.Add(id, m)
	return nil
}

// ClearUserCache evicts every cache entry for a user across all four
// caches, e.g. on password change or explicit invalidation (spec
// §4.4 mutation rules).
func (e *Engine) ClearUserCache(userID uint64) {
	for _, k := range e.pathCache.Keys() {
		if strings.HasPrefix(k, fmt.Sprintf("%d|", userID)) {
			e.pathCache.Remove(k)
		}
	}
	for _, k := range e.idCache.Keys() {
		if m, ok := e.idCache.Peek(k); ok && m.UserID == userID {
			e.idCache.Remove(k)
		}
	}
	for _, k := range e.listingCache.Keys() {
		if strings.HasPrefix(k, fmt.Sprintf("%d:", userID)) {
			e.listingCache.Remove(k)
		}
	}
	e.treeCache.Remove(userID)
}

package pathmap

import "sync"

// Node is the Path Node from spec §3: owned by its parent via the
// children map, referencing the parent only by id (not by pointer),
// so the tree is a DAG of values rather than a cyclic graph of
// handles (spec §9 design notes). Ascending resolution goes through
// the id→mapping cache, not a parent pointer.
type Node struct {
	mu sync.RWMutex

	FileID       uint64
	OriginalName string
	WebDAVName   string
	ParentID     *uint64
	IsDirectory  bool
	UserID       uint64
	Children     map[string]*Node // keyed by webdav-name
}

// newRoot builds the root node (backend id 0) for a user.
func newRoot(userID uint64) *Node {
	return &Node{
		FileID:      0,
		IsDirectory: true,
		UserID:      userID,
		Children:    make(map[string]*Node),
	}
}

// child returns the named child, if present.
func (n *Node) child(webdavName string) (*Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.Children[webdavName]
	return c, ok
}

// setChild inserts or replaces a child by webdav-name. Within a single
// parent, webdav-name values must be unique (spec §3 Path Node
// invariant); the map structure enforces this directly.
func (n *Node) setChild(webdavName string, c *Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Children[webdavName] = c
}

// removeChild deletes a child by webdav-name.
func (n *Node) removeChild(webdavName string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.Children, webdavName)
}

// replaceChildren atomically swaps the full child set, used when a
// directory listing is (re)populated from the backend.
func (n *Node) replaceChildren(children map[string]*Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Children = children
}

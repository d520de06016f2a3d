// Package resource implements the Resource Factory (spec §4.5):
// mapping an incoming (host, request-path) to a WebDAV resource object
// usable by the protocol framework.
package resource

import (
	"time"
)

// Kind is the tagged-variant discriminator for a Resource. Spec §9's
// design notes call for a sum type whose handlers pattern-match,
// rather than a deep interface hierarchy.
type Kind int

const (
	// KindAnonymousChallenge means no principal was recoverable; the
	// framework should issue a 401 with the configured realm.
	KindAnonymousChallenge Kind = iota
	// KindUserRoot is the synthetic per-user root folder.
	KindUserRoot
	// KindFile is a file bound to backend metadata.
	KindFile
	// KindFolder is a directory bound to backend metadata.
	KindFolder
)

// Resource is the tagged variant spec §4.5 and §9 describe. Only the
// fields relevant to Kind are populated.
type Resource struct {
	Kind          Kind
	DisplayName   string
	BackendFileID uint64
	Size          uint64
	ContentType   string
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

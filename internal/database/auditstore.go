package database

import (
	"context"

	"github.com/javi11/davgateway/internal/audit"
)

// AuditStore adapts Repository to audit.Store.
type AuditStore struct {
	repo *Repository
}

// NewAuditStore builds an audit.Store backed by the sqlite repository.
func NewAuditStore(repo *Repository) *AuditStore {
	return &AuditStore{repo: repo}
}

// InsertEvent implements audit.Store.
func (s *AuditStore) InsertEvent(ctx context.Context, e audit.Event) error {
	return s.repo.InsertAuditEvent(ctx, AuditEventRow{
		Timestamp:     e.Timestamp,
		Level:         string(e.Level),
		EventType:     string(e.EventType),
		ClientIP:      e.ClientIP,
		Username:      e.Username,
		UserAgent:     e.UserAgent,
		RequestPath:   e.RequestPath,
		RequestMethod: e.RequestMethod,
		Details:       e.Details,
	})
}

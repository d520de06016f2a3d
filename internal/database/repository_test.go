package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestRepository_InsertAndListAuditEvents(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertAuditEvent(ctx, AuditEventRow{
		Timestamp: time.Now(), Level: "WARN", EventType: "IP_BLOCKED",
		ClientIP: "1.2.3.4", RequestMethod: "GET", RequestPath: "/dav/",
	}))
	require.NoError(t, repo.InsertAuditEvent(ctx, AuditEventRow{
		Timestamp: time.Now(), Level: "CRITICAL", EventType: "MALICIOUS_REQUEST",
		ClientIP: "5.6.7.8", RequestMethod: "GET", RequestPath: "/dav/../../etc/passwd",
	}))

	all, err := repo.ListRecentAuditEvents(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	// newest first
	assert.Equal(t, "MALICIOUS_REQUEST", all[0].EventType)

	filtered, err := repo.ListRecentAuditEvents(ctx, "IP_BLOCKED", 10)
	require.NoError(t, err)
	assert.Len(t, filtered, 1)
}

func TestRepository_WithTransaction(t *testing.T) {
	repo := openTestDB(t)
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(txRepo *Repository) error {
		return txRepo.InsertAuditEvent(ctx, AuditEventRow{
			Timestamp: time.Now(), Level: "INFO", EventType: "AUTHENTICATION_SUCCESS",
			ClientIP: "10.0.0.1",
		})
	})
	require.NoError(t, err)

	all, err := repo.ListRecentAuditEvents(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

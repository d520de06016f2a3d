// Package database persists the gateway's admin-queryable security
// audit log, following the repository pattern from altmount's
// internal/database/repository.go.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBQuerier is implemented by both *sql.DB and *sql.Tx.
type DBQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository provides database operations for the audit log.
type Repository struct {
	db DBQuerier
}

// Open opens (creating if necessary) the sqlite database at path and
// runs migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite does not benefit from a pool for this write pattern

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}

	return db, nil
}

// NewRepository wraps an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// WithTransaction runs fn within a transaction, following altmount's
// repository transaction helper.
func (r *Repository) WithTransaction(ctx context.Context, fn func(*Repository) error) error {
	sqlDB, ok := r.db.(*sql.DB)
	if !ok {
		return fmt.Errorf("repository not connected to sql.DB")
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txRepo := &Repository{db: tx}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction (original error: %w): %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AuditEventRow is a single persisted audit record.
type AuditEventRow struct {
	ID            int64
	Timestamp     time.Time
	Level         string
	EventType     string
	ClientIP      string
	Username      string
	UserAgent     string
	RequestPath   string
	RequestMethod string
	Details       string
}

// InsertAuditEvent stores one audit event.
func (r *Repository) InsertAuditEvent(ctx context.Context, e AuditEventRow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(timestamp, level, event_type, client_ip, username, user_agent, request_path, request_method, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Timestamp.UTC().Format(time.RFC3339Nano), e.Level, e.EventType, e.ClientIP, e.Username,
		e.UserAgent, e.RequestPath, e.RequestMethod, e.Details)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListRecentAuditEvents returns the most recent events, newest first,
// optionally filtered by event type.
func (r *Repository) ListRecentAuditEvents(ctx context.Context, eventType string, limit int) ([]AuditEventRow, error) {
	query := `SELECT id, timestamp, level, event_type, client_ip, username, user_agent, request_path, request_method, details
	          FROM audit_events`
	args := []any{}
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var out []AuditEventRow
	for rows.Next() {
		var row AuditEventRow
		var ts string
		if err := rows.Scan(&row.ID, &ts, &row.Level, &row.EventType, &row.ClientIP, &row.Username,
			&row.UserAgent, &row.RequestPath, &row.RequestMethod, &row.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			row.Timestamp = parsed
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

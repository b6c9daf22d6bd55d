package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Upload is one upload attempt, successful or not.
type Upload struct {
	ID         uuid.UUID
	RequestID  uuid.UUID
	Path       string
	SizeBytes  int64
	RemoteAddr string
	OK         bool
	Error      string
	CreatedAt  time.Time
}

// Ledger records upload attempts in the uploads table.
type Ledger struct {
	db *sql.DB
}

// NewLedger returns a ledger backed by db. The schema must already exist.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordUpload inserts u. A zero ID or CreatedAt is filled in; a zero
// RequestID is stored as NULL.
func (l *Ledger) RecordUpload(ctx context.Context, u Upload) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO uploads (id, request_id, path, size_bytes, remote_addr, ok, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, nullUUID(u.RequestID), u.Path, u.SizeBytes, u.RemoteAddr, u.OK, nullString(u.Error), u.CreatedAt)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

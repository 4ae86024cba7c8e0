// Package repository implements the SQL data access behind the storage
// service. Every repository runs on a DBTX so the same code serves both a
// pooled connection and a transaction.
package repository

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Timestamps are stored as UTC unix nanoseconds so they sort numerically.
func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

package storage

import (
	"path/filepath"
	"testing"
)

// NewTestDB opens a migrated database in a temporary directory that is
// removed when the test ends. It is exported for other package tests.
func NewTestDB(t testing.TB) *DB {
	t.Helper()

	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "deckforge.db")))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

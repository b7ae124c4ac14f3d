package database

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

// NewTestDB opens a migrated, private in-memory SQLite database that is
// closed when the test finishes.
func NewTestDB(tb testing.TB) *DB {
	tb.Helper()

	db, err := NewConnection(Config{
		Driver: string(SQLite),
		URL:    "file:test_" + uuid.NewString() + "?mode=memory&cache=shared&_txlock=immediate&_busy_timeout=5000",
	})
	if err != nil {
		tb.Fatalf("failed to open test database: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		tb.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/qwc/lisenssit/internal/database"
	_ "modernc.org/sqlite"
)

func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	db.MustExec("PRAGMA foreign_keys=ON")

	if err := database.RunMigrations(db, database.DialectSQLite); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestLogger returns a logger that discards all output.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package cache

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

// NewSQLite opens a SQLite database and returns a backend for prefix on it.
// If dbPath is empty or ":memory:", an in-memory database is used. The caches
// table is created on open and Close closes the database.
func NewSQLite(ctx context.Context, dbPath, prefix string, opts ...BackendOption) (*SQLBackend, error) {
	memory := dbPath == "" || dbPath == ":memory:"
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "sqlite backend: opening %s", dbPath)
	}
	// every connection to :memory: is a separate database
	if memory {
		db.SetMaxOpenConns(1)
	} else if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "sqlite backend: enabling WAL")
	}

	s, err := NewSQL(db, DialectSQLite, prefix, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

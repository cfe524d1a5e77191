package cache

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewPostgres connects to PostgreSQL through the pgx driver and returns a
// backend for prefix. The caches table is not created; run Migrate once per
// database. Close closes the pool.
func NewPostgres(ctx context.Context, dsn, prefix string, opts ...BackendOption) (*SQLBackend, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres backend: opening connection")
	}
	return openedSQL(ctx, db, DialectPostgres, prefix, opts)
}

func openedSQL(ctx context.Context, db *sql.DB, dialect Dialect, prefix string, opts []BackendOption) (*SQLBackend, error) {
	s, err := NewSQL(db, dialect, prefix, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	qctx, cancel := s.cfg.queryCtx(ctx)
	defer cancel()
	if err := db.PingContext(qctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "%s backend: connecting", dialect)
	}
	return s, nil
}

package cache

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
)

// NewMySQL connects to MySQL and returns a backend for prefix. dsn uses the
// go-sql-driver format (user:pass@tcp(host:3306)/db). The caches table is not
// created; run Migrate once per database. Close closes the pool.
func NewMySQL(ctx context.Context, dsn, prefix string, opts ...BackendOption) (*SQLBackend, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "mysql backend: %v", err)
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "mysql backend: creating connector")
	}
	return openedSQL(ctx, sql.OpenDB(connector), DialectMySQL, prefix, opts)
}

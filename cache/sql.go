package cache

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Dialect selects the SQL flavour a SQLBackend speaks.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// SQLBackend stores entries in a single caches table shared by every
// namespace:
//
//	caches(cache_key, value, expiration)
//
// cache_key is the hex md5 of the prefix, a colon, then the entry key.
// expiration is a unix timestamp in seconds, zero when WithExpires is unset.
type SQLBackend struct {
	db        *sql.DB
	dialect   Dialect
	prefixKey string
	codec     Codec
	cfg       backendConfig
	owned     bool
	once      sync.Once
}

var _ Backend = (*SQLBackend)(nil)

// NewSQL returns a backend using an existing connection pool. The caller owns
// db; Close does not close it. The caches table must exist, see Migrate.
func NewSQL(db *sql.DB, dialect Dialect, prefix string, opts ...BackendOption) (*SQLBackend, error) {
	if db == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "sql backend: db is required")
	}
	switch dialect {
	case DialectSQLite, DialectPostgres, DialectMySQL:
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "sql backend: unknown dialect %q", dialect)
	}
	cfg := applyBackendOptions(opts)
	return &SQLBackend{
		db:        db,
		dialect:   dialect,
		prefixKey: prefixDigest(prefix),
		codec:     cfg.codecOr(JSONCodec{}),
		cfg:       cfg,
	}, nil
}

func prefixDigest(prefix string) string {
	sum := md5.Sum([]byte(prefix))
	return hex.EncodeToString(sum[:])
}

// DB returns the underlying pool.
func (s *SQLBackend) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL flavour of the backend.
func (s *SQLBackend) Dialect() Dialect {
	return s.dialect
}

func (s *SQLBackend) cacheKey(key string) string {
	return s.prefixKey + ":" + key
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLBackend) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLBackend) schema() []string {
	switch s.dialect {
	case DialectPostgres:
		return []string{
			`CREATE TABLE IF NOT EXISTS caches (
				cache_key TEXT NOT NULL PRIMARY KEY,
				value BYTEA NOT NULL,
				expiration BIGINT NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_caches_expiration ON caches(expiration)`,
		}
	case DialectMySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS caches (
				cache_key VARCHAR(255) NOT NULL PRIMARY KEY,
				value MEDIUMBLOB NOT NULL,
				expiration BIGINT NOT NULL DEFAULT 0,
				INDEX idx_caches_expiration (expiration)
			)`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS caches (
				cache_key TEXT NOT NULL PRIMARY KEY,
				value BLOB NOT NULL,
				expiration INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_caches_expiration ON caches(expiration)`,
		}
	}
}

func (s *SQLBackend) upsert() string {
	if s.dialect == DialectMySQL {
		return `INSERT INTO caches (cache_key, value, expiration) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE value = VALUES(value), expiration = VALUES(expiration)`
	}
	return s.rebind(`INSERT INTO caches (cache_key, value, expiration) VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET value = excluded.value, expiration = excluded.expiration`)
}

// Migrate creates the caches table and its index if they do not exist.
func (s *SQLBackend) Migrate(ctx context.Context) error {
	qctx, cancel := s.cfg.queryCtx(ctx)
	defer cancel()
	for _, stmt := range s.schema() {
		if _, err := s.db.ExecContext(qctx, stmt); err != nil {
			return errors.Wrapf(err, "sql backend: migrating %s", s.dialect)
		}
	}
	return nil
}

func (s *SQLBackend) Put(ctx context.Context, key string, entry *Entry) error {
	data, err := s.codec.Marshal(entry)
	if err != nil {
		return err
	}
	var expiration int64
	if s.cfg.expires > 0 {
		expiration = time.Now().Add(s.cfg.expires).Unix()
	}
	qctx, cancel := s.cfg.queryCtx(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(qctx, s.upsert(), s.cacheKey(key), data, expiration); err != nil {
		return errors.Wrapf(err, "sql backend: storing %s", key)
	}
	return nil
}

func (s *SQLBackend) Get(ctx context.Context, key string) (*Entry, error) {
	qctx, cancel := s.cfg.queryCtx(ctx)
	defer cancel()
	var data []byte
	err := s.db.QueryRowContext(qctx,
		s.rebind(`SELECT value FROM caches WHERE cache_key = ?`), s.cacheKey(key),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "sql backend: loading %s", key)
	}
	return s.codec.Unmarshal(data)
}

func (s *SQLBackend) Exists(ctx context.Context, key string) (bool, error) {
	qctx, cancel := s.cfg.queryCtx(ctx)
	defer cancel()
	var one int
	err := s.db.QueryRowContext(qctx,
		s.rebind(`SELECT 1 FROM caches WHERE cache_key = ?`), s.cacheKey(key),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "sql backend: probing %s", key)
	}
	return true, nil
}

func (s *SQLBackend) Delete(ctx context.Context, key string) error {
	qctx, cancel := s.cfg.queryCtx(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(qctx, s.rebind(`DELETE FROM caches WHERE cache_key = ?`), s.cacheKey(key)); err != nil {
		return errors.Wrapf(err, "sql backend: deleting %s", key)
	}
	return nil
}

// Keys returns the keys of this namespace with the prefix digest removed.
func (s *SQLBackend) Keys(ctx context.Context) ([]string, error) {
	qctx, cancel := s.cfg.queryCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(qctx,
		s.rebind(`SELECT cache_key FROM caches WHERE cache_key LIKE ? ORDER BY cache_key`), s.prefixKey+":%",
	)
	if err != nil {
		return nil, errors.Wrap(err, "sql backend: listing keys")
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "sql backend: listing keys")
		}
		keys = append(keys, strings.TrimPrefix(k, s.prefixKey+":"))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sql backend: listing keys")
	}
	return keys, nil
}

// PurgeExpired deletes rows of every namespace whose expiration has passed and
// returns how many were removed. Rows written without WithExpires are kept.
func (s *SQLBackend) PurgeExpired(ctx context.Context) (int64, error) {
	qctx, cancel := s.cfg.queryCtx(ctx)
	defer cancel()
	res, err := s.db.ExecContext(qctx,
		s.rebind(`DELETE FROM caches WHERE expiration > 0 AND expiration < ?`), time.Now().Unix(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "sql backend: purging expired rows")
	}
	return res.RowsAffected()
}

// Close closes the pool when the backend opened it.
func (s *SQLBackend) Close() error {
	var err error
	s.once.Do(func() {
		if s.owned {
			err = s.db.Close()
		}
	})
	return err
}

package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Backend stores entries under string keys. Implementations must be safe for
// concurrent use and must never partially update an entry.
type Backend interface {
	// Put stores entry under key, replacing any previous entry.
	Put(ctx context.Context, key string, entry *Entry) error
	// Get returns the entry stored under key, or (nil, nil) when there is none.
	Get(ctx context.Context, key string) (*Entry, error)
	// Exists reports whether an entry is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the entry stored under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns every key stored in this backend's namespace.
	Keys(ctx context.Context) ([]string, error)
}

// UnimplementedBackend returns ErrNotImplemented from every method. Embed it
// to build a partial backend.
type UnimplementedBackend struct{}

var _ Backend = UnimplementedBackend{}

func (UnimplementedBackend) Put(context.Context, string, *Entry) error {
	return errors.Wrap(ErrNotImplemented, "put")
}

func (UnimplementedBackend) Get(context.Context, string) (*Entry, error) {
	return nil, errors.Wrap(ErrNotImplemented, "get")
}

func (UnimplementedBackend) Exists(context.Context, string) (bool, error) {
	return false, errors.Wrap(ErrNotImplemented, "exists")
}

func (UnimplementedBackend) Delete(context.Context, string) error {
	return errors.Wrap(ErrNotImplemented, "delete")
}

func (UnimplementedBackend) Keys(context.Context) ([]string, error) {
	return nil, errors.Wrap(ErrNotImplemented, "keys")
}

// DefaultQueryTimeout is the per-operation timeout for backends that perform
// network or disk I/O.
const DefaultQueryTimeout = 5 * time.Second

type backendConfig struct {
	codec        Codec
	queryTimeout time.Duration
	expires      time.Duration
}

// BackendOption configures a Backend implementation.
type BackendOption func(*backendConfig)

func applyBackendOptions(opts []BackendOption) backendConfig {
	cfg := backendConfig{queryTimeout: DefaultQueryTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c backendConfig) codecOr(def Codec) Codec {
	if c.codec != nil {
		return c.codec
	}
	return def
}

func (c backendConfig) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.queryTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.queryTimeout)
}

// WithCodec sets the record encoding. Defaults to JSONCodec.
func WithCodec(c Codec) BackendOption {
	return func(cfg *backendConfig) { cfg.codec = c }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed backends.
// Zero disables it. Defaults to DefaultQueryTimeout.
func WithQueryTimeout(d time.Duration) BackendOption {
	return func(cfg *backendConfig) { cfg.queryTimeout = d }
}

// WithExpires asks backends with native expiry (Redis key TTL, the SQL
// expiration column) to drop entries after d. Usually the cache timeout.
// Zero keeps entries until they are deleted.
func WithExpires(d time.Duration) BackendOption {
	return func(cfg *backendConfig) { cfg.expires = d }
}

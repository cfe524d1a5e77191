package cache

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each entry as a string value at cache:<prefix>:<key>.
// With WithExpires set, Redis drops entries itself via the key TTL.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	codec  Codec
	cfg    backendConfig
}

var _ Backend = (*RedisBackend)(nil)

// NewRedis returns a backend on client. The caller owns the client lifecycle.
func NewRedis(client redis.UniversalClient, prefix string, opts ...BackendOption) *RedisBackend {
	cfg := applyBackendOptions(opts)
	return &RedisBackend{
		client: client,
		prefix: "cache:" + prefix + ":",
		codec:  cfg.codecOr(JSONCodec{}),
		cfg:    cfg,
	}
}

func (r *RedisBackend) prefixKey(key string) string {
	return r.prefix + key
}

func (r *RedisBackend) Put(ctx context.Context, key string, entry *Entry) error {
	data, err := r.codec.Marshal(entry)
	if err != nil {
		return err
	}
	qctx, cancel := r.cfg.queryCtx(ctx)
	defer cancel()
	if err := r.client.Set(qctx, r.prefixKey(key), data, r.cfg.expires).Err(); err != nil {
		return errors.Wrapf(err, "redis backend: storing %s", key)
	}
	return nil
}

func (r *RedisBackend) Get(ctx context.Context, key string) (*Entry, error) {
	qctx, cancel := r.cfg.queryCtx(ctx)
	defer cancel()
	data, err := r.client.Get(qctx, r.prefixKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis backend: loading %s", key)
	}
	return r.codec.Unmarshal(data)
}

func (r *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	qctx, cancel := r.cfg.queryCtx(ctx)
	defer cancel()
	n, err := r.client.Exists(qctx, r.prefixKey(key)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis backend: probing %s", key)
	}
	return n > 0, nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	qctx, cancel := r.cfg.queryCtx(ctx)
	defer cancel()
	if err := r.client.Del(qctx, r.prefixKey(key)).Err(); err != nil {
		return errors.Wrapf(err, "redis backend: deleting %s", key)
	}
	return nil
}

// Keys walks the namespace with SCAN, so it does not block the server.
func (r *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	qctx, cancel := r.cfg.queryCtx(ctx)
	defer cancel()
	var keys []string
	iter := r.client.Scan(qctx, 0, escapeGlob(r.prefix)+"*", 100).Iterator()
	for iter.Next(qctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "redis backend: scanning keys")
	}
	return keys, nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

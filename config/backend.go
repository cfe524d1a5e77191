package config

import (
	"context"
	"io"

	"github.com/agentuity/memocache/cache"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// codecFor returns nil for an empty name so each backend keeps its default.
func codecFor(name string) (cache.Codec, error) {
	switch name {
	case "":
		return nil, nil
	case "json":
		return cache.JSONCodec{}, nil
	case "json-indent":
		return cache.JSONCodec{Indent: "  "}, nil
	case "msgpack":
		return cache.MsgpackCodec{}, nil
	}
	return nil, errors.Wrapf(cache.ErrInvalidConfig, "unknown codec %q", name)
}

// Options returns the backend options implied by the configuration.
func (b Backend) Options() ([]cache.BackendOption, error) {
	codec, err := codecFor(b.Codec)
	if err != nil {
		return nil, err
	}
	opts := []cache.BackendOption{
		cache.WithQueryTimeout(b.QueryTimeout),
		cache.WithExpires(b.Expires),
	}
	if codec != nil {
		opts = append(opts, cache.WithCodec(codec))
	}
	return opts, nil
}

// ownedRedis closes the client it was opened with.
type ownedRedis struct {
	*cache.RedisBackend
	client *redis.Client
}

func (r ownedRedis) Close() error {
	return r.client.Close()
}

// OpenBackend builds the backend described by b for the prefix namespace.
// SQL tables are migrated and Redis is pinged before returning. The result
// implements io.Closer when it owns a connection; use Close to release it.
func OpenBackend(ctx context.Context, b Backend, prefix string) (cache.Backend, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	opts, err := b.Options()
	if err != nil {
		return nil, err
	}
	switch b.Type {
	case "memory":
		return cache.NewMemory(), nil
	case "file":
		return cache.NewFile(b.Dir, prefix, opts...)
	case "sqlite":
		return cache.NewSQLite(ctx, b.DSN, prefix, opts...)
	case "postgres":
		return cache.NewPostgres(ctx, b.DSN, prefix, opts...)
	case "mysql":
		return cache.NewMySQL(ctx, b.DSN, prefix, opts...)
	case "redis":
		ropts, err := redis.ParseURL(b.URL)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "parsing redis url"), cache.ErrInvalidConfig)
		}
		client := redis.NewClient(ropts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, errors.Wrap(err, "connecting to redis")
		}
		return ownedRedis{cache.NewRedis(client, prefix, opts...), client}, nil
	case "s3":
		client, err := newS3Client(ctx, b)
		if err != nil {
			return nil, err
		}
		return cache.NewS3(client, b.Bucket, prefix, opts...)
	case "composite":
		tiers := make([]cache.Backend, 0, len(b.Tiers))
		for i, tb := range b.Tiers {
			tier, err := OpenBackend(ctx, tb, prefix)
			if err != nil {
				for _, opened := range tiers {
					if c, ok := opened.(io.Closer); ok {
						c.Close()
					}
				}
				return nil, errors.Wrapf(err, "opening tier %d", i)
			}
			tiers = append(tiers, tier)
		}
		return cache.NewComposite(tiers...), nil
	}
	return nil, errors.Wrapf(cache.ErrInvalidConfig, "unknown backend type %q", b.Type)
}

// newS3Client loads credentials from the usual AWS chain (env, shared
// config, instance metadata). Endpoint and PathStyle serve S3 compatible
// stores such as MinIO.
func newS3Client(ctx context.Context, b Backend) (*s3.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if b.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(b.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if b.Endpoint != "" {
			o.BaseEndpoint = aws.String(b.Endpoint)
		}
		o.UsePathStyle = b.PathStyle
	}), nil
}

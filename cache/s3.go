package cache

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"
)

// S3API is the subset of *s3.Client the S3 backend calls.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Backend stores each entry as the object cache/<prefix>/<key> in a bucket.
type S3Backend struct {
	client S3API
	bucket string
	prefix string
	codec  Codec
	cfg    backendConfig
}

var _ Backend = (*S3Backend)(nil)

// NewS3 returns a backend writing to bucket through client.
func NewS3(client S3API, bucket, prefix string, opts ...BackendOption) (*S3Backend, error) {
	if client == nil || bucket == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "s3 backend: client and bucket are required")
	}
	cfg := applyBackendOptions(opts)
	return &S3Backend{
		client: client,
		bucket: bucket,
		prefix: "cache/" + prefix + "/",
		codec:  cfg.codecOr(JSONCodec{}),
		cfg:    cfg,
	}, nil
}

func (b *S3Backend) objectKey(key string) string {
	return b.prefix + key
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func (b *S3Backend) Put(ctx context.Context, key string, entry *Entry) error {
	data, err := b.codec.Marshal(entry)
	if err != nil {
		return err
	}
	qctx, cancel := b.cfg.queryCtx(ctx)
	defer cancel()
	_, err = b.client.PutObject(qctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(b.codec.ContentType()),
	})
	if err != nil {
		return errors.Wrapf(err, "s3 backend: storing %s", key)
	}
	return nil
}

func (b *S3Backend) Get(ctx context.Context, key string) (*Entry, error) {
	qctx, cancel := b.cfg.queryCtx(ctx)
	defer cancel()
	out, err := b.client.GetObject(qctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if isS3NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "s3 backend: loading %s", key)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "s3 backend: reading %s", key)
	}
	return b.codec.Unmarshal(data)
}

func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	qctx, cancel := b.cfg.queryCtx(ctx)
	defer cancel()
	_, err := b.client.HeadObject(qctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if isS3NotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "s3 backend: probing %s", key)
	}
	return true, nil
}

func (b *S3Backend) Delete(ctx context.Context, key string) error {
	qctx, cancel := b.cfg.queryCtx(ctx)
	defer cancel()
	_, err := b.client.DeleteObject(qctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil && !isS3NotFound(err) {
		return errors.Wrapf(err, "s3 backend: deleting %s", key)
	}
	return nil
}

// Keys pages through ListObjectsV2 under the namespace prefix.
func (b *S3Backend) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	pages := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})
	for pages.HasMorePages() {
		qctx, cancel := b.cfg.queryCtx(ctx)
		page, err := pages.NextPage(qctx)
		cancel()
		if err != nil {
			return nil, errors.Wrap(err, "s3 backend: listing keys")
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), b.prefix)
			if key == "" || strings.Contains(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

package cache

import (
	"context"
	"io"
	"slices"
)

// CompositeBackend chains backends into tiers, e.g. memory in front of Redis.
// Get returns the first hit checked left to right. Put and Delete go to every
// tier. A hit in a later tier is not copied into earlier ones.
type CompositeBackend struct {
	tiers []Backend
}

var _ Backend = (*CompositeBackend)(nil)

// NewComposite returns a backend over tiers.
// At least one tier must be provided; panics if empty.
func NewComposite(tiers ...Backend) *CompositeBackend {
	if len(tiers) == 0 {
		panic("cache: NewComposite requires at least one backend")
	}
	return &CompositeBackend{tiers: tiers}
}

// Tiers returns the chained backends in lookup order.
func (c *CompositeBackend) Tiers() []Backend {
	return slices.Clone(c.tiers)
}

func (c *CompositeBackend) Put(ctx context.Context, key string, entry *Entry) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.Put(ctx, key, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *CompositeBackend) Get(ctx context.Context, key string) (*Entry, error) {
	for _, tier := range c.tiers {
		entry, err := tier.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}
	return nil, nil
}

func (c *CompositeBackend) Exists(ctx context.Context, key string) (bool, error) {
	for _, tier := range c.tiers {
		found, err := tier.Exists(ctx, key)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

func (c *CompositeBackend) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, tier := range c.tiers {
		if err := tier.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Keys returns the union of every tier's keys without duplicates, in first
// seen order.
func (c *CompositeBackend) Keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var keys []string
	for _, tier := range c.tiers {
		tierKeys, err := tier.Keys(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range tierKeys {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close closes every tier that is an io.Closer and returns the first error.
func (c *CompositeBackend) Close() error {
	var firstErr error
	for _, tier := range c.tiers {
		if closer, ok := tier.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

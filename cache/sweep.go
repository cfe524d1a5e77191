package cache

import (
	"context"
	"iter"
	"time"
)

// scan lists the backend's keys once and yields the entries match accepts.
// Keys deleted between listing and loading are skipped. A load error is
// yielded and the scan continues if the consumer keeps ranging.
func (c *Cache[V]) scan(ctx context.Context, match func(entry *Entry, now time.Time) bool) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		keys, err := c.backend.Keys(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		now := c.cfg.clock()
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			entry, err := c.backend.Get(ctx, key)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if entry == nil {
				continue
			}
			entry.Key = key
			if match(entry, now) && !yield(entry, nil) {
				return
			}
		}
	}
}

// Expired yields every stored entry older than the timeout. Each range over
// the result scans the backend again.
func (c *Cache[V]) Expired(ctx context.Context) iter.Seq2[*Entry, error] {
	return c.scan(ctx, func(entry *Entry, now time.Time) bool {
		return IsExpired(entry, now, c.cfg.timeout)
	})
}

// NeedingRefresh yields every entry inside its grace window, including those
// already past the timeout. It yields nothing when no grace is configured.
func (c *Cache[V]) NeedingRefresh(ctx context.Context) iter.Seq2[*Entry, error] {
	if c.cfg.grace <= 0 {
		return func(func(*Entry, error) bool) {}
	}
	return c.scan(ctx, func(entry *Entry, now time.Time) bool {
		return NeedsRefresh(entry, now, c.cfg.timeout, c.cfg.grace)
	})
}

// DeleteExpired removes every expired entry and returns how many it removed.
// It stops at the first error.
func (c *Cache[V]) DeleteExpired(ctx context.Context) (int, error) {
	n := 0
	for entry, err := range c.Expired(ctx) {
		if err != nil {
			return n, err
		}
		c.log.Debug("deleting expired entry %s created %s", entry.Key, entry.Created.Format(time.RFC3339))
		if err := c.backend.Delete(ctx, entry.Key); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// DeleteAll removes every entry in the namespace. Keys are listed before the
// first delete.
func (c *Cache[V]) DeleteAll(ctx context.Context) (int, error) {
	keys, err := c.backend.Keys(ctx)
	if err != nil {
		return 0, err
	}
	for i, key := range keys {
		if err := c.backend.Delete(ctx, key); err != nil {
			return i, err
		}
	}
	c.log.Debug("deleted %d entries", len(keys))
	return len(keys), nil
}

// Refresh replays fn with the stored arguments of every entry needing refresh
// and stores the result under the entry's existing key. It returns how many
// entries were rewritten and stops at the first error.
func (c *Cache[V]) Refresh(ctx context.Context, fn Func[V]) (int, error) {
	n := 0
	for entry, err := range c.NeedingRefresh(ctx) {
		if err != nil {
			return n, err
		}
		call := entry.Call()
		c.log.Debug("refreshing %s", entry.Key)
		v, err := fn(ctx, call)
		if err != nil {
			return n, err
		}
		if _, err := c.store(ctx, entry.Key, call, v); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RunReaper deletes expired entries every interval until ctx is done. It
// blocks; run it in its own goroutine. Failed sweeps are logged and retried
// on the next tick.
func (c *Cache[V]) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.cfg.timeout
	}
	log := c.log.With(map[string]interface{}{"component": "reaper"})
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.DeleteExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("expiry sweep failed after %d deletions: %s", n, err)
				continue
			}
			if n > 0 {
				log.Debug("removed %d expired entries", n)
			}
		}
	}
}

package cache

import (
	"context"
	"encoding"
	"time"

	"github.com/agentuity/memocache/logger"
	"github.com/cockroachdb/errors"
)

// Func is a function whose results can be memoized. It must be deterministic
// for a given Call within one timeout window.
type Func[V any] func(ctx context.Context, call Call) (V, error)

// Wrapped is a memoized Func. Call options choose the mode of a single call.
type Wrapped[V any] func(ctx context.Context, call Call, opts ...CallOption) (V, error)

// Cache memoizes functions returning V on top of a Backend.
//
// A Cache performs no synchronization between callers: two calls that both
// need a recompute both run the function and the later Put wins.
type Cache[V any] struct {
	backend Backend
	cfg     config
	inst    *instruments
	log     logger.Logger
}

// New returns a Cache storing entries in backend. Entries older than timeout
// are recomputed.
func New[V any](backend Backend, timeout time.Duration, opts ...Option) (*Cache[V], error) {
	if backend == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "backend is required")
	}
	cfg := applyOptions(timeout, opts)
	if cfg.timeout <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "timeout must be positive, got %s", cfg.timeout)
	}
	if cfg.grace < 0 || cfg.grace > cfg.timeout {
		return nil, errors.Wrapf(ErrInvalidConfig, "grace %s must be between 0 and the timeout %s", cfg.grace, cfg.timeout)
	}
	inst, err := newInstruments(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "cache: creating instruments")
	}
	log := cfg.logger.WithPrefix("[cache]")
	if cfg.prefix != "" {
		log = log.With(map[string]interface{}{"prefix": cfg.prefix})
	}
	return &Cache[V]{backend: backend, cfg: cfg, inst: inst, log: log}, nil
}

// Backend returns the storage the cache was built on.
func (c *Cache[V]) Backend() Backend { return c.backend }

// Prefix returns the namespace label.
func (c *Cache[V]) Prefix() string { return c.cfg.prefix }

// Timeout returns the hard expiry age.
func (c *Cache[V]) Timeout() time.Duration { return c.cfg.timeout }

// Grace returns the grace window, zero when disabled.
func (c *Cache[V]) Grace() time.Duration { return c.cfg.grace }

// Key returns the key a call is stored under.
func (c *Cache[V]) Key(call Call) string {
	key, _ := DeriveKey(c.cfg.keyFn, call)
	return key
}

// Wrap returns fn memoized through this cache.
func (c *Cache[V]) Wrap(fn Func[V]) Wrapped[V] {
	return func(ctx context.Context, call Call, opts ...CallOption) (V, error) {
		return c.Do(ctx, fn, call, opts...)
	}
}

// Do runs one memoized call of fn. It reads the backend at most once and
// writes at most once; ModeNoCache touches the backend not at all and
// ModePrecache skips the read. Errors from fn or the backend are returned
// unchanged and nothing is stored when fn fails.
func (c *Cache[V]) Do(ctx context.Context, fn Func[V], call Call, opts ...CallOption) (val V, err error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	started := time.Now()
	ctx, span := c.inst.start(ctx, c.cfg.prefix)

	key, stripped := DeriveKey(c.cfg.keyFn, call)
	mode := co.mode
	if mode == ModeDefault {
		mode = c.cfg.modeFn(call)
	}
	if mode == ModeDefault {
		mode = ModeCache
	}
	reason := ReasonBypass
	defer func() {
		c.inst.finish(ctx, span, c.cfg.prefix, key, mode, reason, started, err)
	}()

	log := c.log.With(map[string]interface{}{"key": key, "mode": mode.String()})
	business := Call{Args: call.Args, Kwargs: stripped}

	if mode == ModeNoCache {
		log.Debug("bypassing cache")
		return fn(ctx, business)
	}

	var entry *Entry
	if mode != ModePrecache {
		if entry, err = c.backend.Get(ctx, key); err != nil {
			return val, err
		}
	}

	var decision Decision
	decision, reason = Evaluate(entry, mode, c.cfg.clock(), c.cfg.timeout, c.cfg.grace)
	if decision == Recompute {
		log.Debug("recomputing (%s)", reason)
		if entry, err = c.compute(ctx, fn, key, business); err != nil {
			return val, err
		}
	} else {
		log.Trace("serving entry created %s", entry.Created.Format(time.RFC3339))
	}
	return c.decode(entry.Value)
}

func (c *Cache[V]) compute(ctx context.Context, fn Func[V], key string, call Call) (*Entry, error) {
	v, err := fn(ctx, call)
	if err != nil {
		return nil, err
	}
	return c.store(ctx, key, call, v)
}

func (c *Cache[V]) store(ctx context.Context, key string, call Call, v V) (*Entry, error) {
	var value any = v
	if c.cfg.binary {
		b, err := toBytes(v)
		if err != nil {
			return nil, err
		}
		value = b
	}
	args := call.Args
	if args == nil {
		args = []any{}
	}
	kwargs := call.Kwargs
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	entry := &Entry{
		Key:     key,
		Created: c.cfg.clock(),
		Value:   value,
		Args:    args,
		Kwargs:  kwargs,
	}
	if err := c.backend.Put(ctx, key, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *Cache[V]) decode(stored any) (V, error) {
	var zero V
	// RawValue satisfies interface types such as any, so it is unwrapped
	// before the direct assertion.
	if raw, ok := stored.(RawValue); ok {
		if !c.cfg.binary {
			var out V
			if err := raw.Decode(&out); err != nil {
				return zero, err
			}
			return out, nil
		}
		var b []byte
		if err := raw.Decode(&b); err != nil {
			return zero, err
		}
		stored = b
	}
	if typed, ok := stored.(V); ok {
		return typed, nil
	}
	if b, ok := stored.([]byte); ok {
		var out V
		switch p := any(&out).(type) {
		case *[]byte:
			*p = b
			return out, nil
		case *string:
			*p = string(b)
			return out, nil
		case encoding.BinaryUnmarshaler:
			if err := p.UnmarshalBinary(b); err != nil {
				return zero, malformed(err, "unmarshal binary value")
			}
			return out, nil
		}
	}
	return zero, errors.Mark(errors.Newf("cache: cannot convert value of type %T to %T", stored, zero), ErrMalformedEntry)
}

func toBytes(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case encoding.BinaryMarshaler:
		return x.MarshalBinary()
	}
	return nil, errors.Wrapf(ErrNotBinary, "value of type %T", v)
}

// Lookup returns the stored entry for a call, or nil when there is none.
func (c *Cache[V]) Lookup(ctx context.Context, call Call) (*Entry, error) {
	return c.backend.Get(ctx, c.Key(call))
}

// Exists reports whether an entry is stored for a call, fresh or not.
func (c *Cache[V]) Exists(ctx context.Context, call Call) (bool, error) {
	return c.backend.Exists(ctx, c.Key(call))
}

// Invalidate deletes the entry stored for a call. It is not an error when
// there is none.
func (c *Cache[V]) Invalidate(ctx context.Context, call Call) error {
	return c.backend.Delete(ctx, c.Key(call))
}

// Package cache memoizes deterministic functions on top of pluggable storage.
//
// # Wrapping a function
//
// A [Cache] is built for one result type and one namespace, then wraps any
// number of functions returning that type:
//
//	backend := cache.NewMemory()
//	c, err := cache.New[Report](backend, time.Hour,
//	    cache.WithPrefix("reports"),
//	    cache.WithGrace(10*time.Minute),
//	)
//	build := c.Wrap(func(ctx context.Context, call cache.Call) (Report, error) {
//	    return buildReport(ctx, call.Args[0].(string))
//	})
//	r, err := build(ctx, cache.Call{Args: []any{"acme"}})
//
// Each call derives a key from its arguments with the configured [KeyFunc]
// ([MD5Key] by default), loads the stored [Entry] and either serves it or
// runs the function and stores a new entry. An entry is served until it is
// older than the timeout.
//
// # Modes
//
// A call runs in one of four modes, chosen by [WithMode] on the call or, if
// absent, by the configured [ModeFunc]:
//
//   - [ModeCache] serves a fresh entry and recomputes otherwise.
//   - [ModeNoCache] calls the function and never touches the backend.
//   - [ModePrecache] recomputes and stores without reading first.
//   - [ModeRecache] also recomputes entries inside the grace window, the last
//     grace period before the timeout.
//
// [DefaultMode] reads the keyword arguments precache, nocache and recache
// (and their underscore spellings) for compatibility with callers that pass
// flags inline. Those flags never reach the key or the function.
//
// # Backends
//
// Any [Backend] works. The package ships with:
//
//   - [NewMemory] keeps entries in a map. Values are not serialized.
//   - [NewFile] writes one JSON file per entry under basedir/prefix.
//   - [NewSQLite], [NewPostgres] and [NewMySQL] share a caches table, see
//     [SQLBackend].
//   - [NewRedis] stores cache:prefix:key strings, optionally with a TTL.
//   - [NewS3] stores cache/prefix/key objects in a bucket.
//   - [NewComposite] chains backends into tiers.
//
// Serializing backends encode entries with a [Codec], [JSONCodec] unless
// [WithCodec] says otherwise, and return the value as a [RawValue] that the
// Cache decodes into the result type.
//
// # Maintenance
//
// [Cache.Expired] and [Cache.NeedingRefresh] are iterators over the stored
// entries; [Cache.DeleteExpired], [Cache.DeleteAll] and [Cache.Refresh] act on
// them. [Cache.RunReaper] deletes expired entries on a ticker.
//
// # Errors
//
// Errors from the backend and from the wrapped function are returned as-is
// and nothing is stored when the function fails. Entries that cannot be
// decoded match [ErrMalformedEntry] with errors.Is.
package cache

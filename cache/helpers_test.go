package cache

import (
	"context"
	"sync"
	"time"
)

var epoch = time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	keyFoo = "671a8e4f0f414e06565dff65ec7e3a8e"
	keyBar = "3e474044f9e1663185a788015e91b325"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// At moves the clock to epoch plus d.
func (c *fakeClock) At(d time.Duration) {
	c.mu.Lock()
	c.now = epoch.Add(d)
	c.mu.Unlock()
}

type op struct {
	name string
	key  string
}

// recordingBackend wraps a Backend and records every call made to it.
type recordingBackend struct {
	Backend
	mu   sync.Mutex
	ops  []op
	puts []*Entry
}

func newRecordingBackend(b Backend) *recordingBackend {
	if b == nil {
		b = NewMemory()
	}
	return &recordingBackend{Backend: b}
}

func (r *recordingBackend) record(name, key string) {
	r.mu.Lock()
	r.ops = append(r.ops, op{name, key})
	r.mu.Unlock()
}

// take returns the recorded calls and clears them.
func (r *recordingBackend) take() []op {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.ops
	r.ops = nil
	return ops
}

func (r *recordingBackend) Put(ctx context.Context, key string, entry *Entry) error {
	r.record("put", key)
	r.mu.Lock()
	r.puts = append(r.puts, entry)
	r.mu.Unlock()
	return r.Backend.Put(ctx, key, entry)
}

func (r *recordingBackend) Get(ctx context.Context, key string) (*Entry, error) {
	r.record("get", key)
	return r.Backend.Get(ctx, key)
}

func (r *recordingBackend) Exists(ctx context.Context, key string) (bool, error) {
	r.record("exists", key)
	return r.Backend.Exists(ctx, key)
}

func (r *recordingBackend) Delete(ctx context.Context, key string) error {
	r.record("delete", key)
	return r.Backend.Delete(ctx, key)
}

// failingBackend returns err from every call.
type failingBackend struct {
	err error
}

func (f failingBackend) Put(context.Context, string, *Entry) error    { return f.err }
func (f failingBackend) Get(context.Context, string) (*Entry, error)  { return nil, f.err }
func (f failingBackend) Exists(context.Context, string) (bool, error) { return false, f.err }
func (f failingBackend) Delete(context.Context, string) error         { return f.err }
func (f failingBackend) Keys(context.Context) ([]string, error)       { return nil, f.err }

// slowFunction returns the time it ran at followed by its arguments, with k1
// and k2 defaulting to 1 and 2.
func slowFunction(clock *fakeClock, calls *int) Func[[]any] {
	return func(_ context.Context, call Call) ([]any, error) {
		*calls++
		k1, ok := call.Kwargs["k1"]
		if !ok {
			k1 = 1
		}
		k2, ok := call.Kwargs["k2"]
		if !ok {
			k2 = 2
		}
		return []any{clock.Now(), call.Args[0], call.Args[1], k1, k2}, nil
	}
}

func fooCall(extra ...any) Call {
	kwargs := map[string]any{"k1": "foo"}
	for i := 0; i+1 < len(extra); i += 2 {
		kwargs[extra[i].(string)] = extra[i+1]
	}
	return Call{Args: []any{1, 2}, Kwargs: kwargs}
}

func barCall() Call {
	return Call{Args: []any{1, 2}, Kwargs: map[string]any{"k1": "bar"}}
}

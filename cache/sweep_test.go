package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentuity/memocache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ghostKeys lists a key that was deleted after enumeration.
type ghostKeys struct {
	*MemoryBackend
}

func (g ghostKeys) Keys(ctx context.Context) ([]string, error) {
	keys, err := g.MemoryBackend.Keys(ctx)
	return append(keys, "ghost"), err
}

func seed(t *testing.T, c *Cache[int], clock *fakeClock, at time.Duration, args ...any) {
	t.Helper()
	clock.At(at)
	_, err := c.Do(context.Background(), func(context.Context, Call) (int, error) { return len(args), nil },
		Call{Args: args}, WithMode(ModePrecache))
	require.NoError(t, err)
}

func TestSweepsSkipVanishedKeys(t *testing.T) {
	clock := newFakeClock()
	mem := NewMemory()
	c, err := New[int](ghostKeys{mem}, time.Minute, WithGrace(10*time.Second), WithClock(clock.Now))
	require.NoError(t, err)
	seed(t, c, clock, 0, "a")

	clock.At(time.Hour)
	keys := collectKeys(t, c.Expired(context.Background()))
	assert.Equal(t, []string{c.Key(Call{Args: []any{"a"}})}, keys)
}

func TestNeedingRefreshWithoutGrace(t *testing.T) {
	clock := newFakeClock()
	c, err := New[int](NewMemory(), time.Minute, WithClock(clock.Now))
	require.NoError(t, err)
	seed(t, c, clock, 0, "a")

	clock.At(time.Hour)
	assert.Empty(t, collectKeys(t, c.NeedingRefresh(context.Background())))
	assert.Len(t, collectKeys(t, c.Expired(context.Background())), 1)
}

func TestSweepsAreRestartable(t *testing.T) {
	clock := newFakeClock()
	c, err := New[int](NewMemory(), time.Minute, WithGrace(20*time.Second), WithClock(clock.Now))
	require.NoError(t, err)
	seed(t, c, clock, 0, "a")
	seed(t, c, clock, 30*time.Second, "b")
	seed(t, c, clock, 50*time.Second, "c")

	clock.At(75 * time.Second)
	expired := c.Expired(context.Background())
	assert.Len(t, collectKeys(t, expired), 1)
	assert.Len(t, collectKeys(t, expired), 1)

	// a is expired, b is inside its grace window, c is fresh
	assert.Len(t, collectKeys(t, c.NeedingRefresh(context.Background())), 2)

	var seen int
	for range c.NeedingRefresh(context.Background()) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	mem := NewMemory()
	c, err := New[int](mem, time.Minute, WithClock(clock.Now))
	require.NoError(t, err)
	seed(t, c, clock, 0, "old")
	seed(t, c, clock, 90*time.Second, "new")

	clock.At(100 * time.Second)
	n, err := c.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{c.Key(Call{Args: []any{"new"}})}, backendKeys(t, mem))
}

func TestRefreshWritesBack(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	mem := NewMemory()
	c, err := New[int](mem, time.Minute, WithGrace(15*time.Second), WithClock(clock.Now))
	require.NoError(t, err)
	seed(t, c, clock, 0, "a", "b")

	clock.At(50 * time.Second)
	var replayed []Call
	n, err := c.Refresh(ctx, func(_ context.Context, call Call) (int, error) {
		replayed = append(replayed, call)
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, replayed, 1)
	assert.Equal(t, []any{"a", "b"}, replayed[0].Args)

	entry, err := c.Lookup(ctx, Call{Args: []any{"a", "b"}})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 42, entry.Value)
	assert.Equal(t, epoch.Add(50*time.Second), entry.Created)

	// refreshed entry is no longer in its grace window
	assert.Empty(t, collectKeys(t, c.NeedingRefresh(ctx)))
}

func TestRefreshStopsOnError(t *testing.T) {
	clock := newFakeClock()
	c, err := New[int](NewMemory(), time.Minute, WithGrace(15*time.Second), WithClock(clock.Now))
	require.NoError(t, err)
	seed(t, c, clock, 0, "a")

	clock.At(time.Hour)
	boom := errors.New("boom")
	n, err := c.Refresh(context.Background(), func(context.Context, Call) (int, error) { return 0, boom })
	assert.Same(t, boom, err)
	assert.Zero(t, n)
}

func TestRunReaper(t *testing.T) {
	clock := newFakeClock()
	mem := NewMemory()
	log := logger.NewTestLogger()
	c, err := New[int](mem, time.Minute, WithClock(clock.Now), WithLogger(log))
	require.NoError(t, err)
	seed(t, c, clock, 0, "a")
	seed(t, c, clock, 0, "b")
	clock.At(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunReaper(ctx, 5*time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool { return mem.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestRunReaperLogsFailures(t *testing.T) {
	log := logger.NewTestLogger()
	c, err := New[int](failingBackend{err: errors.New("unreachable")}, time.Minute, WithLogger(log))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunReaper(ctx, 5*time.Millisecond)
		close(done)
	}()
	assert.Eventually(t, func() bool {
		for _, l := range log.Logs() {
			if l.Severity == "WARNING" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/agentuity/memocache/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	paths map[string]int
	auth  []string
}

func newCollector(t *testing.T) (*collector, *httptest.Server) {
	c := &collector{paths: map[string]int{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.paths[r.URL.Path]++
		c.auth = append(c.auth, r.Header.Get("Authorization"))
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return c, server
}

func (c *collector) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

func TestNew(t *testing.T) {
	c, server := newCollector(t)
	console := logger.NewTestLogger()

	tel, shutdown, err := New(context.Background(), server.URL, "secret", "memoctl", console)
	require.NoError(t, err)
	require.NotNil(t, tel.Logger)
	require.NotNil(t, tel.TracerProvider)

	tel.Logger.Info("hello %s", "world")
	_, span := tel.TracerProvider.Tracer("test").Start(context.Background(), "op")
	span.End()
	shutdown()

	assert.GreaterOrEqual(t, c.count("/v1/logs"), 1)
	assert.GreaterOrEqual(t, c.count("/v1/traces"), 1)
	c.mu.Lock()
	for _, auth := range c.auth {
		assert.Equal(t, "Bearer secret", auth)
	}
	c.mu.Unlock()

	var found bool
	for _, l := range console.Logs() {
		if l.Severity == "INFO" && l.String() == "hello world" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNewWithoutConsole(t *testing.T) {
	_, server := newCollector(t)
	tel, shutdown, err := New(context.Background(), server.URL, "", "memoctl", nil)
	require.NoError(t, err)
	tel.Logger.Debug("quiet")
	shutdown()
}

func TestNewRejectsBadURL(t *testing.T) {
	_, _, err := New(context.Background(), "localhost:4318", "", "memoctl", nil)
	assert.Error(t, err)

	_, _, err = New(context.Background(), "://bad", "", "memoctl", nil)
	assert.Error(t, err)
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/noop"
)

func TestGetLevelFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		expectedLevel LogLevel
	}{
		{"trace level", "trace", LevelTrace},
		{"debug level", "debug", LevelDebug},
		{"info level", "info", LevelInfo},
		{"warn level", "warn", LevelWarn},
		{"warning alias", "warning", LevelWarn},
		{"error level", "error", LevelError},
		{"none level", "none", LevelNone},
		{"mixed case debug", "DeBuG", LevelDebug},
		{"empty string", "", LevelInfo},
		{"invalid value", "invalid", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLogLevel, tt.envValue)
			assert.Equal(t, tt.expectedLevel, GetLevelFromEnv())
		})
	}
}

func TestParseLevelUnknown(t *testing.T) {
	level, ok := ParseLevel("loud")
	assert.False(t, ok)
	assert.Equal(t, LevelInfo, level)
}

func TestConsoleLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLoggerWithWriter(&buf, LevelWarn)
	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	out := ansiColorStripper.ReplaceAllString(buf.String(), "")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN ]")
	assert.Contains(t, out, "shown 2")
	assert.True(t, l.IsLevelEnabled(LevelError))
	assert.False(t, l.IsLevelEnabled(LevelDebug))
}

func TestConsoleLoggerPrefixAndMetadata(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLoggerWithWriter(&buf, LevelTrace).
		WithPrefix("[cache]").
		WithPrefix("[cache]").
		With(map[string]interface{}{"key": "abc"})
	l.Debug("miss")
	out := ansiColorStripper.ReplaceAllString(buf.String(), "")
	assert.Equal(t, 1, strings.Count(out, "[cache]"))
	assert.Contains(t, out, `{"key":"abc"}`)
}

func TestConsoleLoggerNoneIsSilent(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLoggerWithWriter(&buf, LevelNone)
	l.Error("nothing")
	assert.Empty(t, buf.String())
}

func TestJSONLogEntryString(t *testing.T) {
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(JSONLogEntry{Message: "m"}.String()), &parsed))
	assert.Equal(t, "m", parsed["message"])
	assert.Equal(t, "INFO", parsed["severity"])
}

func TestJSONLoggerComponentAndMetadata(t *testing.T) {
	var buf bytes.Buffer
	ts := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	base := NewJSONLoggerWithWriter(&buf, LevelTrace).(*jsonLogger)
	base.ts = &ts

	l := base.WithPrefix("[cache]").WithPrefix("redis").With(map[string]interface{}{"prefix": "users"})
	l.Info("stored %s", "k1")

	var entry JSONLogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "stored k1", entry.Message)
	assert.Equal(t, "INFO", entry.Severity)
	assert.Equal(t, "cache, redis", entry.Component)
	assert.Equal(t, "users", entry.Metadata["prefix"])
	assert.True(t, ts.Equal(entry.Timestamp))
}

func TestJSONLoggerComponentFromMetadata(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLoggerWithWriter(&buf, LevelTrace).With(map[string]interface{}{"component": "reaper"})
	l.Warn("tick")
	var entry JSONLogEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "reaper", entry.Component)
	assert.NotContains(t, entry.Metadata, "component")
}

func TestStackForwardsToChild(t *testing.T) {
	var buf bytes.Buffer
	child := NewTestLogger()
	l := NewJSONLoggerWithWriter(&buf, LevelError).Stack(child)
	l.Debug("only child sees %s", "this")
	assert.Empty(t, buf.String())
	logs := child.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "DEBUG", logs[0].Severity)
	assert.Equal(t, "only child sees this", logs[0].String())
}

func TestTestLoggerSharesRecords(t *testing.T) {
	root := NewTestLogger()
	child := root.With(map[string]interface{}{"key": "k"})
	root.Info("one")
	child.Warn("two %d", 2)

	logs := root.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "INFO", logs[0].Severity)
	assert.Equal(t, "WARNING", logs[1].Severity)
	assert.Equal(t, "two 2", logs[1].String())
	assert.Equal(t, "k", logs[1].Metadata["key"])

	root.Reset()
	assert.Empty(t, root.Logs())
}

func TestDiscardLogger(t *testing.T) {
	assert.False(t, Discard.IsLevelEnabled(LevelError))
	assert.Equal(t, Discard, Discard.With(map[string]interface{}{"a": 1}))
	next := NewTestLogger()
	assert.Equal(t, Logger(next), Discard.Stack(next))
}

func TestOtelLoggerWithMergesMetadata(t *testing.T) {
	l := NewOtelLogger(noop.NewLoggerProvider().Logger("test"), LevelTrace)

	base := l.With(map[string]interface{}{
		"base_key": "base_value",
		"shared":   "from_base",
	}).(*otelLogger)
	extended := base.With(map[string]interface{}{
		"extra_key": "extra_value",
		"shared":    "from_extended",
		"ttl":       time.Minute,
	}).(*otelLogger)

	assert.Len(t, base.metadata, 2)
	assert.Len(t, extended.metadata, 4)
	assert.Equal(t, "from_extended", extended.metadata["shared"].AsString())
	assert.Equal(t, "1m0s", extended.metadata["ttl"].AsString())
	assert.Equal(t, log.KindString, extended.metadata["base_key"].Kind())
}

func TestOtelLoggerPrefixAndContext(t *testing.T) {
	l := NewOtelLogger(noop.NewLoggerProvider().Logger("test"), LevelInfo)
	ctx := context.WithValue(context.Background(), struct{}{}, "x")
	p := l.WithPrefix("[cache]").WithContext(ctx).(*otelLogger)
	assert.Equal(t, []string{"[cache]"}, p.prefixes)
	assert.Equal(t, ctx, p.ctx)
	assert.False(t, p.IsLevelEnabled(LevelDebug))
	p.Info("emits without panicking")
}

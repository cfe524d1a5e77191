package logger

import (
	"context"
	"fmt"
	"sync"
)

type TestLogEntry struct {
	Severity  string
	Message   string
	Arguments []interface{}
	Metadata  map[string]interface{}
}

// String returns the formatted message.
func (e TestLogEntry) String() string {
	return fmt.Sprintf(e.Message, e.Arguments...)
}

type testRecorder struct {
	mu   sync.Mutex
	logs []TestLogEntry
}

// TestLogger records every entry so tests can assert on them. Loggers derived
// with With, WithPrefix or WithContext record into the same list.
type TestLogger struct {
	metadata map[string]interface{}
	recorder *testRecorder
	child    Logger
}

var _ Logger = (*TestLogger)(nil)

func (c *TestLogger) WithContext(ctx context.Context) Logger {
	return c
}

// WithPrefix will return a new logger with a prefix prepended to the message
func (c *TestLogger) WithPrefix(prefix string) Logger {
	return c
}

func (c *TestLogger) With(metadata map[string]interface{}) Logger {
	child := c.child
	if child != nil {
		child = child.With(metadata)
	}
	return &TestLogger{metadata: copyMetadata(c.metadata, metadata), recorder: c.recorder, child: child}
}

func (c *TestLogger) IsLevelEnabled(level LogLevel) bool {
	return true
}

func (c *TestLogger) Log(level string, msg string, args ...interface{}) {
	c.recorder.mu.Lock()
	defer c.recorder.mu.Unlock()
	c.recorder.logs = append(c.recorder.logs, TestLogEntry{level, msg, args, c.metadata})
}

// Logs returns a copy of everything recorded so far.
func (c *TestLogger) Logs() []TestLogEntry {
	c.recorder.mu.Lock()
	defer c.recorder.mu.Unlock()
	return append([]TestLogEntry(nil), c.recorder.logs...)
}

// Reset drops all recorded entries.
func (c *TestLogger) Reset() {
	c.recorder.mu.Lock()
	c.recorder.logs = nil
	c.recorder.mu.Unlock()
}

func (c *TestLogger) Trace(msg string, args ...interface{}) {
	c.Log("TRACE", msg, args...)
	if c.child != nil {
		c.child.Trace(msg, args...)
	}
}

func (c *TestLogger) Debug(msg string, args ...interface{}) {
	c.Log("DEBUG", msg, args...)
	if c.child != nil {
		c.child.Debug(msg, args...)
	}
}

func (c *TestLogger) Info(msg string, args ...interface{}) {
	c.Log("INFO", msg, args...)
	if c.child != nil {
		c.child.Info(msg, args...)
	}
}

func (c *TestLogger) Warn(msg string, args ...interface{}) {
	c.Log("WARNING", msg, args...)
	if c.child != nil {
		c.child.Warn(msg, args...)
	}
}

func (c *TestLogger) Error(msg string, args ...interface{}) {
	c.Log("ERROR", msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

// Fatal records the entry but does not exit, so tests can observe it.
func (c *TestLogger) Fatal(msg string, args ...interface{}) {
	c.Log("FATAL", msg, args...)
	if c.child != nil {
		c.child.Error(msg, args...)
	}
}

func (c *TestLogger) Stack(next Logger) Logger {
	return &TestLogger{metadata: c.metadata, recorder: c.recorder, child: next}
}

// NewTestLogger returns a new Logger instance useful for testing
func NewTestLogger() *TestLogger {
	return &TestLogger{recorder: &testRecorder{}}
}

type discardLogger struct{}

// Discard is a Logger that drops everything.
var Discard Logger = discardLogger{}

func (discardLogger) With(map[string]interface{}) Logger { return Discard }
func (discardLogger) WithPrefix(string) Logger           { return Discard }
func (discardLogger) WithContext(context.Context) Logger { return Discard }
func (discardLogger) Trace(string, ...interface{})       {}
func (discardLogger) Debug(string, ...interface{})       {}
func (discardLogger) Info(string, ...interface{})        {}
func (discardLogger) Warn(string, ...interface{})        {}
func (discardLogger) Error(string, ...interface{})       {}
func (discardLogger) Fatal(string, ...interface{})       {}
func (discardLogger) Stack(next Logger) Logger           { return next }
func (discardLogger) IsLevelEnabled(LogLevel) bool       { return false }

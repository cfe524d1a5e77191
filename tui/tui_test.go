package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasTTY(t *testing.T) {
	assert.Contains(t, []bool{true, false}, HasTTY)
}

func TestPlainTable(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, false, []string{"KEY", "AGE"}, [][]string{{"a", "1 minute ago"}, {"b", "now"}})
	assert.Equal(t, "KEY\tAGE\na\t1 minute ago\nb\tnow\n", buf.String())
}

func TestStyledTable(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, true, []string{"KEY", "AGE"}, [][]string{{"abc", "now"}})
	out := buf.String()
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "abc")
	assert.True(t, strings.HasPrefix(out, "┌"))
}

func TestText(t *testing.T) {
	assert.Contains(t, Muted("none"), "none")
	assert.Contains(t, Warning("careful"), "careful")
}

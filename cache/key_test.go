package cache

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMD5KeyKnownValues(t *testing.T) {
	assert.Equal(t, keyFoo, MD5Key([]any{1, 2}, map[string]any{"k1": "foo"}))
	assert.Equal(t, keyBar, MD5Key([]any{1, 2}, map[string]any{"k1": "bar"}))
}

func TestMD5KeyKwargOrderIndependent(t *testing.T) {
	a := MD5Key(nil, map[string]any{"a": 1, "b": 2, "c": 3})
	b := MD5Key(nil, map[string]any{"c": 3, "a": 1, "b": 2})
	assert.Equal(t, a, b)
}

func TestMD5KeyDistinguishesArguments(t *testing.T) {
	assert.NotEqual(t, MD5Key([]any{1}, nil), MD5Key([]any{2}, nil))
	assert.NotEqual(t, MD5Key([]any{1}, nil), MD5Key([]any{1.0}, nil))
	assert.NotEqual(t, MD5Key([]any{true}, nil), MD5Key([]any{"true"}, nil))
}

func TestArgString(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "None"},
		{true, "True"},
		{false, "False"},
		{"x", "x"},
		{42, "42"},
		{int64(-3), "-3"},
		{2.0, "2.0"},
		{2.5, "2.5"},
		{float32(1), "1.0"},
		{math.Inf(1), "inf"},
		{math.NaN(), "nan"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, argString(tt.in), "%#v", tt.in)
	}
}

func TestXXHashKey(t *testing.T) {
	k := XXHashKey([]any{1, 2}, map[string]any{"k1": "foo"})
	assert.Len(t, k, 16)
	assert.Equal(t, k, XXHashKey([]any{1, 2}, map[string]any{"k1": "foo"}))
	assert.NotEqual(t, k, XXHashKey([]any{1, 2}, map[string]any{"k1": "bar"}))
}

func TestDeriveKeyStripsFlags(t *testing.T) {
	kwargs := map[string]any{"k1": "foo", "precache": true, "_nocache": true, "recache": false}
	key, stripped := DeriveKey(nil, Call{Args: []any{1, 2}, Kwargs: kwargs})
	assert.Equal(t, keyFoo, key)
	assert.Equal(t, map[string]any{"k1": "foo"}, stripped)
	assert.Len(t, kwargs, 4, "input kwargs must not be modified")
}

func TestDeriveKeyUsesKeyFunc(t *testing.T) {
	var seen map[string]any
	key, _ := DeriveKey(func(args []any, kwargs map[string]any) string {
		seen = kwargs
		return "custom"
	}, fooCall("nocache", true))
	assert.Equal(t, "custom", key)
	assert.Equal(t, map[string]any{"k1": "foo"}, seen)
}

func TestDefaultMode(t *testing.T) {
	tests := []struct {
		name   string
		kwargs map[string]any
		want   Mode
	}{
		{"no flags", map[string]any{"k1": "foo"}, ModeCache},
		{"nil kwargs", nil, ModeCache},
		{"nocache", map[string]any{"nocache": true}, ModeNoCache},
		{"underscore nocache", map[string]any{"_nocache": true}, ModeNoCache},
		{"precache wins", map[string]any{"precache": true, "nocache": true, "recache": true}, ModePrecache},
		{"nocache beats recache", map[string]any{"nocache": 1, "recache": true}, ModeNoCache},
		{"recache", map[string]any{"_recache": "yes"}, ModeRecache},
		{"false flag ignored", map[string]any{"nocache": false}, ModeCache},
		{"zero flag ignored", map[string]any{"precache": 0}, ModeCache},
		{"false string ignored", map[string]any{"recache": "false"}, ModeCache},
		{"zero int32 ignored", map[string]any{"nocache": int32(0)}, ModeCache},
		{"zero uint ignored", map[string]any{"precache": uint(0)}, ModeCache},
		{"zero float32 ignored", map[string]any{"precache": float32(0)}, ModeCache},
		{"zero json number ignored", map[string]any{"nocache": json.Number("0")}, ModeCache},
		{"decoded zero float ignored", map[string]any{"nocache": json.Number("0.0")}, ModeCache},
		{"int8 flag", map[string]any{"recache": int8(1)}, ModeRecache},
		{"uint64 flag", map[string]any{"nocache": uint64(2)}, ModeNoCache},
		{"json number flag", map[string]any{"precache": json.Number("1")}, ModePrecache},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultMode(Call{Kwargs: tt.kwargs}))
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeCache, ModeNoCache, ModePrecache, ModeRecache} {
		got, ok := ParseMode(m.String())
		assert.True(t, ok)
		assert.Equal(t, m, got)
	}
	_, ok := ParseMode("sometimes")
	assert.False(t, ok)
}

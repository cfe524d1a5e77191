package cache

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Mode selects how a single call uses the cache.
type Mode int

const (
	// ModeDefault means no mode was chosen explicitly; the cache's ModeFunc decides.
	ModeDefault Mode = iota
	// ModeCache serves a fresh entry when there is one and recomputes otherwise.
	ModeCache
	// ModeNoCache bypasses the backend entirely: no read, no write.
	ModeNoCache
	// ModePrecache recomputes and stores unconditionally.
	ModePrecache
	// ModeRecache recomputes once the entry has entered its grace window.
	ModeRecache
)

func (m Mode) String() string {
	switch m {
	case ModeCache:
		return "cache"
	case ModeNoCache:
		return "nocache"
	case ModePrecache:
		return "precache"
	case ModeRecache:
		return "recache"
	default:
		return "default"
	}
}

// ParseMode converts a mode name as produced by Mode.String back into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cache", "":
		return ModeCache, true
	case "nocache":
		return ModeNoCache, true
	case "precache":
		return ModePrecache, true
	case "recache":
		return ModeRecache, true
	}
	return ModeDefault, false
}

// ModeFunc derives a Mode from a call. It sees the kwargs before the control
// flags are stripped, so it can use them or any business argument.
type ModeFunc func(call Call) Mode

// DefaultMode honours the control flags in priority order
// precache > nocache > recache and falls back to ModeCache.
func DefaultMode(call Call) Mode {
	switch {
	case flagSet(call.Kwargs, "precache"):
		return ModePrecache
	case flagSet(call.Kwargs, "nocache"):
		return ModeNoCache
	case flagSet(call.Kwargs, "recache"):
		return ModeRecache
	}
	return ModeCache
}

func flagSet(kwargs map[string]any, name string) bool {
	if v, ok := kwargs[name]; ok && truthy(v) {
		return true
	}
	if v, ok := kwargs["_"+name]; ok && truthy(v) {
		return true
	}
	return false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return b
		}
		return x != ""
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f != 0
		}
		return x != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Complex64, reflect.Complex128:
		return rv.Complex() != 0
	}
	return true
}

type callOptions struct {
	mode Mode
}

// CallOption adjusts a single call through a wrapped function.
type CallOption func(*callOptions)

// WithMode forces the mode of one call, overriding the cache's ModeFunc.
func WithMode(m Mode) CallOption {
	return func(o *callOptions) { o.mode = m }
}

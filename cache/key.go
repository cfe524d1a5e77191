package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"math"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// KeyFunc derives a cache key from a call's business arguments. It must be
// deterministic: the same logical call always yields the same key.
type KeyFunc func(args []any, kwargs map[string]any) string

// reservedFlags are kwargs intercepted by the cache and never passed to the
// wrapped function or the key function. The underscore spellings are the
// ones older writers used.
var reservedFlags = []string{
	"precache", "nocache", "recache",
	"_precache", "_nocache", "_recache",
}

func isReserved(name string) bool {
	for _, f := range reservedFlags {
		if f == name {
			return true
		}
	}
	return false
}

// StripFlags returns kwargs without the reserved control flags. The input map
// is never modified.
func StripFlags(kwargs map[string]any) map[string]any {
	stripped := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		if !isReserved(k) {
			stripped[k] = v
		}
	}
	return stripped
}

// DeriveKey strips the control flags from the call and hashes what remains
// with keyFn. It returns the key and the stripped kwargs.
func DeriveKey(keyFn KeyFunc, call Call) (string, map[string]any) {
	if keyFn == nil {
		keyFn = MD5Key
	}
	stripped := StripFlags(call.Kwargs)
	return keyFn(call.Args, stripped), stripped
}

// MD5Key hashes each positional argument's string form in call order, then
// each kwarg as name+value in sorted name order, and returns the hex md5.
// String forms match the ones older cache writers produced, so keys stay
// stable across them.
func MD5Key(args []any, kwargs map[string]any) string {
	h := md5.New()
	writeArgs(h, args, kwargs)
	return hex.EncodeToString(h.Sum(nil))
}

// XXHashKey hashes the same byte stream as MD5Key with xxhash64. It is much
// cheaper but its keys are not compatible with MD5Key keys.
func XXHashKey(args []any, kwargs map[string]any) string {
	h := xxhash.New()
	writeArgs(h, args, kwargs)
	return fmt.Sprintf("%016x", h.Sum64())
}

func writeArgs(h hash.Hash, args []any, kwargs map[string]any) {
	for _, a := range args {
		h.Write([]byte(argString(a)))
	}
	names := make([]string, 0, len(kwargs))
	for k := range kwargs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		h.Write([]byte(k + argString(kwargs[k])))
	}
}

func argString(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return floatString(x)
	case float32:
		return floatString(float64(x))
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// floatString keeps a trailing ".0" on integral values so 1.0 and 1 hash
// differently.
func floatString(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

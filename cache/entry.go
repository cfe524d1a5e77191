package cache

import "time"

// Call holds the business arguments of one invocation of a wrapped function.
type Call struct {
	Args   []any
	Kwargs map[string]any
}

// Entry is one cached result plus the metadata needed to judge its age and
// to replay the call that produced it.
type Entry struct {
	Key     string
	Created time.Time
	// Value is the wrapped function's result. Backends that serialize return
	// a RawValue here; Cache decodes it into the caller's type.
	Value  any
	Args   []any
	Kwargs map[string]any
}

// Age returns how long ago the entry was created relative to now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Created)
}

// Call returns the arguments the entry was computed from.
func (e *Entry) Call() Call {
	return Call{Args: e.Args, Kwargs: e.Kwargs}
}

func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// RawValue is a stored value that has not been decoded into a Go type yet.
// It is produced by serializing backends; Decode uses the codec that read it.
type RawValue struct {
	data   []byte
	decode func([]byte, any) error
}

// Bytes returns the encoded form of the value.
func (r RawValue) Bytes() []byte {
	return r.data
}

// Decode unmarshals the value into v, which must be a pointer.
func (r RawValue) Decode(v any) error {
	if r.decode == nil {
		return malformed(ErrNotImplemented, "raw value has no decoder")
	}
	if err := r.decode(r.data, v); err != nil {
		return malformed(err, "decode cached value")
	}
	return nil
}

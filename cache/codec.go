package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns an Entry into bytes and back. Serializing backends use a Codec;
// values they return from Get are RawValue until the Cache decodes them.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(e *Entry) ([]byte, error)
	Unmarshal(data []byte) (*Entry, error)
}

var (
	_ Codec = JSONCodec{}
	_ Codec = MsgpackCodec{}
)

// created timestamps written by older writers may carry no zone; those are UTC.
var createdLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func formatCreated(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseCreated(s string) (time.Time, error) {
	for _, layout := range createdLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Mark(errors.Newf("cache: unparsable created timestamp %q", s), ErrMalformedEntry)
}

// JSONCodec stores entries as a JSON object with the fields key, created,
// value, args and kwargs. It is the default for every serializing backend.
type JSONCodec struct {
	// Indent, when set, pretty prints the record.
	Indent string
}

type jsonRecord struct {
	Key     string          `json:"key"`
	Created string          `json:"created"`
	Value   json.RawMessage `json:"value"`
	Args    []any           `json:"args"`
	Kwargs  map[string]any  `json:"kwargs"`
}

func (JSONCodec) Name() string        { return "json" }
func (JSONCodec) ContentType() string { return "application/json" }

func (c JSONCodec) Marshal(e *Entry) ([]byte, error) {
	value, err := normalize(e.Value)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: encoding value of %s", e.Key)
	}
	args, kwargs, err := normalizeCall(e.Args, e.Kwargs)
	if err != nil {
		return nil, err
	}
	rec := jsonRecord{
		Key:     e.Key,
		Created: formatCreated(e.Created),
		Value:   encoded,
		Args:    args,
		Kwargs:  kwargs,
	}
	var data []byte
	if c.Indent != "" {
		data, err = json.MarshalIndent(rec, "", c.Indent)
	} else {
		data, err = json.Marshal(rec)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cache: encoding entry %s", e.Key)
	}
	return data, nil
}

func (JSONCodec) Unmarshal(data []byte) (*Entry, error) {
	var rec jsonRecord
	if err := jsonDecode(data, &rec); err != nil {
		return nil, malformed(err, "decode json entry")
	}
	created, err := parseCreated(rec.Created)
	if err != nil {
		return nil, err
	}
	value := []byte(rec.Value)
	if len(value) == 0 {
		value = []byte("null")
	}
	return &Entry{
		Key:     rec.Key,
		Created: created,
		Value:   RawValue{data: value, decode: jsonDecode},
		Args:    rec.Args,
		Kwargs:  rec.Kwargs,
	}, nil
}

func jsonDecode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// MsgpackCodec stores entries as a msgpack map with the same fields as
// JSONCodec. Values keep their msgpack encoding, so struct tags and custom
// encoders apply.
type MsgpackCodec struct{}

type msgpackRecord struct {
	Key     string             `msgpack:"key"`
	Created string             `msgpack:"created"`
	Value   msgpack.RawMessage `msgpack:"value"`
	Args    []any              `msgpack:"args"`
	Kwargs  map[string]any     `msgpack:"kwargs"`
}

func (MsgpackCodec) Name() string        { return "msgpack" }
func (MsgpackCodec) ContentType() string { return "application/msgpack" }

func (MsgpackCodec) Marshal(e *Entry) ([]byte, error) {
	value := e.Value
	if raw, ok := value.(RawValue); ok {
		var decoded any
		if err := raw.Decode(&decoded); err != nil {
			return nil, err
		}
		value = decoded
	}
	encoded, err := msgpack.Marshal(value)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: encoding value of %s", e.Key)
	}
	args, kwargs, err := normalizeCall(e.Args, e.Kwargs)
	if err != nil {
		return nil, err
	}
	data, err := msgpack.Marshal(&msgpackRecord{
		Key:     e.Key,
		Created: formatCreated(e.Created),
		Value:   encoded,
		Args:    args,
		Kwargs:  kwargs,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cache: encoding entry %s", e.Key)
	}
	return data, nil
}

func (MsgpackCodec) Unmarshal(data []byte) (*Entry, error) {
	var rec msgpackRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, malformed(err, "decode msgpack entry")
	}
	created, err := parseCreated(rec.Created)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Key:     rec.Key,
		Created: created,
		Value:   RawValue{data: rec.Value, decode: msgpack.Unmarshal},
		Args:    rec.Args,
		Kwargs:  rec.Kwargs,
	}, nil
}

func normalizeCall(args []any, kwargs map[string]any) ([]any, map[string]any, error) {
	outArgs := make([]any, 0, len(args))
	for _, a := range args {
		n, err := normalize(a)
		if err != nil {
			return nil, nil, err
		}
		outArgs = append(outArgs, n)
	}
	outKwargs := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		n, err := normalize(v)
		if err != nil {
			return nil, nil, err
		}
		outKwargs[k] = n
	}
	return outArgs, outKwargs, nil
}

type jsonHook interface {
	ToJSON() any
}

// normalize reduces v to something every codec can encode. Custom hooks win,
// then times and decimals, then json.Marshaler; kinds no encoder supports
// fall back to their fmt representation.
func normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case jsonHook:
		return normalize(x.ToJSON())
	case RawValue:
		var decoded any
		if err := x.Decode(&decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	case time.Time:
		return formatCreated(x), nil
	case decimal.Decimal:
		return x.InexactFloat64(), nil
	case json.Number, []byte:
		return x, nil
	case json.Marshaler:
		data, err := x.MarshalJSON()
		if err != nil {
			return nil, errors.Wrapf(err, "cache: marshal %T", v)
		}
		var decoded any
		if err := jsonDecode(data, &decoded); err != nil {
			return nil, errors.Wrapf(err, "cache: re-decode %T", v)
		}
		return decoded, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return fmt.Sprint(v), nil
	}
	return v, nil
}

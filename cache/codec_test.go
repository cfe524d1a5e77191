package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ignoreValue = cmpopts.IgnoreFields(Entry{}, "Value")

func TestJSONCodecRecordLayout(t *testing.T) {
	data, err := JSONCodec{}.Marshal(&Entry{
		Key:     keyFoo,
		Created: epoch,
		Value:   []any{epoch, 1, 2, "foo", 2},
		Args:    []any{1, 2},
		Kwargs:  map[string]any{"k1": "foo"},
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	want := map[string]any{
		"key":     keyFoo,
		"created": "2017-01-01T00:00:00Z",
		"value":   []any{"2017-01-01T00:00:00Z", 1.0, 2.0, "foo", 2.0},
		"args":    []any{1.0, 2.0},
		"kwargs":  map[string]any{"k1": "foo"},
	}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	in := &Entry{
		Key:     keyBar,
		Created: epoch.Add(1500 * time.Millisecond),
		Value:   map[string]any{"total": 3},
		Args:    []any{"x"},
		Kwargs:  map[string]any{"k1": "bar"},
	}
	for _, codec := range []Codec{JSONCodec{}, JSONCodec{Indent: "  "}, MsgpackCodec{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			data, err := codec.Marshal(in)
			require.NoError(t, err)
			out, err := codec.Unmarshal(data)
			require.NoError(t, err)

			if diff := cmp.Diff(in, out, ignoreValue); diff != "" {
				t.Errorf("entry mismatch (-want +got):\n%s", diff)
			}
			raw, ok := out.Value.(RawValue)
			require.True(t, ok)
			var value struct {
				Total int `json:"total" msgpack:"total"`
			}
			require.NoError(t, raw.Decode(&value))
			assert.Equal(t, 3, value.Total)
		})
	}
}

func TestJSONCodecReadsNaiveTimestamps(t *testing.T) {
	for _, created := range []string{"2017-01-01T00:01:11", "2017-01-01 00:01:11", "2017-01-01T00:01:11.250000", "2017-01-01T00:01:11+00:00"} {
		data := []byte(`{"key": "k", "created": "` + created + `", "value": [1, 2], "args": [1, 2], "kwargs": {"k1": "foo"}}`)
		entry, err := JSONCodec{}.Unmarshal(data)
		require.NoError(t, err, created)
		assert.Equal(t, epoch.Add(71*time.Second), entry.Created.Truncate(time.Second), created)
		assert.Equal(t, time.UTC, entry.Created.Location())
	}
}

func TestJSONCodecMalformed(t *testing.T) {
	_, err := JSONCodec{}.Unmarshal([]byte(`{"key": "k", "created": "yesterday"}`))
	assert.ErrorIs(t, err, ErrMalformedEntry)

	_, err = JSONCodec{}.Unmarshal([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedEntry)

	_, err = MsgpackCodec{}.Unmarshal([]byte{0xc1})
	assert.ErrorIs(t, err, ErrMalformedEntry)

	entry, err := JSONCodec{}.Unmarshal([]byte(`{"key": "k", "created": "2017-01-01T00:00:00", "value": "text"}`))
	require.NoError(t, err)
	var n int
	assert.ErrorIs(t, entry.Value.(RawValue).Decode(&n), ErrMalformedEntry)
}

func TestJSONCodecNumbersKeepTheirText(t *testing.T) {
	entry, err := JSONCodec{}.Unmarshal([]byte(`{"key": "k", "created": "2017-01-01T00:00:00", "value": null, "args": [1, 2.5], "kwargs": {}}`))
	require.NoError(t, err)
	assert.Equal(t, []any{json.Number("1"), json.Number("2.5")}, entry.Args)
	assert.Equal(t, MD5Key([]any{1, 2.5}, nil), MD5Key(entry.Args, entry.Kwargs))
}

type point struct{ X, Y int }

func (p point) ToJSON() any { return []any{p.X, p.Y} }

func TestNormalize(t *testing.T) {
	ch := make(chan int)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"hook", point{1, 2}, []any{1, 2}},
		{"time", time.Date(2017, 1, 1, 1, 0, 0, 0, time.FixedZone("x", 3600)), "2017-01-01T00:00:00Z"},
		{"decimal", decimal.RequireFromString("12.50"), 12.5},
		{"marshaler", json.RawMessage(`{"a":1}`), map[string]any{"a": json.Number("1")}},
		{"nested", []any{map[string]any{"at": epoch}}, []any{map[string]any{"at": "2017-01-01T00:00:00Z"}}},
		{"complex", complex(1, 2), "(1+2i)"},
		{"plain", 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := normalize(ch)
	require.NoError(t, err)
	assert.IsType(t, "", got)
}

func TestMsgpackCodecReencodesRawValues(t *testing.T) {
	data, err := JSONCodec{}.Marshal(&Entry{Key: "k", Created: epoch, Value: []any{"a", "b"}})
	require.NoError(t, err)
	fromJSON, err := JSONCodec{}.Unmarshal(data)
	require.NoError(t, err)

	packed, err := MsgpackCodec{}.Marshal(fromJSON)
	require.NoError(t, err)
	out, err := MsgpackCodec{}.Unmarshal(packed)
	require.NoError(t, err)
	var value []string
	require.NoError(t, out.Value.(RawValue).Decode(&value))
	assert.Equal(t, []string{"a", "b"}, value)
}

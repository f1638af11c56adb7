package msgpack

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/conduit"
)

type record struct {
	Name    string         `conduit:"name"`
	Count   int            `conduit:"count"`
	Big     uint64         `conduit:"big"`
	Ratio   float32        `conduit:"ratio"`
	Tags    []string       `conduit:"tags"`
	Attrs   map[string]int `conduit:"attrs"`
	When    time.Time      `conduit:"when"`
	Timeout time.Duration  `conduit:"timeout"`
	Blob    []byte         `conduit:"blob"`
	Next    *record        `conduit:"next"`
}

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Error("New() should return non-nil codec")
	}
}

func TestContentType(t *testing.T) {
	c := New()
	if c.ContentType() != "application/msgpack" {
		t.Errorf("ContentType() = %q, want %q", c.ContentType(), "application/msgpack")
	}
}

func TestRoundTrip(t *testing.T) {
	reg := conduit.New()
	tc := conduit.Use[record](reg, New())

	original := record{
		Name:    "test",
		Count:   -42,
		Big:     1 << 63,
		Ratio:   1.5,
		Tags:    []string{"a", "b"},
		Attrs:   map[string]int{"x": 1},
		When:    time.Date(2024, 5, 6, 7, 8, 9, 10, time.UTC),
		Timeout: 3 * time.Second,
		Blob:    []byte{0, 1, 2},
		Next:    &record{Name: "inner"},
	}

	data, err := tc.Encode(context.Background(), &original)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	var restored record
	if err := tc.Decode(context.Background(), data, &restored); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !reflect.DeepEqual(restored, original) {
		t.Errorf("round-trip failed: got %+v, want %+v", restored, original)
	}
}

func TestInterop(t *testing.T) {
	reg := conduit.New()

	t.Run("library output decodes", func(t *testing.T) {
		data, err := msgpack.Marshal(map[string]any{"name": "lib", "count": 7, "tags": []string{"x"}})
		if err != nil {
			t.Fatalf("Marshal() error: %v", err)
		}
		var r record
		if err := conduit.Use[record](reg, New()).Decode(context.Background(), data, &r); err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if r.Name != "lib" || r.Count != 7 || !reflect.DeepEqual(r.Tags, []string{"x"}) {
			t.Errorf("Decode() = %+v", r)
		}
	})

	t.Run("output decodes with the library", func(t *testing.T) {
		in := map[string][]int{"a": {1, 2}}
		data, err := conduit.Use[map[string][]int](reg, New()).Encode(context.Background(), &in)
		if err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
		var out map[string][]int
		if err := msgpack.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal() error: %v", err)
		}
		if !reflect.DeepEqual(out, in) {
			t.Errorf("Unmarshal() = %v, want %v", out, in)
		}
	})
}

func TestDecodeSkipsUnknownMembers(t *testing.T) {
	reg := conduit.New()
	data, err := msgpack.Marshal(map[string]any{
		"extra": map[string]any{"deep": []any{1, []any{2, nil}}},
		"name":  "kept",
	})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var r record
	if err := conduit.Use[record](reg, New()).Decode(context.Background(), data, &r); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if r.Name != "kept" {
		t.Errorf("Decode() = %+v", r)
	}
}

func TestDecodeErrors(t *testing.T) {
	reg := conduit.New()
	tc := conduit.Use[record](reg, New())

	valid, err := msgpack.Marshal(map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-1]},
		{"trailing", append(append([]byte{}, valid...), 0xc0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r record
			if err := tc.Decode(context.Background(), tt.data, &r); !errors.Is(err, conduit.ErrDecode) {
				t.Errorf("Decode() error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestStreamedArray(t *testing.T) {
	reg := conduit.New()
	in := make([]int, 1000)
	for i := range in {
		in[i] = i * i
	}
	tc := conduit.Use[[]int](reg, New())
	data, err := tc.Encode(context.Background(), &in)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	sum := int64(0)
	sink := conduit.AggregateFunc[int](func(int) conduit.Writer {
		return conduit.NewWriter(context.Background(), conduit.SinkFunc(func(v conduit.Value) error {
			n, err := v.AsInt(64)
			sum += n
			return err
		}))
	})
	if err := conduit.DecodeInto[int](context.Background(), New(), data, sink); err != nil {
		t.Fatalf("DecodeInto() error: %v", err)
	}
	if sum != 332833500 {
		t.Errorf("sum = %d, want 332833500", sum)
	}
}

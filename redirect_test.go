package conduit_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/zoobzio/conduit"
)

func TestDecodeInto(t *testing.T) {
	codec := newTreeCodec()

	t.Run("array", func(t *testing.T) {
		sink := &intCollector{}
		if err := conduit.DecodeInto[int](t.Context(), codec, []byte(`[4, 5, 6]`), sink); err != nil {
			t.Fatalf("DecodeInto() error: %v", err)
		}
		if !reflect.DeepEqual(sink.got, []int64{4, 5, 6}) {
			t.Errorf("sink got %v", sink.got)
		}
	})

	t.Run("object", func(t *testing.T) {
		var keys []string
		sink := conduit.AggregateFunc[string](func(k string) conduit.Writer {
			keys = append(keys, k)
			return conduit.Discard(context.Background())
		})
		if err := conduit.DecodeInto[string](t.Context(), codec, []byte(`{"a": 1, "b": [true]}`), sink); err != nil {
			t.Fatalf("DecodeInto() error: %v", err)
		}
		if len(keys) != 2 {
			t.Errorf("keys = %v, want 2 members", keys)
		}
	})

	t.Run("shape mismatch", func(t *testing.T) {
		err := conduit.DecodeInto[int](t.Context(), codec, []byte(`{"a": 1}`), &intCollector{})
		if !errors.Is(err, conduit.ErrDecode) || !errors.Is(err, conduit.ErrInvalidRepresentation) {
			t.Errorf("error = %v, want ErrDecode wrapping ErrInvalidRepresentation", err)
		}
	})

	t.Run("malformed input", func(t *testing.T) {
		err := conduit.DecodeInto[int](t.Context(), codec, []byte(`[1,`), &intCollector{})
		if !errors.Is(err, conduit.ErrDecode) {
			t.Errorf("error = %v, want ErrDecode", err)
		}
	})
}

func TestRedirectInto(t *testing.T) {
	reg := conduit.New()
	codec := newTreeCodec()

	type envelope struct {
		ID    string                `conduit:"id"`
		Items conduit.Redirect[int] `conduit:"items"`
	}

	sink := &intCollector{}
	var escaped context.Context
	err := conduit.RedirectInto[int](t.Context(), sink, func(ctx context.Context) error {
		escaped = ctx
		var env envelope
		if err := conduit.Use[envelope](reg, codec).Decode(ctx, []byte(`{"id": "x", "items": [1, 2]}`), &env); err != nil {
			return err
		}
		if env.ID != "x" {
			t.Errorf("ID = %q, want x", env.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RedirectInto() error: %v", err)
	}
	if !reflect.DeepEqual(sink.got, []int64{1, 2}) {
		t.Errorf("sink got %v, want [1 2]", sink.got)
	}

	_, err = conduit.Read[conduit.Redirect[int]](reg, conduit.ValueReader(escaped, conduit.ValueOf([]any{int64(1)})))
	if !errors.Is(err, conduit.ErrUnsupportedType) {
		t.Errorf("escaped context error = %v, want ErrUnsupportedType", err)
	}
}

func TestRedirect_NoSink(t *testing.T) {
	reg := conduit.New()

	_, err := conduit.Read[conduit.Redirect[string]](reg, conduit.TreeReader(map[string]any{}))
	if !errors.Is(err, conduit.ErrUnsupportedType) {
		t.Errorf("read error = %v, want ErrUnsupportedType", err)
	}

	var tree any
	err = conduit.Write(reg, conduit.TreeWriter(&tree), conduit.Redirect[int]{})
	if !errors.Is(err, conduit.ErrAccessDenied) {
		t.Errorf("write error = %v, want ErrAccessDenied", err)
	}
}

package conduit

import (
	"context"
	"reflect"
)

// Redirect is a marker type. Decoding a Redirect[K] forwards the array
// (int keys) or object (string keys) at the current position into the sink
// installed by RedirectInto, instead of materializing a value.
type Redirect[K Key] struct{}

type redirectKey[K Key] struct{}

// redirectSlot holds the sink for one RedirectInto call. It is emptied when
// the call returns, so a context that escapes the call forwards nothing.
type redirectSlot[K Key] struct {
	sink AggregateWriter[K]
}

// RedirectInto runs parse with a context that carries sink. Any Redirect[K]
// read by parse through a reader built on that context streams into sink.
func RedirectInto[K Key](ctx context.Context, sink AggregateWriter[K], parse func(ctx context.Context) error) error {
	slot := &redirectSlot[K]{sink: sink}
	defer func() { slot.sink = nil }()
	return parse(context.WithValue(ctx, redirectKey[K]{}, slot))
}

// DecodeInto parses data with codec and streams the root aggregate into sink.
// It is the explicit form of RedirectInto for callers holding a Codec.
func DecodeInto[K Key](ctx context.Context, codec Codec, data []byte, sink AggregateWriter[K]) error {
	return RedirectInto(ctx, sink, func(ctx context.Context) error {
		rd, err := codec.NewReader(ctx, data)
		if err != nil {
			return NewCodecError(ErrDecode, codec.ContentType(), err)
		}
		if _, err := redirectBinding[K]().Read(rd); err != nil {
			return NewCodecError(ErrDecode, codec.ContentType(), err)
		}
		if f, ok := rd.(Finisher); ok {
			if err := f.Finish(); err != nil {
				return NewCodecError(ErrDecode, codec.ContentType(), err)
			}
		}
		return nil
	})
}

func redirectSink[K Key](ctx context.Context) (AggregateWriter[K], bool) {
	slot, ok := ctx.Value(redirectKey[K]{}).(*redirectSlot[K])
	if !ok || slot.sink == nil {
		return nil, false
	}
	return slot.sink, true
}

func redirectBinding[K Key]() *Binding[Redirect[K]] {
	t := reflect.TypeFor[Redirect[K]]()
	return NewBinding(
		func(rd Reader) (Redirect[K], error) {
			sink, ok := redirectSink[K](ContextOf(rd))
			if !ok {
				return Redirect[K]{}, newTypeError(ErrUnsupportedType, t, "read", "no redirect sink installed")
			}
			switch s := any(sink).(type) {
			case AggregateWriter[int]:
				return Redirect[K]{}, rd.ReadArray(s)
			case AggregateWriter[string]:
				return Redirect[K]{}, rd.ReadObject(s)
			}
			return Redirect[K]{}, newTypeError(ErrUnsupportedType, t, "read", "")
		},
		func(Writer, Redirect[K]) error {
			return newTypeError(ErrAccessDenied, t, "write", "redirect is read-only")
		},
	)
}

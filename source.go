package conduit

import (
	"context"
	"math/big"
	"time"
)

// Source produces the next value of a token stream. Array and object values
// it returns must be consumed before Next is called again.
type Source interface {
	Next() (Value, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Value, error)

func (f SourceFunc) Next() (Value, error) { return f() }

// Sink receives one value per push. Array and object values must be consumed
// before Put returns.
type Sink interface {
	Put(v Value) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(v Value) error

func (f SinkFunc) Put(v Value) error { return f(v) }

// NewReader builds a complete Reader over a Source. The value is fetched
// lazily on the first read and kept, so ReadNull followed by a typed read sees
// the same value.
func NewReader(ctx context.Context, src Source) Reader {
	return &reader{ctx: ctx, fetch: src.Next}
}

// NewWriter builds a complete Writer over a Sink.
func NewWriter(ctx context.Context, sink Sink) Writer {
	return &writer{ctx: ctx, sink: sink}
}

// ValueReader returns a Reader positioned on v.
func ValueReader(ctx context.Context, v Value) Reader {
	return &reader{ctx: ctx, val: v}
}

// ErrReader returns a Reader whose every operation fails with err.
func ErrReader(err error) Reader {
	return &reader{err: err}
}

// ErrWriter returns a Writer whose every operation fails with err.
func ErrWriter(err error) Writer {
	return NewWriter(context.Background(), SinkFunc(func(Value) error { return err }))
}

// Discard returns a Writer that drains and drops every value.
func Discard(ctx context.Context) Writer {
	return NewWriter(ctx, SinkFunc(func(v Value) error { return drain(ctx, v) }))
}

func drain(ctx context.Context, v Value) error {
	switch v.Kind() {
	case KindArray:
		src, _ := v.AsArray()
		return src.ReadAll(AggregateFunc[int](func(int) Writer { return Discard(ctx) }), nil)
	case KindObject:
		src, _ := v.AsObject()
		return src.ReadAll(AggregateFunc[string](func(string) Writer { return Discard(ctx) }), nil)
	}
	return nil
}

// pullReader exposes a producer as a Reader. Transfer hands the destination
// straight to produce; typed reads capture the single pushed value first.
func pullReader(ctx context.Context, produce func(Writer) error) Reader {
	r := &reader{ctx: ctx, direct: produce}
	r.fetch = func() (Value, error) {
		var out Value
		err := produce(NewWriter(ctx, SinkFunc(func(v Value) error {
			out = v
			return nil
		})))
		return out, err
	}
	return r
}

// slotWriter exposes a consumer as a Writer: each push is replayed as a
// Reader positioned on the pushed value.
func slotWriter(ctx context.Context, consume func(Reader) error) Writer {
	return NewWriter(ctx, SinkFunc(func(v Value) error {
		return consume(ValueReader(ctx, v))
	}))
}

type reader struct {
	ctx    context.Context
	val    Value
	err    error
	fetch  func() (Value, error)
	direct func(Writer) error
}

func (r *reader) Context() context.Context { return r.ctx }

func (r *reader) value() (Value, error) {
	if r.fetch != nil {
		r.val, r.err = r.fetch()
		r.fetch, r.direct = nil, nil
	}
	return r.val, r.err
}

func (r *reader) ReadNull() (bool, error) {
	v, err := r.value()
	if err != nil {
		return false, err
	}
	return v.IsNull(), nil
}

func (r *reader) ReadBool() (bool, error) {
	v, err := r.value()
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func (r *reader) ReadInt(bits int) (int64, error) {
	v, err := r.value()
	if err != nil {
		return 0, err
	}
	return v.AsInt(bits)
}

func (r *reader) ReadUint(bits int) (uint64, error) {
	v, err := r.value()
	if err != nil {
		return 0, err
	}
	return v.AsUint(bits)
}

func (r *reader) ReadFloat(bits int) (float64, error) {
	v, err := r.value()
	if err != nil {
		return 0, err
	}
	return v.AsFloat(bits)
}

func (r *reader) ReadDecimal() (*big.Float, error) {
	v, err := r.value()
	if err != nil {
		return nil, err
	}
	return v.AsDecimal()
}

func (r *reader) ReadChar() (rune, error) {
	v, err := r.value()
	if err != nil {
		return 0, err
	}
	return v.AsChar()
}

func (r *reader) ReadString() (string, error) {
	v, err := r.value()
	if err != nil {
		return "", err
	}
	return v.AsString()
}

func (r *reader) ReadBytes() ([]byte, error) {
	v, err := r.value()
	if err != nil {
		return nil, err
	}
	return v.AsBytes()
}

func (r *reader) ReadTime() (time.Time, error) {
	v, err := r.value()
	if err != nil {
		return time.Time{}, err
	}
	return v.AsTime()
}

func (r *reader) ReadDuration() (time.Duration, error) {
	v, err := r.value()
	if err != nil {
		return 0, err
	}
	return v.AsDuration()
}

func (r *reader) ReadArray(sink AggregateWriter[int]) error {
	v, err := r.value()
	if err != nil {
		return err
	}
	src, err := v.AsArray()
	if err != nil {
		return err
	}
	return sink.WriteAll(src, nil)
}

func (r *reader) ReadObject(sink AggregateWriter[string]) error {
	v, err := r.value()
	if err != nil {
		return err
	}
	src, err := v.AsObject()
	if err != nil {
		return err
	}
	return sink.WriteAll(src, nil)
}

func (r *reader) ReadAny() (any, error) {
	v, err := r.value()
	if err != nil {
		return nil, err
	}
	return v.AsAny()
}

func (r *reader) Transfer(w Writer) error {
	if r.direct != nil {
		produce := r.direct
		r.fetch, r.direct = nil, nil
		return produce(w)
	}
	v, err := r.value()
	if err != nil {
		return err
	}
	return v.WriteTo(w)
}

type writer struct {
	ctx  context.Context
	sink Sink
}

func (w *writer) Context() context.Context { return w.ctx }

func (w *writer) WriteNull() error                   { return w.sink.Put(Null()) }
func (w *writer) WriteBool(v bool) error             { return w.sink.Put(Bool(v)) }
func (w *writer) WriteInt(v int64, bits int) error   { return w.sink.Put(Int(v, bits)) }
func (w *writer) WriteUint(v uint64, bits int) error { return w.sink.Put(Uint(v, bits)) }
func (w *writer) WriteFloat(v float64, bits int) error {
	return w.sink.Put(Float(v, bits))
}
func (w *writer) WriteDecimal(v *big.Float) error           { return w.sink.Put(Decimal(v)) }
func (w *writer) WriteChar(v rune) error                    { return w.sink.Put(Rune(v)) }
func (w *writer) WriteString(v string) error                { return w.sink.Put(String(v)) }
func (w *writer) WriteBytes(v []byte) error                 { return w.sink.Put(Bytes(v)) }
func (w *writer) WriteTime(v time.Time) error               { return w.sink.Put(Time(v)) }
func (w *writer) WriteDuration(v time.Duration) error       { return w.sink.Put(Duration(v)) }
func (w *writer) WriteArray(src AggregateReader[int]) error { return w.sink.Put(Array(src)) }
func (w *writer) WriteObject(src AggregateReader[string]) error {
	return w.sink.Put(Object(src))
}
func (w *writer) WriteAny(v any) error { return w.sink.Put(ValueOf(v)) }

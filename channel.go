package conduit

import (
	"context"
	"math/big"
	"time"
)

// Key constrains aggregate keys: positional indexes or member names.
type Key interface {
	int | string
}

// Reader is the pull side of a value channel. Exactly one read happens per
// logical value; mixing two different reads on the same position is undefined,
// except that ReadNull only consumes the position when it reports true.
type Reader interface {
	ReadNull() (bool, error)
	ReadBool() (bool, error)
	ReadInt(bits int) (int64, error)
	ReadUint(bits int) (uint64, error)
	ReadFloat(bits int) (float64, error)
	ReadDecimal() (*big.Float, error)
	ReadChar() (rune, error)
	ReadString() (string, error)
	ReadBytes() ([]byte, error)
	ReadTime() (time.Time, error)
	ReadDuration() (time.Duration, error)

	// ReadArray hands the current array to sink, which pulls every element.
	ReadArray(sink AggregateWriter[int]) error
	// ReadObject hands the current object to sink, which pulls every member.
	ReadObject(sink AggregateWriter[string]) error

	// ReadAny returns the current value as a plain Go value.
	ReadAny() (any, error)
	// Transfer pushes the current value to w without interpreting it.
	Transfer(w Writer) error
}

// Writer is the push side of a value channel.
type Writer interface {
	WriteNull() error
	WriteBool(v bool) error
	WriteInt(v int64, bits int) error
	WriteUint(v uint64, bits int) error
	WriteFloat(v float64, bits int) error
	WriteDecimal(v *big.Float) error
	WriteChar(v rune) error
	WriteString(v string) error
	WriteBytes(v []byte) error
	WriteTime(v time.Time) error
	WriteDuration(v time.Duration) error

	// WriteArray consumes every element of src before returning.
	WriteArray(src AggregateReader[int]) error
	// WriteObject consumes every member of src before returning.
	WriteObject(src AggregateReader[string]) error

	// WriteAny pushes an arbitrary Go value.
	WriteAny(v any) error
}

// AggregateReader is a live view over a keyed source.
//
// Keys returns nil for single-pass streams, and Count returns -1 when the
// size is unknown. ReadAll pushes every element into sink; when cur can be
// stopped the transfer may pause and be resumed by another ReadAll call on
// the same adapter with the same cursor.
type AggregateReader[K Key] interface {
	Keys() []K
	Count() int
	At(key K) Reader
	ReadAll(sink AggregateWriter[K], cur *Cursor) error
}

// AggregateWriter is a live view over a keyed destination.
//
// Init prepares an empty destination; a negative capacity means the size is
// unknown. At returns the endpoint for one key: for indexed destinations a key
// equal to the current size appends and a smaller key replaces in place.
type AggregateWriter[K Key] interface {
	Init(capacity int) error
	Keys() []K
	Count() int
	At(key K) Writer
	WriteAll(src AggregateReader[K], cur *Cursor) error
}

// DefaultCapacity is the capacity hint used when an aggregate's size is unknown.
const DefaultCapacity = 3

// keyIndex is the saved position of a key-driven transfer.
type keyIndex int

// ReadAllKeys is the default ReadAll: it walks src.Keys() and transfers each
// member through the per-key channels.
func ReadAllKeys[K Key](src AggregateReader[K], sink AggregateWriter[K], cur *Cursor) error {
	keys := src.Keys()
	start := 0
	if cur.CanBeStopped() {
		if st, ok := cur.PopState(); ok {
			start = int(st.(keyIndex))
		}
	}
	if start == 0 {
		if err := sink.Init(len(keys)); err != nil {
			return err
		}
	}
	for i := start; i < len(keys); i++ {
		if err := src.At(keys[i]).Transfer(sink.At(keys[i])); err != nil {
			return err
		}
		if i+1 < len(keys) && cur.StopRequested() {
			cur.SetState(keyIndex(i + 1))
			return nil
		}
	}
	return nil
}

// WriteAllFrom is the default WriteAll: the source drives the transfer.
func WriteAllFrom[K Key](dst AggregateWriter[K], src AggregateReader[K], cur *Cursor) error {
	return src.ReadAll(dst, cur)
}

// AggregateFunc is a streaming AggregateWriter that accepts keys as they
// arrive. Codec writers use it to emit elements in source order.
type AggregateFunc[K Key] func(key K) Writer

func (f AggregateFunc[K]) Init(int) error { return nil }
func (f AggregateFunc[K]) Keys() []K      { return nil }
func (f AggregateFunc[K]) Count() int     { return -1 }
func (f AggregateFunc[K]) At(key K) Writer {
	return f(key)
}
func (f AggregateFunc[K]) WriteAll(src AggregateReader[K], cur *Cursor) error {
	return src.ReadAll(f, cur)
}

// Stream returns a single-pass AggregateReader. each is called once with a
// yield function; it must call yield for every element in order and fully
// consume the element's Reader before producing the next one. count may be -1.
func Stream[K Key](count int, each func(yield func(key K, r Reader) error) error) AggregateReader[K] {
	return &stream[K]{count: count, each: each}
}

type stream[K Key] struct {
	count int
	each  func(yield func(key K, r Reader) error) error
	done  bool
}

func (s *stream[K]) Keys() []K  { return nil }
func (s *stream[K]) Count() int { return s.count }

func (s *stream[K]) At(K) Reader {
	return ErrReader(newTypeError(ErrUnsupportedType, nil, "random access", "single-pass stream"))
}

// ReadAll runs to completion; a parser stream has no resumable position.
func (s *stream[K]) ReadAll(sink AggregateWriter[K], _ *Cursor) error {
	if s.done {
		return newTypeError(ErrUnsupportedType, nil, "reread", "single-pass stream")
	}
	s.done = true
	if err := sink.Init(s.count); err != nil {
		return err
	}
	return s.each(func(key K, r Reader) error {
		return r.Transfer(sink.At(key))
	})
}

// Contextual is implemented by endpoints that carry a context.
type Contextual interface {
	Context() context.Context
}

// Scoped is implemented by endpoints tagged with a scoped-override id.
type Scoped interface {
	Scope() (any, bool)
}

type scopeKey struct{}

// WithScope returns a context whose endpoints resolve scoped overrides for id.
func WithScope(ctx context.Context, id any) context.Context {
	return context.WithValue(ctx, scopeKey{}, id)
}

// ContextOf returns the context carried by an endpoint, or context.Background.
func ContextOf(endpoint any) context.Context {
	if c, ok := endpoint.(Contextual); ok {
		if ctx := c.Context(); ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

// ScopeOf returns the scoped-override id carried by an endpoint.
func ScopeOf(endpoint any) (any, bool) {
	if s, ok := endpoint.(Scoped); ok {
		return s.Scope()
	}
	if c, ok := endpoint.(Contextual); ok {
		if ctx := c.Context(); ctx != nil {
			id := ctx.Value(scopeKey{})
			return id, id != nil
		}
	}
	return nil, false
}

// Tag attaches a scoped-override id to a Reader.
func Tag(r Reader, id any) Reader {
	return &taggedReader{Reader: r, id: id}
}

// TagWriter attaches a scoped-override id to a Writer.
func TagWriter(w Writer, id any) Writer {
	return &taggedWriter{Writer: w, id: id}
}

type taggedReader struct {
	Reader
	id any
}

func (t *taggedReader) Scope() (any, bool)       { return t.id, true }
func (t *taggedReader) Context() context.Context { return ContextOf(t.Reader) }

type taggedWriter struct {
	Writer
	id any
}

func (t *taggedWriter) Scope() (any, bool)       { return t.id, true }
func (t *taggedWriter) Context() context.Context { return ContextOf(t.Writer) }

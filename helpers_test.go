package conduit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"testing"

	"github.com/zoobzio/conduit"
)

// encodeTree writes v into a plain Go tree.
func encodeTree[T any](t *testing.T, reg *conduit.Registry, v T) any {
	t.Helper()
	var tree any
	if err := conduit.Write(reg, conduit.TreeWriter(&tree), v); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	return tree
}

// decodeTree reads a T out of a plain Go tree.
func decodeTree[T any](t *testing.T, reg *conduit.Registry, tree any) T {
	t.Helper()
	out, err := conduit.Read[T](reg, conduit.TreeReader(tree))
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	return out
}

func roundTrip[T any](t *testing.T, reg *conduit.Registry, v T) T {
	t.Helper()
	return decodeTree[T](t, reg, encodeTree(t, reg, v))
}

// captureArray writes v and returns the array view it pushed, without
// consuming it.
func captureArray[T any](t *testing.T, reg *conduit.Registry, v T) conduit.AggregateReader[int] {
	t.Helper()
	var src conduit.AggregateReader[int]
	w := conduit.NewWriter(context.Background(), conduit.SinkFunc(func(v conduit.Value) error {
		a, err := v.AsArray()
		src = a
		return err
	}))
	if err := conduit.Write(reg, w, v); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	return src
}

// intCollector is an AggregateWriter[int] that appends every element.
type intCollector struct {
	got   []int64
	inits int
}

func (c *intCollector) Init(int) error {
	c.inits++
	return nil
}

func (c *intCollector) Keys() []int { return nil }
func (c *intCollector) Count() int  { return len(c.got) }

func (c *intCollector) At(int) conduit.Writer {
	return conduit.NewWriter(context.Background(), conduit.SinkFunc(func(v conduit.Value) error {
		n, err := v.AsInt(64)
		c.got = append(c.got, n)
		return err
	}))
}

func (c *intCollector) WriteAll(src conduit.AggregateReader[int], cur *conduit.Cursor) error {
	return src.ReadAll(c, cur)
}

// bag is a pointer-receiver Collection.
type bag struct {
	items []int
}

func (b *bag) Len() int { return len(b.items) }

func (b *bag) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, x := range b.items {
			if !yield(x) {
				return
			}
		}
	}
}

func (b *bag) Add(x int) { b.items = append(b.items, x) }
func (b *bag) Clear()    { b.items = nil }

func seqOf(xs ...int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, x := range xs {
			if !yield(x) {
				return
			}
		}
	}
}

func seqStrings(xs ...string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, x := range xs {
			if !yield(x) {
				return
			}
		}
	}
}

func collect(seq iter.Seq[int]) []int {
	var out []int
	for x := range seq {
		out = append(out, x)
	}
	return out
}

// treeCodec renders plain Go trees with encoding/json. Numbers decode as
// int64 when integral, float64 otherwise.
type treeCodec struct {
	contentType string
}

func newTreeCodec() treeCodec { return treeCodec{contentType: "application/x-tree+json"} }

func (c treeCodec) ContentType() string { return c.contentType }

func (c treeCodec) NewReader(ctx context.Context, data []byte) (conduit.Reader, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, err
	}
	return conduit.TreeReaderContext(ctx, normalize(x)), nil
}

func (c treeCodec) NewWriter(ctx context.Context) conduit.Encoder {
	e := &treeEncoder{ctx: ctx}
	e.Writer = conduit.NewWriter(ctx, conduit.SinkFunc(func(v conduit.Value) error {
		e.written = true
		return v.WriteTo(conduit.TreeWriter(&e.tree))
	}))
	return e
}

type treeEncoder struct {
	conduit.Writer
	ctx     context.Context
	tree    any
	written bool
}

func (e *treeEncoder) Context() context.Context { return e.ctx }

func (e *treeEncoder) Bytes() ([]byte, error) {
	if !e.written {
		return nil, errors.New("nothing written")
	}
	return json.Marshal(e.tree)
}

func normalize(x any) any {
	switch t := x.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
	case map[string]any:
		for k, v := range t {
			t[k] = normalize(v)
		}
	}
	return x
}

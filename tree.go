package conduit

import (
	"context"
	"sort"
	"strconv"
)

// TreeReader returns a Reader over a plain Go tree of []any, map[string]any
// and scalars. Object members are visited in sorted key order.
func TreeReader(v any) Reader {
	return TreeReaderContext(context.Background(), v)
}

// TreeReaderContext is TreeReader with every nested Reader carrying ctx, so
// scopes and redirect sinks reach members.
func TreeReaderContext(ctx context.Context, v any) Reader {
	return ValueReader(ctx, treeValue(ctx, v))
}

func treeValue(ctx context.Context, v any) Value {
	switch t := v.(type) {
	case []any:
		return Array(treeArray{items: t, ctx: ctx})
	case map[string]any:
		return Object(newTreeObject(ctx, t))
	}
	return ValueOf(v)
}

// TreeWriter returns a Writer that stores the pushed value into dst as a
// plain Go tree.
func TreeWriter(dst *any) Writer {
	return NewWriter(context.Background(), SinkFunc(func(v Value) error {
		switch v.Kind() {
		case KindArray:
			src, _ := v.AsArray()
			out := make([]any, 0, capacity(src.Count()))
			err := src.ReadAll(AggregateFunc[int](func(i int) Writer {
				if i >= len(out) {
					out = append(out, nil)
					i = len(out) - 1
				}
				return TreeWriter(&out[i])
			}), nil)
			*dst = out
			return err
		case KindObject:
			src, _ := v.AsObject()
			out := make(map[string]any, capacity(src.Count()))
			err := src.ReadAll(AggregateFunc[string](func(k string) Writer {
				return NewWriter(context.Background(), SinkFunc(func(v Value) error {
					x, err := v.AsAny()
					out[k] = x
					return err
				}))
			}), nil)
			*dst = out
			return err
		}
		x, err := v.AsAny()
		*dst = x
		return err
	}))
}

func capacity(n int) int {
	if n < 0 {
		return DefaultCapacity
	}
	return n
}

type treeArray struct {
	items []any
	ctx   context.Context
}

func (a treeArray) Keys() []int {
	keys := make([]int, len(a.items))
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func (a treeArray) Count() int { return len(a.items) }

func (a treeArray) At(i int) Reader {
	if i < 0 || i >= len(a.items) {
		return ErrReader(newMemberError(ErrMissingMember, nil, strconv.Itoa(i)))
	}
	return TreeReaderContext(a.ctx, a.items[i])
}

func (a treeArray) ReadAll(sink AggregateWriter[int], cur *Cursor) error {
	return ReadAllKeys[int](a, sink, cur)
}

type treeObject struct {
	m    map[string]any
	keys []string
	ctx  context.Context
}

func newTreeObject(ctx context.Context, m map[string]any) *treeObject {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &treeObject{m: m, keys: keys, ctx: ctx}
}

func (o *treeObject) Keys() []string { return o.keys }
func (o *treeObject) Count() int     { return len(o.keys) }

func (o *treeObject) At(k string) Reader {
	v, ok := o.m[k]
	if !ok {
		return ErrReader(newMemberError(ErrMissingMember, nil, k))
	}
	return TreeReaderContext(o.ctx, v)
}

func (o *treeObject) ReadAll(sink AggregateWriter[string], cur *Cursor) error {
	return ReadAllKeys[string](o, sink, cur)
}

package conduit

import (
	"reflect"
	"strconv"
)

// listStrategy transcodes slices and fixed-length arrays as arrays.
type listStrategy struct {
	r *Registry
	t reflect.Type
}

func (s listStrategy) ReadValue(rd Reader, v reflect.Value) error {
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	return rd.ReadArray(&listWriter{r: s.r, v: v, ctx: rd})
}

func (s listStrategy) WriteValue(w Writer, v reflect.Value) error {
	if v.Kind() == reflect.Slice && v.IsNil() {
		return w.WriteNull()
	}
	return w.WriteArray(&listReader{r: s.r, v: v, ctx: w})
}

// listReader is the AggregateReader view of a slice or array.
type listReader struct {
	r   *Registry
	v   reflect.Value
	ctx any // endpoint whose context and scope element endpoints inherit
}

func (l *listReader) Keys() []int {
	keys := make([]int, l.v.Len())
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func (l *listReader) Count() int { return l.v.Len() }

func (l *listReader) At(i int) Reader {
	if i < 0 || i >= l.v.Len() {
		return ErrReader(newMemberError(ErrMissingMember, l.v.Type(), strconv.Itoa(i)))
	}
	elem := l.v.Index(i)
	return pullReader(ContextOf(l.ctx), func(w Writer) error {
		return l.r.writeReflect(w, elem)
	})
}

func (l *listReader) ReadAll(sink AggregateWriter[int], cur *Cursor) error {
	n := l.v.Len()
	start := 0
	if cur.CanBeStopped() {
		if st, ok := cur.PopState(); ok {
			start = int(st.(keyIndex))
		}
	}
	if start == 0 {
		if err := sink.Init(n); err != nil {
			return err
		}
	}
	for i := start; i < n; i++ {
		if err := l.r.writeReflect(sink.At(i), l.v.Index(i)); err != nil {
			return err
		}
		if i+1 < n && cur.StopRequested() {
			cur.SetState(keyIndex(i + 1))
			return nil
		}
	}
	return nil
}

// listWriter is the AggregateWriter view of a settable slice or array.
// Index len(slice) appends; a smaller index replaces in place. Arrays cannot grow.
type listWriter struct {
	r   *Registry
	v   reflect.Value
	ctx any
	n   int // elements written into an array since Init
}

func (l *listWriter) Init(capacity int) error {
	if l.v.Kind() == reflect.Array {
		l.v.SetZero()
		l.n = 0
		return nil
	}
	if capacity < 0 {
		capacity = l.r.cfg.defaultCapacity
	}
	l.v.Set(reflect.MakeSlice(l.v.Type(), 0, capacity))
	return nil
}

func (l *listWriter) Keys() []int {
	n := l.Count()
	keys := make([]int, n)
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func (l *listWriter) Count() int {
	if l.v.Kind() == reflect.Array {
		return l.n
	}
	return l.v.Len()
}

func (l *listWriter) At(i int) Writer {
	t := l.v.Type()
	switch {
	case i < 0:
		return ErrWriter(newMemberError(ErrMissingMember, t, strconv.Itoa(i)))
	case l.v.Kind() == reflect.Array:
		if i >= l.v.Len() {
			return ErrWriter(newTypeError(ErrUnsupportedType, t, "append", "fixed-length array is full"))
		}
		if i >= l.n {
			l.n = i + 1
		}
	case i == l.v.Len():
		l.v.Set(reflect.Append(l.v, reflect.Zero(t.Elem())))
	case i > l.v.Len():
		return ErrWriter(newTypeError(ErrUnsupportedType, t, "append", "index "+strconv.Itoa(i)+" past end"))
	}
	return slotWriter(ContextOf(l.ctx), func(rd Reader) error {
		elem := l.v.Index(i)
		elem.SetZero()
		return l.r.readReflect(rd, elem)
	})
}

func (l *listWriter) WriteAll(src AggregateReader[int], cur *Cursor) error {
	return src.ReadAll(l, cur)
}

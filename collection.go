package conduit

import (
	"iter"
	"reflect"
	"strconv"
)

// Collection is the method set recognized as a generic collection: it can
// be counted, enumerated, appended to and cleared, but not indexed.
type Collection[E any] interface {
	Len() int
	All() iter.Seq[E]
	Add(E)
	Clear()
}

// collectionMethods holds the reflected Collection methods of a type.
type collectionMethods struct {
	elem reflect.Type
	len  reflect.Method
	all  reflect.Method
	add  reflect.Method
	clr  reflect.Method
}

func collectionOf(t reflect.Type) (collectionMethods, bool) {
	var m collectionMethods
	if t.Kind() == reflect.Interface {
		return m, false
	}
	var ok bool
	if m.len, ok = t.MethodByName("Len"); !ok || m.len.Type.NumIn() != 1 || m.len.Type.NumOut() != 1 || m.len.Type.Out(0).Kind() != reflect.Int {
		return m, false
	}
	if m.all, ok = t.MethodByName("All"); !ok || m.all.Type.NumIn() != 1 || m.all.Type.NumOut() != 1 {
		return m, false
	}
	if m.elem, ok = isSeqType(m.all.Type.Out(0)); !ok {
		return m, false
	}
	if m.add, ok = t.MethodByName("Add"); !ok || m.add.Type.NumIn() != 2 || m.add.Type.In(1) != m.elem || m.add.Type.NumOut() != 0 {
		return m, false
	}
	if m.clr, ok = t.MethodByName("Clear"); !ok || m.clr.Type.NumIn() != 1 || m.clr.Type.NumOut() != 0 {
		return m, false
	}
	return m, true
}

// mapCollection binds pointer types implementing Collection.
func mapCollection(r *Registry, t reflect.Type) Strategy {
	if t.Kind() != reflect.Pointer {
		return nil
	}
	m, ok := collectionOf(t)
	if !ok {
		return nil
	}
	return collectionStrategy{r: r, t: t, m: m}
}

type collectionStrategy struct {
	r *Registry
	t reflect.Type
	m collectionMethods
}

func (s collectionStrategy) ReadValue(rd Reader, v reflect.Value) error {
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	if v.IsNil() {
		v.Set(reflect.New(s.t.Elem()))
	}
	return rd.ReadArray(&collectionWriter{r: s.r, v: v, m: s.m, ctx: rd})
}

func (s collectionStrategy) WriteValue(w Writer, v reflect.Value) error {
	if v.IsNil() {
		return w.WriteNull()
	}
	n := int(s.m.len.Func.Call([]reflect.Value{v})[0].Int())
	seq := s.m.all.Func.Call([]reflect.Value{v})[0]
	return w.WriteArray(&seqReader{r: s.r, seq: seq, count: n, ctx: w})
}

// collectionWriter appends through Add. In-place replacement is unsupported.
type collectionWriter struct {
	r   *Registry
	v   reflect.Value
	m   collectionMethods
	ctx any
}

func (c *collectionWriter) Init(int) error {
	c.m.clr.Func.Call([]reflect.Value{c.v})
	return nil
}

func (c *collectionWriter) Keys() []int { return nil }

func (c *collectionWriter) Count() int {
	return int(c.m.len.Func.Call([]reflect.Value{c.v})[0].Int())
}

func (c *collectionWriter) At(i int) Writer {
	if i < c.Count() {
		return ErrWriter(newTypeError(ErrUnsupportedType, c.v.Type(), "replace", "collection element "+strconv.Itoa(i)))
	}
	return slotWriter(ContextOf(c.ctx), func(rd Reader) error {
		ev := reflect.New(c.m.elem).Elem()
		if err := c.r.readReflect(rd, ev); err != nil {
			return err
		}
		c.m.add.Func.Call([]reflect.Value{c.v, ev})
		return nil
	})
}

func (c *collectionWriter) WriteAll(src AggregateReader[int], cur *Cursor) error {
	return src.ReadAll(c, cur)
}

package conduit

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

var emptyStructType = reflect.TypeFor[struct{}]()

// mapDictionary binds map[K]V as an object and map[E]struct{} as a set.
func mapDictionary(r *Registry, t reflect.Type) Strategy {
	if t.Kind() != reflect.Map {
		return nil
	}
	if t.Elem() == emptyStructType {
		return setStrategy{r: r, t: t}
	}
	if !isKeyType(t.Key()) {
		return nil
	}
	return mapStrategy{r: r, t: t}
}

func isKeyType(t reflect.Type) bool {
	if reflect.PointerTo(t).Implements(textUnmarshalerType) && t.Implements(textMarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func keyString(k reflect.Value) (string, error) {
	if m, ok := k.Interface().(encoding.TextMarshaler); ok && k.Kind() != reflect.String {
		b, err := m.MarshalText()
		return string(b), err
	}
	switch k.Kind() {
	case reflect.String:
		return k.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", newTypeError(ErrUnsupportedType, k.Type(), "map key", "")
}

func keyValue(t reflect.Type, s string) (reflect.Value, error) {
	k := reflect.New(t).Elem()
	if u, ok := k.Addr().Interface().(encoding.TextUnmarshaler); ok && t.Kind() != reflect.String {
		if err := u.UnmarshalText([]byte(s)); err != nil {
			return k, newRepresentationError(KindString, KindString, err.Error())
		}
		return k, nil
	}
	switch t.Kind() {
	case reflect.String:
		k.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return k, newRepresentationError(KindInt, KindString, strconv.Quote(s))
		}
		k.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return k, newRepresentationError(KindUint, KindString, strconv.Quote(s))
		}
		k.SetUint(n)
	default:
		return k, newTypeError(ErrUnsupportedType, t, "map key", "")
	}
	return k, nil
}

// mapStrategy transcodes a map as an object whose member names are the
// formatted keys.
type mapStrategy struct {
	r *Registry
	t reflect.Type
}

func (s mapStrategy) ReadValue(rd Reader, v reflect.Value) error {
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	return rd.ReadObject(&mapWriter{r: s.r, v: v, ctx: rd})
}

func (s mapStrategy) WriteValue(w Writer, v reflect.Value) error {
	if v.IsNil() {
		return w.WriteNull()
	}
	src, err := newMapReader(s.r, v, w)
	if err != nil {
		return err
	}
	return w.WriteObject(src)
}

// mapReader snapshots the map's keys in sorted order when it is created.
type mapReader struct {
	r    *Registry
	v    reflect.Value
	ctx  any
	keys []string
	vals map[string]reflect.Value
}

func newMapReader(r *Registry, v reflect.Value, ctx any) (*mapReader, error) {
	m := &mapReader{r: r, v: v, ctx: ctx, vals: make(map[string]reflect.Value, v.Len())}
	iter := v.MapRange()
	for iter.Next() {
		k, err := keyString(iter.Key())
		if err != nil {
			return nil, err
		}
		m.keys = append(m.keys, k)
		m.vals[k] = iter.Value()
	}
	sort.Strings(m.keys)
	return m, nil
}

func (m *mapReader) Keys() []string { return m.keys }
func (m *mapReader) Count() int     { return len(m.keys) }

func (m *mapReader) At(k string) Reader {
	ev, ok := m.vals[k]
	if !ok {
		return ErrReader(newMemberError(ErrMissingMember, m.v.Type(), k))
	}
	return pullReader(ContextOf(m.ctx), func(w Writer) error {
		return m.r.writeReflect(w, ev)
	})
}

func (m *mapReader) ReadAll(sink AggregateWriter[string], cur *Cursor) error {
	return ReadAllKeys[string](m, sink, cur)
}

// mapWriter writes members into a settable map. WriteAll replaces the whole
// map: every incoming pair is collected first, then the map is cleared and
// refilled, so a failed or partial transfer never leaves a half-updated map.
type mapWriter struct {
	r   *Registry
	v   reflect.Value
	ctx any
}

func (m *mapWriter) Init(capacity int) error {
	if capacity < 0 {
		capacity = m.r.cfg.defaultCapacity
	}
	m.v.Set(reflect.MakeMapWithSize(m.v.Type(), capacity))
	return nil
}

func (m *mapWriter) Keys() []string {
	keys := make([]string, 0, m.v.Len())
	for _, k := range m.v.MapKeys() {
		if s, err := keyString(k); err == nil {
			keys = append(keys, s)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *mapWriter) Count() int { return m.v.Len() }

func (m *mapWriter) At(k string) Writer {
	t := m.v.Type()
	kv, err := keyValue(t.Key(), k)
	if err != nil {
		return ErrWriter(err)
	}
	return slotWriter(ContextOf(m.ctx), func(rd Reader) error {
		ev := reflect.New(t.Elem()).Elem()
		if err := m.r.readReflect(rd, ev); err != nil {
			return err
		}
		if m.v.IsNil() {
			m.v.Set(reflect.MakeMapWithSize(t, m.r.cfg.defaultCapacity))
		}
		m.v.SetMapIndex(kv, ev)
		return nil
	})
}

// WriteAll ignores cur: a whole-map overwrite always runs to completion.
func (m *mapWriter) WriteAll(src AggregateReader[string], _ *Cursor) error {
	snap := &mapWriter{r: m.r, v: reflect.New(m.v.Type()).Elem(), ctx: m.ctx}
	if err := src.ReadAll(snap, nil); err != nil {
		return err
	}
	if snap.v.IsNil() {
		if err := snap.Init(0); err != nil {
			return err
		}
	}
	if m.v.IsNil() {
		m.v.Set(snap.v)
		return nil
	}
	m.v.Clear()
	iter := snap.v.MapRange()
	for iter.Next() {
		m.v.SetMapIndex(iter.Key(), iter.Value())
	}
	return nil
}

// setStrategy transcodes map[E]struct{} as an array of its elements.
type setStrategy struct {
	r *Registry
	t reflect.Type
}

func (s setStrategy) ReadValue(rd Reader, v reflect.Value) error {
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	return rd.ReadArray(&setWriter{r: s.r, v: v, ctx: rd})
}

func (s setStrategy) WriteValue(w Writer, v reflect.Value) error {
	if v.IsNil() {
		return w.WriteNull()
	}
	keys := v.MapKeys()
	sortValues(keys)
	return w.WriteArray(&listReader{r: s.r, v: valuesSlice(s.t.Key(), keys), ctx: w})
}

// setWriter inserts every element; sets have no positions, so the index is ignored.
type setWriter struct {
	r   *Registry
	v   reflect.Value
	ctx any
}

func (s *setWriter) Init(capacity int) error {
	if capacity < 0 {
		capacity = s.r.cfg.defaultCapacity
	}
	s.v.Set(reflect.MakeMapWithSize(s.v.Type(), capacity))
	return nil
}

func (s *setWriter) Keys() []int { return nil }
func (s *setWriter) Count() int  { return s.v.Len() }

func (s *setWriter) At(int) Writer {
	t := s.v.Type()
	return slotWriter(ContextOf(s.ctx), func(rd Reader) error {
		ev := reflect.New(t.Key()).Elem()
		if err := s.r.readReflect(rd, ev); err != nil {
			return err
		}
		if s.v.IsNil() {
			s.v.Set(reflect.MakeMapWithSize(t, s.r.cfg.defaultCapacity))
		}
		s.v.SetMapIndex(ev, reflect.New(t.Elem()).Elem())
		return nil
	})
}

// WriteAll replaces the set's contents the same way mapWriter does.
func (s *setWriter) WriteAll(src AggregateReader[int], _ *Cursor) error {
	snap := &setWriter{r: s.r, v: reflect.New(s.v.Type()).Elem(), ctx: s.ctx}
	if err := src.ReadAll(snap, nil); err != nil {
		return err
	}
	if snap.v.IsNil() {
		if err := snap.Init(0); err != nil {
			return err
		}
	}
	if s.v.IsNil() {
		s.v.Set(snap.v)
		return nil
	}
	s.v.Clear()
	iter := snap.v.MapRange()
	for iter.Next() {
		s.v.SetMapIndex(iter.Key(), iter.Value())
	}
	return nil
}

func valuesSlice(elem reflect.Type, vals []reflect.Value) reflect.Value {
	out := reflect.MakeSlice(reflect.SliceOf(elem), len(vals), len(vals))
	for i, v := range vals {
		out.Index(i).Set(v)
	}
	return out
}

// sortValues orders set elements so equal sets always write the same array.
func sortValues(vals []reflect.Value) {
	if len(vals) < 2 {
		return
	}
	sort.Slice(vals, func(i, j int) bool {
		a, b := vals[i], vals[j]
		switch a.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return a.Int() < b.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return a.Uint() < b.Uint()
		case reflect.Float32, reflect.Float64:
			return a.Float() < b.Float()
		case reflect.String:
			return a.String() < b.String()
		case reflect.Bool:
			return !a.Bool() && b.Bool()
		}
		return fmt.Sprint(a.Interface()) < fmt.Sprint(b.Interface())
	})
}

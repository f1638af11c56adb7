package conduit

import (
	"iter"
	"reflect"
	"strconv"
)

// isSeqType reports whether t has the shape of iter.Seq[E] and returns E.
func isSeqType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	y := t.In(0)
	if y.Kind() != reflect.Func || y.NumIn() != 1 || y.NumOut() != 1 || y.Out(0).Kind() != reflect.Bool {
		return nil, false
	}
	return y.In(0), true
}

// mapSeq binds single-pass enumerators (iter.Seq[E]).
func mapSeq(r *Registry, t reflect.Type) Strategy {
	elem, ok := isSeqType(t)
	if !ok {
		return nil
	}
	return seqStrategy{r: r, t: t, elem: elem}
}

// seqStrategy writes an enumerator as an array. Reading drains the array into
// a slice and yields a fresh enumerator over it.
type seqStrategy struct {
	r    *Registry
	t    reflect.Type
	elem reflect.Type
}

func (s seqStrategy) ReadValue(rd Reader, v reflect.Value) error {
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	buf := reflect.New(reflect.SliceOf(s.elem)).Elem()
	w := &seqWriter{listWriter: listWriter{r: s.r, v: buf, ctx: rd}}
	if err := rd.ReadArray(w); err != nil {
		return err
	}
	v.Set(sliceSeq(s.t, buf))
	return nil
}

func (s seqStrategy) WriteValue(w Writer, v reflect.Value) error {
	if v.IsNil() {
		return w.WriteNull()
	}
	return w.WriteArray(&seqReader{r: s.r, seq: v, count: -1, ctx: w})
}

// sliceSeq builds a seqType function that yields the elements of buf.
func sliceSeq(seqType reflect.Type, buf reflect.Value) reflect.Value {
	return reflect.MakeFunc(seqType, func(args []reflect.Value) []reflect.Value {
		yield := args[0]
		for i := 0; i < buf.Len(); i++ {
			if !yield.Call([]reflect.Value{buf.Index(i)})[0].Bool() {
				break
			}
		}
		return nil
	})
}

// seqWriter collects an enumerator's elements. Appending is the only
// operation a single-pass destination supports.
type seqWriter struct {
	listWriter
}

func (s *seqWriter) At(i int) Writer {
	if i < s.v.Len() {
		return ErrWriter(newTypeError(ErrUnsupportedType, s.v.Type(), "replace", "enumerator element "+strconv.Itoa(i)))
	}
	return s.listWriter.At(i)
}

func (s *seqWriter) WriteAll(src AggregateReader[int], cur *Cursor) error {
	return src.ReadAll(s, cur)
}

// seqReader streams a single-pass enumerator. Positions are not addressable.
type seqReader struct {
	r     *Registry
	seq   reflect.Value
	count int
	ctx   any
}

// seqState is the saved position of a paused enumerator transfer.
type seqState struct {
	next    func() (reflect.Value, bool)
	stop    func()
	i       int
	pending reflect.Value
	hasNext bool
}

func (s *seqState) release() { s.stop() }

func (s *seqReader) Keys() []int { return nil }
func (s *seqReader) Count() int  { return s.count }

func (s *seqReader) At(i int) Reader {
	return ErrReader(newTypeError(ErrUnsupportedType, s.seq.Type(), "random access", "enumerator element "+strconv.Itoa(i)))
}

func (s *seqReader) ReadAll(sink AggregateWriter[int], cur *Cursor) error {
	var st *seqState
	if cur.CanBeStopped() {
		if saved, ok := cur.PopState(); ok {
			st = saved.(*seqState)
		}
	}
	if st == nil {
		if err := sink.Init(s.count); err != nil {
			return err
		}
		next, stop := iter.Pull(reflectSeq(s.seq))
		st = &seqState{next: next, stop: stop}
	}
	for {
		var elem reflect.Value
		if st.hasNext {
			elem, st.hasNext = st.pending, false
		} else {
			e, ok := st.next()
			if !ok {
				st.stop()
				return nil
			}
			elem = e
		}
		if err := s.r.writeReflect(sink.At(st.i), elem); err != nil {
			st.stop()
			return err
		}
		st.i++
		if cur.StopRequested() {
			e, ok := st.next()
			if !ok {
				st.stop()
				return nil
			}
			st.pending, st.hasNext = e, true
			cur.SetState(st)
			return nil
		}
	}
}

// reflectSeq adapts an iter.Seq-shaped function value to iter.Seq[reflect.Value].
func reflectSeq(fn reflect.Value) iter.Seq[reflect.Value] {
	return func(yield func(reflect.Value) bool) {
		y := reflect.MakeFunc(fn.Type().In(0), func(args []reflect.Value) []reflect.Value {
			return []reflect.Value{reflect.ValueOf(yield(args[0]))}
		})
		fn.Call([]reflect.Value{y})
	}
}

package conduit

import "reflect"

// Strategy is the type-erased read/write strategy for one type. ReadValue
// stores into v, which must be settable; WriteValue pushes v.
type Strategy interface {
	ReadValue(r Reader, v reflect.Value) error
	WriteValue(w Writer, v reflect.Value) error
}

// Binding is the resolved read/write strategy for a closed type T.
type Binding[T any] struct {
	read  func(Reader) (T, error)
	write func(Writer, T) error
}

// NewBinding creates a Binding from a read and a write function.
func NewBinding[T any](read func(Reader) (T, error), write func(Writer, T) error) *Binding[T] {
	return &Binding[T]{read: read, write: write}
}

// Read pulls one T from r.
func (b *Binding[T]) Read(r Reader) (T, error) {
	return b.read(r)
}

// Write pushes v to w.
func (b *Binding[T]) Write(w Writer, v T) error {
	return b.write(w, v)
}

func (b *Binding[T]) ReadValue(r Reader, v reflect.Value) error {
	x, err := b.read(r)
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(&x).Elem())
	return nil
}

func (b *Binding[T]) WriteValue(w Writer, v reflect.Value) error {
	x, _ := v.Interface().(T)
	return b.write(w, x)
}

// bindingOf wraps an erased strategy so generic callers get a typed Binding.
func bindingOf[T any](s Strategy) *Binding[T] {
	return &Binding[T]{
		read: func(r Reader) (T, error) {
			var x T
			err := s.ReadValue(r, reflect.ValueOf(&x).Elem())
			return x, err
		},
		write: func(w Writer, v T) error {
			return s.WriteValue(w, reflect.ValueOf(&v).Elem())
		},
	}
}

// unsupported defers resolution failure to the first read or write.
type unsupported struct {
	t      reflect.Type
	detail string
}

func (u unsupported) ReadValue(Reader, reflect.Value) error {
	return newTypeError(ErrUnsupportedType, u.t, "read", u.detail)
}

func (u unsupported) WriteValue(Writer, reflect.Value) error {
	return newTypeError(ErrUnsupportedType, u.t, "write", u.detail)
}

package conduit

import (
	"encoding"
	"math/big"
	"reflect"
	"strconv"
	"time"
)

// Char is a single character. Plain runes are int32 and travel as integers;
// Char travels through ReadChar/WriteChar.
type Char rune

var (
	reflectTypeType     = reflect.TypeFor[reflect.Type]()
	rowReaderType       = reflect.TypeFor[RowReader]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

func register[T any](r *Registry, b *Binding[T]) {
	r.store(reflect.TypeFor[T](), b, SourceBuiltin)
}

func registerBuiltins(r *Registry) {
	register(r, NewBinding(
		func(rd Reader) (bool, error) { return rd.ReadBool() },
		func(w Writer, v bool) error { return w.WriteBool(v) },
	))
	register(r, intBinding[int](strconv.IntSize))
	register(r, intBinding[int8](8))
	register(r, intBinding[int16](16))
	register(r, intBinding[int32](32))
	register(r, intBinding[int64](64))
	register(r, uintBinding[uint](strconv.IntSize))
	register(r, uintBinding[uint8](8))
	register(r, uintBinding[uint16](16))
	register(r, uintBinding[uint32](32))
	register(r, uintBinding[uint64](64))
	register(r, uintBinding[uintptr](strconv.IntSize))
	register(r, floatBinding[float32](32))
	register(r, floatBinding[float64](64))
	register(r, NewBinding(
		func(rd Reader) (string, error) { return rd.ReadString() },
		func(w Writer, v string) error { return w.WriteString(v) },
	))
	register(r, NewBinding(
		func(rd Reader) (Char, error) {
			c, err := rd.ReadChar()
			return Char(c), err
		},
		func(w Writer, v Char) error { return w.WriteChar(rune(v)) },
	))
	register(r, NewBinding(
		func(rd Reader) ([]byte, error) {
			if null, err := rd.ReadNull(); null || err != nil {
				return nil, err
			}
			return rd.ReadBytes()
		},
		func(w Writer, v []byte) error {
			if v == nil {
				return w.WriteNull()
			}
			return w.WriteBytes(v)
		},
	))
	register(r, NewBinding(
		func(rd Reader) (time.Time, error) { return rd.ReadTime() },
		func(w Writer, v time.Time) error { return w.WriteTime(v) },
	))
	register(r, NewBinding(
		func(rd Reader) (time.Duration, error) { return rd.ReadDuration() },
		func(w Writer, v time.Duration) error { return w.WriteDuration(v) },
	))
	register(r, NewBinding(
		func(rd Reader) (*big.Float, error) {
			if null, err := rd.ReadNull(); null || err != nil {
				return nil, err
			}
			return rd.ReadDecimal()
		},
		func(w Writer, v *big.Float) error {
			if v == nil {
				return w.WriteNull()
			}
			return w.WriteDecimal(v)
		},
	))
	register(r, NewBinding(
		func(rd Reader) (any, error) { return rd.ReadAny() },
		func(w Writer, v any) error {
			if v == nil {
				return w.WriteNull()
			}
			return r.writeReflect(w, reflect.ValueOf(v))
		},
	))
	register(r, tableBinding(r))
	register(r, rowBinding(r))
	register(r, redirectBinding[int]())
	register(r, redirectBinding[string]())
}

func intBinding[T ~int | ~int8 | ~int16 | ~int32 | ~int64](bits int) *Binding[T] {
	return NewBinding(
		func(rd Reader) (T, error) {
			n, err := rd.ReadInt(bits)
			return T(n), err
		},
		func(w Writer, v T) error { return w.WriteInt(int64(v), bits) },
	)
}

func uintBinding[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr](bits int) *Binding[T] {
	return NewBinding(
		func(rd Reader) (T, error) {
			n, err := rd.ReadUint(bits)
			return T(n), err
		},
		func(w Writer, v T) error { return w.WriteUint(uint64(v), bits) },
	)
}

func floatBinding[T ~float32 | ~float64](bits int) *Binding[T] {
	return NewBinding(
		func(rd Reader) (T, error) {
			f, err := rd.ReadFloat(bits)
			return T(f), err
		},
		func(w Writer, v T) error { return w.WriteFloat(float64(v), bits) },
	)
}

// builtin applies the structural rules in fixed priority order.
func (r *Registry) builtin(t reflect.Type) Strategy {
	switch {
	case t.Implements(reflectTypeType):
		return typeStrategy{r: r}
	case t.Implements(rowReaderType):
		return rowsStrategy{r: r, t: t}
	case isEnum(t):
		return enumStrategy{t: t}
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return bytesStrategy{t: t}
	case t.Kind() == reflect.Slice || t.Kind() == reflect.Array:
		return listStrategy{r: r, t: t}
	case t.Kind() == reflect.Pointer:
		return ptrStrategy{r: r, t: t}
	case t.Kind() == reflect.Interface || isFormattable(t):
		return unknownStrategy{r: r, t: t}
	case isPrimitive(t.Kind()):
		return kindStrategy{t: t}
	case t.Kind() == reflect.Struct:
		return objectStrategy{r: r, t: t}
	}
	return nil
}

func isPrimitive(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// kindStrategy handles named primitive types by their underlying kind.
type kindStrategy struct {
	t reflect.Type
}

func (s kindStrategy) ReadValue(rd Reader, v reflect.Value) error {
	switch s.t.Kind() {
	case reflect.Bool:
		b, err := rd.ReadBool()
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.String:
		str, err := rd.ReadString()
		if err != nil {
			return err
		}
		v.SetString(str)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := rd.ReadInt(s.t.Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := rd.ReadUint(s.t.Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := rd.ReadFloat(s.t.Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	default:
		return newTypeError(ErrUnsupportedType, s.t, "read", "")
	}
	return nil
}

func (s kindStrategy) WriteValue(w Writer, v reflect.Value) error {
	switch s.t.Kind() {
	case reflect.Bool:
		return w.WriteBool(v.Bool())
	case reflect.String:
		return w.WriteString(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return w.WriteInt(v.Int(), s.t.Bits())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return w.WriteUint(v.Uint(), s.t.Bits())
	case reflect.Float32, reflect.Float64:
		return w.WriteFloat(v.Float(), s.t.Bits())
	}
	return newTypeError(ErrUnsupportedType, s.t, "write", "")
}

// bytesStrategy handles named byte slices.
type bytesStrategy struct {
	t reflect.Type
}

func (s bytesStrategy) ReadValue(rd Reader, v reflect.Value) error {
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	b, err := rd.ReadBytes()
	if err != nil {
		return err
	}
	v.SetBytes(b)
	return nil
}

func (s bytesStrategy) WriteValue(w Writer, v reflect.Value) error {
	if v.IsNil() {
		return w.WriteNull()
	}
	return w.WriteBytes(v.Bytes())
}

// ptrStrategy is the nullable-of-T rule: nil writes null, null reads nil.
type ptrStrategy struct {
	r *Registry
	t reflect.Type
}

func (s ptrStrategy) ReadValue(rd Reader, v reflect.Value) error {
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	if v.IsNil() {
		v.Set(reflect.New(s.t.Elem()))
	}
	return s.r.readReflect(rd, v.Elem())
}

func (s ptrStrategy) WriteValue(w Writer, v reflect.Value) error {
	if v.IsNil() {
		return w.WriteNull()
	}
	return s.r.writeReflect(w, v.Elem())
}

// typeStrategy transcodes reflect.Type values by name. Reading resolves
// names the registry has seen or that were registered with RegisterType.
type typeStrategy struct {
	r *Registry
}

func (s typeStrategy) ReadValue(rd Reader, v reflect.Value) error {
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	name, err := rd.ReadString()
	if err != nil {
		return err
	}
	t, ok := s.r.names.Load(name)
	if !ok {
		return newTypeError(ErrUnsupportedType, nil, "read", "unknown type name "+strconv.Quote(name))
	}
	v.Set(reflect.ValueOf(t.(reflect.Type)))
	return nil
}

func (s typeStrategy) WriteValue(w Writer, v reflect.Value) error {
	if v.IsNil() {
		return w.WriteNull()
	}
	t, _ := v.Interface().(reflect.Type)
	return w.WriteString(t.String())
}

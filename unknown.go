package conduit

import (
	"encoding"
	"math"
	"reflect"
)

// isEnum matches named integer types with a text form in both directions.
// A type that can only marshal text travels as its integer.
func isEnum(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return false
	}
	return t.PkgPath() != "" && isFormattable(t)
}

// isFormattable matches concrete types that format themselves as text.
func isFormattable(t reflect.Type) bool {
	return t.Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalerType)
}

// enumStrategy writes an enum by its text form. Reading accepts the text
// form or the underlying integer.
type enumStrategy struct {
	t reflect.Type
}

func (s enumStrategy) WriteValue(w Writer, v reflect.Value) error {
	text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return err
	}
	return w.WriteString(string(text))
}

func (s enumStrategy) ReadValue(rd Reader, v reflect.Value) error {
	x, err := rd.ReadAny()
	if err != nil {
		return err
	}
	switch n := x.(type) {
	case string:
		u, ok := v.Addr().Interface().(encoding.TextUnmarshaler)
		if !ok {
			return newTypeError(ErrUnsupportedType, s.t, "read", "enum has no text decoder")
		}
		if err := u.UnmarshalText([]byte(n)); err != nil {
			return newRepresentationError(KindInt, KindString, err.Error())
		}
		return nil
	case int64:
		return setInteger(v, n, 0, false)
	case uint64:
		return setInteger(v, 0, n, true)
	case float64:
		if n != math.Trunc(n) {
			return newRepresentationError(KindInt, KindFloat, "")
		}
		return setInteger(v, int64(n), uint64(n), n >= 0)
	}
	return newRepresentationError(KindInt, ValueOf(x).Kind(), "")
}

func setInteger(v reflect.Value, i int64, u uint64, unsigned bool) error {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !unsigned && i < 0 {
			return newRepresentationError(KindUint, KindInt, "negative")
		}
		if !unsigned {
			u = uint64(i)
		}
		if v.OverflowUint(u) {
			return newRepresentationError(KindUint, KindUint, "overflow")
		}
		v.SetUint(u)
	default:
		if unsigned {
			if u > math.MaxInt64 {
				return newRepresentationError(KindInt, KindUint, "overflow")
			}
			i = int64(u)
		}
		if v.OverflowInt(i) {
			return newRepresentationError(KindInt, KindInt, "overflow")
		}
		v.SetInt(i)
	}
	return nil
}

// unknownStrategy is the permissive adapter for interfaces and formattable
// types. It probes for a narrower match on every call and only reports
// ErrUnsupportedType once every probe failed.
type unknownStrategy struct {
	r *Registry
	t reflect.Type
}

func (s unknownStrategy) WriteValue(w Writer, v reflect.Value) error {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return w.WriteNull()
		}
		dyn := v.Elem()
		return s.r.writeReflect(w, dyn)
	}
	if m, ok := v.Interface().(encoding.TextMarshaler); ok {
		text, err := m.MarshalText()
		if err != nil {
			return err
		}
		return w.WriteString(string(text))
	}
	return newTypeError(ErrUnsupportedType, s.t, "write", "no text form")
}

func (s unknownStrategy) ReadValue(rd Reader, v reflect.Value) error {
	if null, err := rd.ReadNull(); err != nil {
		return err
	} else if null {
		v.SetZero()
		return nil
	}
	if s.t.Kind() != reflect.Interface {
		text, err := rd.ReadString()
		if err != nil {
			return err
		}
		u := v.Addr().Interface().(encoding.TextUnmarshaler)
		if err := u.UnmarshalText([]byte(text)); err != nil {
			return newRepresentationError(KindString, KindString, err.Error())
		}
		return nil
	}
	x, err := rd.ReadAny()
	if err != nil {
		return err
	}
	xv := reflect.ValueOf(x)
	if xv.Type().AssignableTo(s.t) {
		v.Set(xv)
		return nil
	}
	// A narrower type that satisfies the interface may be reachable through
	// a pointer, e.g. *T for a text-decodable T.
	if pt := reflect.PointerTo(xv.Type()); pt.Implements(s.t) {
		p := reflect.New(xv.Type())
		p.Elem().Set(xv)
		v.Set(p)
		return nil
	}
	return newTypeError(ErrUnsupportedType, s.t, "read", "no narrower type matches "+xv.Type().String())
}

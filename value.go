package conduit

import (
	"context"
	"encoding/base64"
	"math"
	"math/big"
	"strconv"
	"time"
	"unicode/utf8"
)

// Kind identifies the shape of a single channel value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindNumber // numeric text whose exact subtype is not yet known
	KindDecimal
	KindChar
	KindString
	KindBytes
	KindTime
	KindDuration
	KindArray
	KindObject
	KindAny
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindUint:     "uint",
	KindFloat:    "float",
	KindNumber:   "number",
	KindDecimal:  "decimal",
	KindChar:     "char",
	KindString:   "string",
	KindBytes:    "bytes",
	KindTime:     "time",
	KindDuration: "duration",
	KindArray:    "array",
	KindObject:   "object",
	KindAny:      "any",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value carries one logical channel value between a Source or Sink and the
// Reader/Writer built over it. Scalars are stored inline; arrays and objects
// are live aggregate views, never materialized trees.
type Value struct {
	kind Kind
	bits uint8
	n    uint64
	s    string
	ref  any
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.n = 1
	}
	return v
}

// Int returns a signed integer value of the given width.
func Int(i int64, bits int) Value {
	return Value{kind: KindInt, bits: uint8(bits), n: uint64(i)}
}

// Uint returns an unsigned integer value of the given width.
func Uint(u uint64, bits int) Value {
	return Value{kind: KindUint, bits: uint8(bits), n: u}
}

// Float returns a floating point value of the given width.
func Float(f float64, bits int) Value {
	return Value{kind: KindFloat, bits: uint8(bits), n: math.Float64bits(f)}
}

// Number returns a numeric value kept in its textual form.
func Number(text string) Value {
	return Value{kind: KindNumber, s: text}
}

// Decimal returns an arbitrary precision decimal value. A nil d is null.
func Decimal(d *big.Float) Value {
	if d == nil {
		return Null()
	}
	return Value{kind: KindDecimal, ref: d}
}

// Rune returns a single character value.
func Rune(r rune) Value {
	return Value{kind: KindChar, n: uint64(r)}
}

// String returns a string value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Bytes returns a byte string value. A nil b is null.
func Bytes(b []byte) Value {
	if b == nil {
		return Null()
	}
	return Value{kind: KindBytes, ref: b}
}

// Time returns a timestamp value.
func Time(t time.Time) Value {
	return Value{kind: KindTime, ref: t}
}

// Duration returns a time-span value.
func Duration(d time.Duration) Value {
	return Value{kind: KindDuration, n: uint64(d)}
}

// Array wraps an aggregate source of indexed elements.
func Array(src AggregateReader[int]) Value {
	return Value{kind: KindArray, ref: src}
}

// Object wraps an aggregate source of named members.
func Object(src AggregateReader[string]) Value {
	return Value{kind: KindObject, ref: src}
}

// Any carries an arbitrary Go value through the generic escape hatch.
func Any(x any) Value {
	if x == nil {
		return Null()
	}
	return Value{kind: KindAny, ref: x}
}

// ValueOf normalizes a plain Go value into a Value. Trees of []any and
// map[string]any become array and object views.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t), strconv.IntSize)
	case int8:
		return Int(int64(t), 8)
	case int16:
		return Int(int64(t), 16)
	case int32:
		return Int(int64(t), 32)
	case int64:
		return Int(t, 64)
	case uint:
		return Uint(uint64(t), strconv.IntSize)
	case uint8:
		return Uint(uint64(t), 8)
	case uint16:
		return Uint(uint64(t), 16)
	case uint32:
		return Uint(uint64(t), 32)
	case uint64:
		return Uint(t, 64)
	case float32:
		return Float(float64(t), 32)
	case float64:
		return Float(t, 64)
	case *big.Float:
		return Decimal(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case time.Time:
		return Time(t)
	case time.Duration:
		return Duration(t)
	case []any:
		return Array(treeArray{items: t, ctx: context.Background()})
	case map[string]any:
		return Object(newTreeObject(context.Background(), t))
	case AggregateReader[int]:
		return Array(t)
	case AggregateReader[string]:
		return Object(t)
	}
	return Any(x)
}

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// Bits reports the declared width of an Int, Uint or Float value, 0 if unknown.
func (v Value) Bits() int { return int(v.bits) }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) fail(want Kind, detail string) error {
	return newRepresentationError(want, v.kind, detail)
}

// AsBool coerces v to a boolean.
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.n == 1, nil
	case KindString:
		b, err := strconv.ParseBool(v.s)
		if err != nil {
			return false, v.fail(KindBool, strconv.Quote(v.s))
		}
		return b, nil
	}
	return false, v.fail(KindBool, "")
}

// AsInt coerces v to a signed integer that fits in bits.
func (v Value) AsInt(bits int) (int64, error) {
	var i int64
	switch v.kind {
	case KindInt, KindDuration:
		i = int64(v.n)
	case KindChar:
		i = int64(rune(v.n))
	case KindUint:
		if v.n > math.MaxInt64 {
			return 0, v.fail(KindInt, "overflow")
		}
		i = int64(v.n)
	case KindFloat:
		f := math.Float64frombits(v.n)
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, v.fail(KindInt, strconv.FormatFloat(f, 'g', -1, 64))
		}
		i = int64(f)
	case KindNumber, KindString:
		n, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(v.s, 64)
			if ferr != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
				return 0, v.fail(KindInt, strconv.Quote(v.s))
			}
			n = int64(f)
		}
		i = n
	case KindDecimal:
		d := v.ref.(*big.Float)
		n, acc := d.Int64()
		if !d.IsInt() || acc != big.Exact {
			return 0, v.fail(KindInt, d.Text('g', -1))
		}
		i = n
	default:
		return 0, v.fail(KindInt, "")
	}
	if !fitsInt(i, bits) {
		return 0, v.fail(KindInt, "overflows int"+strconv.Itoa(bits))
	}
	return i, nil
}

// AsUint coerces v to an unsigned integer that fits in bits.
func (v Value) AsUint(bits int) (uint64, error) {
	var u uint64
	switch v.kind {
	case KindUint:
		u = v.n
	case KindInt, KindDuration, KindChar:
		i := int64(v.n)
		if v.kind == KindChar {
			i = int64(rune(v.n))
		}
		if i < 0 {
			return 0, v.fail(KindUint, "negative")
		}
		u = uint64(i)
	case KindFloat:
		f := math.Float64frombits(v.n)
		if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
			return 0, v.fail(KindUint, strconv.FormatFloat(f, 'g', -1, 64))
		}
		u = uint64(f)
	case KindNumber, KindString:
		n, err := strconv.ParseUint(v.s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(v.s, 64)
			if ferr != nil || f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 {
				return 0, v.fail(KindUint, strconv.Quote(v.s))
			}
			n = uint64(f)
		}
		u = n
	case KindDecimal:
		d := v.ref.(*big.Float)
		n, acc := d.Uint64()
		if !d.IsInt() || acc != big.Exact {
			return 0, v.fail(KindUint, d.Text('g', -1))
		}
		u = n
	default:
		return 0, v.fail(KindUint, "")
	}
	if bits < 64 && u > 1<<uint(bits)-1 {
		return 0, v.fail(KindUint, "overflows uint"+strconv.Itoa(bits))
	}
	return u, nil
}

// AsFloat coerces v to a floating point number representable in bits.
func (v Value) AsFloat(bits int) (float64, error) {
	var f float64
	switch v.kind {
	case KindFloat:
		f = math.Float64frombits(v.n)
	case KindInt:
		f = float64(int64(v.n))
	case KindUint:
		f = float64(v.n)
	case KindNumber, KindString:
		p, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0, v.fail(KindFloat, strconv.Quote(v.s))
		}
		f = p
	case KindDecimal:
		f, _ = v.ref.(*big.Float).Float64()
	default:
		return 0, v.fail(KindFloat, "")
	}
	if bits == 32 && !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
		return 0, v.fail(KindFloat, "overflows float32")
	}
	return f, nil
}

// AsDecimal coerces v to an arbitrary precision decimal.
func (v Value) AsDecimal() (*big.Float, error) {
	switch v.kind {
	case KindDecimal:
		return new(big.Float).Copy(v.ref.(*big.Float)), nil
	case KindInt:
		return new(big.Float).SetInt64(int64(v.n)), nil
	case KindUint:
		return new(big.Float).SetUint64(v.n), nil
	case KindFloat:
		f := math.Float64frombits(v.n)
		if math.IsNaN(f) {
			return nil, v.fail(KindDecimal, "NaN")
		}
		return new(big.Float).SetFloat64(f), nil
	case KindNumber, KindString:
		d, ok := new(big.Float).SetString(v.s)
		if !ok {
			return nil, v.fail(KindDecimal, strconv.Quote(v.s))
		}
		return d, nil
	}
	return nil, v.fail(KindDecimal, "")
}

// AsChar coerces v to a single character.
func (v Value) AsChar() (rune, error) {
	switch v.kind {
	case KindChar:
		return rune(v.n), nil
	case KindString:
		r, size := utf8.DecodeRuneInString(v.s)
		if size == 0 || size != len(v.s) || r == utf8.RuneError {
			return 0, v.fail(KindChar, strconv.Quote(v.s))
		}
		return r, nil
	case KindInt, KindUint:
		if v.n > utf8.MaxRune {
			return 0, v.fail(KindChar, "out of range")
		}
		return rune(v.n), nil
	}
	return 0, v.fail(KindChar, "")
}

// AsString coerces v to a string. Scalars format to their canonical text.
func (v Value) AsString() (string, error) {
	switch v.kind {
	case KindString, KindNumber:
		return v.s, nil
	case KindChar:
		return string(rune(v.n)), nil
	case KindBool:
		return strconv.FormatBool(v.n == 1), nil
	case KindInt:
		return strconv.FormatInt(int64(v.n), 10), nil
	case KindUint:
		return strconv.FormatUint(v.n, 10), nil
	case KindFloat:
		bits := int(v.bits)
		if bits != 32 {
			bits = 64
		}
		return strconv.FormatFloat(math.Float64frombits(v.n), 'g', -1, bits), nil
	case KindDecimal:
		return v.ref.(*big.Float).Text('g', -1), nil
	case KindBytes:
		return base64.StdEncoding.EncodeToString(v.ref.([]byte)), nil
	case KindTime:
		return v.ref.(time.Time).Format(time.RFC3339Nano), nil
	case KindDuration:
		return time.Duration(v.n).String(), nil
	}
	return "", v.fail(KindString, "")
}

// AsBytes coerces v to a byte string. Strings are decoded as standard base64.
func (v Value) AsBytes() ([]byte, error) {
	switch v.kind {
	case KindBytes:
		return v.ref.([]byte), nil
	case KindString:
		b, err := base64.StdEncoding.DecodeString(v.s)
		if err != nil {
			return nil, v.fail(KindBytes, err.Error())
		}
		return b, nil
	}
	return nil, v.fail(KindBytes, "")
}

// AsTime coerces v to a timestamp. Strings are parsed as RFC 3339.
func (v Value) AsTime() (time.Time, error) {
	switch v.kind {
	case KindTime:
		return v.ref.(time.Time), nil
	case KindString:
		t, err := time.Parse(time.RFC3339Nano, v.s)
		if err != nil {
			return time.Time{}, v.fail(KindTime, strconv.Quote(v.s))
		}
		return t, nil
	}
	return time.Time{}, v.fail(KindTime, "")
}

// AsDuration coerces v to a time span. Integers are nanoseconds; strings use
// time.ParseDuration syntax.
func (v Value) AsDuration() (time.Duration, error) {
	switch v.kind {
	case KindDuration:
		return time.Duration(int64(v.n)), nil
	case KindInt, KindUint, KindNumber:
		i, err := v.AsInt(64)
		if err != nil {
			return 0, v.fail(KindDuration, "")
		}
		return time.Duration(i), nil
	case KindString:
		d, err := time.ParseDuration(v.s)
		if err != nil {
			return 0, v.fail(KindDuration, strconv.Quote(v.s))
		}
		return d, nil
	}
	return 0, v.fail(KindDuration, "")
}

// AsArray returns the aggregate view of an array value.
func (v Value) AsArray() (AggregateReader[int], error) {
	switch v.kind {
	case KindArray:
		return v.ref.(AggregateReader[int]), nil
	case KindAny:
		if a, ok := v.ref.([]any); ok {
			return treeArray{items: a, ctx: context.Background()}, nil
		}
	}
	return nil, v.fail(KindArray, "")
}

// AsObject returns the aggregate view of an object value.
func (v Value) AsObject() (AggregateReader[string], error) {
	switch v.kind {
	case KindObject:
		return v.ref.(AggregateReader[string]), nil
	case KindAny:
		if m, ok := v.ref.(map[string]any); ok {
			return newTreeObject(context.Background(), m), nil
		}
	}
	return nil, v.fail(KindObject, "")
}

// AsAny returns v as a plain Go value. Arrays and objects are drained into
// []any and map[string]any. Numbers become int64 when integral and float64
// otherwise, so the exact numeric subtype is lost.
func (v Value) AsAny() (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.n == 1, nil
	case KindInt:
		return int64(v.n), nil
	case KindUint:
		return v.n, nil
	case KindFloat:
		return math.Float64frombits(v.n), nil
	case KindNumber:
		if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return nil, v.fail(KindNumber, strconv.Quote(v.s))
		}
		return f, nil
	case KindChar:
		return rune(v.n), nil
	case KindString:
		return v.s, nil
	case KindDuration:
		return time.Duration(int64(v.n)), nil
	case KindDecimal, KindBytes, KindTime, KindAny:
		return v.ref, nil
	case KindArray, KindObject:
		var out any
		if err := v.WriteTo(TreeWriter(&out)); err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, v.fail(KindAny, "")
}

// WriteTo replays v as exactly one push on w.
func (v Value) WriteTo(w Writer) error {
	switch v.kind {
	case KindNull:
		return w.WriteNull()
	case KindBool:
		return w.WriteBool(v.n == 1)
	case KindInt:
		return w.WriteInt(int64(v.n), v.width())
	case KindUint:
		return w.WriteUint(v.n, v.width())
	case KindFloat:
		return w.WriteFloat(math.Float64frombits(v.n), v.width())
	case KindNumber:
		if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return w.WriteInt(i, 64)
		}
		if u, err := strconv.ParseUint(v.s, 10, 64); err == nil {
			return w.WriteUint(u, 64)
		}
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return w.WriteFloat(f, 64)
		}
		return w.WriteString(v.s)
	case KindDecimal:
		return w.WriteDecimal(v.ref.(*big.Float))
	case KindChar:
		return w.WriteChar(rune(v.n))
	case KindString:
		return w.WriteString(v.s)
	case KindBytes:
		return w.WriteBytes(v.ref.([]byte))
	case KindTime:
		return w.WriteTime(v.ref.(time.Time))
	case KindDuration:
		return w.WriteDuration(time.Duration(int64(v.n)))
	case KindArray:
		return w.WriteArray(v.ref.(AggregateReader[int]))
	case KindObject:
		return w.WriteObject(v.ref.(AggregateReader[string]))
	}
	return w.WriteAny(v.ref)
}

func (v Value) width() int {
	if v.bits == 0 {
		return 64
	}
	return int(v.bits)
}

func fitsInt(i int64, bits int) bool {
	if bits <= 0 || bits >= 64 {
		return true
	}
	lim := int64(1) << uint(bits-1)
	return i >= -lim && i < lim
}

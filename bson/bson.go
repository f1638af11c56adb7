// Package bson provides a BSON codec implementation.
package bson

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/zoobzio/conduit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ContentType is the MIME type for BSON.
const ContentType = "application/bson"

// ErrNotDocument is returned when the root value is not an object. BSON
// documents are always objects at the top level.
var ErrNotDocument = errors.New("bson: root value must be a document")

// bsonCodec implements conduit.Codec for BSON.
type bsonCodec struct{}

// New returns a BSON codec.
func New() conduit.Codec {
	return &bsonCodec{}
}

// ContentType returns the MIME type for BSON.
func (c *bsonCodec) ContentType() string {
	return ContentType
}

// NewReader validates data as one BSON document and returns a Reader over it.
func (c *bsonCodec) NewReader(ctx context.Context, data []byte) (conduit.Reader, error) {
	raw := bson.Raw(data)
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	if n := binary.LittleEndian.Uint32(data[:4]); int(n) != len(data) {
		return nil, fmt.Errorf("bson: %d trailing bytes after document", len(data)-int(n))
	}
	doc, err := newDocReader(ctx, raw)
	if err != nil {
		return nil, err
	}
	return conduit.ValueReader(ctx, conduit.Object(doc)), nil
}

// NewWriter returns an Encoder that marshals one document.
func (c *bsonCodec) NewWriter(ctx context.Context) conduit.Encoder {
	e := &encoder{ctx: ctx}
	e.Writer = conduit.NewWriter(ctx, conduit.SinkFunc(func(v conduit.Value) error {
		if v.Kind() != conduit.KindObject {
			return ErrNotDocument
		}
		x, err := toBSON(ctx, v)
		e.root, e.written = x, true
		return err
	}))
	return e
}

type encoder struct {
	conduit.Writer
	ctx     context.Context
	root    any
	written bool
}

func (e *encoder) Context() context.Context { return e.ctx }

// Bytes marshals the document.
func (e *encoder) Bytes() ([]byte, error) {
	if !e.written {
		return nil, errors.New("bson: no value written")
	}
	return bson.Marshal(e.root)
}

type docReader struct {
	ctx   context.Context
	keys  []string
	elems map[string]bson.RawValue
}

func newDocReader(ctx context.Context, raw bson.Raw) (*docReader, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, err
	}
	d := &docReader{ctx: ctx, keys: make([]string, 0, len(elems)), elems: make(map[string]bson.RawValue, len(elems))}
	for _, el := range elems {
		k := el.Key()
		if _, dup := d.elems[k]; dup {
			return nil, fmt.Errorf("bson: duplicate key %q", k)
		}
		d.keys = append(d.keys, k)
		d.elems[k] = el.Value()
	}
	return d, nil
}

func (d *docReader) Keys() []string { return d.keys }
func (d *docReader) Count() int     { return len(d.keys) }

func (d *docReader) At(k string) conduit.Reader {
	rv, ok := d.elems[k]
	if !ok {
		return conduit.ErrReader(fmt.Errorf("bson: key %q: %w", k, conduit.ErrMissingMember))
	}
	return rawReader(d.ctx, rv)
}

func (d *docReader) ReadAll(sink conduit.AggregateWriter[string], cur *conduit.Cursor) error {
	return conduit.ReadAllKeys[string](d, sink, cur)
}

type arrayReader struct {
	ctx  context.Context
	vals []bson.RawValue
}

func (a *arrayReader) Keys() []int {
	keys := make([]int, len(a.vals))
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func (a *arrayReader) Count() int { return len(a.vals) }

func (a *arrayReader) At(i int) conduit.Reader {
	if i < 0 || i >= len(a.vals) {
		return conduit.ErrReader(fmt.Errorf("bson: index %d: %w", i, conduit.ErrMissingMember))
	}
	return rawReader(a.ctx, a.vals[i])
}

func (a *arrayReader) ReadAll(sink conduit.AggregateWriter[int], cur *conduit.Cursor) error {
	return conduit.ReadAllKeys[int](a, sink, cur)
}

func rawReader(ctx context.Context, rv bson.RawValue) conduit.Reader {
	v, err := rawValue(ctx, rv)
	if err != nil {
		return conduit.ErrReader(err)
	}
	return conduit.ValueReader(ctx, v)
}

func rawValue(ctx context.Context, rv bson.RawValue) (conduit.Value, error) {
	switch rv.Type {
	case bson.TypeNull, bson.TypeUndefined:
		return conduit.Null(), nil
	case bson.TypeBoolean:
		return conduit.Bool(rv.Boolean()), nil
	case bson.TypeInt32:
		return conduit.Int(int64(rv.Int32()), 32), nil
	case bson.TypeInt64:
		return conduit.Int(rv.Int64(), 64), nil
	case bson.TypeDouble:
		return conduit.Float(rv.Double(), 64), nil
	case bson.TypeDecimal128:
		return conduit.Number(rv.Decimal128().String()), nil
	case bson.TypeString:
		return conduit.String(rv.StringValue()), nil
	case bson.TypeSymbol:
		return conduit.String(rv.Symbol()), nil
	case bson.TypeObjectID:
		return conduit.String(rv.ObjectID().Hex()), nil
	case bson.TypeBinary:
		_, b := rv.Binary()
		return conduit.Bytes(b), nil
	case bson.TypeDateTime:
		return conduit.Time(time.UnixMilli(rv.DateTime()).UTC()), nil
	case bson.TypeTimestamp:
		t, _ := rv.Timestamp()
		return conduit.Time(time.Unix(int64(t), 0).UTC()), nil
	case bson.TypeEmbeddedDocument:
		doc, err := newDocReader(ctx, rv.Document())
		if err != nil {
			return conduit.Value{}, err
		}
		return conduit.Object(doc), nil
	case bson.TypeArray:
		vals, err := rv.Array().Values()
		if err != nil {
			return conduit.Value{}, err
		}
		return conduit.Array(&arrayReader{ctx: ctx, vals: vals}), nil
	}
	return conduit.Value{}, fmt.Errorf("bson: unsupported element type %s", rv.Type)
}

func toBSON(ctx context.Context, v conduit.Value) (any, error) {
	switch v.Kind() {
	case conduit.KindNull:
		return nil, nil
	case conduit.KindBool:
		return v.AsBool()
	case conduit.KindInt:
		i, _ := v.AsInt(64)
		if v.Bits() > 0 && v.Bits() <= 32 {
			return int32(i), nil
		}
		return i, nil
	case conduit.KindUint:
		u, _ := v.AsUint(64)
		if u <= math.MaxInt64 {
			return int64(u), nil
		}
		return primitive.ParseDecimal128(strconv.FormatUint(u, 10))
	case conduit.KindFloat:
		return v.AsFloat(64)
	case conduit.KindNumber:
		s, _ := v.AsString()
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		return primitive.ParseDecimal128(s)
	case conduit.KindDecimal:
		s, _ := v.AsString()
		return primitive.ParseDecimal128(s)
	case conduit.KindChar, conduit.KindString:
		return v.AsString()
	case conduit.KindBytes:
		b, _ := v.AsBytes()
		return primitive.Binary{Data: b}, nil
	case conduit.KindTime:
		t, _ := v.AsTime()
		return primitive.NewDateTimeFromTime(t), nil
	case conduit.KindDuration:
		d, _ := v.AsDuration()
		return int64(d), nil
	case conduit.KindArray:
		src, _ := v.AsArray()
		arr := bson.A{}
		err := src.ReadAll(conduit.AggregateFunc[int](func(i int) conduit.Writer {
			return conduit.NewWriter(ctx, conduit.SinkFunc(func(v conduit.Value) error {
				x, err := toBSON(ctx, v)
				if i < len(arr) {
					arr[i] = x
				} else {
					arr = append(arr, x)
				}
				return err
			}))
		}), nil)
		return arr, err
	case conduit.KindObject:
		src, _ := v.AsObject()
		doc := bson.D{}
		err := src.ReadAll(conduit.AggregateFunc[string](func(k string) conduit.Writer {
			return conduit.NewWriter(ctx, conduit.SinkFunc(func(v conduit.Value) error {
				x, err := toBSON(ctx, v)
				doc = append(doc, bson.E{Key: k, Value: x})
				return err
			}))
		}), nil)
		return doc, err
	}
	return v.AsAny()
}

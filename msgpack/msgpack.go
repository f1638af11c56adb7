// Package msgpack provides a MessagePack codec implementation.
package msgpack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"github.com/zoobzio/conduit"
)

// ContentType is the MIME type for MessagePack.
const ContentType = "application/msgpack"

// msgpackCodec implements conduit.Codec for MessagePack.
type msgpackCodec struct{}

// New returns a MessagePack codec.
func New() conduit.Codec {
	return &msgpackCodec{}
}

// ContentType returns the MIME type for MessagePack.
func (c *msgpackCodec) ContentType() string {
	return ContentType
}

// NewReader returns a Reader positioned on the root value. Arrays and maps
// are streamed from the decoder as they are read.
func (c *msgpackCodec) NewReader(ctx context.Context, data []byte) (conduit.Reader, error) {
	d := &decoder{ctx: ctx, dec: msgpack.NewDecoder(bytes.NewReader(data))}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	return &reader{Reader: conduit.ValueReader(ctx, v), d: d}, nil
}

// NewWriter returns an Encoder that packs one value.
func (c *msgpackCodec) NewWriter(ctx context.Context) conduit.Encoder {
	e := &encoder{ctx: ctx, p: newPacker()}
	e.Writer = e.p.writer(ctx, &e.written)
	return e
}

type reader struct {
	conduit.Reader
	d *decoder
}

func (r *reader) Context() context.Context { return r.d.ctx }

// Finish skips whatever the caller left unread and rejects trailing bytes.
func (r *reader) Finish() error {
	if err := r.d.skipTo(0); err != nil {
		return err
	}
	if _, err := r.d.dec.PeekCode(); !errors.Is(err, io.EOF) {
		if err != nil {
			return err
		}
		return errors.New("msgpack: trailing data after root value")
	}
	return nil
}

// frame is an open container; left counts the raw values still unread
// (two per map entry).
type frame struct {
	left    int
	started bool
}

type decoder struct {
	ctx   context.Context
	dec   *msgpack.Decoder
	stack []*frame
}

// skipTo discards the rest of every container nested deeper than depth.
func (d *decoder) skipTo(depth int) error {
	for len(d.stack) > depth {
		top := d.stack[len(d.stack)-1]
		for ; top.left > 0; top.left-- {
			if err := d.dec.Skip(); err != nil {
				return err
			}
		}
		d.stack = d.stack[:len(d.stack)-1]
	}
	return nil
}

func (d *decoder) value() (conduit.Value, error) {
	c, err := d.dec.PeekCode()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return conduit.Value{}, io.ErrUnexpectedEOF
		}
		return conduit.Value{}, err
	}
	switch {
	case c == msgpcode.Nil:
		return conduit.Null(), d.dec.DecodeNil()
	case c == msgpcode.False || c == msgpcode.True:
		b, err := d.dec.DecodeBool()
		return conduit.Bool(b), err
	case msgpcode.IsFixedNum(c), c == msgpcode.Int8, c == msgpcode.Int16, c == msgpcode.Int32, c == msgpcode.Int64:
		i, err := d.dec.DecodeInt64()
		return conduit.Int(i, 64), err
	case c == msgpcode.Uint8, c == msgpcode.Uint16, c == msgpcode.Uint32, c == msgpcode.Uint64:
		u, err := d.dec.DecodeUint64()
		if u <= math.MaxInt64 {
			return conduit.Int(int64(u), 64), err
		}
		return conduit.Uint(u, 64), err
	case c == msgpcode.Float:
		f, err := d.dec.DecodeFloat32()
		return conduit.Float(float64(f), 32), err
	case c == msgpcode.Double:
		f, err := d.dec.DecodeFloat64()
		return conduit.Float(f, 64), err
	case msgpcode.IsString(c):
		s, err := d.dec.DecodeString()
		return conduit.String(s), err
	case msgpcode.IsBin(c):
		b, err := d.dec.DecodeBytes()
		return conduit.Bytes(b), err
	case msgpcode.IsFixedArray(c), c == msgpcode.Array16, c == msgpcode.Array32:
		n, err := d.dec.DecodeArrayLen()
		if err != nil {
			return conduit.Value{}, err
		}
		return conduit.Array(d.array(n)), nil
	case msgpcode.IsFixedMap(c), c == msgpcode.Map16, c == msgpcode.Map32:
		n, err := d.dec.DecodeMapLen()
		if err != nil {
			return conduit.Value{}, err
		}
		return conduit.Object(d.object(n)), nil
	}
	x, err := d.dec.DecodeInterface()
	if err != nil {
		return conduit.Value{}, err
	}
	if t, ok := x.(time.Time); ok {
		return conduit.Time(t.UTC()), nil
	}
	return conduit.ValueOf(x), nil
}

// open pushes a container frame and returns its depth.
func (d *decoder) open(left int) (*frame, int) {
	f := &frame{left: left}
	d.stack = append(d.stack, f)
	return f, len(d.stack)
}

func (d *decoder) enter(f *frame, depth int) error {
	if len(d.stack) < depth || d.stack[depth-1] != f || f.started {
		return errors.New("msgpack: container read after the stream moved past it")
	}
	f.started = true
	return nil
}

func (d *decoder) array(n int) conduit.AggregateReader[int] {
	f, depth := d.open(n)
	return conduit.Stream(n, func(yield func(int, conduit.Reader) error) error {
		if err := d.enter(f, depth); err != nil {
			return err
		}
		for i := 0; ; i++ {
			if err := d.skipTo(depth); err != nil {
				return err
			}
			if f.left == 0 {
				d.stack = d.stack[:depth-1]
				return nil
			}
			f.left--
			v, err := d.value()
			if err != nil {
				return err
			}
			if err := yield(i, conduit.ValueReader(d.ctx, v)); err != nil {
				return err
			}
		}
	})
}

func (d *decoder) object(n int) conduit.AggregateReader[string] {
	f, depth := d.open(2 * n)
	return conduit.Stream(n, func(yield func(string, conduit.Reader) error) error {
		if err := d.enter(f, depth); err != nil {
			return err
		}
		for {
			if err := d.skipTo(depth); err != nil {
				return err
			}
			if f.left == 0 {
				d.stack = d.stack[:depth-1]
				return nil
			}
			f.left -= 2
			key, err := d.key()
			if err != nil {
				return err
			}
			v, err := d.value()
			if err != nil {
				return err
			}
			if err := yield(key, conduit.ValueReader(d.ctx, v)); err != nil {
				return err
			}
		}
	})
}

// key reads a map key. Non-string keys are rendered as text.
func (d *decoder) key() (string, error) {
	c, err := d.dec.PeekCode()
	if err != nil {
		return "", err
	}
	if msgpcode.IsString(c) {
		return d.dec.DecodeString()
	}
	x, err := d.dec.DecodeInterface()
	if err != nil {
		return "", err
	}
	switch k := x.(type) {
	case int64:
		return strconv.FormatInt(k, 10), nil
	case uint64:
		return strconv.FormatUint(k, 10), nil
	case []byte:
		return string(k), nil
	}
	return fmt.Sprint(x), nil
}

// packer writes values into one buffer. Aggregates are packed into a child
// packer first so their length header can precede them.
type packer struct {
	buf *bytes.Buffer
	enc *msgpack.Encoder
}

func newPacker() *packer {
	buf := &bytes.Buffer{}
	return &packer{buf: buf, enc: msgpack.NewEncoder(buf)}
}

func (p *packer) writer(ctx context.Context, written *bool) conduit.Writer {
	return conduit.NewWriter(ctx, conduit.SinkFunc(func(v conduit.Value) error {
		if written != nil {
			*written = true
		}
		return p.put(ctx, v)
	}))
}

func (p *packer) put(ctx context.Context, v conduit.Value) error {
	switch v.Kind() {
	case conduit.KindNull:
		return p.enc.EncodeNil()
	case conduit.KindBool:
		b, _ := v.AsBool()
		return p.enc.EncodeBool(b)
	case conduit.KindInt:
		i, _ := v.AsInt(64)
		return p.enc.EncodeInt(i)
	case conduit.KindUint:
		u, _ := v.AsUint(64)
		return p.enc.EncodeUint(u)
	case conduit.KindFloat:
		f, _ := v.AsFloat(64)
		if v.Bits() == 32 {
			return p.enc.EncodeFloat32(float32(f))
		}
		return p.enc.EncodeFloat64(f)
	case conduit.KindNumber:
		s, _ := v.AsString()
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return p.enc.EncodeInt(i)
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return p.enc.EncodeUint(u)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("msgpack: invalid number %q", s)
		}
		return p.enc.EncodeFloat64(f)
	case conduit.KindDecimal, conduit.KindChar, conduit.KindString:
		s, _ := v.AsString()
		return p.enc.EncodeString(s)
	case conduit.KindBytes:
		b, _ := v.AsBytes()
		return p.enc.EncodeBytes(b)
	case conduit.KindTime:
		t, _ := v.AsTime()
		return p.enc.EncodeTime(t)
	case conduit.KindDuration:
		dur, _ := v.AsDuration()
		return p.enc.EncodeInt(int64(dur))
	case conduit.KindArray:
		src, _ := v.AsArray()
		child := newPacker()
		n := 0
		err := src.ReadAll(conduit.AggregateFunc[int](func(int) conduit.Writer {
			n++
			return child.writer(ctx, nil)
		}), nil)
		if err != nil {
			return err
		}
		if err := p.enc.EncodeArrayLen(n); err != nil {
			return err
		}
		_, err = p.buf.Write(child.buf.Bytes())
		return err
	case conduit.KindObject:
		src, _ := v.AsObject()
		child := newPacker()
		n := 0
		err := src.ReadAll(conduit.AggregateFunc[string](func(k string) conduit.Writer {
			n++
			if err := child.enc.EncodeString(k); err != nil {
				return conduit.ErrWriter(err)
			}
			return child.writer(ctx, nil)
		}), nil)
		if err != nil {
			return err
		}
		if err := p.enc.EncodeMapLen(n); err != nil {
			return err
		}
		_, err = p.buf.Write(child.buf.Bytes())
		return err
	}
	x, _ := v.AsAny()
	return p.enc.Encode(x)
}

type encoder struct {
	conduit.Writer
	ctx     context.Context
	p       *packer
	written bool
}

func (e *encoder) Context() context.Context { return e.ctx }

// Bytes returns the packed value.
func (e *encoder) Bytes() ([]byte, error) {
	if !e.written {
		return nil, errors.New("msgpack: no value written")
	}
	return e.p.buf.Bytes(), nil
}

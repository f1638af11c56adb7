// Package json provides a JSON codec implementation.
package json

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/zoobzio/conduit"
)

// ContentType is the MIME type for JSON.
const ContentType = "application/json"

// Option configures the codec.
type Option func(*jsonCodec)

// WithIndent pretty-prints encoded output.
func WithIndent(prefix, indent string) Option {
	return func(c *jsonCodec) {
		c.prefix, c.indent = prefix, indent
	}
}

// jsonCodec implements conduit.Codec for JSON.
type jsonCodec struct {
	prefix string
	indent string
}

// New returns a JSON codec.
func New(opts ...Option) conduit.Codec {
	c := &jsonCodec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ContentType returns the MIME type for JSON.
func (c *jsonCodec) ContentType() string {
	return ContentType
}

// NewReader returns a Reader positioned on the document's root value.
// Arrays and objects are streamed from the token decoder as they are read.
func (c *jsonCodec) NewReader(ctx context.Context, data []byte) (conduit.Reader, error) {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	d := &decoder{ctx: ctx, dec: dec}
	tok, err := d.next()
	if err != nil {
		return nil, err
	}
	return &reader{Reader: conduit.ValueReader(ctx, d.value(tok)), d: d}, nil
}

// NewWriter returns an Encoder that renders one value as JSON.
func (c *jsonCodec) NewWriter(ctx context.Context) conduit.Encoder {
	e := &encoder{ctx: ctx, codec: c}
	e.Writer = e.writer()
	return e
}

// reader checks on Finish that nothing follows the root value.
type reader struct {
	conduit.Reader
	d *decoder
}

func (r *reader) Context() context.Context { return r.d.ctx }

func (r *reader) Finish() error {
	if err := r.d.skipTo(0); err != nil {
		return err
	}
	if _, err := r.d.dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return err
		}
		return errors.New("json: trailing data after root value")
	}
	return nil
}

// decoder tracks container depth and token position over a go-json token
// stream, so a nested aggregate that was never read can be skipped.
type decoder struct {
	ctx   context.Context
	dec   *gojson.Decoder
	depth int
	pos   int
}

func (d *decoder) next() (gojson.Token, error) {
	tok, err := d.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	d.pos++
	if delim, ok := tok.(gojson.Delim); ok {
		switch delim {
		case '[', '{':
			d.depth++
		case ']', '}':
			d.depth--
		}
	}
	return tok, nil
}

// skipTo discards tokens until the decoder is back at depth.
func (d *decoder) skipTo(depth int) error {
	for d.depth > depth {
		if _, err := d.next(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) value(tok gojson.Token) conduit.Value {
	switch t := tok.(type) {
	case nil:
		return conduit.Null()
	case bool:
		return conduit.Bool(t)
	case string:
		return conduit.String(t)
	case gojson.Number:
		return conduit.Number(string(t))
	case float64:
		return conduit.Float(t, 64)
	case gojson.Delim:
		switch t {
		case '[':
			return conduit.Array(d.array())
		case '{':
			return conduit.Object(d.object())
		}
	}
	return conduit.Any(tok)
}

func (d *decoder) array() conduit.AggregateReader[int] {
	depth, start := d.depth, d.pos
	return conduit.Stream(-1, func(yield func(int, conduit.Reader) error) error {
		if d.pos != start {
			return errors.New("json: array read after the stream moved past it")
		}
		for i := 0; ; i++ {
			if err := d.skipTo(depth); err != nil {
				return err
			}
			tok, err := d.next()
			if err != nil {
				return err
			}
			if tok == gojson.Delim(']') {
				return nil
			}
			if err := yield(i, conduit.ValueReader(d.ctx, d.value(tok))); err != nil {
				return err
			}
		}
	})
}

func (d *decoder) object() conduit.AggregateReader[string] {
	depth, start := d.depth, d.pos
	return conduit.Stream(-1, func(yield func(string, conduit.Reader) error) error {
		if d.pos != start {
			return errors.New("json: object read after the stream moved past it")
		}
		for {
			if err := d.skipTo(depth); err != nil {
				return err
			}
			tok, err := d.next()
			if err != nil {
				return err
			}
			if tok == gojson.Delim('}') {
				return nil
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("json: object key is %T", tok)
			}
			tok, err = d.next()
			if err != nil {
				return err
			}
			if err := yield(key, conduit.ValueReader(d.ctx, d.value(tok))); err != nil {
				return err
			}
		}
	})
}

// encoder renders pushed values into a buffer.
type encoder struct {
	conduit.Writer
	ctx     context.Context
	codec   *jsonCodec
	buf     bytes.Buffer
	written bool
}

func (e *encoder) Context() context.Context { return e.ctx }

func (e *encoder) writer() conduit.Writer {
	return conduit.NewWriter(e.ctx, conduit.SinkFunc(e.put))
}

// Bytes returns the encoded document.
func (e *encoder) Bytes() ([]byte, error) {
	if !e.written {
		return nil, errors.New("json: no value written")
	}
	if e.codec.prefix == "" && e.codec.indent == "" {
		return e.buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := gojson.Indent(&out, e.buf.Bytes(), e.codec.prefix, e.codec.indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (e *encoder) put(v conduit.Value) error {
	e.written = true
	switch v.Kind() {
	case conduit.KindNull:
		e.buf.WriteString("null")
	case conduit.KindBool:
		b, _ := v.AsBool()
		e.buf.WriteString(strconv.FormatBool(b))
	case conduit.KindInt:
		i, _ := v.AsInt(64)
		e.buf.WriteString(strconv.FormatInt(i, 10))
	case conduit.KindUint:
		u, _ := v.AsUint(64)
		e.buf.WriteString(strconv.FormatUint(u, 10))
	case conduit.KindFloat:
		f, _ := v.AsFloat(64)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("json: unsupported float %v", f)
		}
		s, _ := v.AsString()
		e.buf.WriteString(s)
	case conduit.KindNumber, conduit.KindDecimal:
		s, _ := v.AsString()
		if !gojson.Valid([]byte(s)) {
			return fmt.Errorf("json: invalid number %q", s)
		}
		e.buf.WriteString(s)
	case conduit.KindChar, conduit.KindString, conduit.KindBytes, conduit.KindTime, conduit.KindDuration:
		s, _ := v.AsString()
		return e.text(s)
	case conduit.KindArray:
		src, _ := v.AsArray()
		return e.array(src)
	case conduit.KindObject:
		src, _ := v.AsObject()
		return e.object(src)
	default:
		x, _ := v.AsAny()
		b, err := gojson.Marshal(x)
		if err != nil {
			return err
		}
		e.buf.Write(b)
	}
	return nil
}

func (e *encoder) text(s string) error {
	b, err := gojson.Marshal(s)
	if err != nil {
		return err
	}
	e.buf.Write(b)
	return nil
}

func (e *encoder) array(src conduit.AggregateReader[int]) error {
	e.buf.WriteByte('[')
	n := 0
	err := src.ReadAll(conduit.AggregateFunc[int](func(int) conduit.Writer {
		if n > 0 {
			e.buf.WriteByte(',')
		}
		n++
		return e.writer()
	}), nil)
	if err != nil {
		return err
	}
	e.buf.WriteByte(']')
	return nil
}

func (e *encoder) object(src conduit.AggregateReader[string]) error {
	e.buf.WriteByte('{')
	n := 0
	err := src.ReadAll(conduit.AggregateFunc[string](func(k string) conduit.Writer {
		if n > 0 {
			e.buf.WriteByte(',')
		}
		n++
		if err := e.text(k); err != nil {
			return conduit.ErrWriter(err)
		}
		e.buf.WriteByte(':')
		return e.writer()
	}), nil)
	if err != nil {
		return err
	}
	e.buf.WriteByte('}')
	return nil
}

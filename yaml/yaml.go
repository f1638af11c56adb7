// Package yaml provides a YAML codec implementation.
package yaml

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zoobzio/conduit"
	"gopkg.in/yaml.v3"
)

// ContentType is the MIME type for YAML.
const ContentType = "application/yaml"

// Option configures the codec.
type Option func(*yamlCodec)

// WithIndent sets the number of spaces per nesting level. The default is 4.
func WithIndent(spaces int) Option {
	return func(c *yamlCodec) {
		c.indent = spaces
	}
}

// yamlCodec implements conduit.Codec for YAML.
type yamlCodec struct {
	indent int
}

// New returns a YAML codec.
func New(opts ...Option) conduit.Codec {
	c := &yamlCodec{indent: 4}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ContentType returns the MIME type for YAML.
func (c *yamlCodec) ContentType() string {
	return ContentType
}

// NewReader parses the first document in data into a node tree and returns a
// Reader over its root. Aliases are followed and merge keys expanded.
func (c *yamlCodec) NewReader(ctx context.Context, data []byte) (conduit.Reader, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	root := &doc
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root = doc.Content[0]
	}
	return nodeReader(ctx, root), nil
}

// NewWriter returns an Encoder that builds a node tree and renders it on Bytes.
func (c *yamlCodec) NewWriter(ctx context.Context) conduit.Encoder {
	e := &encoder{ctx: ctx, indent: c.indent}
	e.Writer = conduit.NewWriter(ctx, conduit.SinkFunc(func(v conduit.Value) error {
		n, err := toNode(ctx, v)
		e.root = n
		return err
	}))
	return e
}

type encoder struct {
	conduit.Writer
	ctx    context.Context
	indent int
	root   *yaml.Node
}

func (e *encoder) Context() context.Context { return e.ctx }

// Bytes renders the document.
func (e *encoder) Bytes() ([]byte, error) {
	if e.root == nil {
		return nil, errors.New("yaml: no value written")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(e.indent)
	if err := enc.Encode(e.root); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func nodeReader(ctx context.Context, n *yaml.Node) conduit.Reader {
	v, err := nodeValue(ctx, n)
	if err != nil {
		return conduit.ErrReader(err)
	}
	return conduit.ValueReader(ctx, v)
}

func nodeValue(ctx context.Context, n *yaml.Node) (conduit.Value, error) {
	for n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	switch n.Kind {
	case 0:
		return conduit.Null(), nil
	case yaml.SequenceNode:
		return conduit.Array(&seqReader{ctx: ctx, items: n.Content}), nil
	case yaml.MappingNode:
		m, err := newMapReader(ctx, n)
		if err != nil {
			return conduit.Value{}, err
		}
		return conduit.Object(m), nil
	case yaml.ScalarNode:
		return scalarValue(n)
	}
	return conduit.Value{}, fmt.Errorf("yaml: unsupported node kind %d at line %d", n.Kind, n.Line)
}

func scalarValue(n *yaml.Node) (conduit.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return conduit.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return conduit.Value{}, err
		}
		return conduit.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return conduit.Int(i, 64), nil
		}
		var u uint64
		if err := n.Decode(&u); err != nil {
			return conduit.Value{}, err
		}
		return conduit.Uint(u, 64), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return conduit.Value{}, err
		}
		return conduit.Float(f, 64), nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return conduit.Value{}, err
		}
		return conduit.Time(t), nil
	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return conduit.Value{}, fmt.Errorf("yaml: line %d: %w", n.Line, err)
		}
		return conduit.Bytes(b), nil
	}
	return conduit.String(n.Value), nil
}

type seqReader struct {
	ctx   context.Context
	items []*yaml.Node
}

func (s *seqReader) Keys() []int {
	keys := make([]int, len(s.items))
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func (s *seqReader) Count() int { return len(s.items) }

func (s *seqReader) At(i int) conduit.Reader {
	if i < 0 || i >= len(s.items) {
		return conduit.ErrReader(fmt.Errorf("yaml: index %d out of range: %w", i, conduit.ErrMissingMember))
	}
	return nodeReader(s.ctx, s.items[i])
}

func (s *seqReader) ReadAll(sink conduit.AggregateWriter[int], cur *conduit.Cursor) error {
	return conduit.ReadAllKeys[int](s, sink, cur)
}

type mapReader struct {
	ctx  context.Context
	keys []string
	vals map[string]*yaml.Node
}

func newMapReader(ctx context.Context, n *yaml.Node) (*mapReader, error) {
	m := &mapReader{ctx: ctx, vals: make(map[string]*yaml.Node, len(n.Content)/2)}
	if err := m.add(n, false); err != nil {
		return nil, err
	}
	return m, nil
}

// add collects the pairs of a mapping node. Merged pairs never replace keys
// the mapping sets itself.
func (m *mapReader) add(n *yaml.Node, merged bool) error {
	for n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.MappingNode:
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if err := m.add(item, true); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("yaml: line %d: merge value is not a mapping", n.Line)
	}
	var merges []*yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.ShortTag() == "!!merge" {
			merges = append(merges, v)
			continue
		}
		if _, seen := m.vals[k.Value]; seen {
			if merged {
				continue
			}
			return fmt.Errorf("yaml: line %d: duplicate key %q", k.Line, k.Value)
		}
		m.keys = append(m.keys, k.Value)
		m.vals[k.Value] = v
	}
	for _, v := range merges {
		if err := m.add(v, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *mapReader) Keys() []string { return m.keys }
func (m *mapReader) Count() int     { return len(m.keys) }

func (m *mapReader) At(k string) conduit.Reader {
	v, ok := m.vals[k]
	if !ok {
		return conduit.ErrReader(fmt.Errorf("yaml: key %q: %w", k, conduit.ErrMissingMember))
	}
	return nodeReader(m.ctx, v)
}

func (m *mapReader) ReadAll(sink conduit.AggregateWriter[string], cur *conduit.Cursor) error {
	return conduit.ReadAllKeys[string](m, sink, cur)
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func toNode(ctx context.Context, v conduit.Value) (*yaml.Node, error) {
	switch v.Kind() {
	case conduit.KindNull:
		return scalar("!!null", "null"), nil
	case conduit.KindBool:
		b, _ := v.AsBool()
		return scalar("!!bool", strconv.FormatBool(b)), nil
	case conduit.KindInt, conduit.KindUint:
		s, _ := v.AsString()
		return scalar("!!int", s), nil
	case conduit.KindFloat:
		f, _ := v.AsFloat(64)
		return scalar("!!float", formatFloat(f, v.Bits())), nil
	case conduit.KindNumber:
		s, _ := v.AsString()
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return scalar("!!int", s), nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("yaml: invalid number %q", s)
		}
		return scalar("!!float", formatFloat(f, 64)), nil
	case conduit.KindDecimal:
		s, _ := v.AsString()
		return scalar("!!float", s), nil
	case conduit.KindChar, conduit.KindString, conduit.KindDuration:
		s, _ := v.AsString()
		return scalar("!!str", s), nil
	case conduit.KindBytes:
		s, _ := v.AsString()
		return scalar("!!binary", s), nil
	case conduit.KindTime:
		t, _ := v.AsTime()
		return scalar("!!timestamp", t.Format(time.RFC3339Nano)), nil
	case conduit.KindArray:
		src, _ := v.AsArray()
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		err := src.ReadAll(conduit.AggregateFunc[int](func(i int) conduit.Writer {
			return conduit.NewWriter(ctx, conduit.SinkFunc(func(v conduit.Value) error {
				n, err := toNode(ctx, v)
				if err != nil {
					return err
				}
				if i < len(seq.Content) {
					seq.Content[i] = n
				} else {
					seq.Content = append(seq.Content, n)
				}
				return nil
			}))
		}), nil)
		return seq, err
	case conduit.KindObject:
		src, _ := v.AsObject()
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		err := src.ReadAll(conduit.AggregateFunc[string](func(k string) conduit.Writer {
			return conduit.NewWriter(ctx, conduit.SinkFunc(func(v conduit.Value) error {
				n, err := toNode(ctx, v)
				if err != nil {
					return err
				}
				m.Content = append(m.Content, scalar("!!str", k), n)
				return nil
			}))
		}), nil)
		return m, err
	}
	x, _ := v.AsAny()
	n := &yaml.Node{}
	if err := n.Encode(x); err != nil {
		return nil, err
	}
	return n, nil
}

// formatFloat renders f so it resolves back to a float rather than an int.
func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	if bits != 32 {
		bits = 64
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

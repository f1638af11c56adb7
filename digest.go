package conduit

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"sort"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Digest is a Writer that hashes the value written to it with BLAKE2b-256.
// Object members are hashed in key order, so two objects with the same
// members hash equal regardless of the order they were written in.
type Digest struct {
	Writer
	ctx context.Context
	h   hash.Hash
}

// Value tags.
const (
	digestNull byte = iota
	digestBool
	digestInt
	digestUint
	digestFloat
	digestNumber
	digestDecimal
	digestChar
	digestString
	digestBytes
	digestTime
	digestDuration
	digestArray
	digestObject
	digestAny
	digestEnd = 0xff
)

// NewDigest creates an empty Digest.
func NewDigest(ctx context.Context) *Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only a key longer than 64 bytes fails.
		panic(err)
	}
	d := &Digest{ctx: ctx, h: h}
	d.Writer = NewWriter(ctx, SinkFunc(d.put))
	return d
}

// Sum returns the digest of everything written so far.
func (d *Digest) Sum() []byte {
	return d.h.Sum(nil)
}

// Fingerprint returns the hex digest of v as written by r's binding for T.
func Fingerprint[T any](r *Registry, v T) (string, error) {
	d := NewDigest(r.ctx)
	if err := Write(r, Writer(d), v); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum()), nil
}

func (d *Digest) tag(b byte) {
	d.h.Write([]byte{b})
}

func (d *Digest) u64(n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	d.h.Write(buf[:])
}

func (d *Digest) text(s string) {
	d.u64(uint64(len(s)))
	d.h.Write([]byte(s))
}

func (d *Digest) put(v Value) error {
	switch v.Kind() {
	case KindNull:
		d.tag(digestNull)
	case KindBool:
		b, _ := v.AsBool()
		d.tag(digestBool)
		if b {
			d.tag(1)
		} else {
			d.tag(0)
		}
	case KindInt:
		i, _ := v.AsInt(64)
		d.tag(digestInt)
		d.u64(uint64(i))
	case KindUint:
		u, _ := v.AsUint(64)
		d.tag(digestUint)
		d.u64(u)
	case KindFloat:
		f, _ := v.AsFloat(64)
		d.tag(digestFloat)
		d.u64(math.Float64bits(f))
	case KindNumber:
		s, _ := v.AsString()
		d.tag(digestNumber)
		d.text(s)
	case KindDecimal:
		f, _ := v.AsDecimal()
		d.tag(digestDecimal)
		d.text(f.Text('g', -1))
	case KindChar:
		c, _ := v.AsChar()
		d.tag(digestChar)
		d.u64(uint64(c))
	case KindString:
		s, _ := v.AsString()
		d.tag(digestString)
		d.text(s)
	case KindBytes:
		b, _ := v.AsBytes()
		d.tag(digestBytes)
		d.text(string(b))
	case KindTime:
		t, _ := v.AsTime()
		d.tag(digestTime)
		d.text(t.UTC().Format(time.RFC3339Nano))
	case KindDuration:
		dur, _ := v.AsDuration()
		d.tag(digestDuration)
		d.u64(uint64(dur))
	case KindArray:
		src, _ := v.AsArray()
		d.tag(digestArray)
		err := src.ReadAll(AggregateFunc[int](func(i int) Writer {
			d.u64(uint64(i))
			return d.Writer
		}), nil)
		if err != nil {
			return err
		}
		d.tag(digestEnd)
	case KindObject:
		return d.object(v)
	default:
		x, _ := v.AsAny()
		d.tag(digestAny)
		d.text(fmt.Sprintf("%T:%v", x, x))
	}
	return nil
}

type digestMember struct {
	key string
	sum []byte
}

// object hashes every member into its own digest first, then feeds the
// member digests in key order.
func (d *Digest) object(v Value) error {
	src, _ := v.AsObject()
	var members []*digestMember
	err := src.ReadAll(AggregateFunc[string](func(k string) Writer {
		child := NewDigest(d.ctx)
		m := &digestMember{key: k}
		members = append(members, m)
		return NewWriter(d.ctx, SinkFunc(func(v Value) error {
			if err := child.put(v); err != nil {
				return err
			}
			m.sum = child.Sum()
			return nil
		}))
	}), nil)
	if err != nil {
		return err
	}
	sort.Slice(members, func(i, j int) bool { return members[i].key < members[j].key })
	d.tag(digestObject)
	for i, m := range members {
		if i > 0 && m.key == members[i-1].key {
			return newMemberError(ErrInvalidRepresentation, nil, m.key)
		}
		d.text(m.key)
		d.h.Write(m.sum)
	}
	d.tag(digestEnd)
	return nil
}

// Equal reports whether two digests are identical.
func (d *Digest) Equal(other *Digest) bool {
	return bytes.Equal(d.Sum(), other.Sum())
}

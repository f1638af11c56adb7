package conduit

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"
)

// Transcoder encodes and decodes values of T with one codec, using the
// registry's binding for T.
//
// Transcoders are safe for concurrent use; each call builds its own endpoints.
type Transcoder[T any] struct {
	reg      *Registry
	codec    Codec
	typeName string
}

type transcoderKey struct {
	t           reflect.Type
	contentType string
}

// NewTranscoder creates a Transcoder for T over codec.
func NewTranscoder[T any](reg *Registry, codec Codec) *Transcoder[T] {
	tc := newTranscoder[T](reg, codec)
	tc.announce()
	return tc
}

func newTranscoder[T any](reg *Registry, codec Codec) *Transcoder[T] {
	return &Transcoder[T]{reg: reg, codec: codec, typeName: reflect.TypeFor[T]().String()}
}

func (tc *Transcoder[T]) announce() {
	tc.reg.log.Debug("transcoder created",
		zap.String("type", tc.typeName),
		zap.String("content_type", tc.codec.ContentType()),
	)
	emitTranscoderCreated(tc.reg.ctx, tc.codec.ContentType(), tc.typeName)
}

// Use returns the cached Transcoder for T and codec's content type, creating
// it on first use.
func Use[T any](reg *Registry, codec Codec) *Transcoder[T] {
	key := transcoderKey{t: reflect.TypeFor[T](), contentType: codec.ContentType()}
	if cached, ok := reg.transcoders.Load(key); ok {
		return cached.(*Transcoder[T])
	}
	tc := newTranscoder[T](reg, codec)
	cached, loaded := reg.transcoders.LoadOrStore(key, tc)
	if !loaded {
		tc.announce()
	}
	return cached.(*Transcoder[T])
}

// ContentType returns the codec's content type.
func (tc *Transcoder[T]) ContentType() string {
	return tc.codec.ContentType()
}

// Encode renders *v.
func (tc *Transcoder[T]) Encode(ctx context.Context, v *T) ([]byte, error) {
	start := time.Now()
	emitEncodeStart(ctx, tc.codec.ContentType(), tc.typeName)

	var (
		data   []byte
		retErr error
	)
	defer func() {
		if retErr != nil {
			tc.reg.log.Error("encode failed",
				zap.String("type", tc.typeName),
				zap.String("content_type", tc.codec.ContentType()),
				zap.Error(retErr),
			)
		}
		emitEncodeComplete(ctx, tc.codec.ContentType(), tc.typeName, len(data), time.Since(start), retErr)
	}()

	if v == nil {
		retErr = NewCodecError(ErrEncode, tc.codec.ContentType(), fmt.Errorf("nil %s", tc.typeName))
		return nil, retErr
	}
	enc := tc.codec.NewWriter(ctx)
	if err := Write(tc.reg, Writer(enc), *v); err != nil {
		retErr = NewCodecError(ErrEncode, tc.codec.ContentType(), err)
		return nil, retErr
	}
	out, err := enc.Bytes()
	if err != nil {
		retErr = NewCodecError(ErrEncode, tc.codec.ContentType(), err)
		return nil, retErr
	}
	data = out
	return data, nil
}

// Decode parses data into *v.
func (tc *Transcoder[T]) Decode(ctx context.Context, data []byte, v *T) error {
	start := time.Now()
	emitDecodeStart(ctx, tc.codec.ContentType(), tc.typeName)

	var retErr error
	defer func() {
		if retErr != nil {
			tc.reg.log.Error("decode failed",
				zap.String("type", tc.typeName),
				zap.String("content_type", tc.codec.ContentType()),
				zap.Error(retErr),
			)
		}
		emitDecodeComplete(ctx, tc.codec.ContentType(), tc.typeName, len(data), time.Since(start), retErr)
	}()

	if v == nil {
		retErr = NewCodecError(ErrDecode, tc.codec.ContentType(), fmt.Errorf("nil %s", tc.typeName))
		return retErr
	}
	rd, err := tc.codec.NewReader(ctx, data)
	if err != nil {
		retErr = NewCodecError(ErrDecode, tc.codec.ContentType(), err)
		return retErr
	}
	x, err := Read[T](tc.reg, rd)
	if err != nil {
		retErr = NewCodecError(ErrDecode, tc.codec.ContentType(), err)
		return retErr
	}
	if f, ok := rd.(Finisher); ok {
		if err := f.Finish(); err != nil {
			retErr = NewCodecError(ErrDecode, tc.codec.ContentType(), err)
			return retErr
		}
	}
	*v = x
	return nil
}

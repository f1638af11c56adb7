package conduit_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zoobzio/conduit"
)

func TestTranscoder_RoundTrip(t *testing.T) {
	reg := conduit.New()
	tc := conduit.Use[Account](reg, newTreeCodec())

	if tc.ContentType() != "application/x-tree+json" {
		t.Errorf("ContentType() = %q", tc.ContentType())
	}

	in := Account{
		ID:      "a1",
		Name:    "Ann",
		Secret:  "s",
		Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Plain:   7,
		Audit:   Audit{By: "ops"},
	}
	data, err := tc.Encode(t.Context(), &in)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	var out Account
	if err := tc.Decode(t.Context(), data, &out); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	want := in
	want.Secret = ""
	want.Created = time.Time{}
	if out != want {
		t.Errorf("round trip = %+v, want %+v", out, want)
	}
}

func TestTranscoder_Use(t *testing.T) {
	reg := conduit.New()
	codec := newTreeCodec()

	a := conduit.Use[Point](reg, codec)
	if b := conduit.Use[Point](reg, codec); a != b {
		t.Error("Use() should return the cached transcoder")
	}
	other := treeCodec{contentType: "application/x-other"}
	if b := conduit.Use[Point](reg, other); b == a || b.ContentType() != "application/x-other" {
		t.Error("Use() should key the cache by content type")
	}

	reg.Reset()
	if b := conduit.Use[Point](reg, codec); a == b {
		t.Error("Reset() should drop cached transcoders")
	}
}

func TestTranscoder_UseConcurrent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := conduit.New(conduit.WithLogger(zap.New(core)))
	codec := newTreeCodec()

	const n = 32
	got := make([]*conduit.Transcoder[Point], n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got[i] = conduit.Use[Point](reg, codec)
		}()
	}
	close(start)
	wg.Wait()

	for i, tc := range got {
		if tc != got[0] {
			t.Fatalf("caller %d got a different transcoder", i)
		}
	}
	if c := logs.FilterMessage("transcoder created").Len(); c != 1 {
		t.Errorf("transcoder created logged %d times, want 1", c)
	}
}

func TestTranscoder_Errors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	reg := conduit.New(conduit.WithLogger(zap.New(core)))
	tc := conduit.Use[Point](reg, newTreeCodec())

	tests := []struct {
		name  string
		data  string
		cause error
	}{
		{"malformed", `{"x":`, nil},
		{"wrong shape", `[1, 2]`, conduit.ErrInvalidRepresentation},
		{"wrong member type", `{"x": "one"}`, conduit.ErrInvalidRepresentation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Point
			err := tc.Decode(t.Context(), []byte(tt.data), &p)
			if !errors.Is(err, conduit.ErrDecode) {
				t.Fatalf("error = %v, want ErrDecode", err)
			}
			if tt.cause != nil && !errors.Is(err, tt.cause) {
				t.Errorf("error = %v, want it to wrap %v", err, tt.cause)
			}
			var ce *conduit.CodecError
			if !errors.As(err, &ce) || ce.ContentType != "application/x-tree+json" {
				t.Errorf("error = %#v, want a CodecError for the codec's content type", err)
			}
		})
	}

	if err := tc.Decode(t.Context(), []byte(`{}`), nil); !errors.Is(err, conduit.ErrDecode) {
		t.Errorf("Decode(nil) error = %v, want ErrDecode", err)
	}
	if _, err := tc.Encode(t.Context(), nil); !errors.Is(err, conduit.ErrEncode) {
		t.Errorf("Encode(nil) error = %v, want ErrEncode", err)
	}

	if n := logs.FilterMessage("decode failed").Len(); n != len(tests)+1 {
		t.Errorf("logged %d decode failures, want %d", n, len(tests)+1)
	}
	if logs.FilterMessage("encode failed").Len() != 1 {
		t.Error("encode failure should be logged")
	}
}

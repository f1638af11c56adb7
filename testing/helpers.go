// Package testing provides test utilities for conduit.
package testing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/conduit"
	"go.uber.org/zap/zaptest"
)

// NewRegistry returns a registry that logs through tb.
func NewRegistry(tb testing.TB, opts ...conduit.Option) *conduit.Registry {
	tb.Helper()
	return conduit.New(append([]conduit.Option{conduit.WithLogger(zaptest.NewLogger(tb))}, opts...)...)
}

// RoundTrip encodes v with codec and decodes the result into a fresh T.
func RoundTrip[T any](tb testing.TB, reg *conduit.Registry, codec conduit.Codec, v T) T {
	tb.Helper()
	tc := conduit.Use[T](reg, codec)
	data, err := tc.Encode(context.Background(), &v)
	if err != nil {
		tb.Fatalf("Encode(%s) error: %v", codec.ContentType(), err)
	}
	var out T
	if err := tc.Decode(context.Background(), data, &out); err != nil {
		tb.Fatalf("Decode(%s) error: %v\n%s", codec.ContentType(), err, data)
	}
	return out
}

// Recorder is a Writer that logs every value it receives as a flat event
// list: "[" and "]" around arrays, "{" and "}" around objects, "key:" before
// each member and "kind text" for scalars.
type Recorder struct {
	conduit.Writer
	Events []string
}

// NewRecorder creates an empty Recorder.
func NewRecorder(ctx context.Context) *Recorder {
	r := &Recorder{}
	r.Writer = r.writer(ctx)
	return r
}

// String joins the events with spaces.
func (r *Recorder) String() string {
	return strings.Join(r.Events, " ")
}

func (r *Recorder) writer(ctx context.Context) conduit.Writer {
	return conduit.NewWriter(ctx, conduit.SinkFunc(func(v conduit.Value) error {
		return r.record(ctx, v)
	}))
}

func (r *Recorder) record(ctx context.Context, v conduit.Value) error {
	switch v.Kind() {
	case conduit.KindNull:
		r.Events = append(r.Events, "null")
	case conduit.KindArray:
		src, _ := v.AsArray()
		r.Events = append(r.Events, "[")
		err := src.ReadAll(conduit.AggregateFunc[int](func(int) conduit.Writer {
			return r.writer(ctx)
		}), nil)
		if err != nil {
			return err
		}
		r.Events = append(r.Events, "]")
	case conduit.KindObject:
		src, _ := v.AsObject()
		r.Events = append(r.Events, "{")
		err := src.ReadAll(conduit.AggregateFunc[string](func(k string) conduit.Writer {
			r.Events = append(r.Events, k+":")
			return r.writer(ctx)
		}), nil)
		if err != nil {
			return err
		}
		r.Events = append(r.Events, "}")
	default:
		s, err := v.AsString()
		if err != nil {
			r.Events = append(r.Events, v.Kind().String())
			return nil
		}
		r.Events = append(r.Events, v.Kind().String()+" "+s)
	}
	return nil
}

// SimpleUser is a flat fixture.
type SimpleUser struct {
	ID   string `conduit:"id"`
	Name string `conduit:"name"`
}

// LineItem is an order line.
type LineItem struct {
	SKU      string  `conduit:"sku"`
	Quantity int     `conduit:"qty"`
	Price    float64 `conduit:"price"`
}

// Order is a nested fixture exercising objects, arrays, maps, pointers and
// timestamps. Timestamps are kept at millisecond precision so every codec
// can carry them.
type Order struct {
	ID       string            `conduit:"id"`
	Customer SimpleUser        `conduit:"customer"`
	Items    []LineItem        `conduit:"items"`
	Notes    map[string]string `conduit:"notes,omitempty"`
	Placed   time.Time         `conduit:"placed"`
	Shipped  *time.Time        `conduit:"shipped"`
	Total    float64           `conduit:"total"`
	Paid     bool              `conduit:"paid"`
}

// SampleOrder returns a populated Order.
func SampleOrder() Order {
	placed := time.Date(2024, 3, 14, 15, 9, 26, 535e6, time.UTC)
	return Order{
		ID:       "ord-1",
		Customer: SimpleUser{ID: "u-1", Name: "Alice"},
		Items: []LineItem{
			{SKU: "A-100", Quantity: 2, Price: 9.5},
			{SKU: "B-200", Quantity: 1, Price: 0.25},
		},
		Notes:  map[string]string{"gift": "yes"},
		Placed: placed,
		Total:  19.25,
		Paid:   true,
	}
}

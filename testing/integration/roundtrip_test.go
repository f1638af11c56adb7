package integration

import (
	"context"
	"reflect"
	"testing"

	"github.com/zoobzio/conduit"
	"github.com/zoobzio/conduit/bson"
	"github.com/zoobzio/conduit/json"
	"github.com/zoobzio/conduit/msgpack"
	conduittest "github.com/zoobzio/conduit/testing"
	"github.com/zoobzio/conduit/yaml"
)

func codecs() []conduit.Codec {
	return []conduit.Codec{json.New(), msgpack.New(), yaml.New(), bson.New()}
}

func TestRoundTrip_Order(t *testing.T) {
	for _, c := range codecs() {
		t.Run(c.ContentType(), func(t *testing.T) {
			reg := conduittest.NewRegistry(t)
			in := conduittest.SampleOrder()
			out := conduittest.RoundTrip(t, reg, c, in)
			if !reflect.DeepEqual(out, in) {
				t.Errorf("round trip = %+v, want %+v", out, in)
			}
		})
	}
}

func TestRoundTrip_Fingerprint(t *testing.T) {
	reg := conduittest.NewRegistry(t)
	want, err := conduit.Fingerprint(reg, conduittest.SampleOrder())
	if err != nil {
		t.Fatalf("Fingerprint() error: %v", err)
	}
	for _, c := range codecs() {
		t.Run(c.ContentType(), func(t *testing.T) {
			out := conduittest.RoundTrip(t, reg, c, conduittest.SampleOrder())
			got, err := conduit.Fingerprint(reg, out)
			if err != nil {
				t.Fatalf("Fingerprint() error: %v", err)
			}
			if got != want {
				t.Errorf("fingerprint changed across %s", c.ContentType())
			}
		})
	}
}

// TestTranscode decodes with one codec and re-encodes with the next.
func TestTranscode(t *testing.T) {
	reg := conduittest.NewRegistry(t)
	all := codecs()
	order := conduittest.SampleOrder()

	data, err := conduit.Use[conduittest.Order](reg, all[0]).Encode(context.Background(), &order)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	for i := 1; i <= len(all); i++ {
		from, to := all[i-1], all[i%len(all)]
		var mid conduittest.Order
		if err := conduit.Use[conduittest.Order](reg, from).Decode(context.Background(), data, &mid); err != nil {
			t.Fatalf("Decode(%s) error: %v", from.ContentType(), err)
		}
		if data, err = conduit.Use[conduittest.Order](reg, to).Encode(context.Background(), &mid); err != nil {
			t.Fatalf("Encode(%s) error: %v", to.ContentType(), err)
		}
	}
	var final conduittest.Order
	if err := conduit.Use[conduittest.Order](reg, all[0]).Decode(context.Background(), data, &final); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !reflect.DeepEqual(final, order) {
		t.Errorf("after a full cycle = %+v, want %+v", final, order)
	}
}

type envelope struct {
	ID    string                `conduit:"id"`
	Items conduit.Redirect[int] `conduit:"items"`
}

type itemSink struct {
	reg   *conduit.Registry
	items []conduittest.LineItem
}

func (s *itemSink) Init(int) error { return nil }
func (s *itemSink) Keys() []int    { return nil }
func (s *itemSink) Count() int     { return len(s.items) }

func (s *itemSink) At(int) conduit.Writer {
	return conduit.NewWriter(context.Background(), conduit.SinkFunc(func(v conduit.Value) error {
		item, err := conduit.Read[conduittest.LineItem](s.reg, conduit.ValueReader(context.Background(), v))
		s.items = append(s.items, item)
		return err
	}))
}

func (s *itemSink) WriteAll(src conduit.AggregateReader[int], cur *conduit.Cursor) error {
	return src.ReadAll(s, cur)
}

func TestRedirect(t *testing.T) {
	order := conduittest.SampleOrder()
	for _, c := range codecs() {
		t.Run(c.ContentType(), func(t *testing.T) {
			reg := conduittest.NewRegistry(t)
			data, err := conduit.Use[conduittest.Order](reg, c).Encode(context.Background(), &order)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}

			sink := &itemSink{reg: reg}
			err = conduit.RedirectInto[int](context.Background(), sink, func(ctx context.Context) error {
				var env envelope
				return conduit.Use[envelope](reg, c).Decode(ctx, data, &env)
			})
			if err != nil {
				t.Fatalf("RedirectInto() error: %v", err)
			}
			if !reflect.DeepEqual(sink.items, order.Items) {
				t.Errorf("redirected items = %+v, want %+v", sink.items, order.Items)
			}
		})
	}
}

func TestScopedOverride(t *testing.T) {
	for _, c := range codecs() {
		t.Run(c.ContentType(), func(t *testing.T) {
			reg := conduittest.NewRegistry(t)
			reg.SetOverride("cents", reflect.TypeFor[float64](), conduit.NewBinding(
				func(rd conduit.Reader) (float64, error) {
					n, err := rd.ReadInt(64)
					return float64(n) / 100, err
				},
				func(w conduit.Writer, v float64) error {
					return w.WriteInt(int64(v*100+0.5), 64)
				},
			))

			in := conduittest.LineItem{SKU: "A", Quantity: 1, Price: 9.5}
			ctx := conduit.WithScope(context.Background(), "cents")
			tc := conduit.Use[conduittest.LineItem](reg, c)
			data, err := tc.Encode(ctx, &in)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}

			var plain map[string]any
			if err := conduit.Use[map[string]any](reg, c).Decode(context.Background(), data, &plain); err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if plain["price"] != int64(950) {
				t.Errorf("price on the wire = %#v, want 950", plain["price"])
			}

			var out conduittest.LineItem
			if err := tc.Decode(ctx, data, &out); err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if out != in {
				t.Errorf("scoped round trip = %+v, want %+v", out, in)
			}
		})
	}
}

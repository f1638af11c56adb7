package bson

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/zoobzio/conduit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type record struct {
	Name    string         `conduit:"name"`
	Count   int32          `conduit:"count"`
	Total   int64          `conduit:"total"`
	Big     uint64         `conduit:"big"`
	Ratio   float64        `conduit:"ratio"`
	Tags    []string       `conduit:"tags"`
	Attrs   map[string]int `conduit:"attrs"`
	When    time.Time      `conduit:"when"`
	Timeout time.Duration  `conduit:"timeout"`
	Blob    []byte         `conduit:"blob"`
	Next    *record        `conduit:"next"`
}

func TestNew(t *testing.T) {
	c := New()
	if c == nil {
		t.Error("New() should return non-nil codec")
	}
}

func TestContentType(t *testing.T) {
	c := New()
	if c.ContentType() != "application/bson" {
		t.Errorf("ContentType() = %q, want %q", c.ContentType(), "application/bson")
	}
}

func TestRoundTrip(t *testing.T) {
	reg := conduit.New()
	tc := conduit.Use[record](reg, New())

	original := record{
		Name:    "test",
		Count:   42,
		Total:   1 << 40,
		Big:     math.MaxUint64,
		Ratio:   0.5,
		Tags:    []string{"a", "b"},
		Attrs:   map[string]int{"x": 1},
		When:    time.Date(2024, 5, 6, 7, 8, 9, 123e6, time.UTC),
		Timeout: time.Minute,
		Blob:    []byte{0, 1, 2},
		Next:    &record{Name: "inner", When: time.Unix(0, 0).UTC()},
	}

	data, err := tc.Encode(context.Background(), &original)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	var restored record
	if err := tc.Decode(context.Background(), data, &restored); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !reflect.DeepEqual(restored, original) {
		t.Errorf("round-trip failed: got %+v, want %+v", restored, original)
	}
}

func TestElementTypes(t *testing.T) {
	reg := conduit.New()
	data, err := conduit.Use[record](reg, New()).Encode(context.Background(), &record{Count: 1, Total: 2, Big: math.MaxUint64})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	raw := bson.Raw(data)

	tests := []struct {
		key  string
		want bsontype.Type
	}{
		{"count", bson.TypeInt32},
		{"total", bson.TypeInt64},
		{"big", bson.TypeDecimal128},
		{"when", bson.TypeDateTime},
		{"tags", bson.TypeNull},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := raw.Lookup(tt.key).Type; got != tt.want {
				t.Errorf("type = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInterop(t *testing.T) {
	reg := conduit.New()
	oid := primitive.NewObjectID()
	data, err := bson.Marshal(bson.D{
		{Key: "_id", Value: oid},
		{Key: "name", Value: "driver"},
		{Key: "count", Value: int32(7)},
		{Key: "tags", Value: bson.A{"x"}},
	})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	type withID struct {
		ID    string   `conduit:"_id"`
		Name  string   `conduit:"name"`
		Count int      `conduit:"count"`
		Tags  []string `conduit:"tags"`
	}
	var got withID
	if err := conduit.Use[withID](reg, New()).Decode(context.Background(), data, &got); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	want := withID{ID: oid.Hex(), Name: "driver", Count: 7, Tags: []string{"x"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Decode() = %+v, want %+v", got, want)
	}
}

func TestErrors(t *testing.T) {
	reg := conduit.New()

	ints := []int{1}
	if _, err := conduit.Use[[]int](reg, New()).Encode(context.Background(), &ints); !errors.Is(err, ErrNotDocument) {
		t.Errorf("Encode(array) error = %v, want ErrNotDocument", err)
	}

	valid, err := bson.Marshal(bson.D{{Key: "name", Value: "x"}})
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated", valid[:len(valid)-2]},
		{"trailing", append(append([]byte{}, valid...), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r record
			if err := conduit.Use[record](reg, New()).Decode(context.Background(), tt.data, &r); !errors.Is(err, conduit.ErrDecode) {
				t.Errorf("Decode() error = %v, want ErrDecode", err)
			}
		})
	}
}

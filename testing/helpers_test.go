package testing

import (
	"context"
	"testing"

	"github.com/zoobzio/conduit"
)

func TestRecorder(t *testing.T) {
	reg := NewRegistry(t)
	rec := NewRecorder(context.Background())

	if err := conduit.Write(reg, conduit.Writer(rec), SimpleUser{ID: "1", Name: "Alice"}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	want := "{ id: string 1 name: string Alice }"
	if rec.String() != want {
		t.Errorf("events = %q, want %q", rec.String(), want)
	}
}

func TestRecorder_Nested(t *testing.T) {
	reg := NewRegistry(t)
	rec := NewRecorder(context.Background())

	if err := conduit.Write(reg, conduit.Writer(rec), map[string][]int{"a": {1, 2}, "b": nil}); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	want := "{ a: [ int 1 int 2 ] b: null }"
	if rec.String() != want {
		t.Errorf("events = %q, want %q", rec.String(), want)
	}
}

func TestSampleOrder(t *testing.T) {
	o := SampleOrder()
	if o.ID == "" || len(o.Items) != 2 || o.Placed.IsZero() {
		t.Errorf("SampleOrder() = %+v", o)
	}
	if o.Placed.Nanosecond()%1e6 != 0 {
		t.Error("Placed should be at millisecond precision")
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry(t, conduit.WithRejectUnknown(true))
	_, err := conduit.Read[SimpleUser](reg, conduit.TreeReader(map[string]any{"extra": true}))
	if err == nil {
		t.Error("options should be applied after the logger")
	}
}

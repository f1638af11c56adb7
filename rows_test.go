package conduit_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/zoobzio/conduit"
)

// fakeRows is an in-memory RowReader.
type fakeRows struct {
	cols   []string
	data   [][]any
	i      int
	err    error
	closed bool
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) || r.err != nil {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	for j, d := range dest {
		*(d.(*any)) = r.data[r.i-1][j]
	}
	return nil
}

func (r *fakeRows) Err() error   { return r.err }
func (r *fakeRows) Close() error { r.closed = true; return nil }

func TestRows_Write(t *testing.T) {
	reg := conduit.New()
	rows := &fakeRows{
		cols: []string{"id", "name", "blob"},
		data: [][]any{
			{int64(1), "a", []byte("x")},
			{int64(2), nil, nil},
		},
	}

	tree := encodeTree(t, reg, rows)
	want := []any{
		map[string]any{"id": int64(1), "name": "a", "blob": []byte("x")},
		map[string]any{"id": int64(2), "name": nil, "blob": nil},
	}
	if !reflect.DeepEqual(tree, want) {
		t.Errorf("encoded = %#v, want %#v", tree, want)
	}
	if rows.closed {
		t.Error("writing should leave the cursor open")
	}
	if src := reg.Source(reflect.TypeFor[*fakeRows]()); src != conduit.SourceBuiltin {
		t.Errorf("Source() = %q, want %q", src, conduit.SourceBuiltin)
	}
}

func TestRows_Pause(t *testing.T) {
	reg := conduit.New()
	rows := &fakeRows{cols: []string{"n"}}
	for i := range 25 {
		rows.data = append(rows.data, []any{int64(i)})
	}

	var src conduit.AggregateReader[int]
	w := conduit.NewWriter(t.Context(), conduit.SinkFunc(func(v conduit.Value) error {
		a, err := v.AsArray()
		src = a
		return err
	}))
	if err := conduit.Write(reg, w, rows); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	var got []int64
	sink := conduit.AggregateFunc[int](func(int) conduit.Writer {
		return conduit.NewWriter(t.Context(), conduit.SinkFunc(func(v conduit.Value) error {
			obj, err := v.AsObject()
			if err != nil {
				return err
			}
			n, err := obj.At("n").ReadInt(64)
			got = append(got, n)
			return err
		}))
	})

	cur := conduit.NewCursor(conduit.WithStopAfter(4))
	runs := 0
	for {
		runs++
		if err := src.ReadAll(sink, cur); err != nil {
			t.Fatalf("ReadAll() error: %v", err)
		}
		if !cur.Paused() {
			break
		}
		cur.Resume()
	}
	if runs < 2 {
		t.Errorf("runs = %d, want the transfer to pause", runs)
	}
	if len(got) != 25 || got[0] != 0 || got[24] != 24 {
		t.Errorf("got %v, want 0..24", got)
	}
}

func TestRows_Errors(t *testing.T) {
	reg := conduit.New()

	_, err := conduit.Read[*fakeRows](reg, conduit.TreeReader([]any{}))
	if !errors.Is(err, conduit.ErrUnsupportedType) {
		t.Errorf("read error = %v, want ErrUnsupportedType", err)
	}

	boom := errors.New("connection reset")
	rows := &fakeRows{cols: []string{"n"}, err: boom}
	var tree any
	if err := conduit.Write(reg, conduit.TreeWriter(&tree), rows); !errors.Is(err, boom) {
		t.Errorf("write error = %v, want the cursor error", err)
	}
}

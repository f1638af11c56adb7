package conduit_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/zoobzio/conduit"
)

func tableTree() []any {
	return []any{
		map[string]any{"id": int64(1), "name": "a"},
		map[string]any{"id": "two", "name": "b", "extra": true},
	}
}

func TestTable_FirstRowSchema(t *testing.T) {
	t.Run("untyped columns", func(t *testing.T) {
		reg := conduit.New()
		tbl := decodeTree[*conduit.Table](t, reg, tableTree())

		cols := tbl.Columns()
		if len(cols) != 3 {
			t.Fatalf("got %d columns, want 3", len(cols))
		}
		for _, c := range cols {
			if c.Type != nil {
				t.Errorf("column %q has type %v, want untyped", c.Name, c.Type)
			}
		}
		if cols[0].Name != "id" || cols[1].Name != "name" || cols[2].Name != "extra" {
			t.Errorf("columns = %v", cols)
		}
		if len(tbl.Rows) != 2 {
			t.Fatalf("got %d rows, want 2", len(tbl.Rows))
		}
		if v, _ := tbl.Rows[1].Get("id"); v != "two" {
			t.Errorf("row 1 id = %#v, want %q", v, "two")
		}
		if _, ok := tbl.Rows[0].Get("extra"); ok {
			t.Error("row 0 should have no extra cell")
		}
	})

	t.Run("typed columns", func(t *testing.T) {
		reg := conduit.New(conduit.WithTypedColumns(true))
		_, err := conduit.Read[*conduit.Table](reg, conduit.TreeReader(tableTree()))
		if !errors.Is(err, conduit.ErrInvalidRepresentation) {
			t.Fatalf("error = %v, want ErrInvalidRepresentation for a string in an int64 column", err)
		}

		tree := []any{
			map[string]any{"id": int64(1), "name": "a"},
			map[string]any{"id": "2", "name": "b"},
		}
		tbl := decodeTree[*conduit.Table](t, reg, tree)
		id, _ := tbl.Column("id")
		if id.Type != reflect.TypeFor[int64]() {
			t.Errorf("id column type = %v, want int64", id.Type)
		}
		if v, _ := tbl.Rows[1].Get("id"); v != int64(2) {
			t.Errorf("row 1 id = %#v, want coerced int64(2)", v)
		}
	})

	t.Run("reject unknown after first row", func(t *testing.T) {
		reg := conduit.New(conduit.WithRejectUnknown(true))
		_, err := conduit.Read[*conduit.Table](reg, conduit.TreeReader(tableTree()))
		if !errors.Is(err, conduit.ErrMissingMember) {
			t.Errorf("error = %v, want ErrMissingMember", err)
		}
	})
}

func TestTable_Write(t *testing.T) {
	reg := conduit.New()
	tbl := conduit.NewTable(conduit.Column{Name: "id"}, conduit.Column{Name: "score"})
	r1 := tbl.AddRow()
	r1.Set("id", "a")
	r1.Set("score", 1.5)
	r2 := tbl.AddRow()
	r2.Set("id", "b")

	tree := encodeTree(t, reg, tbl)
	want := []any{
		map[string]any{"id": "a", "score": 1.5},
		map[string]any{"id": "b"},
	}
	if !reflect.DeepEqual(tree, want) {
		t.Errorf("encoded = %#v, want %#v", tree, want)
	}

	back := decodeTree[*conduit.Table](t, reg, tree)
	if len(back.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(back.Rows))
	}
	if v, ok := back.Rows[1].Get("score"); ok {
		t.Errorf("unset cell came back as %#v", v)
	}
	if v, ok := back.Rows[0].Get("score"); !ok || v != 1.5 {
		t.Errorf("row 0 score = %#v, %v, want 1.5", v, ok)
	}

	if vals := r2.Values(); len(vals) != 2 || vals[0] != "b" || vals[1] != nil {
		t.Errorf("Values() = %#v", vals)
	}

	var nilTable *conduit.Table
	if tree := encodeTree(t, reg, nilTable); tree != nil {
		t.Errorf("nil table encoded as %#v", tree)
	}
}

func TestTable_Row(t *testing.T) {
	reg := conduit.New()
	row := decodeTree[*conduit.Row](t, reg, map[string]any{"a": int64(1), "b": "x"})
	if v, ok := row.Get("b"); !ok || v != "x" {
		t.Errorf("Get(b) = %#v, %v", v, ok)
	}
	tree := encodeTree(t, reg, row)
	if !reflect.DeepEqual(tree, map[string]any{"a": int64(1), "b": "x"}) {
		t.Errorf("encoded = %#v", tree)
	}
}

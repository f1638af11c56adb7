package conduit

import (
	"reflect"
	"strconv"
)

// Column describes one table column. A nil Type is an untyped column whose
// cells hold whatever ReadAny produced.
type Column struct {
	Name string
	Type reflect.Type
}

// Table is tabular data: an ordered column set and rows of cells. It travels
// as an array of objects.
type Table struct {
	columns []Column
	index   map[string]int
	Rows    []*Row
}

// Row is one table row. Cells are addressed by column name.
type Row struct {
	table *Table
	cells []any
}

// NewTable creates a table with the given columns.
func NewTable(columns ...Column) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.AddColumn(c.Name, c.Type)
	}
	return t
}

// Columns returns the table's columns in order.
func (t *Table) Columns() []Column {
	return t.columns
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// AddColumn appends a column, or returns the existing one of the same name.
func (t *Table) AddColumn(name string, typ reflect.Type) Column {
	if i, ok := t.index[name]; ok {
		return t.columns[i]
	}
	if t.index == nil {
		t.index = make(map[string]int)
	}
	t.index[name] = len(t.columns)
	c := Column{Name: name, Type: typ}
	t.columns = append(t.columns, c)
	return c
}

// AddRow appends an empty row.
func (t *Table) AddRow() *Row {
	row := &Row{table: t}
	t.Rows = append(t.Rows, row)
	return row
}

// Get returns the cell for column name.
func (r *Row) Get(name string) (any, bool) {
	i, ok := r.table.index[name]
	if !ok || i >= len(r.cells) {
		return nil, false
	}
	return r.cells[i], true
}

// Set stores a cell, adding an untyped column when name is new.
func (r *Row) Set(name string, v any) {
	r.table.AddColumn(name, nil)
	i := r.table.index[name]
	for len(r.cells) <= i {
		r.cells = append(r.cells, nil)
	}
	r.cells[i] = v
}

// Values returns the row's cells in column order.
func (r *Row) Values() []any {
	out := make([]any, len(r.table.columns))
	copy(out, r.cells)
	return out
}

func tableBinding(reg *Registry) *Binding[*Table] {
	return NewBinding(
		func(rd Reader) (*Table, error) {
			if null, err := rd.ReadNull(); null || err != nil {
				return nil, err
			}
			t := NewTable()
			err := rd.ReadArray(&tableWriter{r: reg, t: t, ctx: rd, discover: true})
			return t, err
		},
		func(w Writer, t *Table) error {
			if t == nil {
				return w.WriteNull()
			}
			return w.WriteArray(&tableReader{r: reg, t: t, ctx: w})
		},
	)
}

func rowBinding(reg *Registry) *Binding[*Row] {
	return NewBinding(
		func(rd Reader) (*Row, error) {
			if null, err := rd.ReadNull(); null || err != nil {
				return nil, err
			}
			row := NewTable().AddRow()
			err := rd.ReadObject(&rowWriter{r: reg, row: row, ctx: rd, discover: true})
			return row, err
		},
		func(w Writer, row *Row) error {
			if row == nil {
				return w.WriteNull()
			}
			return w.WriteObject(&rowReader{r: reg, row: row, ctx: w})
		},
	)
}

type tableReader struct {
	r   *Registry
	t   *Table
	ctx any
}

func (tr *tableReader) Keys() []int {
	keys := make([]int, len(tr.t.Rows))
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func (tr *tableReader) Count() int { return len(tr.t.Rows) }

func (tr *tableReader) At(i int) Reader {
	if i < 0 || i >= len(tr.t.Rows) {
		return ErrReader(newMemberError(ErrMissingMember, nil, strconv.Itoa(i)))
	}
	row := tr.t.Rows[i]
	return pullReader(ContextOf(tr.ctx), func(w Writer) error {
		return w.WriteObject(&rowReader{r: tr.r, row: row, ctx: tr.ctx})
	})
}

func (tr *tableReader) ReadAll(sink AggregateWriter[int], cur *Cursor) error {
	return ReadAllKeys[int](tr, sink, cur)
}

// tableWriter appends rows. When the table had no columns at Init, columns
// are discovered from the first row's keys.
type tableWriter struct {
	r        *Registry
	t        *Table
	ctx      any
	discover bool
}

func (tw *tableWriter) Init(capacity int) error {
	if capacity < 0 {
		capacity = tw.r.cfg.defaultCapacity
	}
	tw.t.Rows = make([]*Row, 0, capacity)
	tw.discover = len(tw.t.columns) == 0
	return nil
}

func (tw *tableWriter) Keys() []int {
	keys := make([]int, len(tw.t.Rows))
	for i := range keys {
		keys[i] = i
	}
	return keys
}

func (tw *tableWriter) Count() int { return len(tw.t.Rows) }

func (tw *tableWriter) At(i int) Writer {
	var row *Row
	switch {
	case i == len(tw.t.Rows):
		row = tw.t.AddRow()
	case i >= 0 && i < len(tw.t.Rows):
		row = &Row{table: tw.t}
		tw.t.Rows[i] = row
	default:
		return ErrWriter(newTypeError(ErrUnsupportedType, reflect.TypeFor[*Table](), "append", "index "+strconv.Itoa(i)+" past end"))
	}
	first := tw.discover && i == 0
	return slotWriter(ContextOf(tw.ctx), func(rd Reader) error {
		return rd.ReadObject(&rowWriter{r: tw.r, row: row, ctx: tw.ctx, discover: first})
	})
}

func (tw *tableWriter) WriteAll(src AggregateReader[int], cur *Cursor) error {
	return src.ReadAll(tw, cur)
}

type rowReader struct {
	r   *Registry
	row *Row
	ctx any
}

// Keys lists the columns the row holds cells for. Columns past the row's last
// cell are absent rather than null.
func (rr *rowReader) Keys() []string {
	cols := rr.row.table.columns[:rr.Count()]
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = c.Name
	}
	return keys
}

func (rr *rowReader) Count() int {
	return min(len(rr.row.cells), len(rr.row.table.columns))
}

func (rr *rowReader) At(k string) Reader {
	if i, ok := rr.row.table.index[k]; !ok || i >= len(rr.row.cells) {
		return ErrReader(newMemberError(ErrMissingMember, nil, k))
	}
	cell, _ := rr.row.Get(k)
	return pullReader(ContextOf(rr.ctx), func(w Writer) error {
		if cell == nil {
			return w.WriteNull()
		}
		return rr.r.writeReflect(w, reflect.ValueOf(cell))
	})
}

func (rr *rowReader) ReadAll(sink AggregateWriter[string], cur *Cursor) error {
	return ReadAllKeys[string](rr, sink, cur)
}

// rowWriter fills one row. A discovering row adds a column per key; the
// column takes the cell's type when typed columns are enabled. Later rows
// add untyped columns for new keys unless unknown keys are rejected.
type rowWriter struct {
	r        *Registry
	row      *Row
	ctx      any
	discover bool
}

func (rw *rowWriter) Init(int) error { return nil }

func (rw *rowWriter) Keys() []string {
	keys := make([]string, len(rw.row.table.columns))
	for i, c := range rw.row.table.columns {
		keys[i] = c.Name
	}
	return keys
}

func (rw *rowWriter) Count() int { return len(rw.row.cells) }

func (rw *rowWriter) At(k string) Writer {
	table := rw.row.table
	col, known := table.Column(k)
	if !known && !rw.discover && rw.r.cfg.rejectUnknown {
		return ErrWriter(newMemberError(ErrMissingMember, nil, k))
	}
	return slotWriter(ContextOf(rw.ctx), func(rd Reader) error {
		if known && col.Type != nil {
			cell := reflect.New(col.Type).Elem()
			if null, err := rd.ReadNull(); err != nil {
				return err
			} else if null {
				rw.row.Set(k, nil)
				return nil
			}
			if err := rw.r.readReflect(rd, cell); err != nil {
				return err
			}
			rw.row.Set(k, cell.Interface())
			return nil
		}
		x, err := rd.ReadAny()
		if err != nil {
			return err
		}
		if !known {
			var typ reflect.Type
			if rw.discover && rw.r.cfg.typedColumns && x != nil {
				typ = reflect.TypeOf(x)
			}
			table.AddColumn(k, typ)
		}
		rw.row.Set(k, x)
		return nil
	})
}

func (rw *rowWriter) WriteAll(src AggregateReader[string], cur *Cursor) error {
	return src.ReadAll(rw, cur)
}

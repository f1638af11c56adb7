package conduit

import (
	"reflect"
	"strconv"
)

// RowReader is a forward-only cursor over query results. *sql.Rows
// satisfies it.
type RowReader interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// rowsStrategy writes a result cursor as an array of objects keyed by column
// name. It is write-only. The cursor is not closed; the caller owns it.
type rowsStrategy struct {
	r *Registry
	t reflect.Type
}

func (s rowsStrategy) ReadValue(Reader, reflect.Value) error {
	return newTypeError(ErrUnsupportedType, s.t, "read", "result cursors are write-only")
}

func (s rowsStrategy) WriteValue(w Writer, v reflect.Value) error {
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return w.WriteNull()
	}
	rows := v.Interface().(RowReader)
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	return w.WriteArray(&rowsReader{r: s.r, rows: rows, cols: cols, ctx: w})
}

type rowsReader struct {
	r    *Registry
	rows RowReader
	cols []string
	ctx  any
}

// rowsState is the saved position of a paused result transfer: the row
// already fetched when the pause happened.
type rowsState struct {
	i       int
	pending []any
}

func (rs *rowsReader) Keys() []int { return nil }
func (rs *rowsReader) Count() int  { return -1 }

func (rs *rowsReader) At(i int) Reader {
	return ErrReader(newTypeError(ErrUnsupportedType, rowReaderType, "random access", "result row "+strconv.Itoa(i)))
}

func (rs *rowsReader) scan() ([]any, bool, error) {
	if !rs.rows.Next() {
		return nil, false, rs.rows.Err()
	}
	cells := make([]any, len(rs.cols))
	ptrs := make([]any, len(cells))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	if err := rs.rows.Scan(ptrs...); err != nil {
		return nil, false, err
	}
	return cells, true, nil
}

func (rs *rowsReader) ReadAll(sink AggregateWriter[int], cur *Cursor) error {
	st := &rowsState{}
	if saved, ok := cur.PopState(); ok {
		st = saved.(*rowsState)
	} else if err := sink.Init(-1); err != nil {
		return err
	}
	for {
		cells := st.pending
		st.pending = nil
		if cells == nil {
			var ok bool
			var err error
			if cells, ok, err = rs.scan(); err != nil || !ok {
				return err
			}
		}
		row := &cellsReader{r: rs.r, cols: rs.cols, cells: cells, ctx: rs.ctx}
		if err := sink.At(st.i).WriteObject(row); err != nil {
			return err
		}
		st.i++
		if cur.StopRequested() {
			next, ok, err := rs.scan()
			if err != nil || !ok {
				return err
			}
			st.pending = next
			cur.SetState(st)
			return nil
		}
	}
}

// cellsReader is one scanned result row.
type cellsReader struct {
	r     *Registry
	cols  []string
	cells []any
	ctx   any
}

func (c *cellsReader) Keys() []string { return c.cols }
func (c *cellsReader) Count() int     { return len(c.cols) }

func (c *cellsReader) At(k string) Reader {
	for i, name := range c.cols {
		if name == k {
			cell := c.cells[i]
			return pullReader(ContextOf(c.ctx), func(w Writer) error {
				return c.r.WriteValue(w, cell)
			})
		}
	}
	return ErrReader(newMemberError(ErrMissingMember, rowReaderType, k))
}

func (c *cellsReader) ReadAll(sink AggregateWriter[string], cur *Cursor) error {
	return ReadAllKeys[string](c, sink, cur)
}

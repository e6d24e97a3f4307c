package tabular

import (
	"fmt"
)

// Column is a named slice of cell values used to build tables
type Column struct {
	Name   string
	Values []any
}

// NewColumn builds a column, normalizing each value
func NewColumn(name string, values ...any) Column {
	normalized := make([]any, len(values))
	for i, v := range values {
		normalized[i] = Normalize(v)
	}
	return Column{Name: name, Values: normalized}
}

// Table is an ordered, named-column, row-indexed table.
// Column slices are never modified in place once they belong to a table, so
// derived tables share them freely.
type Table struct {
	names []string
	index map[string]int
	data  [][]any
	nrows int
}

// New creates an empty table with the given columns
func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, name := range columns {
		if _, exists := t.index[name]; exists {
			continue
		}
		t.index[name] = len(t.names)
		t.names = append(t.names, name)
		t.data = append(t.data, []any{})
	}
	return t
}

// FromColumns builds a table from columns of equal length
func FromColumns(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for i, col := range cols {
		if _, exists := t.index[col.Name]; exists {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		if i == 0 {
			t.nrows = len(col.Values)
		} else if len(col.Values) != t.nrows {
			return nil, fmt.Errorf("column %q has %d values, expected %d", col.Name, len(col.Values), t.nrows)
		}
		values := make([]any, len(col.Values))
		for j, v := range col.Values {
			values[j] = Normalize(v)
		}
		t.index[col.Name] = len(t.names)
		t.names = append(t.names, col.Name)
		t.data = append(t.data, values)
	}
	return t, nil
}

// MustFromColumns is FromColumns that panics on error; intended for tests and literals
func MustFromColumns(cols ...Column) *Table {
	t, err := FromColumns(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromRows builds a table from row-major values
func FromRows(columns []string, rows [][]any) (*Table, error) {
	cols := make([]Column, len(columns))
	for c, name := range columns {
		cols[c] = Column{Name: name, Values: make([]any, len(rows))}
	}
	for r, row := range rows {
		if len(row) > len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected at most %d", r, len(row), len(columns))
		}
		for c, v := range row {
			cols[c].Values[r] = v
		}
	}
	return FromColumns(cols...)
}

// FromRecords builds a string table from text records; empty cells become null.
// Short records are padded with nulls.
func FromRecords(header []string, records [][]string) (*Table, error) {
	rows := make([][]any, len(records))
	for r, rec := range records {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("record %d has %d fields, header has %d", r+1, len(rec), len(header))
		}
		row := make([]any, len(rec))
		for c, cell := range rec {
			if cell != "" {
				row[c] = cell
			}
		}
		rows[r] = row
	}
	return FromRows(header, rows)
}

// Columns returns the column names in order
func (t *Table) Columns() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// NumRows returns the number of rows
func (t *Table) NumRows() int { return t.nrows }

// NumCols returns the number of columns
func (t *Table) NumCols() int { return len(t.names) }

// HasColumn reports whether the column exists
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the values of a column. The slice must not be modified.
func (t *Table) Column(name string) ([]any, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.data[i], true
}

// Value returns a single cell, or nil if the column does not exist
func (t *Table) Value(row int, name string) any {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.data[i][row]
}

// Row returns a copy of one row in column order
func (t *Table) Row(r int) []any {
	row := make([]any, len(t.names))
	for c := range t.names {
		row[c] = t.data[c][r]
	}
	return row
}

// Records returns all rows; handy for assertions
func (t *Table) Records() [][]any {
	rows := make([][]any, t.nrows)
	for r := range rows {
		rows[r] = t.Row(r)
	}
	return rows
}

// NullCount returns the number of null cells in a column
func (t *Table) NullCount(name string) int {
	values, ok := t.Column(name)
	if !ok {
		return 0
	}
	n := 0
	for _, v := range values {
		if v == nil {
			n++
		}
	}
	return n
}

// shallow copies the column layout, sharing column slices
func (t *Table) shallow() *Table {
	out := &Table{
		names: make([]string, len(t.names)),
		index: make(map[string]int, len(t.names)),
		data:  make([][]any, len(t.data)),
		nrows: t.nrows,
	}
	copy(out.names, t.names)
	copy(out.data, t.data)
	for k, v := range t.index {
		out.index[k] = v
	}
	return out
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	out := t.shallow()
	for i, col := range t.data {
		values := make([]any, len(col))
		copy(values, col)
		out.data[i] = values
	}
	return out
}

// SetColumn returns a table with the column added (at the end) or replaced
func (t *Table) SetColumn(name string, values []any) (*Table, error) {
	if len(t.names) > 0 && len(values) != t.nrows {
		return nil, fmt.Errorf("column %q has %d values, expected %d", name, len(values), t.nrows)
	}
	normalized := make([]any, len(values))
	for i, v := range values {
		normalized[i] = Normalize(v)
	}
	out := t.shallow()
	if len(out.names) == 0 {
		out.nrows = len(values)
	}
	if i, ok := out.index[name]; ok {
		out.data[i] = normalized
		return out, nil
	}
	out.index[name] = len(out.names)
	out.names = append(out.names, name)
	out.data = append(out.data, normalized)
	return out, nil
}

// Select returns a table with exactly the named columns, in the given order
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{index: make(map[string]int, len(names)), nrows: t.nrows}
	var missing []string
	for _, name := range names {
		i, ok := t.index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if _, dup := out.index[name]; dup {
			continue
		}
		out.index[name] = len(out.names)
		out.names = append(out.names, name)
		out.data = append(out.data, t.data[i])
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("columns not found: %v", missing)
	}
	return out, nil
}

// Drop returns a table without the named columns; unknown names are ignored
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]string, 0, len(t.names))
	for _, n := range t.names {
		if !drop[n] {
			keep = append(keep, n)
		}
	}
	out, _ := t.Select(keep...)
	return out
}

// Rename returns a table with columns renamed per mapping (old -> new)
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	out := &Table{index: make(map[string]int, len(t.names)), nrows: t.nrows}
	for i, name := range t.names {
		if renamed, ok := mapping[name]; ok && renamed != "" {
			name = renamed
		}
		if _, dup := out.index[name]; dup {
			return nil, fmt.Errorf("rename produces duplicate column %q", name)
		}
		out.index[name] = len(out.names)
		out.names = append(out.names, name)
		out.data = append(out.data, t.data[i])
	}
	return out, nil
}

// Take returns the rows at the given indices, in that order
func (t *Table) Take(indices []int) *Table {
	out := t.shallow()
	out.nrows = len(indices)
	for c, col := range t.data {
		values := make([]any, len(indices))
		for i, r := range indices {
			values[i] = col[r]
		}
		out.data[c] = values
	}
	return out
}

// Filter returns the rows for which keep returns true
func (t *Table) Filter(keep func(row int) bool) *Table {
	indices := make([]int, 0, t.nrows)
	for r := 0; r < t.nrows; r++ {
		if keep(r) {
			indices = append(indices, r)
		}
	}
	return t.Take(indices)
}

// Reorder returns a table whose columns follow order; columns not listed keep their
// relative order after the listed ones, and listed names absent from t are ignored
func (t *Table) Reorder(order []string) *Table {
	names := make([]string, 0, len(t.names))
	seen := make(map[string]bool, len(t.names))
	for _, n := range order {
		if t.HasColumn(n) && !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	for _, n := range t.names {
		if !seen[n] {
			names = append(names, n)
		}
	}
	out, _ := t.Select(names...)
	return out
}

// InferTypes converts text columns to int, float or bool where every value allows it
func (t *Table) InferTypes() *Table {
	out := t.shallow()
	for i, col := range t.data {
		out.data[i] = inferColumn(col)
	}
	return out
}

// ColumnKind returns the kind shared by the non-null values of a column.
// Mixed ints and floats are float; any other mix is string.
func (t *Table) ColumnKind(name string) Kind {
	values, ok := t.Column(name)
	if !ok {
		return KindNull
	}
	kind := KindNull
	for _, v := range values {
		k := KindOf(v)
		switch {
		case k == KindNull || k == kind:
		case kind == KindNull:
			kind = k
		case (kind == KindInt && k == KindFloat) || (kind == KindFloat && k == KindInt):
			kind = KindFloat
		default:
			return KindString
		}
	}
	return kind
}

// Concat stacks tables vertically. The result has the union of columns in
// first-seen order; cells of columns missing from a table are null.
func Concat(tables ...*Table) *Table {
	var names []string
	seen := make(map[string]bool)
	total := 0
	for _, t := range tables {
		if t == nil {
			continue
		}
		total += t.nrows
		for _, n := range t.names {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	out := New(names...)
	out.nrows = total
	for c, name := range names {
		values := make([]any, 0, total)
		for _, t := range tables {
			if t == nil {
				continue
			}
			if col, ok := t.Column(name); ok {
				values = append(values, col...)
			} else {
				values = append(values, make([]any, t.nrows)...)
			}
		}
		out.data[c] = values
	}
	return out
}

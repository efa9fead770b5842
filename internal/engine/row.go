// Package engine implements the query planner and executor (spec
// §4.I): index-path and full-scan strategies over a single table,
// followed by the post-filter stage (WHERE, ORDER BY, LIMIT,
// projection).
package engine

import "github.com/abelmoreno/sqlitereader/internal/value"

// Row is an order-preserving mapping from column name to value (spec
// §6 "A row is an order-preserving mapping from column name to value").
type Row struct {
	Columns []string
	Values  []value.Value
}

// Get looks up a column's value by name.
func (r Row) Get(col string) (value.Value, bool) {
	for i, c := range r.Columns {
		if c == col {
			return r.Values[i], true
		}
	}
	return value.Value{}, false
}

// Project returns a copy of the row retaining only the named columns,
// in the order requested. A name absent from the row is skipped.
func (r Row) Project(cols []string) Row {
	out := Row{Columns: make([]string, 0, len(cols)), Values: make([]value.Value, 0, len(cols))}
	for _, c := range cols {
		if v, ok := r.Get(c); ok {
			out.Columns = append(out.Columns, c)
			out.Values = append(out.Values, v)
		}
	}
	return out
}

func (r Row) clone() Row {
	cols := make([]string, len(r.Columns))
	copy(cols, r.Columns)
	vals := make([]value.Value, len(r.Values))
	copy(vals, r.Values)
	return Row{Columns: cols, Values: vals}
}

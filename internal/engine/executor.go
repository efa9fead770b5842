package engine

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/abelmoreno/sqlitereader/internal/btree"
	"github.com/abelmoreno/sqlitereader/internal/query"
	"github.com/abelmoreno/sqlitereader/internal/schema"
	"github.com/abelmoreno/sqlitereader/internal/value"
)

// DefaultRowScanCap and DefaultRowErrorCap bound a full scan (spec
// §4.I): they turn a pathological file into a clean early termination
// rather than unbounded memory growth or a crash.
const (
	DefaultRowScanCap  = 1_000_000
	DefaultRowErrorCap = 100
)

// Executor runs SelectQuery values against a single table's B-trees.
type Executor struct {
	reader      btree.PageReader
	log         logrus.FieldLogger
	rowScanCap  int
	rowErrorCap int
}

// New creates an Executor backed by reader. A rowScanCap or
// rowErrorCap of zero selects the package defaults.
func New(reader btree.PageReader, log logrus.FieldLogger, rowScanCap, rowErrorCap int) *Executor {
	if log == nil {
		log = logrus.New()
	}
	if rowScanCap <= 0 {
		rowScanCap = DefaultRowScanCap
	}
	if rowErrorCap <= 0 {
		rowErrorCap = DefaultRowErrorCap
	}
	return &Executor{reader: reader, log: log, rowScanCap: rowScanCap, rowErrorCap: rowErrorCap}
}

// Execute runs q against table, returning the final row set after
// planning, scanning, filtering, ordering, limiting, and projecting
// (spec §4.I).
func (ex *Executor) Execute(q *query.SelectQuery, table *schema.TableInfo) ([]Row, error) {
	var rows []Row
	var err error

	if q.Where != nil {
		plans, allIndexed := planBranches(q.Where, table.Indexes)
		if allIndexed {
			rows, err = ex.indexPath(plans, table)
		} else {
			rows, err = ex.fullScan(table)
		}
	} else {
		rows, err = ex.fullScan(table)
	}
	if err != nil {
		return nil, err
	}

	if q.Where != nil {
		filtered := rows[:0]
		for _, r := range rows {
			if query.Evaluate(q.Where, r.Get) {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	if q.OrderBy != nil {
		ob := *q.OrderBy
		sort.SliceStable(rows, func(i, j int) bool {
			vi, _ := rows[i].Get(ob.Column)
			vj, _ := rows[j].Get(ob.Column)
			if ob.Ascending {
				return value.Less(vi, vj)
			}
			return value.Less(vj, vi)
		})
	}

	if q.Limit != nil && *q.Limit < len(rows) {
		rows = rows[:*q.Limit]
	}

	if q.Projection != nil {
		projected := make([]Row, len(rows))
		for i, r := range rows {
			projected[i] = r.Project(q.Projection)
		}
		rows = projected
	}

	return rows, nil
}

// Count runs the row-counting path for count_table_rows (spec §6): a
// full scan whose only output is the surviving row count, sharing the
// same deleted-row and error-bound semantics as a normal scan.
func (ex *Executor) Count(table *schema.TableInfo) (int, error) {
	rows, err := ex.fullScan(table)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// indexPath resolves each branch's equality key prefix against its
// chosen index, unions the candidate rowids, and point-looks-up each
// one in the table B-tree (spec §4.I "Index path").
func (ex *Executor) indexPath(plans []plan, table *schema.TableInfo) ([]Row, error) {
	rowids := make(map[int64]struct{})
	for _, p := range plans {
		keyPrefix := make([]value.Value, len(p.keys))
		for i, lit := range p.keys {
			keyPrefix[i] = lit.ToValue()
		}
		idxCursor := btree.NewCursor(ex.reader, p.index.RootPage, ex.log)
		found, err := idxCursor.FindRowidsByKey(keyPrefix)
		if err != nil {
			return nil, fmt.Errorf("index path: %w", err)
		}
		for r := range found {
			rowids[r] = struct{}{}
		}
	}

	tableCursor := btree.NewCursor(ex.reader, table.RootPage, ex.log)
	cols := table.ColumnNames()
	pkIdx := table.IntegerPrimaryKeyIndex()

	var out []Row
	for rowid := range rowids {
		cell, ok, err := tableCursor.FindCell(rowid)
		if err != nil {
			return nil, fmt.Errorf("index path: point lookup: %w", err)
		}
		if !ok {
			continue
		}
		out = append(out, materializeRow(cols, pkIdx, rowid, cell.Values))
	}
	return out, nil
}

// fullScan walks the table's root B-tree, decoding every non-deleted
// leaf cell into a Row (spec §4.I "Full scan path").
func (ex *Executor) fullScan(table *schema.TableInfo) ([]Row, error) {
	cur := btree.NewCursor(ex.reader, table.RootPage, ex.log)
	cols := table.ColumnNames()
	pkIdx := table.IntegerPrimaryKeyIndex()

	var out []Row
	for {
		cell, ok, err := cur.NextCell()
		if err != nil {
			return nil, fmt.Errorf("full scan: %w", err)
		}
		if !ok {
			break
		}
		if cur.ErrorCount() >= ex.rowErrorCap {
			ex.log.WithField("table", table.Name).Warn("full scan: row error cap reached, truncating scan")
			break
		}
		if len(out) >= ex.rowScanCap {
			ex.log.WithField("table", table.Name).Warn("full scan: row cap reached, truncating results")
			break
		}
		out = append(out, materializeRow(cols, pkIdx, cell.Rowid, cell.Values))
	}
	return out, nil
}

// materializeRow zips decoded column values against the table's
// declared column list, substituting the cell's rowid for the
// INTEGER PRIMARY KEY column when one was detected (spec §4.G, §4.I).
func materializeRow(cols []string, pkIdx int, rowid int64, vals []value.Value) Row {
	values := make([]value.Value, len(cols))
	for i := range cols {
		if i == pkIdx {
			values[i] = value.NewInteger(rowid)
			continue
		}
		if i < len(vals) {
			values[i] = vals[i]
		} else {
			values[i] = value.Null
		}
	}
	return Row{Columns: cols, Values: values}
}

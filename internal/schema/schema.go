// Package schema loads the catalog of tables and indexes from the
// sqlite_master meta-table (spec §4.G): it traverses the table B-tree
// rooted at page 1, decodes each five-tuple schema record, and parses
// the embedded DDL text to recover column names and indexed columns.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/xwb1989/sqlparser"

	"github.com/abelmoreno/sqlitereader/internal/btree"
	"github.com/abelmoreno/sqlitereader/internal/value"
)

// maxObjects bounds the number of schema objects a single catalog load
// will accept (spec §4.G).
const maxObjects = 10_000

// maxDDLSize is the size above which a DDL text is skipped with a
// warning rather than parsed.
const maxDDLSize = 1 << 20

// Column describes one column of a table in declaration order.
type Column struct {
	Name             string
	IntegerPrimaryKey bool
}

// TableInfo is the catalog entry for one user table.
type TableInfo struct {
	Name     string
	RootPage int
	SQL      string
	Columns  []Column
	Indexes  []*IndexInfo
}

// ColumnNames returns the table's column names in declaration order.
func (t *TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// IntegerPrimaryKeyIndex returns the position of the INTEGER PRIMARY
// KEY column, or -1 if the table has none.
func (t *TableInfo) IntegerPrimaryKeyIndex() int {
	for i, c := range t.Columns {
		if c.IntegerPrimaryKey {
			return i
		}
	}
	return -1
}

// IndexInfo is the catalog entry for one user index.
type IndexInfo struct {
	Name     string
	Table    string
	RootPage int
	SQL      string
	Columns  []string
}

// Catalog is the in-memory map from table name to schema information,
// preloaded once at database open (spec §9 "Catalog is preloaded").
type Catalog struct {
	Tables []*TableInfo
	byName map[string]*TableInfo
}

// Table looks up a table by name, returning ok=false if absent.
func (c *Catalog) Table(name string) (*TableInfo, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Names returns user table names (excluding sqlite_*) in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Tables))
	for _, t := range c.Tables {
		names = append(names, t.Name)
	}
	return names
}

type rawObject struct {
	objType  string
	name     string
	tblName  string
	rootPage int
	sql      string
}

// Load traverses the meta-table rooted at rootPage (ordinarily page 1)
// and builds a Catalog. Failures on individual objects are logged and
// skipped; Load fails only when the root page itself cannot be read.
func Load(reader btree.PageReader, rootPage int, log logrus.FieldLogger) (*Catalog, error) {
	if log == nil {
		log = logrus.New()
	}
	if _, err := reader.ReadPage(rootPage); err != nil {
		return nil, fmt.Errorf("schema: reading root page %d: %w", rootPage, err)
	}
	cur := btree.NewCursor(reader, rootPage, log)

	var objects []rawObject
	for {
		cell, ok, err := cur.NextCell()
		if err != nil {
			return nil, fmt.Errorf("schema: reading meta-table: %w", err)
		}
		if !ok {
			break
		}
		if len(objects) >= maxObjects {
			log.Warn("schema: object count exceeds bound, truncating catalog")
			break
		}
		obj, ok := decodeSchemaRow(cell.Values)
		if !ok {
			log.WithField("rowid", cell.Rowid).Warn("schema: skipping malformed schema row")
			continue
		}
		objects = append(objects, obj)
	}

	cat := &Catalog{byName: make(map[string]*TableInfo)}
	indexesByTable := make(map[string][]*IndexInfo)

	for _, obj := range objects {
		if obj.objType != "table" || strings.HasPrefix(obj.name, "sqlite_") {
			continue
		}
		if len(obj.sql) > maxDDLSize {
			log.WithField("table", obj.name).Warn("schema: DDL text exceeds size bound, skipping")
			continue
		}
		cols, err := parseTableColumns(obj.sql)
		if err != nil {
			log.WithField("table", obj.name).WithError(err).Warn("schema: failed to parse CREATE TABLE, skipping")
			continue
		}
		ti := &TableInfo{Name: obj.name, RootPage: obj.rootPage, SQL: obj.sql, Columns: cols}
		cat.Tables = append(cat.Tables, ti)
		cat.byName[obj.name] = ti
	}

	for _, obj := range objects {
		if obj.objType != "index" || strings.HasPrefix(obj.name, "sqlite_") {
			continue
		}
		if len(obj.sql) > maxDDLSize {
			log.WithField("index", obj.name).Warn("schema: DDL text exceeds size bound, skipping")
			continue
		}
		tableName := obj.tblName
		cols := parseIndexColumns(obj.sql)
		if tableName == "" || len(cols) == 0 {
			log.WithField("index", obj.name).Warn("schema: failed to parse CREATE INDEX, skipping")
			continue
		}
		ii := &IndexInfo{Name: obj.name, Table: tableName, RootPage: obj.rootPage, SQL: obj.sql, Columns: cols}
		indexesByTable[tableName] = append(indexesByTable[tableName], ii)
	}

	for _, ti := range cat.Tables {
		ti.Indexes = indexesByTable[ti.Name]
	}

	return cat, nil
}

// decodeSchemaRow interprets a sqlite_master record's five declared
// columns (type, name, tbl_name, rootpage, sql).
func decodeSchemaRow(vals []value.Value) (rawObject, bool) {
	if len(vals) < 5 {
		return rawObject{}, false
	}
	typ, ok := vals[0].Text()
	if !ok {
		return rawObject{}, false
	}
	name, ok := vals[1].Text()
	if !ok {
		return rawObject{}, false
	}
	tblName, _ := vals[2].Text()
	root, ok := vals[3].Int()
	if !ok {
		// A schema object with a NULL rootpage (e.g. a trigger) carries
		// no physical page; treat as an empty/irrelevant root rather
		// than failing the row outright.
		root = 0
	}
	sqlText, _ := vals[4].Text()
	return rawObject{objType: typ, name: name, tblName: tblName, rootPage: int(root), sql: sqlText}, true
}

var integerPrimaryKeyPattern = regexp.MustCompile(`(?i)\bINTEGER\s+PRIMARY\s+KEY\b`)

// parseTableColumns parses a CREATE TABLE statement with a real SQL
// parser and returns its columns in declaration order, flagging the
// one that serves as the table's INTEGER PRIMARY KEY alias for rowid.
func parseTableColumns(ddl string) ([]Column, error) {
	normalized := normalizeBracketing(ddl)
	stmt, err := sqlparser.Parse(normalized)
	if err != nil {
		return nil, fmt.Errorf("parsing DDL: %w", err)
	}
	ddlStmt, ok := stmt.(*sqlparser.DDL)
	if !ok || ddlStmt.Action != "create" || ddlStmt.TableSpec == nil {
		return nil, fmt.Errorf("not a CREATE TABLE statement")
	}

	columns := make([]Column, len(ddlStmt.TableSpec.Columns))
	for i, col := range ddlStmt.TableSpec.Columns {
		name := col.Name.String()
		isInteger := strings.EqualFold(col.Type.Type, "integer") || strings.EqualFold(col.Type.Type, "int")
		// sqlparser exposes AUTO_INCREMENT as a parsed column attribute,
		// but a plain "INTEGER PRIMARY KEY" column (no AUTOINCREMENT) is
		// otherwise indistinguishable through its exported fields, so we
		// additionally pattern-match the declaration for that column name
		// against the source DDL text.
		isPK := (isInteger && bool(col.Type.Autoincrement)) ||
			(isInteger && columnDeclaredAsPrimaryKey(normalized, name))
		columns[i] = Column{Name: name, IntegerPrimaryKey: isPK}
	}
	return columns, nil
}

// columnDeclaredAsPrimaryKey checks whether colName's column definition
// in the (already bracket-normalized) DDL text is followed, before the
// next comma or closing paren, by "INTEGER PRIMARY KEY".
func columnDeclaredAsPrimaryKey(ddl, colName string) bool {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(colName) + `\b([^,)]*)`)
	m := re.FindStringSubmatch(ddl)
	if m == nil {
		return false
	}
	return integerPrimaryKeyPattern.MatchString(m[1])
}

// normalizeBracketing rewrites SQLite's three bracketing conventions
// ("x", `x`, [x]) into the bare or backtick form sqlparser accepts,
// per spec §4.G.
func normalizeBracketing(sql string) string {
	sql = strings.ReplaceAll(sql, `"`, "`")
	sql = bracketPattern.ReplaceAllString(sql, "`$1`")
	return sql
}

var bracketPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// parseIndexColumns extracts the column list of a CREATE INDEX
// statement via a minimal string extractor (spec §4.G): it is not run
// through the DDL parser because the grammar is tiny and fixed. The
// target table is not parsed here; Load takes it from the
// sqlite_master row's tbl_name column.
func parseIndexColumns(sql string) []string {
	normalized := normalizeBracketing(sql)
	start := strings.LastIndex(normalized, "(")
	end := strings.LastIndex(normalized, ")")
	if start == -1 || end == -1 || start >= end {
		return nil
	}
	parts := strings.Split(normalized[start+1:end], ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, "`")
		if p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}

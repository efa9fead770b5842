// Package sqlitereader is a read-only engine for the SQLite 3 on-disk
// file format: it parses pages, walks B-trees, loads the schema
// catalog, and executes a restricted SELECT grammar directly against
// the file, without linking SQLite itself.
package sqlitereader

import (
	"fmt"
	"os"
	"strings"

	"github.com/edsrzf/mmap-go"
	"github.com/sirupsen/logrus"

	"github.com/abelmoreno/sqlitereader/internal/btree"
	"github.com/abelmoreno/sqlitereader/internal/cache"
	"github.com/abelmoreno/sqlitereader/internal/engine"
	"github.com/abelmoreno/sqlitereader/internal/header"
	"github.com/abelmoreno/sqlitereader/internal/page"
	"github.com/abelmoreno/sqlitereader/internal/query"
	"github.com/abelmoreno/sqlitereader/internal/schema"
	"github.com/abelmoreno/sqlitereader/internal/value"
)

// Row and Value are re-exported so callers never need to import the
// engine's internal packages directly.
type Row = engine.Row
type Value = value.Value

// Database owns the file handle (and, where available, a memory map),
// the parsed header, the preloaded catalog, and the page cache (spec
// §4.J). All reads are self-consistent: the catalog and header are
// snapshot at Open and never re-read.
type Database struct {
	file    *os.File
	mapped  mmap.MMap
	source  []byte
	header  *header.FileHeader
	catalog *schema.Catalog
	cache   *cache.Cache
	reader  btree.PageReader
	exec    *engine.Executor
	log     logrus.FieldLogger
}

// Open opens the SQLite file at path, parses its header, and preloads
// the schema catalog. The returned Database is a mutable, non-
// shareable handle (spec §5): use one instance per concurrent caller.
func Open(path string, opts ...OpenOption) (*Database, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, newError("open", KindIo, err, "path", path)
	}

	headerBuf := make([]byte, header.Size)
	if _, err := f.ReadAt(headerBuf, 0); err != nil {
		f.Close()
		return nil, newError("open", KindIo, err, "path", path)
	}
	fh, err := header.Parse(headerBuf)
	if err != nil {
		f.Close()
		return nil, newError("open", KindInvalidFormat, err, "path", path)
	}

	db := &Database{file: f, header: fh, log: cfg.logger}

	if cfg.memoryMap {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			f.Close()
			return nil, newError("open", KindIo, err, "path", path, "detail", "memory map failed")
		}
		db.mapped = m
		db.source = []byte(m)
	}

	loader := func(pageNumber int) (*page.Page, error) {
		return db.loadPage(pageNumber)
	}
	db.cache = cache.New(cfg.pageCacheSize, loader)
	db.reader = cachedReader{db.cache}
	db.exec = engine.New(db.reader, db.log, cfg.rowScanCap, cfg.rowErrorCap)

	catalog, err := schema.Load(db.reader, 1, db.log)
	if err != nil {
		f.Close()
		return nil, newError("open", KindSchemaError, err, "path", path, "detail", "loading sqlite_master")
	}
	db.catalog = catalog

	return db, nil
}

// cachedReader adapts the page cache to btree.PageReader.
type cachedReader struct{ c *cache.Cache }

func (r cachedReader) ReadPage(n int) (*page.Page, error) { return r.c.Get(n) }

// loadPage reads pageNumber's raw bytes from the backing image (via
// the memory map if enabled, otherwise a positioned read) and parses
// it (spec §5 "Blocking").
func (db *Database) loadPage(pageNumber int) (*page.Page, error) {
	pageSize := db.header.PageSize
	offset := int64(pageNumber-1) * int64(pageSize)

	var raw []byte
	if db.source != nil {
		if offset < 0 || offset+int64(pageSize) > int64(len(db.source)) {
			return nil, fmt.Errorf("page %d out of bounds", pageNumber)
		}
		raw = db.source[offset : offset+int64(pageSize)]
	} else {
		buf := make([]byte, pageSize)
		if _, err := db.file.ReadAt(buf, offset); err != nil {
			return nil, fmt.Errorf("reading page %d: %w", pageNumber, err)
		}
		raw = buf
	}
	return page.Parse(raw, pageNumber)
}

// Close releases the backing file and, if mapped, the memory map.
func (db *Database) Close() error {
	var mapErr error
	if db.mapped != nil {
		mapErr = db.mapped.Unmap()
	}
	if err := db.file.Close(); err != nil {
		return err
	}
	return mapErr
}

// Header exposes the parsed 100-byte file header verbatim (spec §6).
func (db *Database) Header() header.FileHeader { return *db.header }

// SchemaCookie returns the schema-change counter from the file header.
func (db *Database) SchemaCookie() uint32 { return db.header.SchemaCookie }

// Tables lists user table names, excluding sqlite_* internal tables.
func (db *Database) Tables() []string { return db.catalog.Names() }

// GetTableColumns returns name's declared column list in order.
func (db *Database) GetTableColumns(name string) ([]string, error) {
	ti, ok := db.catalog.Table(name)
	if !ok {
		return nil, newError("get_table_columns", KindTableNotFound, fmt.Errorf("no such table: %s", name), "table", name)
	}
	return ti.ColumnNames(), nil
}

// ReadTable reads every surviving row of name (SELECT * FROM name).
func (db *Database) ReadTable(name string) ([]Row, error) {
	return db.ExecuteQuery(&query.SelectQuery{Table: name})
}

// ReadTableLimited reads at most n rows of name.
func (db *Database) ReadTableLimited(name string, n int) ([]Row, error) {
	return db.ExecuteQuery(&query.SelectQuery{Table: name, Limit: &n})
}

// CountTableRows counts name's surviving (non-deleted) rows.
func (db *Database) CountTableRows(name string) (uint64, error) {
	ti, ok := db.catalog.Table(name)
	if !ok {
		return 0, newError("count_table_rows", KindTableNotFound, fmt.Errorf("no such table: %s", name), "table", name)
	}
	n, err := db.exec.Count(ti)
	if err != nil {
		return 0, newError("count_table_rows", KindInvalidFormat, err, "table", name)
	}
	return uint64(n), nil
}

// ExecuteQuery runs an already-parsed query against the catalog.
func (db *Database) ExecuteQuery(q *query.SelectQuery) ([]Row, error) {
	ti, ok := db.catalog.Table(q.Table)
	if !ok {
		return nil, newError("execute_query", KindTableNotFound, fmt.Errorf("no such table: %s", q.Table), "table", q.Table)
	}

	rows, err := db.exec.Execute(q, ti)
	if err != nil {
		return nil, newError("execute_query", KindInvalidFormat, err, "table", q.Table)
	}
	return rows, nil
}

// ExecuteSQL parses and runs a single SELECT statement (spec §6 "SQL surface").
func (db *Database) ExecuteSQL(text string) ([]Row, error) {
	q, err := query.Parse(text)
	if err != nil {
		return nil, newError("execute_sql", KindQueryError, err, "sql", text)
	}
	q.Table = strings.TrimSpace(q.Table)
	return db.ExecuteQuery(q)
}

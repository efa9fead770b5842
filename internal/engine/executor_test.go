package engine

import (
	"testing"

	"github.com/abelmoreno/sqlitereader/internal/page"
	"github.com/abelmoreno/sqlitereader/internal/query"
	"github.com/abelmoreno/sqlitereader/internal/schema"
)

func encodeRecord(cols ...interface{}) []byte {
	var serialTypes []byte
	var body []byte
	for _, c := range cols {
		switch v := c.(type) {
		case nil:
			serialTypes = append(serialTypes, 0)
		case int64:
			serialTypes = append(serialTypes, 1)
			body = append(body, byte(v))
		case string:
			serialTypes = append(serialTypes, byte(13+len(v)*2))
			body = append(body, []byte(v)...)
		}
	}
	header := append([]byte{byte(1 + len(serialTypes))}, serialTypes...)
	return append(header, body...)
}

func buildLeafTableCell(rowid int64, payload []byte) []byte {
	out := []byte{byte(len(payload)), byte(rowid)}
	return append(out, payload...)
}

func buildLeafTablePage(pageSize int, pageType page.Type, cells [][]byte) []byte {
	buf := make([]byte, pageSize)
	buf[0] = byte(pageType)
	n := len(cells)
	buf[3] = byte(n >> 8)
	buf[4] = byte(n)
	contentEnd := pageSize
	offsets := make([]int, n)
	for i, cell := range cells {
		contentEnd -= len(cell)
		copy(buf[contentEnd:], cell)
		offsets[i] = contentEnd
	}
	for i, off := range offsets {
		p := 8 + i*2
		buf[p] = byte(off >> 8)
		buf[p+1] = byte(off)
	}
	return buf
}

type fakeReader struct {
	pages map[int][]byte
}

func (f *fakeReader) ReadPage(num int) (*page.Page, error) {
	raw, ok := f.pages[num]
	if !ok {
		return nil, nil
	}
	return page.Parse(raw, num)
}

// usersTableFixture builds a table page with users(id INTEGER PRIMARY
// KEY, name TEXT, age INTEGER), rows (1,"Ada",36), (2,"Bea",21),
// (3,"Cal",44), plus an index on name rooted at page 3.
func usersTableFixture() (*fakeReader, *schema.TableInfo) {
	const pageSize = 512
	tablePage := buildLeafTablePage(pageSize, page.TypeLeafTable, [][]byte{
		buildLeafTableCell(1, encodeRecord(nil, "Ada", int64(36))),
		buildLeafTableCell(2, encodeRecord(nil, "Bea", int64(21))),
		buildLeafTableCell(3, encodeRecord(nil, "Cal", int64(44))),
	})
	indexPage := buildLeafTablePage(pageSize, page.TypeLeafIndex, [][]byte{
		func() []byte {
			payload := encodeRecord("Bea", int64(2))
			return append([]byte{byte(len(payload))}, payload...)
		}(),
	})

	reader := &fakeReader{pages: map[int][]byte{2: tablePage, 3: indexPage}}
	table := &schema.TableInfo{
		Name:     "users",
		RootPage: 2,
		Columns: []schema.Column{
			{Name: "id", IntegerPrimaryKey: true},
			{Name: "name"},
			{Name: "age"},
		},
		Indexes: []*schema.IndexInfo{
			{Name: "idx_name", Table: "users", RootPage: 3, Columns: []string{"name"}},
		},
	}
	return reader, table
}

func TestExecuteSelectStar(t *testing.T) {
	reader, table := usersTableFixture()
	q, err := query.Parse("SELECT * FROM users")
	if err != nil {
		t.Fatal(err)
	}
	ex := New(reader, nil, 0, 0)
	rows, err := ex.Execute(q, table)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if v, _ := rows[0].Get("id"); v.String() != "1" {
		t.Errorf("row[0].id = %v, want 1 (from rowid)", v)
	}
}

func TestExecuteOrderByLimitProjection(t *testing.T) {
	reader, table := usersTableFixture()
	q, err := query.Parse("SELECT name FROM users WHERE age > 30 ORDER BY name DESC LIMIT 1")
	if err != nil {
		t.Fatal(err)
	}
	ex := New(reader, nil, 0, 0)
	rows, err := ex.Execute(q, table)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if v, ok := rows[0].Get("name"); !ok || v.String() != "Cal" {
		t.Errorf("row = %+v, want name=Cal", rows[0])
	}
	if len(rows[0].Columns) != 1 {
		t.Errorf("projection should retain only 'name', got %v", rows[0].Columns)
	}
}

func TestExecuteIndexPathMatchesFullScan(t *testing.T) {
	reader, table := usersTableFixture()

	withIndex, err := query.Parse("SELECT * FROM users WHERE name = 'Bea'")
	if err != nil {
		t.Fatal(err)
	}
	ex := New(reader, nil, 0, 0)
	indexRows, err := ex.Execute(withIndex, table)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	noIndexTable := *table
	noIndexTable.Indexes = nil
	scanRows, err := ex.Execute(withIndex, &noIndexTable)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(indexRows) != 1 || len(scanRows) != 1 {
		t.Fatalf("index path rows=%d, full scan rows=%d, want 1 each", len(indexRows), len(scanRows))
	}
	vi, _ := indexRows[0].Get("id")
	vs, _ := scanRows[0].Get("id")
	if vi.String() != vs.String() {
		t.Errorf("index path and full scan disagree: %v vs %v", vi, vs)
	}
}

func TestExecuteBetween(t *testing.T) {
	reader, table := usersTableFixture()
	q, err := query.Parse("SELECT * FROM users WHERE age BETWEEN 20 AND 40")
	if err != nil {
		t.Fatal(err)
	}
	ex := New(reader, nil, 0, 0)
	rows, err := ex.Execute(q, table)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (Ada, Bea)", len(rows))
	}
}

func TestExecuteLikeOr(t *testing.T) {
	reader, table := usersTableFixture()
	q, err := query.Parse("SELECT * FROM users WHERE name LIKE 'B%' OR name LIKE '%l'")
	if err != nil {
		t.Fatal(err)
	}
	ex := New(reader, nil, 0, 0)
	rows, err := ex.Execute(q, table)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (Bea, Cal)", len(rows))
	}
}

func TestExecuteIsNullEmpty(t *testing.T) {
	reader, table := usersTableFixture()
	q, err := query.Parse("SELECT * FROM users WHERE age IS NULL")
	if err != nil {
		t.Fatal(err)
	}
	ex := New(reader, nil, 0, 0)
	rows, err := ex.Execute(q, table)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestCount(t *testing.T) {
	reader, table := usersTableFixture()
	ex := New(reader, nil, 0, 0)
	n, err := ex.Count(table)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

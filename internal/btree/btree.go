// Package btree implements the stateful cursor that performs ordered
// traversal and keyed lookup over table and index B-trees (spec §4.E).
package btree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/abelmoreno/sqlitereader/internal/page"
	"github.com/abelmoreno/sqlitereader/internal/record"
	"github.com/abelmoreno/sqlitereader/internal/value"
	"github.com/abelmoreno/sqlitereader/internal/varint"
)

// ErrInvalidFormat is returned when a traversal exceeds its iteration
// ceiling. A revisited page (a cycle) is not an error: it is logged and
// its subtree is skipped.
var ErrInvalidFormat = errors.New("invalid b-tree structure")

// maxNodeVisits bounds the number of pages a single traversal may visit
// (spec §4.E "Hard ceiling: 100,000 node visits per traversal").
const maxNodeVisits = 100_000

// PageReader materializes a page by number. Implementations typically
// wrap a page cache (internal/cache) over the database file.
type PageReader interface {
	ReadPage(pageNumber int) (*page.Page, error)
}

// Cell is a decoded leaf cell returned by a traversal: a table-leaf cell
// carries Rowid and Values; an index-leaf cell carries Values (the
// indexed columns followed by the trailing rowid) and Rowid set from
// that trailing value.
type Cell struct {
	Rowid  int64
	Values []value.Value
}

// frame is one level of the explicit traversal stack: the page being
// walked, the next cell index to visit, and whether the right-child (or,
// for a cell, its left child) has already been descended into.
type frame struct {
	pg            *page.Page
	nextCell      int
	descendedLeft bool // for the current nextCell, has its left child been visited?
	visitedRight  bool
}

// Cursor performs an in-order traversal of a single B-tree rooted at
// rootPage, returning leaf cells in key order. The traversal is modeled
// as an explicit stack rather than recursion so a malformed file cannot
// exhaust the Go call stack and so page cycles are easy to detect via a
// visited set.
type Cursor struct {
	reader   PageReader
	rootPage int
	log      logrus.FieldLogger

	stack    []frame
	visited  map[int]bool
	visits   int
	started  bool
	done     bool
	errCount int
}

// ErrorCount reports how many malformed cells this cursor has skipped,
// for callers enforcing a per-scan error bound (spec §4.I).
func (c *Cursor) ErrorCount() int { return c.errCount }

// NewCursor creates a cursor for the B-tree rooted at rootPage. log may
// be nil, in which case a standalone logrus.New() logger is used.
func NewCursor(reader PageReader, rootPage int, log logrus.FieldLogger) *Cursor {
	if log == nil {
		log = logrus.New()
	}
	return &Cursor{reader: reader, rootPage: rootPage, log: log}
}

func (c *Cursor) init() error {
	c.visited = make(map[int]bool)
	root, err := c.loadPage(c.rootPage)
	if err != nil {
		return err
	}
	c.stack = append(c.stack, frame{pg: root})
	c.started = true
	return nil
}

func (c *Cursor) loadPage(num int) (*page.Page, error) {
	if c.visited[num] {
		// A repeat visit indicates a corrupted file; abandon the subtree
		// silently rather than looping.
		c.log.WithField("page", num).Warn("btree: page revisited, abandoning subtree")
		return nil, nil
	}
	c.visits++
	if c.visits > maxNodeVisits {
		return nil, fmt.Errorf("%w: exceeded %d node visits", ErrInvalidFormat, maxNodeVisits)
	}
	c.visited[num] = true
	pg, err := c.reader.ReadPage(num)
	if err != nil {
		c.log.WithField("page", num).WithError(err).Warn("btree: failed to read page, abandoning subtree")
		return nil, nil
	}
	return pg, nil
}

// NextCell returns the next leaf cell in key order, or ok=false when the
// traversal is exhausted.
func (c *Cursor) NextCell() (Cell, bool, error) {
	if !c.started {
		if err := c.init(); err != nil {
			return Cell{}, false, err
		}
	}
	if c.done {
		return Cell{}, false, nil
	}

	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		if top.pg == nil {
			// Page failed to load; pop and continue from parent.
			c.stack = c.stack[:len(c.stack)-1]
			continue
		}

		if top.pg.Header.Type.IsLeaf() {
			if top.nextCell >= top.pg.CellCount() {
				c.stack = c.stack[:len(c.stack)-1]
				continue
			}
			idx := top.nextCell
			top.nextCell++
			cell, err := parseLeafCell(top.pg, idx, c.log)
			if err != nil {
				c.errCount++
				c.log.WithFields(logrus.Fields{"page": top.pg.Number, "cell": idx}).WithError(err).Warn("btree: skipping malformed leaf cell")
				continue
			}
			if cell == nil {
				continue
			}
			return *cell, true, nil
		}

		// Interior page: for the current cell, descend into its left
		// child first, then advance; after the last cell follow the
		// right-child pointer.
		if top.nextCell >= top.pg.CellCount() {
			if top.visitedRight {
				c.stack = c.stack[:len(c.stack)-1]
				continue
			}
			top.visitedRight = true
			child, err := c.loadPage(int(top.pg.Header.RightChild))
			if err != nil {
				return Cell{}, false, err
			}
			if child != nil {
				c.stack = append(c.stack, frame{pg: child})
			}
			continue
		}

		if !top.descendedLeft {
			top.descendedLeft = true
			childNum, _, err := parseInteriorTableCell(top.pg, top.nextCell)
			if err != nil {
				c.log.WithFields(logrus.Fields{"page": top.pg.Number, "cell": top.nextCell}).WithError(err).Warn("btree: skipping malformed interior cell")
				top.nextCell++
				top.descendedLeft = false
				continue
			}
			child, err := c.loadPage(childNum)
			if err != nil {
				return Cell{}, false, err
			}
			if child != nil {
				c.stack = append(c.stack, frame{pg: child})
			}
			continue
		}

		top.descendedLeft = false
		top.nextCell++
	}

	c.done = true
	return Cell{}, false, nil
}

// FindCell performs a point lookup by rowid over a table B-tree: at each
// interior node it binary-searches the sorted cell keys to choose the
// subtree whose range contains rowid, descends to a leaf, and returns the
// cell whose key matches exactly.
func (c *Cursor) FindCell(rowid int64) (Cell, bool, error) {
	pageNum := c.rootPage
	visits := 0
	for {
		visits++
		if visits > maxNodeVisits {
			return Cell{}, false, fmt.Errorf("%w: exceeded %d node visits", ErrInvalidFormat, maxNodeVisits)
		}
		pg, err := c.reader.ReadPage(pageNum)
		if err != nil {
			return Cell{}, false, nil
		}

		if pg.Header.Type.IsLeaf() {
			n := pg.CellCount()
			idx := sort.Search(n, func(i int) bool {
				cell, err := parseLeafCell(pg, i, c.log)
				if err != nil || cell == nil {
					return false
				}
				return cell.Rowid >= rowid
			})
			if idx < n {
				cell, err := parseLeafCell(pg, idx, c.log)
				if err == nil && cell != nil && cell.Rowid == rowid {
					return *cell, true, nil
				}
			}
			return Cell{}, false, nil
		}

		n := pg.CellCount()
		keys := make([]int64, n)
		children := make([]int, n)
		for i := 0; i < n; i++ {
			child, key, err := parseInteriorTableCell(pg, i)
			if err != nil {
				continue
			}
			keys[i] = key
			children[i] = child
		}
		idx := sort.Search(n, func(i int) bool { return keys[i] >= rowid })
		if idx < n {
			pageNum = children[idx]
		} else {
			pageNum = int(pg.Header.RightChild)
		}
	}
}

// FindRowidsByKey walks an index B-tree collecting the trailing rowid of
// every index record whose leading columns equal keyPrefix value-wise
// (composite-index prefix matching, spec §4.E).
func (c *Cursor) FindRowidsByKey(keyPrefix []value.Value) (map[int64]struct{}, error) {
	result := make(map[int64]struct{})
	cur := NewCursor(c.reader, c.rootPage, c.log)
	for {
		cell, ok, err := cur.NextCell()
		if err != nil {
			return result, err
		}
		if !ok {
			break
		}
		if matchesPrefix(cell.Values, keyPrefix) {
			result[cell.Rowid] = struct{}{}
		}
	}
	return result, nil
}

func matchesPrefix(values []value.Value, prefix []value.Value) bool {
	if len(prefix) > len(values) {
		return false
	}
	for i, want := range prefix {
		if !value.Equal(values[i], want) {
			return false
		}
	}
	return true
}

// parseLeafCell decodes the idx-th cell of a leaf page, dispatching to
// parseLeafTableCell or parseLeafIndexCell by page type.
// parseLeafTableCell reads payload_size, rowid, then exactly payload_size
// bytes of payload, decoding the payload into a Cell.
func parseLeafCell(pg *page.Page, idx int, log logrus.FieldLogger) (*Cell, error) {
	if pg.Header.Type.IsTable() {
		return parseLeafTableCell(pg, idx)
	}
	return parseLeafIndexCell(pg, idx)
}

func parseLeafTableCell(pg *page.Page, idx int) (*Cell, error) {
	off := pg.CellOffset(idx)
	buf, err := pg.CellContent(off)
	if err != nil {
		return nil, err
	}

	payloadSize, n1, err := varint.DecodeAt(buf, 0)
	if err != nil {
		return nil, err
	}
	rowid, n2, err := varint.DecodeAt(buf, n1)
	if err != nil {
		return nil, err
	}
	if n2+int(payloadSize) > len(buf) {
		return nil, fmt.Errorf("leaf table cell payload extends beyond page: need %d, have %d", n2+int(payloadSize), len(buf))
	}
	payload := buf[n2 : n2+int(payloadSize)]
	if len(payload) == 0 {
		// A cell with an empty payload is a deleted row — not returned,
		// not an error.
		return nil, nil
	}
	vals, err := record.Decode(payload)
	if err != nil {
		return nil, err
	}
	return &Cell{Rowid: rowid, Values: vals}, nil
}

// parseInteriorTableCell reads the 4-byte left-child pointer and the
// rowid key of a table interior cell. The child pointer occupies the
// same leading 4 bytes in an index interior cell, so callers that only
// need the child (traversal descent) may reuse this against an index
// page and discard the second return value — only FindCell relies on
// the rowid itself, and it only ever walks table B-trees.
func parseInteriorTableCell(pg *page.Page, idx int) (childPage int, rowid int64, err error) {
	off := pg.CellOffset(idx)
	buf, err := pg.CellContent(off)
	if err != nil {
		return 0, 0, err
	}
	if len(buf) < 4 {
		return 0, 0, fmt.Errorf("interior table cell too short")
	}
	child := int(buf[0])<<24 | int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
	rowid, _, err = varint.DecodeAt(buf, 4)
	if err != nil {
		return 0, 0, err
	}
	return child, rowid, nil
}

func parseLeafIndexCell(pg *page.Page, idx int) (*Cell, error) {
	off := pg.CellOffset(idx)
	buf, err := pg.CellContent(off)
	if err != nil {
		return nil, err
	}
	payloadSize, n1, err := varint.DecodeAt(buf, 0)
	if err != nil {
		return nil, err
	}
	if n1+int(payloadSize) > len(buf) {
		return nil, fmt.Errorf("leaf index cell payload extends beyond page")
	}
	payload := buf[n1 : n1+int(payloadSize)]
	if len(payload) == 0 {
		return nil, nil
	}
	vals, err := record.Decode(payload)
	if err != nil {
		return nil, err
	}
	var rowid int64
	if len(vals) > 0 {
		if i, ok := vals[len(vals)-1].Int(); ok {
			rowid = i
		}
	}
	return &Cell{Rowid: rowid, Values: vals}, nil
}

// Package page interprets a raw SQLite page buffer as a header, an
// optional interior right-child pointer, a cell-pointer array, and the
// cell bodies those pointers address.
package page

import (
	"encoding/binary"
	"fmt"
)

// Type is the one-byte page-type tag at the start of every B-tree page.
type Type uint8

const (
	TypeInteriorIndex Type = 0x02
	TypeInteriorTable Type = 0x05
	TypeLeafIndex     Type = 0x0a
	TypeLeafTable     Type = 0x0d
)

func (t Type) String() string {
	switch t {
	case TypeInteriorIndex:
		return "interior-index"
	case TypeInteriorTable:
		return "interior-table"
	case TypeLeafIndex:
		return "leaf-index"
	case TypeLeafTable:
		return "leaf-table"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

func (t Type) IsLeaf() bool {
	return t == TypeLeafIndex || t == TypeLeafTable
}

func (t Type) IsInterior() bool {
	return t == TypeInteriorIndex || t == TypeInteriorTable
}

func (t Type) IsTable() bool {
	return t == TypeInteriorTable || t == TypeLeafTable
}

func (t Type) IsIndex() bool {
	return t == TypeInteriorIndex || t == TypeLeafIndex
}

func (t Type) valid() bool {
	switch t {
	case TypeInteriorIndex, TypeInteriorTable, TypeLeafIndex, TypeLeafTable:
		return true
	default:
		return false
	}
}

// Header is the 8 (leaf) or 12 (interior) byte B-tree page header.
type Header struct {
	Type             Type
	FirstFreeblock   uint16
	CellCount        uint16
	CellContentStart uint16
	FragmentedBytes  uint8
	RightChild       uint32 // valid only when Type.IsInterior()
}

// Page is a parsed page: its header, cell-pointer array, and the raw
// page bytes needed to materialize cell bodies. Parsing a page never
// retains a reference into the caller's buffer for anything but the raw
// bytes themselves — callers treat a *Page as logically immutable.
type Page struct {
	Number   int
	Raw      []byte // full page bytes, including the 100-byte prefix on page 1
	bias     int    // 100 on page 1, 0 otherwise
	Header   Header
	Pointers []uint16 // absolute offsets into Raw, even on page 1
}

// ErrInvalidFormat reports a page whose header, pointer array, or offsets
// don't fit the buffer, or whose type byte is not one of the four known
// values.
type ErrInvalidFormat struct {
	PageNumber int
	Reason     string
}

func (e *ErrInvalidFormat) Error() string {
	return fmt.Sprintf("invalid page %d: %s", e.PageNumber, e.Reason)
}

// Parse interprets raw as page pageNumber (1-based). On page 1 the first
// 100 bytes are the file header, so the B-tree page header and the
// cell-pointer array are read starting at offset 100; the pointer values
// themselves stay absolute page offsets (see CellContent).
func Parse(raw []byte, pageNumber int) (*Page, error) {
	bias := 0
	if pageNumber == 1 {
		bias = 100
	}
	if len(raw) < bias+8 {
		return nil, &ErrInvalidFormat{pageNumber, "buffer too small for page header"}
	}

	body := raw[bias:]
	typ := Type(body[0])
	if !typ.valid() {
		return nil, &ErrInvalidFormat{pageNumber, fmt.Sprintf("unknown page type byte 0x%02x", body[0])}
	}

	hdr := Header{
		Type:             typ,
		FirstFreeblock:   binary.BigEndian.Uint16(body[1:3]),
		CellCount:        binary.BigEndian.Uint16(body[3:5]),
		CellContentStart: binary.BigEndian.Uint16(body[5:7]),
		FragmentedBytes:  body[7],
	}

	headerLen := 8
	if typ.IsInterior() {
		headerLen = 12
		if len(body) < 12 {
			return nil, &ErrInvalidFormat{pageNumber, "buffer too small for interior page header"}
		}
		hdr.RightChild = binary.BigEndian.Uint32(body[8:12])
	}

	ptrEnd := headerLen + int(hdr.CellCount)*2
	if ptrEnd > len(body) {
		return nil, &ErrInvalidFormat{pageNumber, "cell pointer array exceeds page bounds"}
	}
	pointers := make([]uint16, hdr.CellCount)
	for i := 0; i < int(hdr.CellCount); i++ {
		off := headerLen + i*2
		pointers[i] = binary.BigEndian.Uint16(body[off : off+2])
	}

	return &Page{
		Number:   pageNumber,
		Raw:      raw,
		bias:     bias,
		Header:   hdr,
		Pointers: pointers,
	}, nil
}

// CellContent returns the slice from the given offset to the end of
// the page. Cell pointer values — including on page 1 — are always
// relative to the absolute start of the page, never to the post-header
// body: the 100-byte file header biases where the B-tree page header
// and pointer array are read from, but not where cell content lives.
// Callers further trim this by reading the cell's own size prefix.
func (p *Page) CellContent(offset int) ([]byte, error) {
	if offset < 0 || offset > len(p.Raw) {
		return nil, &ErrInvalidFormat{p.Number, fmt.Sprintf("cell offset %d out of range", offset)}
	}
	return p.Raw[offset:], nil
}

// CellOffset returns the absolute (page-relative) offset for the i-th
// cell pointer.
func (p *Page) CellOffset(i int) int {
	return int(p.Pointers[i])
}

// CellCount is the number of cells on the page.
func (p *Page) CellCount() int { return int(p.Header.CellCount) }

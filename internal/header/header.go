// Package header parses the 100-byte file header of a SQLite database
// image (spec §6 "On-disk format").
package header

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the fixed length of the file header.
const Size = 100

var magic = [16]byte{'S', 'Q', 'L', 'i', 't', 'e', ' ', 'f', 'o', 'r', 'm', 'a', 't', ' ', '3', 0}

// ErrInvalidFormat is returned when the header fails a bit-exact check
// (bad magic, invalid page size, unsupported encoding).
var ErrInvalidFormat = errors.New("invalid file header")

// TextEncoding identifies the database's declared text encoding.
type TextEncoding uint32

const (
	EncodingUTF8    TextEncoding = 1
	EncodingUTF16LE TextEncoding = 2
	EncodingUTF16BE TextEncoding = 3
)

// FileHeader is the parsed form of the 100-byte header, exposed
// verbatim except that only UTF-8 databases are supported for reading
// (spec §6).
type FileHeader struct {
	PageSize           int
	WriteVersion       uint8
	ReadVersion        uint8
	ReservedSpace      uint8
	MaxPayloadFraction uint8
	MinPayloadFraction uint8
	LeafPayloadFraction uint8
	FileChangeCounter  uint32
	DatabaseSizePages  uint32
	SchemaCookie       uint32
	SchemaFormat       uint32
	TextEncoding       TextEncoding
	UserVersion        uint32
	ApplicationID      uint32
	VersionValidFor    uint32
	SQLiteVersion      uint32
}

// Parse validates and decodes the header from the first Size bytes of
// the database image.
func Parse(buf []byte) (*FileHeader, error) {
	if len(buf) < Size {
		return nil, fmt.Errorf("%w: image shorter than %d-byte header", ErrInvalidFormat, Size)
	}
	if string(buf[0:16]) != string(magic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidFormat)
	}

	rawPageSize := binary.BigEndian.Uint16(buf[16:18])
	pageSize := int(rawPageSize)
	if rawPageSize == 1 {
		pageSize = 65536
	}
	if pageSize < 512 || pageSize > 65536 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("%w: page size %d is not a power of two in [512, 65536]", ErrInvalidFormat, pageSize)
	}

	h := &FileHeader{
		PageSize:            pageSize,
		WriteVersion:        buf[18],
		ReadVersion:         buf[19],
		ReservedSpace:       buf[20],
		MaxPayloadFraction:  buf[21],
		MinPayloadFraction:  buf[22],
		LeafPayloadFraction: buf[23],
		FileChangeCounter:   binary.BigEndian.Uint32(buf[24:28]),
		DatabaseSizePages:   binary.BigEndian.Uint32(buf[28:32]),
		SchemaCookie:        binary.BigEndian.Uint32(buf[40:44]),
		SchemaFormat:        binary.BigEndian.Uint32(buf[44:48]),
		TextEncoding:        TextEncoding(binary.BigEndian.Uint32(buf[56:60])),
		UserVersion:         binary.BigEndian.Uint32(buf[60:64]),
		ApplicationID:       binary.BigEndian.Uint32(buf[68:72]),
		VersionValidFor:     binary.BigEndian.Uint32(buf[92:96]),
		SQLiteVersion:       binary.BigEndian.Uint32(buf[96:100]),
	}

	if h.TextEncoding != 0 && h.TextEncoding != EncodingUTF8 {
		return nil, fmt.Errorf("%w: unsupported text encoding %d (only UTF-8 is supported)", ErrInvalidFormat, h.TextEncoding)
	}

	return h, nil
}

// Package record decodes SQLite's per-row payload encoding: a header
// length prefix, a run of serial-type codes, and a concatenation of value
// bodies whose widths follow from those codes.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/abelmoreno/sqlitereader/internal/value"
	"github.com/abelmoreno/sqlitereader/internal/varint"
)

// ErrInvalidFormat reports a record that violates a hard robustness bound
// (§4.C): an oversized header, too many serial types, or an oversized
// blob/text body.
var ErrInvalidFormat = errors.New("invalid record format")

const (
	maxHeaderSize   = 64 * 1024
	maxSerialTypes  = 10000
	maxBlobLength   = 1_000_000_000
	maxTextLength   = 100_000_000
)

// Decode parses payload into an ordered list of values, per spec §4.C.
// It never fails on a truncated body: missing trailing columns are padded
// with Null, and an individual value that can't be decoded is substituted
// with Null (advancing one byte to avoid an infinite loop). Text is
// decoded strictly — invalid UTF-8 fails the whole record.
func Decode(payload []byte) ([]value.Value, error) {
	return decode(payload, false)
}

// DecodeLossy is like Decode but tolerates invalid UTF-8 in text columns,
// substituting the standard replacement character. It is meant for bulk
// scans where a single bad string should not abort the traversal.
func DecodeLossy(payload []byte) ([]value.Value, error) {
	return decode(payload, true)
}

func decode(payload []byte, lossy bool) ([]value.Value, error) {
	headerSize, hn, err := varint.DecodeAt(payload, 0)
	if err != nil {
		// No header at all: treat as an empty record.
		return nil, nil
	}
	if headerSize < 0 || headerSize > maxHeaderSize {
		return nil, fmt.Errorf("%w: header size %d exceeds %d byte bound", ErrInvalidFormat, headerSize, maxHeaderSize)
	}

	serialTypes, err := readSerialTypes(payload, hn, int(headerSize))
	if err != nil {
		return nil, err
	}

	values := make([]value.Value, len(serialTypes))
	offset := int(headerSize)
	for i, st := range serialTypes {
		if w := Width(st); (st >= 12 && st%2 == 0 && w > maxBlobLength) || (st >= 13 && st%2 == 1 && w > maxTextLength) {
			return nil, fmt.Errorf("%w: declared column width %d exceeds bound", ErrInvalidFormat, w)
		}
		if !lossy && st >= 13 && st%2 == 1 {
			if w := Width(st); offset+w <= len(payload) && !utf8.Valid(payload[offset:offset+w]) {
				return nil, fmt.Errorf("%w: invalid UTF-8 in text column %d", ErrInvalidFormat, i)
			}
		}
		v, width, ok := decodeValue(payload, offset, st, lossy)
		if !ok {
			// Ran out of body bytes: pad this and every remaining column
			// with Null rather than failing (§4.C robustness contract).
			for j := i; j < len(values); j++ {
				values[j] = value.Null
			}
			return values, nil
		}
		values[i] = v
		offset += width
	}
	return values, nil
}

// readSerialTypes reads serial-type varints starting at offset until the
// declared header size is exhausted, bounding the count at maxSerialTypes.
func readSerialTypes(payload []byte, offset, headerEnd int) ([]int64, error) {
	if headerEnd > len(payload) {
		headerEnd = len(payload)
	}
	var types []int64
	for offset < headerEnd {
		st, next, err := varint.DecodeAt(payload, offset)
		if err != nil {
			break
		}
		types = append(types, st)
		offset = next
		if len(types) > maxSerialTypes {
			return nil, fmt.Errorf("%w: more than %d serial types", ErrInvalidFormat, maxSerialTypes)
		}
	}
	return types, nil
}

// Width returns the body width in bytes for a serial type, per the §3
// serial-type mapping.
func Width(serialType int64) int {
	switch {
	case serialType >= 0 && serialType <= 4:
		return [5]int{0, 1, 2, 3, 4}[serialType]
	case serialType == 5:
		return 6
	case serialType == 6, serialType == 7:
		return 8
	case serialType == 8, serialType == 9:
		return 0
	case serialType >= 12 && serialType%2 == 0:
		return int((serialType - 12) / 2)
	case serialType >= 13 && serialType%2 == 1:
		return int((serialType - 13) / 2)
	default:
		// 10 and 11 are reserved/invalid; treat as zero-width so the
		// caller substitutes Null rather than misreading the stream.
		return 0
	}
}

// decodeValue decodes one value body at offset for the given serial type.
// ok is false when the body would run past the end of payload.
func decodeValue(payload []byte, offset int, serialType int64, lossy bool) (v value.Value, width int, ok bool) {
	switch {
	case serialType == 0:
		return value.Null, 0, true
	case serialType == 8:
		return value.NewInteger(0), 0, true
	case serialType == 9:
		return value.NewInteger(1), 0, true
	case serialType == 10 || serialType == 11:
		// Reserved codes: treated as an individual decode failure, not a
		// fatal one — substitute Null and advance one byte.
		return value.Null, 1, offset < len(payload)
	case serialType >= 1 && serialType <= 6:
		w := Width(serialType)
		if offset+w > len(payload) {
			return value.Value{}, 0, false
		}
		return value.NewInteger(decodeSignedInt(payload[offset:offset+w])), w, true
	case serialType == 7:
		if offset+8 > len(payload) {
			return value.Value{}, 0, false
		}
		bits := binary.BigEndian.Uint64(payload[offset : offset+8])
		return value.NewReal(math.Float64frombits(bits)), 8, true
	case serialType >= 12 && serialType%2 == 0:
		w := Width(serialType)
		if offset+w > len(payload) {
			return value.Value{}, 0, false
		}
		return value.NewBlob(append([]byte(nil), payload[offset:offset+w]...)), w, true
	case serialType >= 13 && serialType%2 == 1:
		w := Width(serialType)
		if offset+w > len(payload) {
			return value.Value{}, 0, false
		}
		raw := payload[offset : offset+w]
		if lossy {
			return value.NewText(toValidUTF8(raw)), w, true
		}
		if !utf8.Valid(raw) {
			return value.Null, 1, offset < len(payload)
		}
		return value.NewText(string(raw)), w, true
	default:
		return value.Null, 1, offset < len(payload)
	}
}

// decodeSignedInt sign-extends a big-endian integer of width 1, 2, 3, 4,
// 6, or 8 bytes into an int64.
func decodeSignedInt(b []byte) int64 {
	var u uint64
	for _, c := range b {
		u = (u << 8) | uint64(c)
	}
	bits := uint(len(b)) * 8
	shift := 64 - bits
	return int64(u<<shift) >> shift
}

// toValidUTF8 replaces invalid UTF-8 sequences with the replacement
// character, used only by the bulk/lossy decode path.
func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out := make([]rune, 0, len(b))
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		out = append(out, r)
		i += size
	}
	return string(out)
}

// Package value implements the five-variant tagged value used for every
// decoded column: Null, Integer, Real, Text, and Blob, plus the total
// order used for comparisons and ORDER BY.
package value

import (
	"fmt"
	"math"
)

// Kind tags which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindReal
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInteger:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Value is a single decoded column value.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Null is the singleton null value.
var Null = Value{kind: KindNull}

// NewInteger builds an Integer value.
func NewInteger(v int64) Value { return Value{kind: KindInteger, i: v} }

// NewReal builds a Real value.
func NewReal(v float64) Value { return Value{kind: KindReal, f: v} }

// NewText builds a Text value.
func NewText(v string) Value { return Value{kind: KindText, s: v} }

// NewBlob builds a Blob value. The slice is retained, not copied.
func NewBlob(v []byte) Value { return Value{kind: KindBlob, b: v} }

// Kind reports the value's variant.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the Null variant.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int narrows to an integer, returning ok=false if the variant is not
// Integer.
func (v Value) Int() (val int64, ok bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.i, true
}

// Real narrows to a real, returning ok=false if the variant is not Real.
func (v Value) Real() (val float64, ok bool) {
	if v.kind != KindReal {
		return 0, false
	}
	return v.f, true
}

// Text narrows to text, returning ok=false if the variant is not Text.
func (v Value) Text() (val string, ok bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.s, true
}

// Blob narrows to a blob, returning ok=false if the variant is not Blob.
func (v Value) Blob() (val []byte, ok bool) {
	if v.kind != KindBlob {
		return nil, false
	}
	return v.b, true
}

// AsFloat64 promotes Integer or Real to a float64, for numeric comparison.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindReal:
		return v.f, true
	default:
		return 0, false
	}
}

// String renders a diagnostic display form: "NULL", a decimal integer or
// real, raw text, or "BLOB(n bytes)".
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return fmt.Sprintf("%d", v.i)
	case KindReal:
		return fmt.Sprintf("%g", v.f)
	case KindText:
		return v.s
	case KindBlob:
		return fmt.Sprintf("BLOB(%d bytes)", len(v.b))
	default:
		return ""
	}
}

// isNaN reports whether a Real value holds NaN.
func (v Value) isNaN() bool {
	return v.kind == KindReal && math.IsNaN(v.f)
}

// Compare implements the total order of spec §3: Null precedes everything
// and equals itself; Integer/Real compare numerically with integer-to-real
// promotion; Text compares lexicographically by code unit; Blob compares
// lexicographically by byte; NaN orders below every non-Null value and
// equals itself; any other cross-category pairing compares equal (the
// relaxed ordering used for sort stability).
func Compare(a, b Value) int {
	if a.kind == KindNull && b.kind == KindNull {
		return 0
	}
	if a.kind == KindNull {
		return -1
	}
	if b.kind == KindNull {
		return 1
	}

	aNaN, bNaN := a.isNaN(), b.isNaN()
	if aNaN && bNaN {
		return 0
	}
	if aNaN {
		return -1
	}
	if bNaN {
		return 1
	}

	af, aNum := a.AsFloat64()
	bf, bNum := b.AsFloat64()
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	if a.kind == KindText && b.kind == KindText {
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	}

	if a.kind == KindBlob && b.kind == KindBlob {
		switch {
		case string(a.b) < string(b.b):
			return -1
		case string(a.b) > string(b.b):
			return 1
		default:
			return 0
		}
	}

	// Cross-category pairing outside Null/numeric promotion: relaxed
	// ordering treats these as equal for sort stability.
	return 0
}

// Equal reports whether a and b compare equal under Compare, with epsilon
// tolerance when either side is a Real (spec §4.I WHERE evaluation).
func Equal(a, b Value) bool {
	if a.kind == KindReal || b.kind == KindReal {
		af, aNum := a.AsFloat64()
		bf, bNum := b.AsFloat64()
		if aNum && bNum {
			const epsilon = 1e-9
			d := af - bf
			if d < 0 {
				d = -d
			}
			return d <= epsilon
		}
	}
	return Compare(a, b) == 0
}

// Less reports whether a orders strictly before b.
func Less(a, b Value) bool { return Compare(a, b) < 0 }

package query

import (
	"strings"

	"github.com/abelmoreno/sqlitereader/internal/value"
)

// RowLookup resolves a column name to its value for the row currently
// under evaluation; ok is false when the column does not exist.
type RowLookup func(column string) (v value.Value, ok bool)

// ToValue converts a parsed literal into the engine's value type.
func (l Literal) ToValue() value.Value {
	switch l.Kind {
	case LiteralNull:
		return value.Null
	case LiteralInt:
		return value.NewInteger(l.Int)
	case LiteralReal:
		return value.NewReal(l.Real)
	default:
		return value.NewText(l.Text)
	}
}

// Evaluate tests expr against one row's values (spec §4.I "WHERE
// evaluation"). A comparison against a missing column is false.
func Evaluate(expr Expr, lookup RowLookup) bool {
	switch e := expr.(type) {
	case Comparison:
		return evalComparison(e, lookup)
	case And:
		return Evaluate(e.Left, lookup) && Evaluate(e.Right, lookup)
	case Or:
		return Evaluate(e.Left, lookup) || Evaluate(e.Right, lookup)
	case Not:
		return !Evaluate(e.Inner, lookup)
	case IsNull:
		v, ok := lookup(e.Column)
		return ok && v.IsNull()
	case IsNotNull:
		v, ok := lookup(e.Column)
		return ok && !v.IsNull()
	case In:
		v, ok := lookup(e.Column)
		if !ok {
			return false
		}
		for _, lit := range e.Values {
			if value.Equal(v, lit.ToValue()) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalComparison(c Comparison, lookup RowLookup) bool {
	v, ok := lookup(c.Column)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return value.Equal(v, c.Value.ToValue())
	case OpNe:
		return !value.Equal(v, c.Value.ToValue())
	case OpLt:
		return value.Compare(v, c.Value.ToValue()) < 0
	case OpLe:
		return value.Compare(v, c.Value.ToValue()) <= 0
	case OpGt:
		return value.Compare(v, c.Value.ToValue()) > 0
	case OpGe:
		return value.Compare(v, c.Value.ToValue()) >= 0
	case OpLike:
		text, ok := v.Text()
		if !ok {
			return false
		}
		return LikeMatch(c.Value.Text, text)
	case OpBetween:
		lo, hi := c.Value.ToValue(), c.Value2.ToValue()
		return value.Compare(lo, v) <= 0 && value.Compare(v, hi) <= 0
	default:
		return false
	}
}

// LikeMatch implements the restricted LIKE semantics of spec §4.H:
// only % is a wildcard; the pattern is split on % into fragments, each
// of which must appear in order, with the first fragment anchored to
// the start unless the pattern begins with %, and the last fragment
// anchored to the end unless the pattern ends with %.
func LikeMatch(pattern, text string) bool {
	if !strings.Contains(pattern, "%") {
		return pattern == text
	}
	fragments := strings.Split(pattern, "%")
	anchoredStart := !strings.HasPrefix(pattern, "%")
	anchoredEnd := !strings.HasSuffix(pattern, "%")

	pos := 0
	for i, frag := range fragments {
		if frag == "" {
			continue
		}
		if i == 0 && anchoredStart {
			if !strings.HasPrefix(text[pos:], frag) {
				return false
			}
			pos += len(frag)
			continue
		}
		if i == len(fragments)-1 && anchoredEnd {
			if !strings.HasSuffix(text[pos:], frag) {
				return false
			}
			continue
		}
		idx := strings.Index(text[pos:], frag)
		if idx == -1 {
			return false
		}
		pos += idx + len(frag)
	}
	return true
}

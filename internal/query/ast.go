// Package query implements the restricted SELECT grammar's AST, its
// hand-written recursive-descent parser, and expression evaluation
// (spec §4.H). The grammar's LIKE/BETWEEN/IS-NULL/IN forms carry
// semantics a general-purpose SQL parser cannot be trusted to express
// faithfully, so this package does not use one.
package query

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpLike
	OpBetween
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpLike:
		return "LIKE"
	case OpBetween:
		return "BETWEEN"
	default:
		return "?"
	}
}

// Literal is a parsed literal value: exactly one of its fields is set,
// mirroring the literal forms the grammar accepts (text, integer,
// real, or NULL).
type Literal struct {
	IsNull bool
	Text   string
	Int    int64
	Real   float64
	Kind   LiteralKind
}

// LiteralKind distinguishes which field of Literal is populated.
type LiteralKind int

const (
	LiteralText LiteralKind = iota
	LiteralInt
	LiteralReal
	LiteralNull
)

// Expr is the restricted WHERE expression grammar (spec §4.H).
type Expr interface {
	isExpr()
}

// Comparison is a single predicate against one named column.
type Comparison struct {
	Column string
	Op     Op
	Value  Literal
	Value2 Literal // only populated when Op == OpBetween
}

// And is a conjunction of two sub-expressions.
type And struct{ Left, Right Expr }

// Or is a disjunction of two sub-expressions.
type Or struct{ Left, Right Expr }

// Not negates a sub-expression.
type Not struct{ Inner Expr }

// IsNull tests whether a column's value is NULL.
type IsNull struct{ Column string }

// IsNotNull tests whether a column's value is not NULL.
type IsNotNull struct{ Column string }

// In tests membership of a column's value in a literal list.
type In struct {
	Column string
	Values []Literal
}

func (Comparison) isExpr() {}
func (And) isExpr()        {}
func (Or) isExpr()         {}
func (Not) isExpr()        {}
func (IsNull) isExpr()     {}
func (IsNotNull) isExpr()  {}
func (In) isExpr()         {}

// OrderBy names the single sort column and direction.
type OrderBy struct {
	Column    string
	Ascending bool
}

// SelectQuery is the parsed form of a single SELECT statement.
type SelectQuery struct {
	Projection []string // nil means SELECT *
	Table      string
	Where      Expr // nil means no WHERE clause
	OrderBy    *OrderBy
	Limit      *int
}

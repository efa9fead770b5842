package engine

import (
	"github.com/abelmoreno/sqlitereader/internal/query"
	"github.com/abelmoreno/sqlitereader/internal/schema"
)

// plan describes how one OR-branch of a WHERE clause will be resolved.
type plan struct {
	branch Expr
	index  *schema.IndexInfo // nil if no covering index was found
	keys   []valueLit        // literal key prefix matching index.Columns, same order
}

// Expr is a local alias avoiding a stutter against query.Expr in this
// file's signatures.
type Expr = query.Expr

type valueLit = query.Literal

// flattenOr splits expr into its top-level OR branches. A WHERE clause
// with no top-level OR is a single branch.
func flattenOr(expr Expr) []Expr {
	if or, ok := expr.(query.Or); ok {
		return append(flattenOr(or.Left), flattenOr(or.Right)...)
	}
	return []Expr{expr}
}

// collectEqualities walks the top-level AND chain of a branch and
// collects the equality comparisons into a column→literal map. Other
// predicate kinds (including an OR nested under an AND, which flattenOr
// leaves in place because it only splits top-level ORs) do not
// contribute but do not disqualify the branch either (spec §4.I).
func collectEqualities(expr Expr) map[string]valueLit {
	out := make(map[string]valueLit)
	var walk func(e Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case query.And:
			walk(n.Left)
			walk(n.Right)
		case query.Comparison:
			if n.Op == query.OpEq {
				out[n.Column] = n.Value
			}
		}
	}
	walk(expr)
	return out
}

// chooseIndex picks the catalog index whose column list is the
// longest prefix covered by equalities, or nil if none of the first
// columns is covered.
func chooseIndex(indexes []*schema.IndexInfo, equalities map[string]valueLit) (*schema.IndexInfo, []valueLit) {
	var best *schema.IndexInfo
	var bestKeys []valueLit

	for _, idx := range indexes {
		if len(idx.Columns) == 0 {
			continue
		}
		if _, ok := equalities[idx.Columns[0]]; !ok {
			continue
		}
		var keys []valueLit
		for _, col := range idx.Columns {
			lit, ok := equalities[col]
			if !ok {
				break
			}
			keys = append(keys, lit)
		}
		if len(keys) == 0 {
			continue
		}
		if best == nil || len(keys) > len(bestKeys) {
			best = idx
			bestKeys = keys
		}
	}
	return best, bestKeys
}

// planBranches plans every OR-branch of a WHERE clause. allIndexed is
// true only when every branch found a covering index — the condition
// under which the executor takes the index path instead of a full
// table scan (spec §4.I).
func planBranches(where Expr, indexes []*schema.IndexInfo) (plans []plan, allIndexed bool) {
	branches := flattenOr(where)
	allIndexed = true
	for _, b := range branches {
		eq := collectEqualities(b)
		idx, keys := chooseIndex(indexes, eq)
		if idx == nil {
			allIndexed = false
		}
		plans = append(plans, plan{branch: b, index: idx, keys: keys})
	}
	return plans, allIndexed
}

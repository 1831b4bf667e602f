// Package alpha implements the alpha memory manager (spec.md §4.5):
// pattern-indexed sets of fact ids that keep per-fact work proportional to
// the number of patterns that field touches, not the total rule count.
package alpha

import (
	"fmt"

	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// Pattern is a single-field condition pattern, the unit alpha memories index.
type Pattern struct {
	Field string
	Op    rule.Operator
	Value factmodel.Value
}

// FromSimple builds a Pattern from a Simple condition, the only condition
// variant that maps to a single alpha-memory pattern (spec.md §4.5).
func FromSimple(s rule.Simple) Pattern {
	return Pattern{Field: s.Field, Op: s.Op, Value: s.Value}
}

// Key renders a canonical, hashable pattern key ("field_op_value").
func (p Pattern) Key() string {
	return fmt.Sprintf("%s_%s_%s", p.Field, p.Op, p.Value.ToKey())
}

// MatchesFact reports whether fact satisfies this pattern. Absent fields
// never match; ill-typed comparisons (spec.md §4.1) yield false, never an
// error.
func (p Pattern) MatchesFact(fact *factmodel.Fact) bool {
	v, ok := fact.Get(p.Field)
	if !ok {
		return false
	}
	return p.MatchesValue(v)
}

// MatchesValue applies the pattern's operator to a single value.
func (p Pattern) MatchesValue(v factmodel.Value) bool {
	switch p.Op {
	case rule.Eq:
		return v.Equal(p.Value)
	case rule.NotEq:
		return !v.Equal(p.Value)
	case rule.Gt:
		return factmodel.Compare(v, p.Value) == factmodel.Greater
	case rule.Lt:
		return factmodel.Compare(v, p.Value) == factmodel.Less
	case rule.Gte:
		ord := factmodel.Compare(v, p.Value)
		return ord == factmodel.Greater || ord == factmodel.Equal
	case rule.Lte:
		ord := factmodel.Compare(v, p.Value)
		return ord == factmodel.Less || ord == factmodel.Equal
	case rule.Contains:
		return containsOp(v, p.Value)
	case rule.StartsWith:
		vs, ok1 := v.AsString()
		ps, ok2 := p.Value.AsString()
		return ok1 && ok2 && len(vs) >= len(ps) && vs[:len(ps)] == ps
	case rule.EndsWith:
		vs, ok1 := v.AsString()
		ps, ok2 := p.Value.AsString()
		return ok1 && ok2 && len(vs) >= len(ps) && vs[len(vs)-len(ps):] == ps
	default:
		return false
	}
}

func containsOp(fieldValue, needle factmodel.Value) bool {
	if fs, ok := fieldValue.AsString(); ok {
		if ns, ok2 := needle.AsString(); ok2 {
			return containsSubstr(fs, ns)
		}
		return false
	}
	if arr, ok := fieldValue.AsArray(); ok {
		for _, item := range arr {
			if item.Equal(needle) {
				return true
			}
		}
		return false
	}
	return false
}

func containsSubstr(s, substr string) bool {
	return len(substr) == 0 || indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}

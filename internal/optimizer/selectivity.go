package optimizer

import (
	"github.com/rawblock/rete-engine/internal/alpha"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// Selectivity estimates how selective a condition is: 0.0 means "matches
// almost nothing" (evaluate first), 1.0 means "matches almost everything"
// (evaluate last). Runtime statistics win when present; otherwise a
// heuristic keyed on operator and value shape stands in.
func Selectivity(cond rule.Condition, stats map[string]ConditionStats) float64 {
	switch c := cond.(type) {
	case rule.Simple:
		key := alpha.FromSimple(c).Key()
		if s, ok := stats[key]; ok {
			return min1(s.AverageMatches / 1000.0)
		}
		return selectivityHeuristic(c.Op, c.Value)
	case rule.And:
		acc := 1.0
		for _, sub := range c.Conditions {
			acc *= Selectivity(sub, stats)
		}
		return acc
	case rule.Or:
		acc := 0.0
		for _, sub := range c.Conditions {
			acc = min1(acc + Selectivity(sub, stats))
		}
		return acc
	default:
		return 0.5
	}
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	return v
}

func selectivityHeuristic(op rule.Operator, v factmodel.Value) float64 {
	switch op {
	case rule.Eq:
		return equalitySelectivity(v)
	case rule.NotEq:
		return 1.0 - equalitySelectivity(v)
	case rule.Gt, rule.Lt:
		return 0.4
	case rule.Gte, rule.Lte:
		return 0.5
	case rule.Contains, rule.StartsWith, rule.EndsWith:
		return 0.3
	default:
		return 0.25
	}
}

func equalitySelectivity(v factmodel.Value) float64 {
	switch v.Kind() {
	case factmodel.KindBool:
		return 0.5
	case factmodel.KindString:
		s, _ := v.AsString()
		if len(s) > 10 {
			return 0.1
		}
		return 0.3
	case factmodel.KindInt:
		return 0.2
	case factmodel.KindFloat:
		return 0.15
	default:
		return 0.25
	}
}

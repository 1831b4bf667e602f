package optimizer

import (
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// Cost estimates the evaluation cost of a condition in microseconds.
func Cost(cond rule.Condition) float64 {
	switch c := cond.(type) {
	case rule.Simple:
		return operatorCost(c.Op) * valueCost(c.Value)
	case rule.And:
		total := 0.0
		for _, sub := range c.Conditions {
			total += Cost(sub)
		}
		return total
	case rule.Or:
		total := 0.0
		for _, sub := range c.Conditions {
			total += Cost(sub)
		}
		return total * 0.5 // short-circuits on first match
	default:
		return 10.0
	}
}

func operatorCost(op rule.Operator) float64 {
	switch op {
	case rule.Eq, rule.NotEq:
		return 1.0
	case rule.Gt, rule.Lt, rule.Gte, rule.Lte:
		return 2.0
	case rule.Contains, rule.StartsWith, rule.EndsWith:
		return 5.0
	default:
		return 2.0
	}
}

func valueCost(v factmodel.Value) float64 {
	switch v.Kind() {
	case factmodel.KindBool, factmodel.KindInt:
		return 1.0
	case factmodel.KindFloat:
		return 1.5
	case factmodel.KindString:
		s, _ := v.AsString()
		return 1.0 + float64(len(s))*0.1
	case factmodel.KindArray:
		return 3.0
	default:
		return 2.0
	}
}

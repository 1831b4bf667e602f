package calculator

import (
	"fmt"
	"math"
	"strings"

	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// BuiltinFunc is a registered calculator function: it receives already
// evaluated arguments and returns a single Value or an error.
type BuiltinFunc func(args []factmodel.Value) (factmodel.Value, error)

// NamedCalculator is the shape spec.md §4.8's CallCalculator action
// resolves by name: unlike BuiltinFunc (positional args inside an
// expression), a NamedCalculator receives a keyed input map built from
// the action's input_map (calculator input name -> triggering-fact field
// name) and is invoked directly, with no expression to parse.
type NamedCalculator func(inputs map[string]factmodel.Value) (factmodel.Value, error)

// Evaluator ties a function table to repeated Evaluate calls. A fresh
// Evaluator starts with the default builtin table (abs/min/max/round/
// floor/ceil/sqrt/len/upper/lower/trim) and accepts further
// RegisterFunction calls for action-specific calculators (spec.md §4.9
// function table) plus RegisterCalculator calls for named, CallCalculator
// -style calculators (spec.md §4.8).
type Evaluator struct {
	functions   map[string]BuiltinFunc
	calculators map[string]NamedCalculator
}

// NewEvaluator constructs an Evaluator pre-populated with the default
// builtin function table and the default named-calculator table.
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		functions:   make(map[string]BuiltinFunc),
		calculators: make(map[string]NamedCalculator),
	}
	for name, fn := range defaultBuiltins {
		e.functions[name] = fn
	}
	for name, fn := range defaultCalculators {
		e.calculators[name] = fn
	}
	return e
}

// RegisterFunction adds or replaces a named function in the evaluator's
// expression function table, satisfying spec.md §4.9's "registered
// function table" contract.
func (e *Evaluator) RegisterFunction(name string, fn BuiltinFunc) {
	e.functions[name] = fn
}

// RegisterCalculator adds or replaces a named calculator, satisfying
// spec.md §4.8 CallCalculator's "registered calculator table" contract.
func (e *Evaluator) RegisterCalculator(name string, fn NamedCalculator) {
	e.calculators[name] = fn
}

// CallNamed resolves name against the registered calculator table and
// invokes it with inputs. The action executor (internal/action) builds
// inputs from an action's input_map before calling this.
func (e *Evaluator) CallNamed(name string, inputs map[string]factmodel.Value) (factmodel.Value, error) {
	fn, ok := e.calculators[name]
	if !ok {
		return factmodel.Null(), fmt.Errorf("undefined calculator %q", name)
	}
	return fn(inputs)
}

func floatMod(a, b float64) factmodel.Value {
	return factmodel.Float(math.Mod(a, b))
}

func floatPow(a, b float64) factmodel.Value {
	return factmodel.Float(math.Pow(a, b))
}

func numericArg(args []factmodel.Value, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	f, ok := args[i].ToNumeric()
	if !ok {
		return 0, fmt.Errorf("argument %d must be numeric", i)
	}
	return f, nil
}

func stringArg(args []factmodel.Value, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	s, ok := args[i].AsString()
	if !ok {
		return "", fmt.Errorf("argument %d must be a string", i)
	}
	return s, nil
}

var defaultBuiltins = map[string]BuiltinFunc{
	"abs": func(args []factmodel.Value) (factmodel.Value, error) {
		if len(args) != 1 {
			return factmodel.Null(), fmt.Errorf("abs expects 1 argument, got %d", len(args))
		}
		if i, ok := args[0].AsInt(); ok {
			if i < 0 {
				i = -i
			}
			return factmodel.Int(i), nil
		}
		f, err := numericArg(args, 0)
		if err != nil {
			return factmodel.Null(), err
		}
		return factmodel.Float(math.Abs(f)), nil
	},
	"min": func(args []factmodel.Value) (factmodel.Value, error) {
		if len(args) == 0 {
			return factmodel.Null(), fmt.Errorf("min expects at least 1 argument")
		}
		best := args[0]
		for _, v := range args[1:] {
			if factmodel.Compare(v, best) == factmodel.Less {
				best = v
			}
		}
		return best, nil
	},
	"max": func(args []factmodel.Value) (factmodel.Value, error) {
		if len(args) == 0 {
			return factmodel.Null(), fmt.Errorf("max expects at least 1 argument")
		}
		best := args[0]
		for _, v := range args[1:] {
			if factmodel.Compare(v, best) == factmodel.Greater {
				best = v
			}
		}
		return best, nil
	},
	"round": func(args []factmodel.Value) (factmodel.Value, error) {
		f, err := numericArg(args, 0)
		if err != nil {
			return factmodel.Null(), err
		}
		return factmodel.Float(math.Round(f)), nil
	},
	"floor": func(args []factmodel.Value) (factmodel.Value, error) {
		f, err := numericArg(args, 0)
		if err != nil {
			return factmodel.Null(), err
		}
		return factmodel.Float(math.Floor(f)), nil
	},
	"ceil": func(args []factmodel.Value) (factmodel.Value, error) {
		f, err := numericArg(args, 0)
		if err != nil {
			return factmodel.Null(), err
		}
		return factmodel.Float(math.Ceil(f)), nil
	},
	"sqrt": func(args []factmodel.Value) (factmodel.Value, error) {
		f, err := numericArg(args, 0)
		if err != nil {
			return factmodel.Null(), err
		}
		if f < 0 {
			return factmodel.Null(), fmt.Errorf("sqrt of negative number")
		}
		return factmodel.Float(math.Sqrt(f)), nil
	},
	"len": func(args []factmodel.Value) (factmodel.Value, error) {
		if len(args) != 1 {
			return factmodel.Null(), fmt.Errorf("len expects 1 argument, got %d", len(args))
		}
		if s, ok := args[0].AsString(); ok {
			return factmodel.Int(int64(len([]rune(s)))), nil
		}
		if arr, ok := args[0].AsArray(); ok {
			return factmodel.Int(int64(len(arr))), nil
		}
		if obj, ok := args[0].AsObject(); ok {
			return factmodel.Int(int64(len(obj))), nil
		}
		return factmodel.Null(), fmt.Errorf("len requires a string, array or object argument")
	},
	"upper": func(args []factmodel.Value) (factmodel.Value, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return factmodel.Null(), err
		}
		return factmodel.String(strings.ToUpper(s)), nil
	},
	"lower": func(args []factmodel.Value) (factmodel.Value, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return factmodel.Null(), err
		}
		return factmodel.String(strings.ToLower(s)), nil
	},
	"trim": func(args []factmodel.Value) (factmodel.Value, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return factmodel.Null(), err
		}
		return factmodel.String(strings.TrimSpace(s)), nil
	},
}

// defaultCalculators seeds the named-calculator table with
// threshold_checker, matching spec.md's own S1 testable property
// (student-visa compliance: value/threshold/op -> compliant|violation)
// so that example is runnable against the default table without a
// caller having to register it first.
var defaultCalculators = map[string]NamedCalculator{
	"threshold_checker": thresholdChecker,
}

func thresholdChecker(inputs map[string]factmodel.Value) (factmodel.Value, error) {
	value, ok := inputs["value"].ToNumeric()
	if !ok {
		return factmodel.Null(), fmt.Errorf("threshold_checker requires a numeric 'value' input")
	}
	threshold, ok := inputs["threshold"].ToNumeric()
	if !ok {
		return factmodel.Null(), fmt.Errorf("threshold_checker requires a numeric 'threshold' input")
	}
	opStr, ok := inputs["op"].AsString()
	if !ok {
		return factmodel.Null(), fmt.Errorf("threshold_checker requires a string 'op' input")
	}
	op := rule.Operator(opStr)
	if !op.Valid() {
		return factmodel.Null(), fmt.Errorf("threshold_checker: unknown operator %q", opStr)
	}

	satisfied, err := evaluateThreshold(op, value, threshold)
	if err != nil {
		return factmodel.Null(), err
	}
	if satisfied {
		return factmodel.String("compliant"), nil
	}
	return factmodel.String("violation"), nil
}

func evaluateThreshold(op rule.Operator, value, threshold float64) (bool, error) {
	switch op {
	case rule.Eq:
		return value == threshold, nil
	case rule.NotEq:
		return value != threshold, nil
	case rule.Lt:
		return value < threshold, nil
	case rule.Lte:
		return value <= threshold, nil
	case rule.Gt:
		return value > threshold, nil
	case rule.Gte:
		return value >= threshold, nil
	default:
		return false, fmt.Errorf("threshold_checker: operator %q is not a numeric comparison", op)
	}
}

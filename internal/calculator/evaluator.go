package calculator

import (
	"fmt"
	"strings"

	"github.com/rawblock/rete-engine/internal/factmodel"
)

// Env is the variable environment a Program evaluates against: the fact
// fields (or action input_map) a Formula/CallCalculator action exposes to
// the expression, keyed by identifier name.
type Env map[string]factmodel.Value

// Evaluate tree-walks program.root against env and the evaluator's
// function table, returning the resulting Value or the first error
// encountered.
func (e *Evaluator) Evaluate(program *Program, env Env) (factmodel.Value, error) {
	return e.eval(program.root, env)
}

func (e *Evaluator) eval(expr Expression, env Env) (factmodel.Value, error) {
	switch x := expr.(type) {
	case IntLiteral:
		return factmodel.Int(x.Value), nil
	case FloatLiteral:
		return factmodel.Float(x.Value), nil
	case StringLiteral:
		return factmodel.String(x.Value), nil
	case BoolLiteral:
		return factmodel.Bool(x.Value), nil
	case Variable:
		v, ok := env[x.Name]
		if !ok {
			return factmodel.Null(), fmt.Errorf("undefined variable %q", x.Name)
		}
		return v, nil
	case FieldAccess:
		target, err := e.eval(x.Target, env)
		if err != nil {
			return factmodel.Null(), err
		}
		obj, ok := target.AsObject()
		if !ok {
			return factmodel.Null(), fmt.Errorf("field access %q on non-object value", x.Field)
		}
		v, ok := obj[x.Field]
		if !ok {
			return factmodel.Null(), fmt.Errorf("no field %q", x.Field)
		}
		return v, nil
	case Index:
		target, err := e.eval(x.Target, env)
		if err != nil {
			return factmodel.Null(), err
		}
		at, err := e.eval(x.At, env)
		if err != nil {
			return factmodel.Null(), err
		}
		arr, ok := target.AsArray()
		if !ok {
			return factmodel.Null(), fmt.Errorf("indexing a non-array value")
		}
		idx, ok := at.AsInt()
		if !ok {
			return factmodel.Null(), fmt.Errorf("array index must be an integer")
		}
		if idx < 0 || int(idx) >= len(arr) {
			return factmodel.Null(), fmt.Errorf("array index %d out of range (len %d)", idx, len(arr))
		}
		return arr[idx], nil
	case ArrayLiteral:
		elements := make([]factmodel.Value, len(x.Elements))
		for i, el := range x.Elements {
			v, err := e.eval(el, env)
			if err != nil {
				return factmodel.Null(), err
			}
			elements[i] = v
		}
		return factmodel.Array(elements), nil
	case ObjectLiteral:
		fields := make(map[string]factmodel.Value, len(x.Fields))
		for _, f := range x.Fields {
			v, err := e.eval(f.Value, env)
			if err != nil {
				return factmodel.Null(), err
			}
			fields[f.Key] = v
		}
		return factmodel.Object(fields), nil
	case UnaryExpr:
		return e.evalUnary(x, env)
	case BinaryExpr:
		return e.evalBinary(x, env)
	case Call:
		return e.evalCall(x, env)
	case Conditional:
		cond, err := e.eval(x.Condition, env)
		if err != nil {
			return factmodel.Null(), err
		}
		b, ok := cond.AsBool()
		if !ok {
			return factmodel.Null(), fmt.Errorf("if condition must be boolean")
		}
		if b {
			return e.eval(x.Then, env)
		}
		return e.eval(x.Else, env)
	case ConditionalSet:
		for _, branch := range x.Branches {
			cond, err := e.eval(branch.Condition, env)
			if err != nil {
				return factmodel.Null(), err
			}
			b, ok := cond.AsBool()
			if !ok {
				return factmodel.Null(), fmt.Errorf("cond branch condition must be boolean")
			}
			if b {
				return e.eval(branch.Value, env)
			}
		}
		if x.Default != nil {
			return e.eval(x.Default, env)
		}
		return factmodel.Null(), fmt.Errorf("no cond branch matched and no default provided")
	default:
		return factmodel.Null(), fmt.Errorf("unsupported expression node %T", expr)
	}
}

func (e *Evaluator) evalUnary(x UnaryExpr, env Env) (factmodel.Value, error) {
	operand, err := e.eval(x.Operand, env)
	if err != nil {
		return factmodel.Null(), err
	}
	switch x.Op {
	case OpNegate:
		if i, ok := operand.AsInt(); ok {
			return factmodel.Int(-i), nil
		}
		if f, ok := operand.AsFloat(); ok {
			return factmodel.Float(-f), nil
		}
		return factmodel.Null(), fmt.Errorf("unary '-' requires a numeric operand")
	case OpNot:
		b, ok := operand.AsBool()
		if !ok {
			return factmodel.Null(), fmt.Errorf("unary '!' requires a boolean operand")
		}
		return factmodel.Bool(!b), nil
	default:
		return factmodel.Null(), fmt.Errorf("unsupported unary operator")
	}
}

func (e *Evaluator) evalBinary(x BinaryExpr, env Env) (factmodel.Value, error) {
	left, err := e.eval(x.Left, env)
	if err != nil {
		return factmodel.Null(), err
	}

	// Short-circuit boolean operators never evaluate the right side
	// unless needed.
	if x.Op == OpAnd || x.Op == OpOr {
		lb, ok := left.AsBool()
		if !ok {
			return factmodel.Null(), fmt.Errorf("'&&'/'||' require boolean operands")
		}
		if x.Op == OpAnd && !lb {
			return factmodel.Bool(false), nil
		}
		if x.Op == OpOr && lb {
			return factmodel.Bool(true), nil
		}
		right, err := e.eval(x.Right, env)
		if err != nil {
			return factmodel.Null(), err
		}
		rb, ok := right.AsBool()
		if !ok {
			return factmodel.Null(), fmt.Errorf("'&&'/'||' require boolean operands")
		}
		return factmodel.Bool(rb), nil
	}

	right, err := e.eval(x.Right, env)
	if err != nil {
		return factmodel.Null(), err
	}

	switch x.Op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo, OpPower:
		return arithmetic(x.Op, left, right)
	case OpEqual:
		return factmodel.Bool(left.Equal(right)), nil
	case OpNotEqual:
		return factmodel.Bool(!left.Equal(right)), nil
	case OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual:
		return compareOp(x.Op, left, right)
	case OpConcat:
		ls, ok1 := left.AsString()
		rs, ok2 := right.AsString()
		if !ok1 || !ok2 {
			return factmodel.Null(), fmt.Errorf("'++' requires string operands")
		}
		return factmodel.String(ls + rs), nil
	case OpContains:
		return stringPredicate(left, right, strings.Contains)
	case OpStartsWith:
		return stringPredicate(left, right, strings.HasPrefix)
	case OpEndsWith:
		return stringPredicate(left, right, strings.HasSuffix)
	default:
		return factmodel.Null(), fmt.Errorf("unsupported binary operator")
	}
}

func stringPredicate(left, right factmodel.Value, predicate func(s, substr string) bool) (factmodel.Value, error) {
	ls, ok1 := left.AsString()
	rs, ok2 := right.AsString()
	if !ok1 || !ok2 {
		return factmodel.Null(), fmt.Errorf("string operator requires string operands")
	}
	return factmodel.Bool(predicate(ls, rs)), nil
}

func arithmetic(op BinaryOp, left, right factmodel.Value) (factmodel.Value, error) {
	li, lIsInt := left.AsInt()
	ri, rIsInt := right.AsInt()
	if lIsInt && rIsInt && op != OpDivide && op != OpPower {
		switch op {
		case OpAdd:
			return factmodel.Int(li + ri), nil
		case OpSubtract:
			return factmodel.Int(li - ri), nil
		case OpMultiply:
			return factmodel.Int(li * ri), nil
		case OpModulo:
			if ri == 0 {
				return factmodel.Null(), fmt.Errorf("modulo by zero")
			}
			return factmodel.Int(li % ri), nil
		}
	}

	lf, lOk := left.ToNumeric()
	rf, rOk := right.ToNumeric()
	if !lOk || !rOk {
		return factmodel.Null(), fmt.Errorf("arithmetic operator requires numeric operands")
	}
	switch op {
	case OpAdd:
		return factmodel.Float(lf + rf), nil
	case OpSubtract:
		return factmodel.Float(lf - rf), nil
	case OpMultiply:
		return factmodel.Float(lf * rf), nil
	case OpDivide:
		if rf == 0 {
			return factmodel.Null(), fmt.Errorf("division by zero")
		}
		return factmodel.Float(lf / rf), nil
	case OpModulo:
		if rf == 0 {
			return factmodel.Null(), fmt.Errorf("modulo by zero")
		}
		return floatMod(lf, rf), nil
	case OpPower:
		return floatPow(lf, rf), nil
	default:
		return factmodel.Null(), fmt.Errorf("unsupported arithmetic operator")
	}
}

func compareOp(op BinaryOp, left, right factmodel.Value) (factmodel.Value, error) {
	ordering := factmodel.Compare(left, right)
	if ordering == factmodel.Incomparable {
		return factmodel.Null(), fmt.Errorf("operands are not comparable")
	}
	switch op {
	case OpLessThan:
		return factmodel.Bool(ordering == factmodel.Less), nil
	case OpLessThanOrEqual:
		return factmodel.Bool(ordering == factmodel.Less || ordering == factmodel.Equal), nil
	case OpGreaterThan:
		return factmodel.Bool(ordering == factmodel.Greater), nil
	case OpGreaterThanOrEqual:
		return factmodel.Bool(ordering == factmodel.Greater || ordering == factmodel.Equal), nil
	default:
		return factmodel.Null(), fmt.Errorf("unsupported comparison operator")
	}
}

func (e *Evaluator) evalCall(x Call, env Env) (factmodel.Value, error) {
	fn, ok := e.functions[x.Name]
	if !ok {
		return factmodel.Null(), fmt.Errorf("undefined function %q", x.Name)
	}
	args := make([]factmodel.Value, len(x.Args))
	for i, a := range x.Args {
		v, err := e.eval(a, env)
		if err != nil {
			return factmodel.Null(), err
		}
		args[i] = v
	}
	return fn(args)
}

package calculator

import (
	"testing"

	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, src string) *Program {
	t.Helper()
	p, err := Compile(src)
	require.NoError(t, err)
	return p
}

func TestLexerBasicTokens(t *testing.T) {
	l := NewLexer("123 + 45.67")

	tok, err := l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokInt, tok.Kind)
	assert.Equal(t, int64(123), tok.Int)

	tok, err = l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokPlus, tok.Kind)

	tok, err = l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokFloat, tok.Kind)
	assert.InDelta(t, 45.67, tok.Float, 1e-9)

	tok, err = l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokEOF, tok.Kind)
}

func TestLexerString(t *testing.T) {
	l := NewLexer(`"hello world"`)
	tok, err := l.NextToken()
	require.NoError(t, err)
	assert.Equal(t, TokString, tok.Kind)
	assert.Equal(t, "hello world", tok.String)
}

func TestParserArithmeticPrecedence(t *testing.T) {
	program := mustCompile(t, "2 + 3 * 4")
	top, ok := program.root.(BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpAdd, top.Op)
	right, ok := top.Right.(BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpMultiply, right.Op)
}

func TestParserFunctionCall(t *testing.T) {
	program := mustCompile(t, "max(10, 20)")
	call, ok := program.root.(Call)
	require.True(t, ok)
	assert.Equal(t, "max", call.Name)
	assert.Len(t, call.Args, 2)
}

func TestParserConditional(t *testing.T) {
	program := mustCompile(t, "if x > 0 then x else 0")
	cond, ok := program.root.(Conditional)
	require.True(t, ok)
	_, ok = cond.Condition.(BinaryExpr)
	require.True(t, ok)
}

func TestParserConditionalSet(t *testing.T) {
	program := mustCompile(t, "cond when rating >= 4.5 then 0.15 when rating >= 4.0 then 0.10 default 0.0")
	set, ok := program.root.(ConditionalSet)
	require.True(t, ok)
	assert.Len(t, set.Branches, 2)
	require.NotNil(t, set.Default)
}

func TestParserArrayAndObjectLiterals(t *testing.T) {
	arr := mustCompile(t, "[1, 2, 3]")
	arrLit, ok := arr.root.(ArrayLiteral)
	require.True(t, ok)
	assert.Len(t, arrLit.Elements, 3)

	obj := mustCompile(t, `{"name": "John", age: 30}`)
	objLit, ok := obj.root.(ObjectLiteral)
	require.True(t, ok)
	require.Len(t, objLit.Fields, 2)
	assert.Equal(t, "name", objLit.Fields[0].Key)
	assert.Equal(t, "age", objLit.Fields[1].Key)
}

func TestParserArrayIndexing(t *testing.T) {
	program := mustCompile(t, "arr[0]")
	idx, ok := program.root.(Index)
	require.True(t, ok)
	_, ok = idx.Target.(Variable)
	require.True(t, ok)
}

func TestEvaluateArithmetic(t *testing.T) {
	program := mustCompile(t, "2 + 3 * 4")
	e := NewEvaluator()
	v, err := e.Evaluate(program, Env{})
	require.NoError(t, err)
	i, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(14), i)
}

func TestEvaluateComparisonAndBoolean(t *testing.T) {
	program := mustCompile(t, "weekly_hours <= weekly_limit")
	e := NewEvaluator()
	v, err := e.Evaluate(program, Env{
		"weekly_hours": factmodel.Float(24.5),
		"weekly_limit": factmodel.Float(20),
	})
	require.NoError(t, err)
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.False(t, b)
}

func TestEvaluateConditional(t *testing.T) {
	program := mustCompile(t, "if x > 0 then x else 0")
	e := NewEvaluator()
	v, err := e.Evaluate(program, Env{"x": factmodel.Int(-5)})
	require.NoError(t, err)
	i, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(0), i)
}

func TestEvaluateConditionalSet(t *testing.T) {
	program := mustCompile(t, "cond when rating >= 4.5 then 0.15 when rating >= 4.0 then 0.10 default 0.0")
	e := NewEvaluator()
	v, err := e.Evaluate(program, Env{"rating": factmodel.Float(4.2)})
	require.NoError(t, err)
	f, ok := v.AsFloat()
	require.True(t, ok)
	assert.InDelta(t, 0.10, f, 1e-9)
}

func TestEvaluateConditionalSetNoMatchNoDefaultErrors(t *testing.T) {
	program := mustCompile(t, "cond when rating >= 9.0 then 1.0")
	e := NewEvaluator()
	_, err := e.Evaluate(program, Env{"rating": factmodel.Float(4.2)})
	assert.Error(t, err)
}

func TestEvaluateStringOps(t *testing.T) {
	program := mustCompile(t, `"hello" ++ " " ++ "world"`)
	e := NewEvaluator()
	v, err := e.Evaluate(program, Env{})
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "hello world", s)
}

func TestEvaluateContains(t *testing.T) {
	program := mustCompile(t, `description contains "refund"`)
	e := NewEvaluator()
	v, err := e.Evaluate(program, Env{"description": factmodel.String("partial refund issued")})
	require.NoError(t, err)
	b, ok := v.AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestEvaluateBuiltinFunctions(t *testing.T) {
	e := NewEvaluator()

	program := mustCompile(t, "abs(-5)")
	v, err := e.Evaluate(program, Env{})
	require.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(5), i)

	program = mustCompile(t, "max(10, 20, 5)")
	v, err = e.Evaluate(program, Env{})
	require.NoError(t, err)
	i, _ = v.AsInt()
	assert.Equal(t, int64(20), i)
}

func TestRegisterFunctionOverridesTable(t *testing.T) {
	e := NewEvaluator()
	e.RegisterFunction("threshold_checker", func(args []factmodel.Value) (factmodel.Value, error) {
		value, _ := args[0].ToNumeric()
		threshold, _ := args[1].ToNumeric()
		if value > threshold {
			return factmodel.String("violation"), nil
		}
		return factmodel.String("compliant"), nil
	})

	program := mustCompile(t, "threshold_checker(weekly_hours, weekly_limit)")
	v, err := e.Evaluate(program, Env{
		"weekly_hours": factmodel.Float(24.5),
		"weekly_limit": factmodel.Float(20),
	})
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "violation", s)
}

func TestCallNamedThresholdCheckerDefault(t *testing.T) {
	e := NewEvaluator()
	v, err := e.CallNamed("threshold_checker", map[string]factmodel.Value{
		"value":     factmodel.Float(24.5),
		"threshold": factmodel.Float(20),
		"op":        factmodel.String("<="),
	})
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "violation", s)
}

func TestCallNamedUndefinedCalculatorErrors(t *testing.T) {
	e := NewEvaluator()
	_, err := e.CallNamed("no_such_calculator", map[string]factmodel.Value{})
	assert.Error(t, err)
}

func TestEvaluateArrayAndObjectLiteralsAndIndexing(t *testing.T) {
	e := NewEvaluator()

	program := mustCompile(t, "[1, 2, 3][1]")
	v, err := e.Evaluate(program, Env{})
	require.NoError(t, err)
	i, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, int64(2), i)

	program = mustCompile(t, `{name: "Ada"}.name`)
	v, err = e.Evaluate(program, Env{})
	require.NoError(t, err)
	s, ok := v.AsString()
	require.True(t, ok)
	assert.Equal(t, "Ada", s)
}

func TestEvaluateDivisionByZeroErrors(t *testing.T) {
	program := mustCompile(t, "1 / 0")
	e := NewEvaluator()
	_, err := e.Evaluate(program, Env{})
	assert.Error(t, err)
}

func TestEvaluateUndefinedVariableErrors(t *testing.T) {
	program := mustCompile(t, "missing_field + 1")
	e := NewEvaluator()
	_, err := e.Evaluate(program, Env{})
	assert.Error(t, err)
}

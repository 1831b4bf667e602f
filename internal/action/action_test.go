package action

import (
	"testing"

	"github.com/rawblock/rete-engine/internal/calculator"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
	"github.com/rawblock/rete-engine/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	logs          []LogEntry
	alerts        []Alert
	notifications []Notification
}

func (r *recordingSink) Log(e LogEntry)                 { r.logs = append(r.logs, e) }
func (r *recordingSink) TriggerAlert(a Alert)            { r.alerts = append(r.alerts, a) }
func (r *recordingSink) SendNotification(n Notification) { r.notifications = append(r.notifications, n) }

func newTestExecutor() (*Executor, *store.Store, *recordingSink) {
	s := store.New(16)
	sink := &recordingSink{}
	calc := calculator.NewEvaluator()
	return New(s, calc, sink), s, sink
}

func TestExecuteLogEmitsToSink(t *testing.T) {
	exec, s, sink := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{}})

	result := exec.Execute(1, id, []rule.Action{{Kind: rule.ActionLog, Message: "hello"}})

	require.Empty(t, result.Errors)
	require.Len(t, sink.logs, 1)
	assert.Equal(t, "hello", sink.logs[0].Message)
}

func TestExecuteSetField(t *testing.T) {
	exec, s, _ := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{}})

	result := exec.Execute(1, id, []rule.Action{{Kind: rule.ActionSetField, Field: "status", Value: factmodel.String("flagged")}})

	require.Empty(t, result.Errors)
	fact, ok := s.Get(id)
	require.True(t, ok)
	v, ok := fact.Get("status")
	require.True(t, ok)
	s2, _ := v.AsString()
	assert.Equal(t, "flagged", s2)
}

func TestExecuteIncrementField(t *testing.T) {
	exec, s, _ := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"count": factmodel.Int(3)}})

	result := exec.Execute(1, id, []rule.Action{{Kind: rule.ActionIncrementField, Field: "count", Value: factmodel.Int(2)}})

	require.Empty(t, result.Errors)
	fact, _ := s.Get(id)
	v, _ := fact.Get("count")
	f, _ := v.ToNumeric()
	assert.Equal(t, 5.0, f)
}

func TestExecuteIncrementFieldNonNumericFieldErrors(t *testing.T) {
	exec, s, _ := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"count": factmodel.String("nope")}})

	result := exec.Execute(1, id, []rule.Action{{Kind: rule.ActionIncrementField, Field: "count", Value: factmodel.Int(2)}})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "reference", string(result.Errors[0].Category))
}

func TestExecuteAppendToArray(t *testing.T) {
	exec, s, _ := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"tags": factmodel.Array([]factmodel.Value{factmodel.String("a")})}})

	result := exec.Execute(1, id, []rule.Action{{Kind: rule.ActionAppendToArray, Field: "tags", Value: factmodel.String("b")}})

	require.Empty(t, result.Errors)
	fact, _ := s.Get(id)
	v, _ := fact.Get("tags")
	arr, _ := v.AsArray()
	require.Len(t, arr, 2)
	s2, _ := arr[1].AsString()
	assert.Equal(t, "b", s2)
}

func TestExecuteCreateFactQueuesNewID(t *testing.T) {
	exec, s, _ := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{}})

	result := exec.Execute(1, id, []rule.Action{{Kind: rule.ActionCreateFact, NewFields: map[string]factmodel.Value{"kind": factmodel.String("child")}}})

	require.Empty(t, result.Errors)
	require.Len(t, result.CreatedFactIDs, 1)
	created, ok := s.Get(result.CreatedFactIDs[0])
	require.True(t, ok)
	v, _ := created.Get("kind")
	s2, _ := v.AsString()
	assert.Equal(t, "child", s2)
}

func TestExecuteUpdateFactResolvesTargetFromField(t *testing.T) {
	exec, s, _ := newTestExecutor()
	targetID := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"status": factmodel.String("open")}})
	triggerID := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"related_id": factmodel.Int(int64(targetID))}})

	result := exec.Execute(1, triggerID, []rule.Action{{
		Kind:            rule.ActionUpdateFact,
		TargetFactField: "related_id",
		NewFields:       map[string]factmodel.Value{"status": factmodel.String("closed")},
	}})

	require.Empty(t, result.Errors)
	target, _ := s.Get(targetID)
	v, _ := target.Get("status")
	s2, _ := v.AsString()
	assert.Equal(t, "closed", s2)
}

func TestExecuteUpdateFactMissingTargetFieldIsReferenceError(t *testing.T) {
	exec, s, _ := newTestExecutor()
	triggerID := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{}})

	result := exec.Execute(1, triggerID, []rule.Action{{
		Kind:            rule.ActionUpdateFact,
		TargetFactField: "related_id",
		NewFields:       map[string]factmodel.Value{"status": factmodel.String("closed")},
	}})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "reference", string(result.Errors[0].Category))
}

func TestExecuteUpdateFactNonIntegerTargetIsReferenceError(t *testing.T) {
	exec, s, _ := newTestExecutor()
	triggerID := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"related_id": factmodel.String("not-an-id")}})

	result := exec.Execute(1, triggerID, []rule.Action{{
		Kind:            rule.ActionUpdateFact,
		TargetFactField: "related_id",
		NewFields:       map[string]factmodel.Value{"status": factmodel.String("closed")},
	}})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "reference", string(result.Errors[0].Category))
}

func TestExecuteDeleteFactRemovesTarget(t *testing.T) {
	exec, s, _ := newTestExecutor()
	targetID := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{}})
	triggerID := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"related_id": factmodel.Int(int64(targetID))}})

	result := exec.Execute(1, triggerID, []rule.Action{{Kind: rule.ActionDeleteFact, TargetFactField: "related_id"}})

	require.Empty(t, result.Errors)
	_, ok := s.Get(targetID)
	assert.False(t, ok)
}

func TestExecuteFormula(t *testing.T) {
	exec, s, _ := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"a": factmodel.Int(2), "b": factmodel.Int(3)}})

	result := exec.Execute(1, id, []rule.Action{{Kind: rule.ActionFormula, Expr: "a + b * 2", Out: "total"}})

	require.Empty(t, result.Errors)
	fact, _ := s.Get(id)
	v, _ := fact.Get("total")
	i, _ := v.AsInt()
	assert.Equal(t, int64(8), i)
}

func TestExecuteFormulaCompileErrorZeroesOutField(t *testing.T) {
	exec, s, _ := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"total": factmodel.Int(99)}})

	result := exec.Execute(1, id, []rule.Action{{Kind: rule.ActionFormula, Expr: "((", Out: "total"}})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "evaluation", string(result.Errors[0].Category))
	fact, _ := s.Get(id)
	v, _ := fact.Get("total")
	assert.True(t, v.IsNull())
}

// TestExecuteCallCalculatorThresholdChecker reproduces spec.md's S1
// testable property end to end: a weekly_hours fact over weekly_limit
// resolves to compliance_status = "violation" via the registered
// threshold_checker calculator.
func TestExecuteCallCalculatorThresholdChecker(t *testing.T) {
	exec, s, _ := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{
		"weekly_hours":  factmodel.Float(24.5),
		"weekly_limit":  factmodel.Float(20),
		"comparison_op": factmodel.String("<="),
	}})

	result := exec.Execute(1, id, []rule.Action{{
		Kind:           rule.ActionCallCalculator,
		CalculatorName: "threshold_checker",
		InputMap: map[string]string{
			"value":     "weekly_hours",
			"threshold": "weekly_limit",
			"op":        "comparison_op",
		},
		Out: "compliance_status",
	}})

	require.Empty(t, result.Errors)
	fact, _ := s.Get(id)
	v, ok := fact.Get("compliance_status")
	require.True(t, ok)
	str, _ := v.AsString()
	assert.Equal(t, "violation", str)
}

func TestExecuteCallCalculatorMissingInputFieldIsReferenceError(t *testing.T) {
	exec, s, _ := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{"weekly_hours": factmodel.Float(24.5)}})

	result := exec.Execute(1, id, []rule.Action{{
		Kind:           rule.ActionCallCalculator,
		CalculatorName: "threshold_checker",
		InputMap:       map[string]string{"value": "weekly_hours", "threshold": "weekly_limit"},
		Out:            "compliance_status",
	}})

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "reference", string(result.Errors[0].Category))
}

func TestExecuteTriggerAlertAndSendNotification(t *testing.T) {
	exec, s, sink := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{}})

	result := exec.Execute(7, id, []rule.Action{
		{Kind: rule.ActionTriggerAlert, Severity: "high", Message: "threshold breached"},
		{Kind: rule.ActionSendNotification, Severity: "low", Channel: "ops", Message: "fyi"},
	})

	require.Empty(t, result.Errors)
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, "high", sink.alerts[0].Severity)
	require.Len(t, sink.notifications, 1)
	assert.Equal(t, "ops", sink.notifications[0].Channel)
}

func TestExecuteContinuesAfterActionError(t *testing.T) {
	exec, s, sink := newTestExecutor()
	id := s.Insert(factmodel.Fact{Fields: map[string]factmodel.Value{}})

	result := exec.Execute(1, id, []rule.Action{
		{Kind: rule.ActionUpdateFact, TargetFactField: "missing_ref", NewFields: map[string]factmodel.Value{"x": factmodel.Int(1)}},
		{Kind: rule.ActionLog, Message: "still ran"},
	})

	require.Len(t, result.Errors, 1)
	require.Len(t, sink.logs, 1)
	assert.Equal(t, "still ran", sink.logs[0].Message)
}

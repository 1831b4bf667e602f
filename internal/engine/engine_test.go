package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/rawblock/rete-engine/internal/action"
	"github.com/rawblock/rete-engine/internal/diagnostics"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(DefaultConfig(), action.NopSink{}, nil)
}

// S1: student-visa compliance via call_calculator.
func TestProcessFactsStudentVisaCompliance(t *testing.T) {
	e := newTestEngine(t)
	e.Calculator().RegisterCalculator("threshold_checker", func(inputs map[string]factmodel.Value) (factmodel.Value, error) {
		value, _ := inputs["value"].AsFloat()
		threshold, _ := inputs["threshold"].AsFloat()
		if value > threshold {
			return factmodel.String("violation"), nil
		}
		return factmodel.String("compliant"), nil
	})

	require.NoError(t, e.AddRule(rule.Rule{
		ID:   1,
		Name: "student-visa-compliance",
		Conditions: []rule.Condition{
			rule.Simple{Field: "is_student_visa", Op: rule.Eq, Value: factmodel.Bool(true)},
		},
		Actions: []rule.Action{
			{
				Kind:           rule.ActionCallCalculator,
				CalculatorName: "threshold_checker",
				InputMap:       map[string]string{"value": "weekly_hours", "threshold": "weekly_limit"},
				Out:            "compliance_status",
			},
		},
	}))

	result := e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{
			"is_student_visa": factmodel.Bool(true),
			"weekly_hours":    factmodel.Float(24.5),
			"weekly_limit":    factmodel.Float(20),
		}},
	})

	require.Len(t, result.Activations, 1)
	assert.Empty(t, result.Activations[0].Errors)

	triggering := result.Activations[0].InputFactIDs[0]
	fact, ok := e.store.Get(triggering)
	require.True(t, ok)
	status, ok := fact.Get("compliance_status")
	require.True(t, ok)
	s, _ := status.AsString()
	assert.Equal(t, "violation", s)
}

// S3: fact retraction clears alpha memory membership.
func TestRemoveFactClearsAlphaMembership(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddRule(rule.Rule{
		ID:   1,
		Name: "single-condition",
		Conditions: []rule.Condition{
			rule.Simple{Field: "kind", Op: rule.Eq, Value: factmodel.String("order")},
		},
		Actions: []rule.Action{{Kind: rule.ActionLog, Message: "matched"}},
	}))

	result := e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{"kind": factmodel.String("order")}},
	})
	require.Len(t, result.Activations, 1)
	factID := result.Activations[0].InputFactIDs[0]

	entry := e.rules[1]
	mem := entry.conditionMemories[0]
	assert.Equal(t, 1, mem.Count())

	require.True(t, e.RemoveFact(factID))
	assert.Equal(t, 0, mem.Count())
}

// S4: cascade depth limit of 8 — a rule whose action creates a fact that
// retriggers the same rule fires exactly 8 times before the 9th
// generation is cut off.
func TestProcessFactsCascadeDepthLimit(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddRule(rule.Rule{
		ID:   1,
		Name: "self-triggering",
		Conditions: []rule.Condition{
			rule.Simple{Field: "kind", Op: rule.Eq, Value: factmodel.String("chain")},
		},
		Actions: []rule.Action{
			{
				Kind:      rule.ActionCreateFact,
				NewFields: map[string]factmodel.Value{"kind": factmodel.String("chain")},
			},
		},
	}))

	result := e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{"kind": factmodel.String("chain")}},
	})

	assert.True(t, result.CascadeDepthExceeded)
	assert.Len(t, result.Activations, e.cascadeDepthLimit)
}

func TestAddRuleRejectsConflictingID(t *testing.T) {
	e := newTestEngine(t)
	r := rule.Rule{
		ID:         1,
		Name:       "r",
		Conditions: []rule.Condition{rule.Simple{Field: "x", Op: rule.Eq, Value: factmodel.Int(1)}},
	}
	require.NoError(t, e.AddRule(r))
	err := e.AddRule(r)
	require.Error(t, err)
}

func TestUpdateRuleReplacesConditions(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddRule(rule.Rule{
		ID:         1,
		Name:       "r",
		Conditions: []rule.Condition{rule.Simple{Field: "x", Op: rule.Eq, Value: factmodel.Int(1)}},
		Actions:    []rule.Action{{Kind: rule.ActionLog, Message: "v1"}},
	}))

	require.NoError(t, e.UpdateRule(rule.Rule{
		ID:         1,
		Name:       "r",
		Conditions: []rule.Condition{rule.Simple{Field: "y", Op: rule.Eq, Value: factmodel.Int(2)}},
		Actions:    []rule.Action{{Kind: rule.ActionLog, Message: "v2"}},
	}))

	result := e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{"x": factmodel.Int(1)}},
	})
	assert.Empty(t, result.Activations)

	result = e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{"y": factmodel.Int(2)}},
	})
	assert.Len(t, result.Activations, 1)
}

func TestRemoveRuleUnknownReturnsError(t *testing.T) {
	e := newTestEngine(t)
	err := e.RemoveRule(999)
	require.Error(t, err)
}

// A rule mixing Or at the top level takes the direct-evaluation path
// rather than the alpha/beta chain.
func TestProcessFactsDirectPathForOrCondition(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddRule(rule.Rule{
		ID:   1,
		Name: "vip-or-high-value",
		Conditions: []rule.Condition{
			rule.Or{Conditions: []rule.Condition{
				rule.Simple{Field: "vip", Op: rule.Eq, Value: factmodel.Bool(true)},
				rule.Simple{Field: "amount", Op: rule.Gt, Value: factmodel.Float(1000)},
			}},
		},
		Actions: []rule.Action{{Kind: rule.ActionLog, Message: "matched"}},
	}))
	assert.False(t, e.rules[1].networked)

	result := e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{"vip": factmodel.Bool(false), "amount": factmodel.Float(5000)}},
	})
	assert.Len(t, result.Activations, 1)
}

func TestGetStatsReflectsRuleAndFactCounts(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddRule(rule.Rule{
		ID:         1,
		Name:       "r",
		Conditions: []rule.Condition{rule.Simple{Field: "x", Op: rule.Eq, Value: factmodel.Int(1)}},
	}))
	e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{"x": factmodel.Int(1)}},
	})

	stats := e.GetStats()
	assert.Equal(t, 1, stats.RuleCount)
	assert.Equal(t, 1, stats.FactCount)
	assert.Equal(t, uint64(1), stats.TotalFactsProcessed)
}

// S6: a breakpoint installed on a join node tracks hit_count across real
// facts driven through that join, not just in isolated unit tests of
// diagnostics.Manager.
func TestBreakpointHitCountAcrossJoinFacts(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.AddRule(rule.Rule{
		ID:   1,
		Name: "paid-order",
		Conditions: []rule.Condition{
			rule.Simple{Field: "kind", Op: rule.Eq, Value: factmodel.String("order")},
			rule.Simple{Field: "status", Op: rule.Eq, Value: factmodel.String("paid")},
		},
		Actions: []rule.Action{{Kind: rule.ActionLog, Message: "matched"}},
	}))
	require.True(t, e.rules[1].networked)

	nodeName, ok := e.JoinNodeName(1, 1)
	require.True(t, ok)
	e.Diagnostics().SetBreakpoint(nodeName, diagnostics.BreakpointCondition{HitCount: 3})

	// 10 facts matching the join's condition arrive before any seed fact,
	// so they accumulate in the alpha memory without triggering a
	// Propagate call.
	for i := 0; i < 10; i++ {
		e.ProcessFacts(context.Background(), []factmodel.Fact{
			{Fields: map[string]factmodel.Value{"status": factmodel.String("paid"), "order_id": factmodel.Int(i)}},
		})
	}
	// The seed fact arrives last, driving a single Propagate call that
	// attempts all 10 accumulated candidates against the join node.
	e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{"kind": factmodel.String("order")}},
	})

	var hits []diagnostics.Event
	for _, ev := range e.Diagnostics().RecentEvents(0) {
		if ev.Type == diagnostics.EventBreakpointHit {
			hits = append(hits, ev)
		}
	}
	require.Len(t, hits, 8) // hits>=3 matches on attempts 3 through 10
	assert.Equal(t, "10", hits[0].Data["hit_count"])
}

func TestQuarantinedEngineRejectsBatches(t *testing.T) {
	e := newTestEngine(t)
	e.Quarantine()
	assert.True(t, e.Quarantined())

	result := e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{"x": factmodel.Int(1)}},
	})
	assert.Empty(t, result.Activations)
}

func ExampleEngine_ProcessFacts() {
	e := New(DefaultConfig(), action.NopSink{}, nil)
	_ = e.AddRule(rule.Rule{
		ID:         1,
		Name:       "example",
		Conditions: []rule.Condition{rule.Simple{Field: "kind", Op: rule.Eq, Value: factmodel.String("order")}},
		Actions:    []rule.Action{{Kind: rule.ActionLog, Message: "order seen"}},
	})
	result := e.ProcessFacts(context.Background(), []factmodel.Fact{
		{Fields: map[string]factmodel.Value{"kind": factmodel.String("order")}},
	})
	fmt.Println(len(result.Activations))
	// Output: 1
}

package diagnostics

import (
	"testing"
	"time"

	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEventHook struct {
	events []Event
}

func (h *recordingEventHook) OnEvent(e Event) { h.events = append(h.events, e) }
func (h *recordingEventHook) Name() string    { return "recording" }

type recordingRuleHook struct {
	started []rule.RuleID
	fired   []rule.RuleID
}

func (h *recordingRuleHook) BeforeRuleEvaluation(ruleID rule.RuleID, facts []factmodel.Fact) {
	h.started = append(h.started, ruleID)
}
func (h *recordingRuleHook) AfterRuleEvaluation(ruleID rule.RuleID, fired bool) {}
func (h *recordingRuleHook) OnRuleFired(ruleID rule.RuleID, in, out []factmodel.FactID) {
	h.fired = append(h.fired, ruleID)
}
func (h *recordingRuleHook) Name() string { return "recording_rule" }

func TestTriggerRuleEvaluationStartedCallsHookAndBuffers(t *testing.T) {
	m := New()
	hook := &recordingRuleHook{}
	m.AddRuleHook(rule.RuleID(1), hook)

	m.TriggerRuleEvaluationStarted(rule.RuleID(1), []factmodel.Fact{{ID: 1}})

	require.Len(t, hook.started, 1)
	assert.Equal(t, rule.RuleID(1), hook.started[0])

	events := m.RecentEvents(0)
	require.Len(t, events, 1)
	assert.Equal(t, EventRuleEvaluationStarted, events[0].Type)
}

func TestTriggerRuleFiredOnlyCallsMatchingRuleHooks(t *testing.T) {
	m := New()
	hookA := &recordingRuleHook{}
	hookB := &recordingRuleHook{}
	m.AddRuleHook(rule.RuleID(1), hookA)
	m.AddRuleHook(rule.RuleID(2), hookB)

	m.TriggerRuleFired(rule.RuleID(1), []factmodel.FactID{10}, []factmodel.FactID{11})

	assert.Len(t, hookA.fired, 1)
	assert.Empty(t, hookB.fired)
}

func TestEventHookReceivesEveryEmittedEvent(t *testing.T) {
	m := New()
	hook := &recordingEventHook{}
	m.AddEventHook(hook)

	m.TriggerRuleFired(rule.RuleID(1), nil, nil)
	m.TriggerTokenCreated([]factmodel.FactID{1}, "alpha-0")

	require.Len(t, hook.events, 2)
}

func TestRingBufferEvictsOldestBeyondCapacity(t *testing.T) {
	m := NewWithConfig(Config{EnableRuleHooks: true, MaxEventBufferSize: 2, EventSampleRate: 1.0})

	m.TriggerRuleFired(rule.RuleID(1), nil, nil)
	m.TriggerRuleFired(rule.RuleID(2), nil, nil)
	m.TriggerRuleFired(rule.RuleID(3), nil, nil)

	events := m.RecentEvents(0)
	require.Len(t, events, 2)
}

func TestSetBreakpointAlwaysMatches(t *testing.T) {
	m := New()
	id := m.SetBreakpoint("beta-3", BreakpointCondition{Always: true})

	hit := m.CheckBreakpoints("beta-3", rule.RuleID(7), factmodel.FactID(42))

	require.Len(t, hit, 1)
	assert.Equal(t, id, hit[0].ID)
	assert.Equal(t, 1, hit[0].HitCount)
}

func TestCheckBreakpointsIgnoresDisabledOrOtherNode(t *testing.T) {
	m := New()
	m.SetBreakpoint("beta-1", BreakpointCondition{Always: true})

	hit := m.CheckBreakpoints("beta-9", rule.RuleID(1), factmodel.FactID(1))
	assert.Empty(t, hit)
}

func TestHitCountConditionRequiresThreshold(t *testing.T) {
	m := New()
	m.SetBreakpoint("node-1", BreakpointCondition{HitCount: 3})

	for i := 0; i < 2; i++ {
		hit := m.CheckBreakpoints("node-1", rule.RuleID(1), factmodel.FactID(1))
		assert.Empty(t, hit)
	}
	hit := m.CheckBreakpoints("node-1", rule.RuleID(1), factmodel.FactID(1))
	require.Len(t, hit, 1)
}

func TestRemoveBreakpointStopsMatching(t *testing.T) {
	m := New()
	id := m.SetBreakpoint("node-1", BreakpointCondition{Always: true})
	m.RemoveBreakpoint(id)

	hit := m.CheckBreakpoints("node-1", rule.RuleID(1), factmodel.FactID(1))
	assert.Empty(t, hit)
}

func TestAnalyticsErrorFrequencyTracksWarnAndError(t *testing.T) {
	a := NewAnalytics()
	now := time.Now()
	a.Observe(Event{Timestamp: now, Type: EventRuleFired, Severity: SeverityInfo})
	a.Observe(Event{Timestamp: now, Type: EventActionExecuted, Severity: SeverityError})

	rate, byType := a.ErrorFrequency()
	assert.InDelta(t, 0.5, rate, 1e-9)
	assert.Equal(t, 1, byType[EventActionExecuted])
}

func TestAnalyticsDominantPattern(t *testing.T) {
	a := NewAnalytics()
	now := time.Now()
	a.Observe(Event{Timestamp: now, Type: EventTokenCreated, Severity: SeverityTrace})
	a.Observe(Event{Timestamp: now, Type: EventTokenCreated, Severity: SeverityTrace})
	a.Observe(Event{Timestamp: now, Type: EventRuleFired, Severity: SeverityInfo})

	pattern, count := a.DominantPattern()
	assert.Equal(t, EventTokenCreated, pattern)
	assert.Equal(t, 2, count)
}

func TestAnalyticsEvictsBucketsBeyondRetention(t *testing.T) {
	a := NewAnalytics()
	old := time.Now().Add(-25 * time.Hour)
	a.Observe(Event{Timestamp: old, Type: EventRuleFired, Severity: SeverityInfo})
	a.Observe(Event{Timestamp: time.Now(), Type: EventRuleFired, Severity: SeverityInfo})

	buckets := a.TrendBuckets()
	require.Len(t, buckets, 1)
}

func TestOverheadStatsAccumulate(t *testing.T) {
	m := New()
	m.TriggerRuleFired(rule.RuleID(1), nil, nil)
	m.TriggerRuleFired(rule.RuleID(2), nil, nil)

	stats := m.OverheadStats()
	assert.Equal(t, 2, stats.HookInvocations)
}

package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersSnapshotReflectsIncrements(t *testing.T) {
	c := NewCounters()
	c.IncFactsProcessed()
	c.IncFactsProcessed()
	c.IncRulesFired()
	c.IncCacheHits()
	c.IncCacheMisses()

	s := c.Snapshot()
	assert.Equal(t, uint64(2), s.FactsProcessed)
	assert.Equal(t, uint64(1), s.RulesFired)
	assert.Equal(t, 50.0, s.CacheHitRatePercent())
}

func TestCacheHitRateIsHundredWhenNoLookups(t *testing.T) {
	s := Snapshot{}
	assert.Equal(t, 100.0, s.CacheHitRatePercent())
}

func TestErrorRatePercent(t *testing.T) {
	s := Snapshot{RulesEvaluated: 200, RuleEvaluationErrors: 10}
	assert.Equal(t, 5.0, s.ErrorRatePercent())
}

func TestAlertManagerTriggersWarningThenCritical(t *testing.T) {
	m := NewAlertManager(DefaultThresholds())

	alerts := m.Evaluate(Snapshot{RulesEvaluated: 100, RuleEvaluationErrors: 6}, 10)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertHighErrorRate, alerts[0].Type)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)

	alerts = m.Evaluate(Snapshot{RulesEvaluated: 100, RuleEvaluationErrors: 15}, 10)
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestAlertManagerResolvesWhenBackBelowThreshold(t *testing.T) {
	m := NewAlertManager(DefaultThresholds())
	m.Evaluate(Snapshot{RulesEvaluated: 100, RuleEvaluationErrors: 6}, 10)
	require.Len(t, m.ActiveAlerts(), 1)

	alerts := m.Evaluate(Snapshot{RulesEvaluated: 100, RuleEvaluationErrors: 0}, 10)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Resolved)
	assert.Empty(t, m.ActiveAlerts())
}

func TestAlertManagerNoRepeatAlertAtSameSeverity(t *testing.T) {
	m := NewAlertManager(DefaultThresholds())
	m.Evaluate(Snapshot{RulesEvaluated: 100, RuleEvaluationErrors: 6}, 10)
	alerts := m.Evaluate(Snapshot{RulesEvaluated: 100, RuleEvaluationErrors: 7}, 10)
	assert.Empty(t, alerts)
}

func TestAlertManagerLowCacheHitRateIsInverted(t *testing.T) {
	m := NewAlertManager(DefaultThresholds())
	alerts := m.Evaluate(Snapshot{CacheHits: 60, CacheMisses: 40}, 10)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertLowCacheHitRate, alerts[0].Type)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
}

func TestAlertManagerCascadeDepthExceededFiresOnce(t *testing.T) {
	m := NewAlertManager(DefaultThresholds())
	alerts := m.Evaluate(Snapshot{CascadeDepthExceeded: 1}, 10)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCascadeDepthExceed, alerts[0].Type)

	alerts = m.Evaluate(Snapshot{CascadeDepthExceeded: 1}, 10)
	assert.Empty(t, alerts)
}

func TestHealthScorePerfectWhenNoLoad(t *testing.T) {
	score := HealthScore(Snapshot{}, 0)
	assert.Equal(t, 100.0, score)
	assert.Equal(t, "healthy", HealthStatus(score))
}

func TestHealthScoreDegradesUnderErrorsAndLoad(t *testing.T) {
	s := Snapshot{RulesEvaluated: 100, RuleEvaluationErrors: 50, CacheHits: 10, CacheMisses: 90}
	score := HealthScore(s, 95)
	assert.Less(t, score, 60.0)
	assert.Equal(t, "unhealthy", HealthStatus(score))
}

func TestCheckReadinessReadyUnderNormalLoad(t *testing.T) {
	s := Snapshot{RulesEvaluated: 1000, RuleEvaluationErrors: 1, CacheHits: 950, CacheMisses: 50}
	report := CheckReadiness(s, 20, DefaultThresholds())
	assert.True(t, report.Ready)
	assert.Equal(t, "ready", report.Status)
}

func TestCheckReadinessNotReadyWhenCascadeDepthExceeded(t *testing.T) {
	s := Snapshot{CascadeDepthExceeded: 3}
	report := CheckReadiness(s, 10, DefaultThresholds())
	assert.False(t, report.Ready)
	assert.Equal(t, "not_ready", report.Status)
	require.NotEmpty(t, report.Summary.Failures)
}

func TestCheckReadinessWarningsOnlyStatus(t *testing.T) {
	s := Snapshot{RulesEvaluated: 100, RuleEvaluationErrors: 6}
	report := CheckReadiness(s, 10, DefaultThresholds())
	assert.True(t, report.Ready)
	assert.Equal(t, "ready_with_warnings", report.Status)
}

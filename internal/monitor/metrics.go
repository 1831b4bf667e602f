// Package monitor implements the engine's operational metrics surface
// (spec.md §4.11): atomic counters, an alert threshold state machine, a
// composite health score, and a production-readiness checker.
package monitor

import "sync/atomic"

// Counters is the set of atomically-updated engine metrics. Every field
// is safe for concurrent increment from any goroutine; Snapshot takes a
// consistent read.
type Counters struct {
	factsProcessed       atomic.Uint64
	rulesEvaluated       atomic.Uint64
	rulesFired           atomic.Uint64
	ruleEvaluationErrors atomic.Uint64
	cascadeDepthExceeded atomic.Uint64
	timeouts             atomic.Uint64

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64

	ruleViolationsDetected atomic.Uint64
	droppedActivations     atomic.Uint64

	memoryUsageBytes atomic.Uint64
	activeGoroutines atomic.Uint64
}

// NewCounters constructs a zeroed Counters.
func NewCounters() *Counters { return &Counters{} }

func (c *Counters) IncFactsProcessed()       { c.factsProcessed.Add(1) }
func (c *Counters) IncRulesEvaluated()       { c.rulesEvaluated.Add(1) }
func (c *Counters) IncRulesFired()           { c.rulesFired.Add(1) }
func (c *Counters) IncRuleEvaluationErrors() { c.ruleEvaluationErrors.Add(1) }
func (c *Counters) IncCascadeDepthExceeded() { c.cascadeDepthExceeded.Add(1) }
func (c *Counters) IncTimeouts()             { c.timeouts.Add(1) }
func (c *Counters) IncCacheHits()            { c.cacheHits.Add(1) }
func (c *Counters) IncCacheMisses()          { c.cacheMisses.Add(1) }
func (c *Counters) IncRuleViolations()       { c.ruleViolationsDetected.Add(1) }
func (c *Counters) IncDroppedActivations()   { c.droppedActivations.Add(1) }

// SetMemoryUsageBytes and SetActiveGoroutines are point-in-time gauges
// a caller refreshes on a sampling interval (spec.md §4.11's resource
// metrics class), rather than monotonic counters.
func (c *Counters) SetMemoryUsageBytes(v uint64) { c.memoryUsageBytes.Store(v) }
func (c *Counters) SetActiveGoroutines(v uint64) { c.activeGoroutines.Store(v) }

// Snapshot is a point-in-time, consistent-enough read of Counters plus
// derived rates, handed to the threshold state machine, health scorer,
// and readiness checker.
type Snapshot struct {
	FactsProcessed       uint64
	RulesEvaluated       uint64
	RulesFired           uint64
	RuleEvaluationErrors uint64
	CascadeDepthExceeded uint64
	Timeouts             uint64

	CacheHits   uint64
	CacheMisses uint64

	RuleViolationsDetected uint64
	DroppedActivations     uint64

	MemoryUsageBytes uint64
	ActiveGoroutines uint64
}

// CacheHitRatePercent returns the cache hit rate as 0-100, or 100 when no
// lookups have happened yet (an empty cache isn't a cold one).
func (s Snapshot) CacheHitRatePercent() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 100
	}
	return 100 * float64(s.CacheHits) / float64(total)
}

// ErrorRatePercent returns rule-evaluation errors as a percentage of
// rules evaluated.
func (s Snapshot) ErrorRatePercent() float64 {
	if s.RulesEvaluated == 0 {
		return 0
	}
	return 100 * float64(s.RuleEvaluationErrors) / float64(s.RulesEvaluated)
}

// Snapshot reads every counter into a Snapshot, computing no derived
// fields beyond raw counts (those live on Snapshot's methods).
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		FactsProcessed:         c.factsProcessed.Load(),
		RulesEvaluated:         c.rulesEvaluated.Load(),
		RulesFired:             c.rulesFired.Load(),
		RuleEvaluationErrors:   c.ruleEvaluationErrors.Load(),
		CascadeDepthExceeded:   c.cascadeDepthExceeded.Load(),
		Timeouts:               c.timeouts.Load(),
		CacheHits:              c.cacheHits.Load(),
		CacheMisses:            c.cacheMisses.Load(),
		RuleViolationsDetected: c.ruleViolationsDetected.Load(),
		DroppedActivations:     c.droppedActivations.Load(),
		MemoryUsageBytes:       c.memoryUsageBytes.Load(),
		ActiveGoroutines:       c.activeGoroutines.Load(),
	}
}

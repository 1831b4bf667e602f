package alpha

import (
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// NodeID identifies a single alpha memory within a manager.
type NodeID uint64

// Memory holds every fact id currently satisfying one Pattern, plus the
// rules that depend on it. Facts are tracked as a set; membership order is
// never meaningful (spec.md §4.5).
type Memory struct {
	ID       NodeID
	Pattern  Pattern
	facts    map[factmodel.FactID]struct{}
	rules    map[rule.RuleID]struct{}
	accesses uint64
	added    uint64
	removed  uint64
}

func newMemory(id NodeID, pattern Pattern) *Memory {
	return &Memory{
		ID:      id,
		Pattern: pattern,
		facts:   make(map[factmodel.FactID]struct{}),
		rules:   make(map[rule.RuleID]struct{}),
	}
}

// AddFact inserts id, returning true if it was not already present.
func (m *Memory) AddFact(id factmodel.FactID) bool {
	if _, ok := m.facts[id]; ok {
		return false
	}
	m.facts[id] = struct{}{}
	m.added++
	return true
}

// RemoveFact deletes id, returning true if it had been present.
func (m *Memory) RemoveFact(id factmodel.FactID) bool {
	if _, ok := m.facts[id]; !ok {
		return false
	}
	delete(m.facts, id)
	m.removed++
	return true
}

// MatchingFacts returns the memory's current fact set and counts the read
// as an access (spec.md §4.5: access counts feed the optimizer's
// selectivity model).
func (m *Memory) MatchingFacts() map[factmodel.FactID]struct{} {
	m.accesses++
	return m.facts
}

// Count returns the number of facts currently held without counting an
// access.
func (m *Memory) Count() int { return len(m.facts) }

// AddDependentRule registers ruleID as relying on this memory's contents.
func (m *Memory) AddDependentRule(ruleID rule.RuleID) {
	m.rules[ruleID] = struct{}{}
}

// IsNeeded reports whether any rule still depends on this memory. Memories
// with no dependents are cleanup candidates (spec.md §4.5).
func (m *Memory) IsNeeded() bool { return len(m.rules) > 0 }

// DependentRules returns the set of rule ids depending on this memory.
func (m *Memory) DependentRules() []rule.RuleID {
	out := make([]rule.RuleID, 0, len(m.rules))
	for id := range m.rules {
		out = append(out, id)
	}
	return out
}

// Stats is a point-in-time readout of one memory's activity.
type Stats struct {
	ID             NodeID
	PatternKey     string
	FactCount      int
	DependentRules int
	Accesses       uint64
	FactsAdded     uint64
	FactsRemoved   uint64
}

// GetStats snapshots the memory without mutating access counters.
func (m *Memory) GetStats() Stats {
	return Stats{
		ID:             m.ID,
		PatternKey:     m.Pattern.Key(),
		FactCount:      len(m.facts),
		DependentRules: len(m.rules),
		Accesses:       m.accesses,
		FactsAdded:     m.added,
		FactsRemoved:   m.removed,
	}
}

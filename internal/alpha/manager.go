package alpha

import (
	"sync"

	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

const (
	eqOperator  = rule.Eq
	gtOperator  = rule.Gt
	gteOperator = rule.Gte
	ltOperator  = rule.Lt
	lteOperator = rule.Lte
)

type rangeEntry struct {
	threshold float64
	keys      []string
}

// Manager is the alpha memory manager (spec.md §4.5): it owns every
// pattern-keyed Memory, routes incoming facts to the memories whose pattern
// they satisfy, and tracks which rules depend on which patterns.
//
// Three indexes keep process_fact_addition sub-linear in the common case:
// equality patterns are probed by exact (field, value) key, range patterns
// (>, <, >=, <=) are probed by field then scanned over their thresholds,
// and anything else (contains, starts_with, ends_with, or a field with no
// equality/range pattern registered) falls back to a linear scan over the
// patterns registered for that field.
type Manager struct {
	mu sync.Mutex

	memories map[string]*Memory // pattern key -> Memory
	byField  map[string][]string // field -> pattern keys touching it

	equality map[string]map[string][]string // field -> value key -> pattern keys
	ranges   map[string][]rangeEntry        // field -> threshold buckets

	patternFrequency map[string]uint64
	nextID           uint64
	totalProcessed   uint64
	totalMatches     uint64
}

// NewManager constructs an empty alpha memory manager.
func NewManager() *Manager {
	return &Manager{
		memories:         make(map[string]*Memory),
		byField:          make(map[string][]string),
		equality:         make(map[string]map[string][]string),
		ranges:           make(map[string][]rangeEntry),
		patternFrequency: make(map[string]uint64),
		nextID:           1,
	}
}

// GetOrCreate returns the Memory for pattern, creating and indexing it if
// this is the first time the pattern has been seen.
func (m *Manager) GetOrCreate(pattern Pattern) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(pattern)
}

func (m *Manager) getOrCreateLocked(pattern Pattern) *Memory {
	key := pattern.Key()
	if mem, ok := m.memories[key]; ok {
		return mem
	}
	id := NodeID(m.nextID)
	m.nextID++
	mem := newMemory(id, pattern)
	m.memories[key] = mem
	m.byField[pattern.Field] = append(m.byField[pattern.Field], key)
	m.indexPattern(pattern)
	return mem
}

func (m *Manager) indexPattern(pattern Pattern) {
	key := pattern.Key()
	switch pattern.Op {
	case eqOperator:
		vk := pattern.Value.ToKey()
		if m.equality[pattern.Field] == nil {
			m.equality[pattern.Field] = make(map[string][]string)
		}
		m.equality[pattern.Field][vk] = append(m.equality[pattern.Field][vk], key)
	case gtOperator, gteOperator, ltOperator, lteOperator:
		if threshold, ok := pattern.Value.ToNumeric(); ok {
			m.ranges[pattern.Field] = append(m.ranges[pattern.Field], rangeEntry{threshold: threshold, keys: []string{key}})
		}
	}
}

// RegisterRuleDependency marks ruleID as depending on pattern, creating the
// backing memory if necessary.
func (m *Manager) RegisterRuleDependency(pattern Pattern, ruleID rule.RuleID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem := m.getOrCreateLocked(pattern)
	mem.AddDependentRule(ruleID)
}

// ProcessFactAddition routes a newly-inserted fact through every relevant
// pattern and returns the key of every pattern it matches, including
// patterns whose memory already held it.
func (m *Manager) ProcessFactAddition(fact *factmodel.Fact) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalProcessed++
	matched := make(map[string]struct{})

	for field, value := range fact.Fields {
		if byValue, ok := m.equality[field]; ok {
			if keys, ok := byValue[value.ToKey()]; ok {
				for _, key := range keys {
					m.tryMatch(key, fact, matched)
				}
			}
		}
		if _, ok := value.ToNumeric(); ok {
			for _, entry := range m.ranges[field] {
				for _, key := range entry.keys {
					m.tryMatch(key, fact, matched)
				}
			}
		}
	}

	// Fallback: patterns this fact's fields reference that neither index
	// captured (contains/starts_with/ends_with, or an equality/range
	// pattern on a field whose value didn't hash to an existing bucket).
	for field := range fact.Fields {
		for _, key := range m.byField[field] {
			if _, already := matched[key]; already {
				continue
			}
			m.tryMatch(key, fact, matched)
		}
	}

	out := make([]string, 0, len(matched))
	for key := range matched {
		out = append(out, key)
	}
	return out
}

func (m *Manager) tryMatch(key string, fact *factmodel.Fact, matched map[string]struct{}) {
	mem, ok := m.memories[key]
	if !ok {
		return
	}
	m.patternFrequency[key]++
	if mem.Pattern.MatchesFact(fact) {
		if mem.AddFact(fact.ID) {
			m.totalMatches++
		}
		matched[key] = struct{}{}
	}
}

// ProcessFactRemoval removes id from every memory that held it and returns
// the affected pattern keys.
func (m *Manager) ProcessFactRemoval(id factmodel.FactID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var affected []string
	for key, mem := range m.memories {
		if mem.RemoveFact(id) {
			affected = append(affected, key)
		}
	}
	return affected
}

// CandidateRulesFor returns the set of rule ids whose patterns this fact
// currently satisfies, deduplicated.
func (m *Manager) CandidateRulesFor(fact *factmodel.Fact) []rule.RuleID {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[rule.RuleID]struct{})
	for _, mem := range m.memories {
		if mem.Pattern.MatchesFact(fact) {
			for ruleID := range mem.rules {
				seen[ruleID] = struct{}{}
			}
		}
	}
	out := make([]rule.RuleID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// MemoryByKey looks up a memory by its canonical pattern key.
func (m *Manager) MemoryByKey(key string) (*Memory, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[key]
	return mem, ok
}

// MemoriesForField returns every memory registered against field.
func (m *Manager) MemoriesForField(field string) []*Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := m.byField[field]
	out := make([]*Memory, 0, len(keys))
	for _, key := range keys {
		if mem, ok := m.memories[key]; ok {
			out = append(out, mem)
		}
	}
	return out
}

// CleanupUnused removes every memory with no dependent rule, returning the
// pattern keys it dropped. Callers run this after a rule removal cascades
// through the network (spec.md §4.5).
func (m *Manager) CleanupUnused() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dropped []string
	for key, mem := range m.memories {
		if mem.IsNeeded() {
			continue
		}
		dropped = append(dropped, key)
		delete(m.memories, key)
		m.removeFromFieldIndex(mem.Pattern.Field, key)
		m.removeFromEquality(mem.Pattern, key)
		m.removeFromRanges(mem.Pattern, key)
		delete(m.patternFrequency, key)
	}
	return dropped
}

func (m *Manager) removeFromFieldIndex(field, key string) {
	keys := m.byField[field]
	for i, k := range keys {
		if k == key {
			m.byField[field] = append(keys[:i], keys[i+1:]...)
			return
		}
	}
}

func (m *Manager) removeFromEquality(p Pattern, key string) {
	if p.Op != eqOperator {
		return
	}
	byValue := m.equality[p.Field]
	vk := p.Value.ToKey()
	keys := byValue[vk]
	for i, k := range keys {
		if k == key {
			byValue[vk] = append(keys[:i], keys[i+1:]...)
			return
		}
	}
}

func (m *Manager) removeFromRanges(p Pattern, key string) {
	switch p.Op {
	case gtOperator, gteOperator, ltOperator, lteOperator:
	default:
		return
	}
	entries := m.ranges[p.Field]
	for i, entry := range entries {
		for j, k := range entry.keys {
			if k == key {
				entries[i].keys = append(entry.keys[:j], entry.keys[j+1:]...)
				return
			}
		}
	}
}

// ManagerStats is a point-in-time readout of the whole manager.
type ManagerStats struct {
	MemoryCount      int
	TotalProcessed   uint64
	TotalMatches     uint64
	PatternFrequency map[string]uint64
}

func (m *Manager) Snapshot() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	freq := make(map[string]uint64, len(m.patternFrequency))
	for k, v := range m.patternFrequency {
		freq[k] = v
	}
	return ManagerStats{
		MemoryCount:      len(m.memories),
		TotalProcessed:   m.totalProcessed,
		TotalMatches:     m.totalMatches,
		PatternFrequency: freq,
	}
}

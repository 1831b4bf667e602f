package indexer

import (
	"sort"
	"sync"

	"github.com/rawblock/rete-engine/internal/factmodel"
)

// Criterion is a single (field, value) equality probe fed to FindByCriteria.
type Criterion struct {
	Field string
	Value factmodel.Value
}

// Manager owns one FieldIndex per indexed field and picks its strategy
// from sampled field analysis (spec.md §4.3).
type Manager struct {
	mu        sync.RWMutex
	indexes   map[string]FieldIndex
	analysis  map[string]FieldAnalysis
	estimated map[string]float64 // selectivity estimate, 1/ratio, fallback 1000
}

func NewManager() *Manager {
	return &Manager{
		indexes:   make(map[string]FieldIndex),
		analysis:  make(map[string]FieldAnalysis),
		estimated: make(map[string]float64),
	}
}

func (m *Manager) ensureIndex(field string) FieldIndex {
	if idx, ok := m.indexes[field]; ok {
		return idx
	}
	idx := newFieldIndex(HighCardinality)
	m.indexes[field] = idx
	m.estimated[field] = 1000 // fallback selectivity estimate, spec.md §4.3
	return idx
}

// Add indexes a single field value for a fact id.
func (m *Manager) Add(field string, value factmodel.Value, id factmodel.FactID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureIndex(field).Add(value, id)
}

// Remove de-indexes a single field value for a fact id.
func (m *Manager) Remove(field string, value factmodel.Value, id factmodel.FactID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.indexes[field]; ok {
		idx.Remove(value, id)
	}
}

// Lookup returns fact ids whose field equals value, ascending.
func (m *Manager) Lookup(field string, value factmodel.Value) []factmodel.FactID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[field]
	if !ok {
		return nil
	}
	return idx.Lookup(value)
}

// RangeLookup returns fact ids whose field satisfies op against threshold.
// Only meaningful for fields currently indexed as Numeric; other strategies
// return nil (callers fall back to a linear scan).
func (m *Manager) RangeLookup(field, op string, threshold float64) []factmodel.FactID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[field]
	if !ok {
		return nil
	}
	num, ok := idx.(*numericIndex)
	if !ok {
		return nil
	}
	return num.Range(op, threshold)
}

// StrategyFor reports the strategy currently in effect for a field.
func (m *Manager) StrategyFor(field string) (Strategy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[field]
	if !ok {
		return 0, false
	}
	return idx.Strategy(), true
}

// Optimize re-analyses each indexed field from samples and rebuilds the
// index if the recommended strategy changed (spec.md §4.3). samples maps
// field -> every (value, id) pair currently live, used both for analysis
// and for rebuilding without a second full fact-store scan. It returns the
// fields whose index was rebuilt.
func (m *Manager) Optimize(samples map[string][]FieldSample) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var changed []string
	for field, values := range samples {
		keys := make([]string, len(values))
		numeric := make([]bool, len(values))
		lengths := make([]int, len(values))
		for i, s := range values {
			keys[i] = s.Value.ToKey()
			_, numeric[i] = s.Value.ToNumeric()
			lengths[i] = len(s.Value.String())
		}
		analysis := AnalyzeSamples(keys, numeric, lengths)
		m.analysis[field] = analysis
		if analysis.Unique > 0 {
			m.estimated[field] = 1.0 / analysis.CardinalityRatio
		}

		recommended := RecommendStrategy(analysis)
		existing, ok := m.indexes[field]
		if ok && existing.Strategy() == recommended {
			continue
		}

		rebuilt := newFieldIndex(recommended)
		for _, s := range values {
			rebuilt.Add(s.Value, s.ID)
		}
		m.indexes[field] = rebuilt
		changed = append(changed, field)
	}
	return changed
}

// FieldSample is a single (value, fact id) observation used by Optimize.
type FieldSample struct {
	Value factmodel.Value
	ID    factmodel.FactID
}

// Selectivity returns the estimated selectivity (1/cardinality-ratio) for a
// field, or the 1000 fallback when no analysis has run yet.
func (m *Manager) Selectivity(field string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.estimated[field]; ok {
		return v
	}
	return 1000
}

// FindByCriteria intersects the postings for every criterion, most
// selective first (spec.md §4.2/§4.3), via two-pointer merge.
func (m *Manager) FindByCriteria(criteria []Criterion) []factmodel.FactID {
	if len(criteria) == 0 {
		return nil
	}
	m.mu.RLock()
	type scored struct {
		ids         []factmodel.FactID
		selectivity float64
	}
	scoredCriteria := make([]scored, len(criteria))
	for i, c := range criteria {
		idx, ok := m.indexes[c.Field]
		var ids []factmodel.FactID
		if ok {
			ids = idx.Lookup(c.Value)
		}
		sel := m.estimated[c.Field]
		if sel == 0 {
			sel = 1000
		}
		scoredCriteria[i] = scored{ids: ids, selectivity: sel}
	}
	m.mu.RUnlock()

	sort.Slice(scoredCriteria, func(i, j int) bool {
		return scoredCriteria[i].selectivity < scoredCriteria[j].selectivity
	})

	result := scoredCriteria[0].ids
	for _, sc := range scoredCriteria[1:] {
		result = intersectSorted(result, sc.ids)
		if len(result) == 0 {
			break
		}
	}
	return result
}

func intersectSorted(a, b []factmodel.FactID) []factmodel.FactID {
	out := make([]factmodel.FactID, 0, min(len(a), len(b)))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

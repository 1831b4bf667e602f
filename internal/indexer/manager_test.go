package indexer

import (
	"testing"

	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerLookupAscending(t *testing.T) {
	m := NewManager()
	m.Add("status", factmodel.String("active"), 5)
	m.Add("status", factmodel.String("active"), 2)
	m.Add("status", factmodel.String("active"), 9)

	got := m.Lookup("status", factmodel.String("active"))
	require.Equal(t, []factmodel.FactID{2, 5, 9}, got)
}

func TestManagerRemove(t *testing.T) {
	m := NewManager()
	m.Add("status", factmodel.String("active"), 1)
	m.Add("status", factmodel.String("active"), 2)
	m.Remove("status", factmodel.String("active"), 1)

	got := m.Lookup("status", factmodel.String("active"))
	assert.Equal(t, []factmodel.FactID{2}, got)
}

func TestFindByCriteriaIntersects(t *testing.T) {
	m := NewManager()
	for _, id := range []factmodel.FactID{1, 2, 3, 4, 5} {
		m.Add("category", factmodel.String("a"), id)
	}
	for _, id := range []factmodel.FactID{3, 4, 5, 6, 7} {
		m.Add("id", factmodel.Int(int64(id)), id)
	}

	got := m.FindByCriteria([]Criterion{
		{Field: "category", Value: factmodel.String("a")},
		{Field: "id", Value: factmodel.Int(4)},
	})
	assert.Equal(t, []factmodel.FactID{4}, got)
}

func TestOptimizeSwitchesStrategyAndPreservesPostings(t *testing.T) {
	m := NewManager()
	var samples []FieldSample
	for i := 0; i < 10000; i++ {
		cat := "a"
		if i%3 == 1 {
			cat = "b"
		} else if i%3 == 2 {
			cat = "c"
		}
		v := factmodel.String(cat)
		m.Add("category", v, factmodel.FactID(i))
		samples = append(samples, FieldSample{Value: v, ID: factmodel.FactID(i)})
	}

	before := m.Lookup("category", factmodel.String("a"))

	strategyBefore, _ := m.StrategyFor("category")
	assert.Equal(t, HighCardinality, strategyBefore)

	changed := m.Optimize(map[string][]FieldSample{"category": samples})
	assert.Contains(t, changed, "category")

	strategyAfter, _ := m.StrategyFor("category")
	assert.Equal(t, LowCardinality, strategyAfter)

	after := m.Lookup("category", factmodel.String("a"))
	assert.ElementsMatch(t, before, after)
}

func TestRecommendStrategyTable(t *testing.T) {
	assert.Equal(t, HighCardinality, RecommendStrategy(FieldAnalysis{CardinalityRatio: 0.9, IsNumeric: false}))
	assert.Equal(t, LowCardinality, RecommendStrategy(FieldAnalysis{CardinalityRatio: 0.01, Unique: 3}))
	assert.Equal(t, Numeric, RecommendStrategy(FieldAnalysis{CardinalityRatio: 0.5, IsNumeric: true}))
	assert.Equal(t, Hybrid, RecommendStrategy(FieldAnalysis{CardinalityRatio: 0.3, IsNumeric: false, Unique: 500}))
}

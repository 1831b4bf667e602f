package optimizer

import (
	"math"
	"sort"
	"strings"

	"github.com/rawblock/rete-engine/internal/alpha"
	"github.com/rawblock/rete-engine/internal/rule"
)

// Analysis is the full selectivity/cost/join/sharing breakdown for one
// rule, computed before any reordering is applied.
type Analysis struct {
	ConditionSelectivity     []float64
	ConditionCosts           []float64
	Join                     *JoinAnalysis
	SharedPatterns           []SharedPattern
	TotalImprovementEstimate float64
}

// JoinAnalysis summarizes cross-condition join behaviour for rules with
// more than one condition.
type JoinAnalysis struct {
	IntermediateSizes     []int
	JoinSelectivity       []float64
	OptimalJoinOrder      []int
	ConditionCorrelations map[[2]int]float64
}

// SharedPattern records that a rule's condition pattern has been seen
// before (possibly across other rules), making it a candidate for alpha
// memory sharing.
type SharedPattern struct {
	PatternKey            string
	SharingRules           []rule.RuleID
	Frequency              int
	MemorySavingsEstimate  int
}

// Analyze computes a full Analysis for r using stats accumulated from
// prior runtime observation (may be empty).
func Analyze(r *rule.Rule, stats map[string]ConditionStats) Analysis {
	selectivity := make([]float64, len(r.Conditions))
	costs := make([]float64, len(r.Conditions))
	for i, c := range r.Conditions {
		selectivity[i] = Selectivity(c, stats)
		costs[i] = Cost(c)
	}

	var join *JoinAnalysis
	if len(r.Conditions) > 1 {
		j := analyzeJoinPatterns(r.Conditions, selectivity)
		join = &j
	}

	shared := analyzeConditionSharing(r, stats)
	improvement := estimateTotalImprovement(selectivity, costs, join)

	return Analysis{
		ConditionSelectivity:     selectivity,
		ConditionCosts:           costs,
		Join:                     join,
		SharedPatterns:           shared,
		TotalImprovementEstimate: improvement,
	}
}

// expectedEvaluationCost sums per-condition cost weighted by the
// probability of reaching it (the cumulative selectivity of every prior
// condition), stopping early once that probability is negligible —
// modeling the real engine's short-circuit evaluation.
func expectedEvaluationCost(selectivity, costs []float64) float64 {
	total := 0.0
	cumulative := 1.0
	for i := range selectivity {
		total += costs[i] * cumulative
		cumulative *= selectivity[i]
		if cumulative < 0.01 {
			break
		}
	}
	return total
}

func analyzeJoinPatterns(conditions []rule.Condition, selectivity []float64) JoinAnalysis {
	intermediateSizes := make([]int, len(conditions))
	currentSize := 1000.0
	for i := range conditions {
		currentSize *= selectivity[i]
		intermediateSizes[i] = int(currentSize)
	}

	correlations := make(map[[2]int]float64)
	for i := 0; i < len(conditions); i++ {
		for j := i + 1; j < len(conditions); j++ {
			correlations[[2]int{i, j}] = conditionCorrelation(conditions[i], conditions[j])
		}
	}

	order := make([]int, len(conditions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return selectivity[order[a]] < selectivity[order[b]]
	})

	return JoinAnalysis{
		IntermediateSizes:     intermediateSizes,
		JoinSelectivity:       append([]float64(nil), selectivity...),
		OptimalJoinOrder:      order,
		ConditionCorrelations: correlations,
	}
}

func conditionCorrelation(a, b rule.Condition) float64 {
	sa, aok := a.(rule.Simple)
	sb, bok := b.(rule.Simple)
	if !aok || !bok {
		return 0.1
	}
	if sa.Field == sb.Field {
		return 0.8
	}
	if strings.Contains(sa.Field, "id") && strings.Contains(sb.Field, "id") {
		return 0.3
	}
	return 0.1
}

func analyzeConditionSharing(r *rule.Rule, stats map[string]ConditionStats) []SharedPattern {
	var shared []SharedPattern
	for _, c := range r.Conditions {
		simple, ok := c.(rule.Simple)
		if !ok {
			continue
		}
		key := alpha.FromSimple(simple).Key()
		frequency := 1
		if s, ok := stats[key]; ok && s.PatternFrequency > 1 {
			frequency = s.PatternFrequency
		}
		shared = append(shared, SharedPattern{
			PatternKey:            key,
			SharingRules:          []rule.RuleID{r.ID},
			Frequency:             frequency,
			MemorySavingsEstimate: 64,
		})
	}
	return shared
}

func estimateTotalImprovement(selectivity, costs []float64, join *JoinAnalysis) float64 {
	if len(selectivity) == 0 {
		return 0.0
	}

	baseline := expectedEvaluationCost(selectivity, costs)

	type indexed struct {
		sel, cost float64
	}
	ordered := make([]indexed, len(selectivity))
	for i := range selectivity {
		ordered[i] = indexed{selectivity[i], costs[i]}
	}
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].sel < ordered[b].sel })

	optimizedSel := make([]float64, len(ordered))
	optimizedCost := make([]float64, len(ordered))
	for i, o := range ordered {
		optimizedSel[i] = o.sel
		optimizedCost[i] = o.cost
	}
	optimized := expectedEvaluationCost(optimizedSel, optimizedCost)

	improvement := 0.0
	if baseline > 0 {
		improvement = ((baseline - optimized) / baseline) * 100.0
	}

	if join != nil {
		joinComplexity := float64(len(join.IntermediateSizes))
		joinImprovement := math.Log2(joinComplexity) * 5.0
		if joinImprovement > 30.0 {
			joinImprovement = 30.0
		}
		if joinComplexity > 0 {
			improvement += joinImprovement
		}
	}
	return improvement
}

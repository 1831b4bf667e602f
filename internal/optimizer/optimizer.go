package optimizer

import (
	"sort"
	"sync"

	"github.com/rawblock/rete-engine/internal/alpha"
	"github.com/rawblock/rete-engine/internal/rule"
)

// StrategyKind names which optimization a Result actually applied.
type StrategyKind string

const (
	StrategySelectivityReordering StrategyKind = "selectivity_reordering"
	StrategyCostBasedReordering   StrategyKind = "cost_based_reordering"
	StrategyConditionSharing      StrategyKind = "condition_sharing"
)

// AppliedStrategy records one optimization decision for diagnostics.
type AppliedStrategy struct {
	Kind       StrategyKind
	FromIndex  int
	ToIndex    int
	PatternKey string
}

// Result is the outcome of optimizing a single rule.
type Result struct {
	Original             rule.Rule
	Optimized             rule.Rule
	EstimatedImprovement  float64
	StrategiesApplied     []AppliedStrategy
	Analysis              Analysis
}

// Optimizer reorders and annotates rules using accumulated condition
// statistics (spec.md §4.7).
type Optimizer struct {
	mu             sync.Mutex
	conditionStats map[string]ConditionStats
	metrics        Metrics
	config         Config
}

// New constructs an Optimizer with default configuration.
func New() *Optimizer {
	return WithConfig(DefaultConfig())
}

// WithConfig constructs an Optimizer with a caller-supplied configuration.
func WithConfig(cfg Config) *Optimizer {
	return &Optimizer{conditionStats: make(map[string]ConditionStats), config: cfg}
}

// OptimizeRule analyzes r and returns a (possibly reordered) copy along
// with the strategies that were applied. r is never mutated.
func (o *Optimizer) OptimizeRule(r rule.Rule) Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	original := r
	optimized := r
	optimized.Conditions = append([]rule.Condition(nil), r.Conditions...)

	analysis := Analyze(&r, o.conditionStats)
	var strategies []AppliedStrategy
	improvement := 0.0

	if o.config.EnableSelectivityOrdering {
		if s, gain, ok := applySelectivityReordering(&optimized, analysis, o.config.MinSelectivityDifference); ok {
			strategies = append(strategies, s)
			improvement += gain
			o.metrics.ConditionsReordered++
		}
	}

	if o.config.EnableCostBasedOptimization {
		analysis = Analyze(&optimized, o.conditionStats)
		if s, gain, ok := applyCostBasedReordering(&optimized, analysis, o.config.MinSelectivityDifference); ok {
			strategies = append(strategies, s)
			improvement += gain
		}
	}

	if o.config.EnableConditionSharing {
		for _, sp := range analysis.SharedPatterns {
			strategies = append(strategies, AppliedStrategy{
				Kind:       StrategyConditionSharing,
				PatternKey: sp.PatternKey,
			})
			o.metrics.SharedPatternsFound++
		}
	}

	o.metrics.RulesOptimized++
	if improvement > 0 {
		n := float64(o.metrics.RulesOptimized)
		o.metrics.AvgPerformanceImprovement = (o.metrics.AvgPerformanceImprovement*(n-1) + improvement) / n
	}

	return Result{
		Original:             original,
		Optimized:             optimized,
		EstimatedImprovement:  improvement,
		StrategiesApplied:     strategies,
		Analysis:              analysis,
	}
}

// applySelectivityReordering finds the single most selective non-first
// condition and, if moving it to the front clears the configured
// threshold, moves it.
func applySelectivityReordering(r *rule.Rule, a Analysis, minDiff float64) (AppliedStrategy, float64, bool) {
	if len(r.Conditions) <= 1 {
		return AppliedStrategy{}, 0, false
	}

	currentCost := expectedEvaluationCost(a.ConditionSelectivity, a.ConditionCosts)
	bestImprovement := 0.0
	bestFrom := -1

	for i := 1; i < len(a.ConditionSelectivity); i++ {
		sel := reorderFront(a.ConditionSelectivity, i)
		costs := reorderFront(a.ConditionCosts, i)
		newCost := expectedEvaluationCost(sel, costs)
		improvement := ((currentCost - newCost) / currentCost) * 100.0
		if improvement > bestImprovement && improvement > minDiff*100.0 {
			bestImprovement = improvement
			bestFrom = i
		}
	}

	if bestFrom < 0 {
		return AppliedStrategy{}, 0, false
	}

	moved := r.Conditions[bestFrom]
	r.Conditions = append(r.Conditions[:bestFrom], r.Conditions[bestFrom+1:]...)
	r.Conditions = append([]rule.Condition{moved}, r.Conditions...)

	return AppliedStrategy{Kind: StrategySelectivityReordering, FromIndex: bestFrom, ToIndex: 0}, bestImprovement, true
}

func reorderFront(values []float64, index int) []float64 {
	out := make([]float64, 0, len(values))
	out = append(out, values[index])
	out = append(out, values[:index]...)
	out = append(out, values[index+1:]...)
	return out
}

// applyCostBasedReordering sorts conditions by selectivity (ties broken by
// descending cost) whenever at least one condition is markedly more
// expensive than the rule's average.
func applyCostBasedReordering(r *rule.Rule, a Analysis, minDiff float64) (AppliedStrategy, float64, bool) {
	if len(r.Conditions) <= 1 {
		return AppliedStrategy{}, 0, false
	}

	avgCost := 0.0
	for _, c := range a.ConditionCosts {
		avgCost += c
	}
	avgCost /= float64(len(a.ConditionCosts))

	hasHighCost := false
	for _, c := range a.ConditionCosts {
		if c > avgCost*2.0 {
			hasHighCost = true
			break
		}
	}
	if !hasHighCost {
		return AppliedStrategy{}, 0, false
	}

	order := make([]int, len(r.Conditions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		i, j := order[x], order[y]
		if a.ConditionSelectivity[i] != a.ConditionSelectivity[j] {
			return a.ConditionSelectivity[i] < a.ConditionSelectivity[j]
		}
		return a.ConditionCosts[i] > a.ConditionCosts[j]
	})

	currentCost := expectedEvaluationCost(a.ConditionSelectivity, a.ConditionCosts)

	reorderedSel := make([]float64, len(order))
	reorderedCost := make([]float64, len(order))
	reorderedConditions := make([]rule.Condition, len(order))
	for i, idx := range order {
		reorderedSel[i] = a.ConditionSelectivity[idx]
		reorderedCost[i] = a.ConditionCosts[idx]
		reorderedConditions[i] = r.Conditions[idx]
	}
	newCost := expectedEvaluationCost(reorderedSel, reorderedCost)
	improvement := ((currentCost - newCost) / currentCost) * 100.0

	if improvement <= minDiff*100.0 {
		return AppliedStrategy{}, 0, false
	}

	r.Conditions = reorderedConditions
	return AppliedStrategy{Kind: StrategyCostBasedReordering}, improvement, true
}

// UpdateConditionStatistics records a runtime observation for a condition
// pattern keyed the same way internal/alpha keys patterns.
func (o *Optimizer) UpdateConditionStatistics(pattern alpha.Pattern, stats ConditionStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conditionStats[pattern.Key()] = stats
}

// GetMetrics returns a snapshot of cumulative optimizer effectiveness.
func (o *Optimizer) GetMetrics() Metrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.metrics
}

// GetConfig returns the optimizer's current configuration.
func (o *Optimizer) GetConfig() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.config
}

// UpdateConfig replaces the optimizer's configuration.
func (o *Optimizer) UpdateConfig(cfg Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.config = cfg
}

// ResetMetrics zeroes the cumulative metrics without touching condition
// statistics or configuration.
func (o *Optimizer) ResetMetrics() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.metrics = Metrics{}
}

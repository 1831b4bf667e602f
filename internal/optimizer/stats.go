// Package optimizer implements the rule optimizer (spec.md §4.7):
// selectivity- and cost-based condition reordering and shared pattern
// detection. No stability of pattern grouping is tracked over time.
package optimizer

import "time"

// ConditionStats holds runtime-observed behaviour for a single condition
// pattern, keyed the same way internal/alpha keys its patterns.
type ConditionStats struct {
	AverageMatches     float64
	MatchVariance      float64
	AvgEvaluationCostUs float64
	PatternFrequency   int
	LastUpdated        time.Time
}

// DefaultConditionStats mirrors the conservative defaults used before any
// runtime observation exists. Callers seed a pattern's stats with this
// before the first real observation arrives.
func DefaultConditionStats() ConditionStats {
	return ConditionStats{
		AverageMatches:      100.0,
		MatchVariance:       50.0,
		AvgEvaluationCostUs: 10.0,
		PatternFrequency:    1,
		LastUpdated:         time.Now(),
	}
}

// Config controls which optimization strategies run.
type Config struct {
	EnableSelectivityOrdering   bool
	EnableCostBasedOptimization bool
	EnableConditionSharing      bool
	MinSelectivityDifference    float64 // fraction, e.g. 0.2 == 20%
	MaxConditionsPerAnalysis    int
	EnableRuntimeStatistics     bool
}

// DefaultConfig matches the defaults used when no override is supplied.
func DefaultConfig() Config {
	return Config{
		EnableSelectivityOrdering:   true,
		EnableCostBasedOptimization: true,
		EnableConditionSharing:      true,
		MinSelectivityDifference:    0.2,
		MaxConditionsPerAnalysis:    10,
		EnableRuntimeStatistics:     true,
	}
}

// Metrics tracks cumulative optimizer effectiveness across every
// OptimizeRule call.
type Metrics struct {
	RulesOptimized            int
	ConditionsReordered       int
	AvgPerformanceImprovement float64
	SharedPatternsFound       int
}

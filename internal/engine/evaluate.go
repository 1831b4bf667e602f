package engine

import (
	"math"
	"sort"
	"time"

	"github.com/rawblock/rete-engine/internal/alpha"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// matchSingleFact evaluates any condition variant against one fact,
// reaching into the wider working set only for Aggregation/Stream, which
// compute a statistic over a group. It is the direct-evaluation fallback
// for rules whose top-level conditions cannot all become one alpha-memory
// join step each (see engine.go's networked/direct split).
func matchSingleFact(cond rule.Condition, fact *factmodel.Fact, working map[factmodel.FactID]*factmodel.Fact) bool {
	switch c := cond.(type) {
	case rule.Simple:
		return alpha.FromSimple(c).MatchesFact(fact)
	case rule.And:
		for _, sub := range c.Conditions {
			if !matchSingleFact(sub, fact, working) {
				return false
			}
		}
		return true
	case rule.Or:
		for _, sub := range c.Conditions {
			if matchSingleFact(sub, fact, working) {
				return true
			}
		}
		return false
	case rule.Not:
		return !matchSingleFact(c.Condition, fact, working)
	case rule.Aggregation:
		v, ok := evaluateAggregation(c, fact, working)
		return ok && satisfiesHaving(c.Having, c.Alias, v)
	case rule.Stream:
		v, ok := evaluateStream(c, fact, working)
		return ok && satisfiesHaving(c.Having, c.Alias, v)
	default:
		return false
	}
}

// satisfiesHaving tests a computed aggregate value against an optional
// Having condition. A nil Having is "always satisfied once computed"
// (spec.md §3): the aggregate having been computed at all (group
// non-empty) is enough.
func satisfiesHaving(having rule.Condition, alias string, value float64) bool {
	if having == nil {
		return true
	}
	field := alias
	if field == "" {
		field = "value"
	}
	synthetic := &factmodel.Fact{Fields: map[string]factmodel.Value{field: factmodel.Float(value)}}
	return matchSingleFact(having, synthetic, nil)
}

// groupFor collects every fact in working sharing fact's GroupBy field
// values, windowed per spec. Facts lacking a GroupBy field never join the
// group (spec.md §8: "facts missing referenced fields evaluate false").
func groupFor(fact *factmodel.Fact, groupBy []string, window *rule.WindowSpec, working map[factmodel.FactID]*factmodel.Fact) []*factmodel.Fact {
	var group []*factmodel.Fact
	for _, candidate := range working {
		if !sameGroup(fact, candidate, groupBy) {
			continue
		}
		group = append(group, candidate)
	}
	group = applyWindow(group, window)
	return group
}

func sameGroup(fact, candidate *factmodel.Fact, groupBy []string) bool {
	for _, field := range groupBy {
		fv, ok1 := fact.Get(field)
		cv, ok2 := candidate.Get(field)
		if !ok1 || !ok2 || !fv.Equal(cv) {
			return false
		}
	}
	return true
}

// applyWindow trims group to the facts falling inside window, ordered by
// Timestamp. A nil window means "over all known facts" (spec.md §3).
func applyWindow(group []*factmodel.Fact, window *rule.WindowSpec) []*factmodel.Fact {
	if window == nil {
		return group
	}
	sort.Slice(group, func(i, j int) bool { return group[i].Timestamp.Before(group[j].Timestamp) })

	switch window.Kind {
	case rule.WindowCountTumbling, rule.WindowCountSliding:
		n := int(window.Size)
		if n <= 0 || n >= len(group) {
			return group
		}
		return group[len(group)-n:]
	case rule.WindowTumbling, rule.WindowSliding:
		if window.Size <= 0 {
			return group
		}
		cutoff := time.Duration(window.Size * float64(time.Second))
		if len(group) == 0 {
			return group
		}
		latest := group[len(group)-1].Timestamp
		var out []*factmodel.Fact
		for _, f := range group {
			if latest.Sub(f.Timestamp) <= cutoff {
				out = append(out, f)
			}
		}
		return out
	case rule.WindowSession:
		if window.Gap <= 0 || len(group) == 0 {
			return group
		}
		gap := time.Duration(window.Gap * float64(time.Second))
		// Walk backward from the most recent fact, stopping at the first
		// inactivity gap wider than the session gap.
		start := len(group) - 1
		for i := len(group) - 1; i > 0; i-- {
			if group[i].Timestamp.Sub(group[i-1].Timestamp) > gap {
				start = i
				break
			}
			start = i - 1
		}
		return group[start:]
	default:
		return group
	}
}

func evaluateAggregation(agg rule.Aggregation, fact *factmodel.Fact, working map[factmodel.FactID]*factmodel.Fact) (float64, bool) {
	group := groupFor(fact, agg.GroupBy, agg.Window, working)
	return computeAggregate(agg.Kind, agg.SourceField, agg.Percentile, group)
}

func evaluateStream(s rule.Stream, fact *factmodel.Fact, working map[factmodel.FactID]*factmodel.Fact) (float64, bool) {
	group := groupFor(fact, s.Aggregation.GroupBy, &s.Window, working)
	if s.Filter != nil {
		var filtered []*factmodel.Fact
		for _, f := range group {
			if matchSingleFact(s.Filter, f, working) {
				filtered = append(filtered, f)
			}
		}
		group = filtered
	}
	return computeAggregate(s.Aggregation.Kind, s.Aggregation.SourceField, s.Aggregation.Percentile, group)
}

// computeAggregate reduces group's SourceField values per kind. An empty
// group never satisfies a condition (spec.md §8).
func computeAggregate(kind rule.AggregationKind, sourceField string, percentile float64, group []*factmodel.Fact) (float64, bool) {
	if kind == rule.AggCount {
		return float64(len(group)), len(group) > 0
	}

	var values []float64
	for _, f := range group {
		v, ok := f.Get(sourceField)
		if !ok {
			continue
		}
		n, ok := v.ToNumeric()
		if !ok {
			continue
		}
		values = append(values, n)
	}
	if len(values) == 0 {
		return 0, false
	}

	switch kind {
	case rule.AggSum:
		return sum(values), true
	case rule.AggAvg:
		return sum(values) / float64(len(values)), true
	case rule.AggMin:
		return minOf(values), true
	case rule.AggMax:
		return maxOf(values), true
	case rule.AggStddev:
		return stddev(values), true
	case rule.AggPercentile:
		return percentileOf(values, percentile), true
	default:
		return 0, false
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func stddev(values []float64) float64 {
	mean := sum(values) / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

// percentileOf returns the linear-interpolated percentile (0..1) of
// values. A single-element group returns that value regardless of
// percentile (spec.md §8 boundary behaviour).
func percentileOf(values []float64, percentile float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := percentile * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// isNetworked reports whether every top-level condition of r is a Simple
// pattern — the only shape the alpha/beta network (spec.md §4.5/4.6) can
// represent one join step per condition for. Rules mixing in And, Or,
// Not, Aggregation or Stream at the top level are evaluated directly
// instead (see engine.go), since BuildChain needs exactly one alpha
// memory per condition index and only a Simple condition maps to one.
func isNetworked(conds []rule.Condition) bool {
	for _, c := range conds {
		if _, ok := c.(rule.Simple); !ok {
			return false
		}
	}
	return true
}

// matchesAllDirect is the direct-path rule test: every top-level
// condition must hold against the same fact.
func matchesAllDirect(conds []rule.Condition, fact *factmodel.Fact, working map[factmodel.FactID]*factmodel.Fact) bool {
	for _, c := range conds {
		if !matchSingleFact(c, fact, working) {
			return false
		}
	}
	return true
}

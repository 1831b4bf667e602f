package monitor

// HealthScore is a single composite 0-100 score summarizing engine
// health from a Snapshot plus the current CPU reading, so an operator or
// dashboard has one number to watch instead of a dozen. The mean of four
// equally weighted parts: error rate, cache hit rate, CPU headroom, and
// cascade/timeout pressure —
// no original_source precedent for a single composite score (the Rust
// crate only exposes the raw metrics), so the weighting here is a design
// choice, recorded in DESIGN.md's Open-question-decisions section.
func HealthScore(s Snapshot, cpuUsagePercent float64) float64 {
	errorScore := 100 - s.ErrorRatePercent()
	if errorScore < 0 {
		errorScore = 0
	}

	cacheScore := s.CacheHitRatePercent()

	cpuScore := 100 - cpuUsagePercent
	if cpuScore < 0 {
		cpuScore = 0
	}

	stabilityScore := 100.0
	if s.RulesEvaluated > 0 {
		exceededRate := 100 * float64(s.CascadeDepthExceeded+s.Timeouts) / float64(s.RulesEvaluated)
		stabilityScore -= exceededRate
		if stabilityScore < 0 {
			stabilityScore = 0
		}
	}

	return (errorScore + cacheScore + cpuScore + stabilityScore) / 4
}

// HealthStatus buckets a HealthScore into a coarse label: 90 and above is
// "healthy", 70 and above is "degraded", anything lower is "unhealthy".
func HealthStatus(score float64) string {
	switch {
	case score >= 90:
		return "healthy"
	case score >= 70:
		return "degraded"
	default:
		return "unhealthy"
	}
}

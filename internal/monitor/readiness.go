package monitor

import "fmt"

// CheckStatus is the outcome of one readiness CheckResult.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckWarning CheckStatus = "warning"
	CheckFail    CheckStatus = "fail"
)

// CheckSeverity ranks how much a failing check should matter to an
// operator, transcribed from original_source's CheckSeverity enum.
type CheckSeverity string

const (
	SeverityCriticalCheck CheckSeverity = "critical"
	SeverityHighCheck     CheckSeverity = "high"
	SeverityMediumCheck   CheckSeverity = "medium"
	SeverityLowCheck      CheckSeverity = "low"
)

// CheckResult is one named readiness check, grounded on original_source's
// CheckResult{name, status, message, severity, recommendations}.
type CheckResult struct {
	Name            string
	Status          CheckStatus
	Message         string
	Severity        CheckSeverity
	Recommendations []string
}

// ReadinessReport is the output of CheckReadiness: a pass/fail per
// watched metric plus a single overall status, shaped after
// haukened-rr-dns's validator field-error aggregation (a list of
// per-field problems plus one overall verdict) rather than
// original_source's five config-section groupings, since this checker
// validates live metrics, not static config sections.
type ReadinessReport struct {
	Ready   bool
	Status  string
	Checks  []CheckResult
	Summary ReadinessSummary
}

// ReadinessSummary aggregates Checks, transcribed from original_source's
// ReadinessSummary.
type ReadinessSummary struct {
	TotalChecks    int
	Passed         int
	Warnings       int
	Failures       int
	ReadinessScore float64 // 0.0 to 1.0
}

// CheckReadiness validates a Snapshot plus the current CPU reading
// against thresholds, returning a ReadinessReport an operator or a
// /readyz endpoint can act on directly.
func CheckReadiness(s Snapshot, cpuUsagePercent float64, t Thresholds) ReadinessReport {
	checks := []CheckResult{
		thresholdCheck("error_rate", s.ErrorRatePercent(), t.ErrorRateWarning, t.ErrorRateCritical, false,
			"rule evaluation error rate is %.1f%%",
			[]string{"inspect recent EngineError entries for a recurring Validation/Reference failure"}),
		thresholdCheck("cache_hit_rate", s.CacheHitRatePercent(), t.CacheHitRateWarning, t.CacheHitRateCritical, true,
			"fact cache hit rate is %.1f%%",
			[]string{"increase the store's LRU cache size", "check for a hot working set larger than the cache"}),
		thresholdCheck("cpu_usage", cpuUsagePercent, t.CPUUsageWarning, t.CPUUsageCritical, false,
			"CPU usage is %.1f%%",
			[]string{"scale out additional engine instances", "reduce the worker pool size to lower contention"}),
	}

	checks = append(checks, countCheck("cascade_depth_exceeded", s.CascadeDepthExceeded,
		"cascade depth exceeded %d time(s)",
		[]string{"raise the cascade depth limit or break the rule cycle causing runaway cascades"}))
	checks = append(checks, countCheck("timeouts", s.Timeouts,
		"%d batch(es) exceeded their deadline",
		[]string{"raise the processing deadline or shard large fact batches"}))

	summary := ReadinessSummary{TotalChecks: len(checks)}
	ready := true
	for _, c := range checks {
		switch c.Status {
		case CheckPass:
			summary.Passed++
		case CheckWarning:
			summary.Warnings++
		case CheckFail:
			summary.Failures++
			ready = false
		}
	}
	if summary.TotalChecks > 0 {
		summary.ReadinessScore = float64(summary.Passed) / float64(summary.TotalChecks)
	}

	status := "ready"
	if !ready {
		status = "not_ready"
	} else if summary.Warnings > 0 {
		status = "ready_with_warnings"
	}

	return ReadinessReport{Ready: ready, Status: status, Checks: checks, Summary: summary}
}

func thresholdCheck(name string, value, warning, critical float64, inverted bool, format string, recs []string) CheckResult {
	severity, crossed := severityFor(value, warning, critical, inverted)
	if !crossed {
		return CheckResult{Name: name, Status: CheckPass, Message: fmt.Sprintf(format, value)}
	}
	status := CheckWarning
	sev := SeverityMediumCheck
	if severity == SeverityCritical {
		status = CheckFail
		sev = SeverityCriticalCheck
	}
	return CheckResult{
		Name:            name,
		Status:          status,
		Message:         fmt.Sprintf(format, value),
		Severity:        sev,
		Recommendations: recs,
	}
}

func countCheck(name string, count uint64, format string, recs []string) CheckResult {
	if count == 0 {
		return CheckResult{Name: name, Status: CheckPass, Message: "none observed"}
	}
	return CheckResult{
		Name:            name,
		Status:          CheckFail,
		Message:         fmt.Sprintf(format, count),
		Severity:        SeverityCriticalCheck,
		Recommendations: recs,
	}
}

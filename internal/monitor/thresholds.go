package monitor

import (
	"fmt"
	"sync"
	"time"
)

// AlertType enumerates the monitoring conditions the threshold state
// machine watches, transcribed from original_source's AlertType enum
// (Bitcoin/TRONC-specific variants dropped — nothing in SPEC_FULL.md
// produces them).
type AlertType string

const (
	AlertHighCPUUsage       AlertType = "high_cpu_usage"
	AlertHighMemoryUsage    AlertType = "high_memory_usage"
	AlertLowCacheHitRate    AlertType = "low_cache_hit_rate"
	AlertHighErrorRate      AlertType = "high_error_rate"
	AlertHighRuleFailure    AlertType = "high_rule_failure_rate"
	AlertCascadeDepthExceed AlertType = "cascade_depth_exceeded"
)

// AlertSeverity mirrors original_source's AlertSeverity enum.
type AlertSeverity string

const (
	SeverityInfo      AlertSeverity = "info"
	SeverityWarning   AlertSeverity = "warning"
	SeverityCritical  AlertSeverity = "critical"
	SeverityEmergency AlertSeverity = "emergency"
)

// Alert is a single monitoring condition crossing a threshold.
type Alert struct {
	Type           AlertType
	Severity       AlertSeverity
	Message        string
	Timestamp      time.Time
	MetricValue    float64
	ThresholdValue float64
	Resolved       bool
}

// Thresholds holds the warning/critical cut points for each watched
// metric. Defaults are transcribed from original_source's
// AlertThresholds::default().
type Thresholds struct {
	CPUUsageWarning        float64
	CPUUsageCritical       float64
	MemoryUsageWarning     float64
	MemoryUsageCritical    float64
	CacheHitRateWarning    float64
	CacheHitRateCritical   float64
	ErrorRateWarning       float64
	ErrorRateCritical      float64
	ResponseTimeWarningMs  float64
	ResponseTimeCriticalMs float64
}

// DefaultThresholds matches original_source's AlertThresholds::default().
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUUsageWarning:        70.0,
		CPUUsageCritical:       90.0,
		MemoryUsageWarning:     80.0,
		MemoryUsageCritical:    95.0,
		CacheHitRateWarning:    85.0,
		CacheHitRateCritical:   70.0,
		ErrorRateWarning:       5.0,
		ErrorRateCritical:      10.0,
		ResponseTimeWarningMs:  100.0,
		ResponseTimeCriticalMs: 500.0,
	}
}

// AlertManager holds the active-alert state machine: one Alert per
// AlertType, replaced (not appended) on every Evaluate call, the same
// "one active alert per type" shape as original_source's
// AlertManager.active_alerts map.
type AlertManager struct {
	mu           sync.Mutex
	thresholds   Thresholds
	activeAlerts map[AlertType]Alert
}

// NewAlertManager constructs an AlertManager with the given Thresholds.
func NewAlertManager(thresholds Thresholds) *AlertManager {
	return &AlertManager{thresholds: thresholds, activeAlerts: make(map[AlertType]Alert)}
}

// Evaluate checks s against the configured thresholds, updating the
// active-alert map and returning every alert newly triggered or resolved
// by this call (not the full active set — callers wanting that should
// read ActiveAlerts).
func (m *AlertManager) Evaluate(s Snapshot, cpuUsagePercent float64) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var changed []Alert

	checks := []struct {
		typ       AlertType
		value     float64
		warning   float64
		critical  float64
		inverted  bool // true when lower is worse (e.g. cache hit rate)
		format    string
	}{
		{AlertHighCPUUsage, cpuUsagePercent, m.thresholds.CPUUsageWarning, m.thresholds.CPUUsageCritical, false, "CPU usage at %.1f%%"},
		{AlertLowCacheHitRate, s.CacheHitRatePercent(), m.thresholds.CacheHitRateWarning, m.thresholds.CacheHitRateCritical, true, "cache hit rate at %.1f%%"},
		{AlertHighErrorRate, s.ErrorRatePercent(), m.thresholds.ErrorRateWarning, m.thresholds.ErrorRateCritical, false, "rule evaluation error rate at %.1f%%"},
	}

	for _, c := range checks {
		severity, crossed := severityFor(c.value, c.warning, c.critical, c.inverted)
		existing, hadAlert := m.activeAlerts[c.typ]

		if !crossed {
			if hadAlert && !existing.Resolved {
				existing.Resolved = true
				existing.Timestamp = now
				m.activeAlerts[c.typ] = existing
				changed = append(changed, existing)
			}
			continue
		}

		if hadAlert && existing.Severity == severity && !existing.Resolved {
			continue // already active at this severity, nothing changed
		}

		threshold := c.warning
		if severity == SeverityCritical {
			threshold = c.critical
		}
		alert := Alert{
			Type:           c.typ,
			Severity:       severity,
			Message:        fmt.Sprintf(c.format, c.value),
			Timestamp:      now,
			MetricValue:    c.value,
			ThresholdValue: threshold,
			Resolved:       false,
		}
		m.activeAlerts[c.typ] = alert
		changed = append(changed, alert)
	}

	if s.CascadeDepthExceeded > 0 {
		if _, hadAlert := m.activeAlerts[AlertCascadeDepthExceed]; !hadAlert {
			alert := Alert{
				Type:      AlertCascadeDepthExceed,
				Severity:  SeverityCritical,
				Message:   fmt.Sprintf("cascade depth exceeded %d time(s)", s.CascadeDepthExceeded),
				Timestamp: now,
			}
			m.activeAlerts[AlertCascadeDepthExceed] = alert
			changed = append(changed, alert)
		}
	}

	return changed
}

// severityFor classifies value against warning/critical cut points.
// inverted means lower values are worse (cache hit rate).
func severityFor(value, warning, critical float64, inverted bool) (AlertSeverity, bool) {
	if inverted {
		switch {
		case value <= critical:
			return SeverityCritical, true
		case value <= warning:
			return SeverityWarning, true
		default:
			return "", false
		}
	}
	switch {
	case value >= critical:
		return SeverityCritical, true
	case value >= warning:
		return SeverityWarning, true
	default:
		return "", false
	}
}

// ActiveAlerts returns every currently-unresolved alert.
func (m *AlertManager) ActiveAlerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, len(m.activeAlerts))
	for _, a := range m.activeAlerts {
		if !a.Resolved {
			out = append(out, a)
		}
	}
	return out
}

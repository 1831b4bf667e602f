// Package diagnostics implements the engine's debugging surface (spec.md
// §4.10): a sampled event stream over a bounded ring buffer, rule-firing
// and token-propagation hooks, node breakpoints, and rolling analytics
// over recent events.
package diagnostics

import (
	"time"

	"github.com/google/uuid"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// EventType classifies a debug Event.
type EventType string

const (
	EventRuleEvaluationStarted  EventType = "rule_evaluation_started"
	EventRuleEvaluationFinished EventType = "rule_evaluation_finished"
	EventRuleFired              EventType = "rule_fired"
	EventRuleConditionsFailed   EventType = "rule_conditions_failed"
	EventTokenCreated           EventType = "token_created"
	EventTokenPropagated        EventType = "token_propagated"
	EventTokenConsumed          EventType = "token_consumed"
	EventActionExecuted         EventType = "action_executed"
	EventPerformanceThreshold   EventType = "performance_threshold_exceeded"
	EventBreakpointHit          EventType = "breakpoint_hit"
)

// Severity mirrors the teacher's alert severity vocabulary
// (internal/heuristics/alert_system.go), reused here for debug events so
// both systems share one ordering.
type Severity string

const (
	SeverityTrace Severity = "trace"
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

var severityRank = map[Severity]int{
	SeverityTrace: 0,
	SeverityDebug: 1,
	SeverityInfo:  2,
	SeverityWarn:  3,
	SeverityError: 4,
}

// Event is one entry in the debug event stream.
type Event struct {
	ID          uuid.UUID
	Timestamp   time.Time
	Type        EventType
	RuleID      *rule.RuleID
	FactID      *factmodel.FactID
	Description string
	Data        map[string]string
	Severity    Severity
}

// ringBuffer is a fixed-capacity FIFO of Events, oldest dropped first,
// the same bounded-history shape as the teacher's
// AlertManager.recentAlerts/maxHistory.
type ringBuffer struct {
	events   []Event
	capacity int
	next     int
	size     int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ringBuffer{events: make([]Event, capacity), capacity: capacity}
}

func (r *ringBuffer) push(e Event) {
	r.events[r.next] = e
	r.next = (r.next + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// recent returns up to limit events, most recent first. limit <= 0 means
// all buffered events.
func (r *ringBuffer) recent(limit int) []Event {
	if limit <= 0 || limit > r.size {
		limit = r.size
	}
	out := make([]Event, 0, limit)
	idx := (r.next - 1 + r.capacity) % r.capacity
	for i := 0; i < limit; i++ {
		out = append(out, r.events[idx])
		idx = (idx - 1 + r.capacity) % r.capacity
	}
	return out
}

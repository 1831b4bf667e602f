// Package action implements the action executor (spec.md §4.8): for each
// rule activation it runs that rule's actions in declaration order against
// the fact store, the calculator, and a side-channel Sink, collecting any
// new fact ids and per-action errors without ever halting the batch.
package action

import (
	"time"

	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// Alert is a structured side-channel emission for a TriggerAlert action,
// shaped after the teacher's Alert record (internal/heuristics/alert_system.go)
// generalized from Bitcoin-specific alert types to a generic rule/fact
// pairing.
type Alert struct {
	ID        string
	Timestamp time.Time
	Severity  string
	RuleID    rule.RuleID
	FactID    factmodel.FactID
	Message   string
}

// Notification is a structured side-channel emission for a
// SendNotification action.
type Notification struct {
	Timestamp time.Time
	Severity  string
	Channel   string
	RuleID    rule.RuleID
	FactID    factmodel.FactID
	Message   string
}

// LogEntry is a structured side-channel emission for a Log action.
type LogEntry struct {
	Timestamp time.Time
	RuleID    rule.RuleID
	FactID    factmodel.FactID
	Message   string
}

// Sink receives the executor's side-channel action emissions. It is never
// nil inside Executor — callers that don't need one pass NopSink{}.
// Implementations must not block: spec.md §4.8 requires each action be
// total, and a blocking sink would stall the whole activation.
type Sink interface {
	Log(LogEntry)
	TriggerAlert(Alert)
	SendNotification(Notification)
}

// NopSink discards every emission. Useful for tests and for engines that
// don't wire a diagnostics/alerting layer.
type NopSink struct{}

func (NopSink) Log(LogEntry)                 {}
func (NopSink) TriggerAlert(Alert)            {}
func (NopSink) SendNotification(Notification) {}

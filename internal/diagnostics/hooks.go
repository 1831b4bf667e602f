package diagnostics

import (
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// EventHook receives every sampled Event. Implementations run inline on
// the firing goroutine and must not block.
type EventHook interface {
	OnEvent(Event)
	Name() string
}

// RuleFireHook receives rule-lifecycle callbacks for rules it was
// registered against, mirroring the teacher's before/after/on-fired shape
// (original_source's RuleFireHook trait, itself echoing the teacher's
// AlertManager callback field).
type RuleFireHook interface {
	BeforeRuleEvaluation(ruleID rule.RuleID, facts []factmodel.Fact)
	AfterRuleEvaluation(ruleID rule.RuleID, fired bool)
	OnRuleFired(ruleID rule.RuleID, inputFacts, outputFacts []factmodel.FactID)
	Name() string
}

// TokenPropagationHook receives beta-network token lifecycle callbacks.
type TokenPropagationHook interface {
	OnTokenCreated(factIDs []factmodel.FactID, nodeID string)
	OnTokenPropagated(factIDs []factmodel.FactID, fromNode, toNode string)
	OnTokenConsumed(factIDs []factmodel.FactID, nodeID string)
	Name() string
}

// LogEventHook is a built-in EventHook that writes events through the
// ambient stdlib *log.Logger, matching the teacher's plain-log texture
// rather than introducing a structured logging dependency for debug
// output alone.
type LogEventHook struct {
	logger interface{ Printf(string, ...any) }
}

// NewLogEventHook wraps any *log.Logger-shaped sink.
func NewLogEventHook(logger interface{ Printf(string, ...any) }) *LogEventHook {
	return &LogEventHook{logger: logger}
}

func (h *LogEventHook) OnEvent(e Event) {
	h.logger.Printf("[diagnostics] %s %s: %s", e.Severity, e.Type, e.Description)
}

func (h *LogEventHook) Name() string { return "log_event_hook" }

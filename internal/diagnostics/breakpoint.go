package diagnostics

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rawblock/rete-engine/internal/rule"
)

// BreakpointCondition selects when a Breakpoint should trigger.
type BreakpointCondition struct {
	Always    bool
	FactID    *uint64
	RuleFired *rule.RuleID
	HitCount  int // 0 means unused
}

// Matches reports whether the condition is satisfied for a rule firing on
// factID, given the breakpoint's hit count so far (after incrementing).
func (c BreakpointCondition) Matches(firedRule rule.RuleID, factID uint64, hits int) bool {
	switch {
	case c.Always:
		return true
	case c.FactID != nil:
		return *c.FactID == factID
	case c.RuleFired != nil:
		return *c.RuleFired == firedRule
	case c.HitCount > 0:
		return hits >= c.HitCount
	default:
		return false
	}
}

// Breakpoint pauses, logs, or traces execution at a node per spec.md
// §4.10's debugging surface.
type Breakpoint struct {
	ID        uuid.UUID
	NodeID    string
	Condition BreakpointCondition
	Enabled   bool
	HitCount  int
}

// NewBreakpoint constructs an enabled Breakpoint.
func NewBreakpoint(nodeID string, condition BreakpointCondition) Breakpoint {
	return Breakpoint{ID: uuid.New(), NodeID: nodeID, Condition: condition, Enabled: true}
}

func (b Breakpoint) String() string {
	return fmt.Sprintf("breakpoint(%s @ %s, hits=%d)", b.ID, b.NodeID, b.HitCount)
}

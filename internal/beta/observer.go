package beta

import (
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// JoinObserver is notified of token lifecycle events as Propagate actually
// drives facts through a rule's join chain, and is consulted for node
// breakpoints on every candidate fact a join node attempts (spec.md
// §4.10). Optional; nil is a valid no-op observer.
type JoinObserver interface {
	TokenCreated(nodeID NodeID, factIDs []factmodel.FactID)
	TokenPropagated(fromNode, toNode NodeID, factIDs []factmodel.FactID)
	TokenConsumed(nodeID NodeID, factIDs []factmodel.FactID)
	CheckBreakpoint(nodeID NodeID, ruleID rule.RuleID, factID factmodel.FactID)
}

package beta

import (
	"github.com/rawblock/rete-engine/internal/alpha"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// NodeID identifies a node within a beta network manager.
type NodeID uint64

// Kind distinguishes the three beta node variants (spec.md §3 "Beta node").
type Kind int

const (
	Root Kind = iota
	Join
	Terminal
)

// Node is one position in a rule's join chain. Join and Terminal carry
// their extra fields directly rather than through an interface, matching
// the small fixed variant set the spec defines.
type Node struct {
	ID       NodeID
	Kind     Kind
	Children []NodeID
	Parent   *NodeID

	// Join-only fields.
	AlphaMemoryID  alpha.NodeID
	ConditionIndex int
	Tests          []JoinTest

	// Terminal-only field.
	RuleID rule.RuleID

	TokensProcessed uint64
	TokensPassed    uint64
	JoinAttempts    uint64
	SuccessfulJoins uint64
}

func newRootNode(id NodeID) *Node {
	return &Node{ID: id, Kind: Root}
}

func newJoinNode(id NodeID, alphaMemoryID alpha.NodeID, conditionIndex int) *Node {
	return &Node{ID: id, Kind: Join, AlphaMemoryID: alphaMemoryID, ConditionIndex: conditionIndex}
}

func newTerminalNode(id NodeID, ruleID rule.RuleID) *Node {
	return &Node{ID: id, Kind: Terminal, RuleID: ruleID}
}

func (n *Node) addChild(childID NodeID) {
	for _, id := range n.Children {
		if id == childID {
			return
		}
	}
	n.Children = append(n.Children, childID)
}

// JoinOperator is a cross-fact comparison between a field on the fact being
// joined and a field on a fact already bound earlier in the token. It
// reuses rule.Operator's comparison subset; contains/starts_with/ends_with
// never apply to a join test (spec.md §4.6 only defines value comparisons
// here).
type JoinOperator = rule.Operator

// JoinTest binds a field of the fact under consideration to a field of an
// earlier-bound fact in the same token.
type JoinTest struct {
	CurrentField           string
	PreviousField          string
	PreviousConditionIndex int
	Op                     JoinOperator
}

// Evaluate reports whether test holds between fact and the
// fact token bound at PreviousConditionIndex. A malformed test — a missing
// previous condition or an absent field — fails closed, returning false
// rather than erroring (spec.md §4.6 failure semantics).
func (jt JoinTest) Evaluate(token Token, fact *factmodel.Fact, facts map[factmodel.FactID]*factmodel.Fact) bool {
	prevFactID, ok := token.FactAt(jt.PreviousConditionIndex)
	if !ok {
		return false
	}
	prevFact, ok := facts[prevFactID]
	if !ok {
		return false
	}
	currentValue, ok := fact.Get(jt.CurrentField)
	if !ok {
		return false
	}
	previousValue, ok := prevFact.Get(jt.PreviousField)
	if !ok {
		return false
	}
	return compareJoin(jt.Op, currentValue, previousValue)
}

func compareJoin(op JoinOperator, left, right factmodel.Value) bool {
	switch op {
	case rule.Eq:
		return left.Equal(right)
	case rule.NotEq:
		return !left.Equal(right)
	case rule.Gt:
		return factmodel.Compare(left, right) == factmodel.Greater
	case rule.Lt:
		return factmodel.Compare(left, right) == factmodel.Less
	case rule.Gte:
		ord := factmodel.Compare(left, right)
		return ord == factmodel.Greater || ord == factmodel.Equal
	case rule.Lte:
		ord := factmodel.Compare(left, right)
		return ord == factmodel.Less || ord == factmodel.Equal
	default:
		return false
	}
}

// Package beta implements the beta network (spec.md §4.6): tokens carrying
// partial matches through a chain of join nodes until they reach a
// terminal node and become a rule activation.
package beta

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

var tokenSeq atomic.Uint64

// Token is an ordered list of fact ids representing a partial match for a
// rule up to ConditionIndex. Identity is the canonical concatenation of
// rule id and fact ids (spec.md §3 "Token").
type Token struct {
	RuleID         rule.RuleID
	FactIDs        []factmodel.FactID
	ConditionIndex int
	Timestamp      uint64 // monotonic, used only to order activations
	Parent         *Token // tracing only; never walked for correctness
}

// NewToken creates the empty root token for ruleID.
func NewToken(ruleID rule.RuleID) Token {
	return Token{RuleID: ruleID, Timestamp: nextTimestamp()}
}

// Seed creates the token that starts a rule's join chain: a root token
// extended with the fact that matched condition 0 (spec.md §4.6 — the
// first condition is absorbed directly rather than handled by a join
// node).
func Seed(ruleID rule.RuleID, factID factmodel.FactID) Token {
	return NewToken(ruleID).Extend(factID)
}

func nextTimestamp() uint64 {
	// A counter, not wall-clock time, guarantees strict ordering even when
	// two tokens are created within the same clock tick.
	return tokenSeq.Add(1)
}

// Extend returns a new token with factID appended and ConditionIndex
// advanced by one. The receiver is left unmodified.
func (t Token) Extend(factID factmodel.FactID) Token {
	facts := make([]factmodel.FactID, len(t.FactIDs)+1)
	copy(facts, t.FactIDs)
	facts[len(t.FactIDs)] = factID

	parent := t
	return Token{
		RuleID:         t.RuleID,
		FactIDs:        facts,
		ConditionIndex: t.ConditionIndex + 1,
		Timestamp:      nextTimestamp(),
		Parent:         &parent,
	}
}

// IsComplete reports whether this token has matched every condition of the
// given rule.
func (t Token) IsComplete(r *rule.Rule) bool {
	return t.ConditionIndex >= len(r.Conditions)
}

// FactAt returns the fact id bound to condition index, or false if this
// token has not reached that condition yet.
func (t Token) FactAt(index int) (factmodel.FactID, bool) {
	if index < 0 || index >= len(t.FactIDs) {
		return 0, false
	}
	return t.FactIDs[index], true
}

// Contains reports whether factID appears anywhere in this token.
func (t Token) Contains(factID factmodel.FactID) bool {
	for _, id := range t.FactIDs {
		if id == factID {
			return true
		}
	}
	return false
}

// Key renders the canonical token identity: "<rule_id>_<fact>_<fact>...".
func (t Token) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", t.RuleID)
	for _, id := range t.FactIDs {
		fmt.Fprintf(&b, "_%d", id)
	}
	return b.String()
}

// ActivationOrder reports whether a should be considered before b when
// firing activations: by monotonic timestamp, ties broken by rule id then
// by lexicographic fact-id tuple (spec.md §4.6).
func ActivationOrder(a, b Token) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.RuleID != b.RuleID {
		return a.RuleID < b.RuleID
	}
	for i := 0; i < len(a.FactIDs) && i < len(b.FactIDs); i++ {
		if a.FactIDs[i] != b.FactIDs[i] {
			return a.FactIDs[i] < b.FactIDs[i]
		}
	}
	return len(a.FactIDs) < len(b.FactIDs)
}

package engine

import (
	"github.com/rawblock/rete-engine/internal/alpha"
	"github.com/rawblock/rete-engine/internal/beta"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// ruleEntry is everything the engine tracks about one registered rule
// beyond the Rule value itself.
type ruleEntry struct {
	rule rule.Rule

	// networked is true when every top-level condition is a Simple
	// pattern, so the rule was wired onto the alpha/beta chain (see
	// evaluate.go's isNetworked). False rules use the direct path.
	networked bool

	// networked fields. conditionMemories holds one alpha memory per
	// top-level condition, in order; index 0 is the seeding condition,
	// indices 1..n-1 back the beta join chain built by BuildChain.
	conditionMemories []*alpha.Memory
	terminalID        beta.NodeID

	// seeds is every fact id that has ever matched condition 0. Because
	// beta.Manager.Propagate only walks forward from a seed token, a fact
	// satisfying a later condition needs every known seed replayed
	// against the now-current alpha memories to find the join it
	// completes, regardless of which order the two facts arrived in.
	seeds map[factmodel.FactID]struct{}

	// direct fields. catchAll is true for rules containing an Aggregation
	// or Stream condition at the top level: their group membership can
	// change from any fact touching the group-by fields, not just a
	// fixed set of leaf patterns, so every incoming fact re-triggers
	// evaluation. Otherwise triggerPatternKeys names the alpha pattern
	// keys extracted from the rule's Simple leaves (via
	// rule.SimplePatterns), and only a fact matching one of them
	// re-triggers the rule.
	catchAll           bool
	triggerPatternKeys []string

	// firedTokens dedupes activations: a token key (networked) or
	// "direct_<rule>_<fact>" (direct) that already produced an
	// activation is never fired twice, even across repeated re-seeding.
	firedTokens map[string]struct{}
}

func newRuleEntry(r rule.Rule) *ruleEntry {
	return &ruleEntry{
		rule:        r,
		seeds:       make(map[factmodel.FactID]struct{}),
		firedTokens: make(map[string]struct{}),
	}
}

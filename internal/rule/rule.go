package rule

// RuleID uniquely identifies a rule. It is accepted as a strict unsigned
// integer at every API boundary; spec.md §9 rejects the source's
// parse-failure-degrades-to-0 behaviour in favour of validation failure.
type RuleID uint64

// Rule is the compiled-from input for a single business rule: a name for
// diagnostics, a non-empty list of conditions that must all hold, and the
// actions to run when they do.
type Rule struct {
	ID         RuleID
	Name       string
	Conditions []Condition
	Actions    []Action
}

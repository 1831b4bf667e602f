package rule

// Operator is a simple-condition comparison, encoded on the wire as its
// string value: the comparisons are symbols ("=", "!=", "<", "<=", ">",
// ">="); only the string predicates are lower-snake words.
type Operator string

const (
	Eq         Operator = "="
	NotEq      Operator = "!="
	Lt         Operator = "<"
	Lte        Operator = "<="
	Gt         Operator = ">"
	Gte        Operator = ">="
	Contains   Operator = "contains"
	StartsWith Operator = "starts_with"
	EndsWith   Operator = "ends_with"
)

func (op Operator) Valid() bool {
	switch op {
	case Eq, NotEq, Lt, Lte, Gt, Gte, Contains, StartsWith, EndsWith:
		return true
	default:
		return false
	}
}

// AggregationKind enumerates the statistics an AggregationCondition can
// compute over a grouped set of facts.
type AggregationKind string

const (
	AggSum        AggregationKind = "sum"
	AggCount      AggregationKind = "count"
	AggAvg        AggregationKind = "avg"
	AggMin        AggregationKind = "min"
	AggMax        AggregationKind = "max"
	AggStddev     AggregationKind = "stddev"
	AggPercentile AggregationKind = "percentile"
)

// WindowKind enumerates the stream windowing strategies.
type WindowKind string

const (
	WindowTumbling      WindowKind = "tumbling"
	WindowSliding       WindowKind = "sliding"
	WindowSession       WindowKind = "session"
	WindowCountTumbling WindowKind = "count_tumbling"
	WindowCountSliding  WindowKind = "count_sliding"
)

// ActionKind enumerates the side effects an Action may request.
type ActionKind string

const (
	ActionLog             ActionKind = "log"
	ActionSetField        ActionKind = "set_field"
	ActionCreateFact      ActionKind = "create_fact"
	ActionUpdateFact      ActionKind = "update_fact"
	ActionDeleteFact      ActionKind = "delete_fact"
	ActionIncrementField  ActionKind = "increment_field"
	ActionAppendToArray   ActionKind = "append_to_array"
	ActionFormula         ActionKind = "formula"
	ActionCallCalculator  ActionKind = "call_calculator"
	ActionTriggerAlert    ActionKind = "trigger_alert"
	ActionSendNotification ActionKind = "send_notification"
)

package rule

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rawblock/rete-engine/internal/engerr"
)

// validate is a single shared validator instance, the way config.go in the
// pack's rr-dns example registers one validator and custom tag functions
// once at package init rather than per call.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v
}

// simpleShape is the flat, tag-validatable projection of a Simple condition
// used only to drive go-playground/validator; Condition itself is an
// interface and cannot carry struct tags.
type simpleShape struct {
	Field string `validate:"required"`
	Op    string `validate:"required"`
}

// Validate checks a Rule against spec.md §3's invariants: at least one
// condition, well-formed simple conditions, and actions that are
// structurally complete for their Kind. It never mutates r.
func Validate(r *Rule) error {
	if r.Name == "" {
		return invalid("rule name is required").WithContext("rule_id", r.ID)
	}
	if len(r.Conditions) == 0 {
		return invalid("rule must have at least one condition").
			WithContext("rule_id", r.ID).
			WithSuggestions("add at least one Simple, And, Or, Not, Aggregation or Stream condition")
	}

	boundFields := make(map[string]bool)
	for i, c := range r.Conditions {
		if err := validateCondition(c, boundFields); err != nil {
			return err.WithContext("rule_id", r.ID).WithContext("condition_index", i)
		}
	}

	for i, a := range r.Actions {
		if err := validateAction(a, boundFields); err != nil {
			return err.WithContext("rule_id", r.ID).WithContext("action_index", i)
		}
	}

	return nil
}

func validateCondition(c Condition, boundFields map[string]bool) *engerr.EngineError {
	switch x := c.(type) {
	case Simple:
		if !x.Op.Valid() {
			return invalid(fmt.Sprintf("unknown operator %q", x.Op))
		}
		shape := simpleShape{Field: x.Field, Op: string(x.Op)}
		if err := validate.Struct(shape); err != nil {
			return invalid(err.Error())
		}
		boundFields[x.Field] = true
		return nil
	case And:
		if len(x.Conditions) == 0 {
			return invalid("and condition requires at least one sub-condition")
		}
		for _, sub := range x.Conditions {
			if err := validateCondition(sub, boundFields); err != nil {
				return err
			}
		}
		return nil
	case Or:
		if len(x.Conditions) == 0 {
			return invalid("or condition requires at least one sub-condition")
		}
		for _, sub := range x.Conditions {
			if err := validateCondition(sub, boundFields); err != nil {
				return err
			}
		}
		return nil
	case Not:
		if x.Condition == nil {
			return invalid("not condition requires a sub-condition")
		}
		return validateCondition(x.Condition, boundFields)
	case Aggregation:
		if x.SourceField == "" {
			return invalid("aggregation condition requires source_field")
		}
		if x.Kind == AggPercentile && (x.Percentile < 0 || x.Percentile > 1) {
			return invalid("percentile aggregation requires 0 <= percentile <= 1")
		}
		if x.Alias != "" {
			boundFields[x.Alias] = true
		}
		return nil
	case Stream:
		if x.Aggregation.SourceField == "" {
			return invalid("stream condition requires an aggregation with source_field")
		}
		if x.Alias != "" {
			boundFields[x.Alias] = true
		}
		return nil
	default:
		return invalid("unknown condition type")
	}
}

// validateAction checks that an action carries the fields its kind
// structurally requires; it does not consult the fields bound by the
// rule's conditions (its second argument is unused). Referencing
// an unbound field is not itself a validation error — spec.md §8 treats
// missing fields as a runtime non-match/ReferenceError, not a compile-time
// rejection — except where the action kind structurally requires a field
// name to be present at all.
func validateAction(a Action, _ map[string]bool) *engerr.EngineError {
	switch a.Kind {
	case ActionLog:
		if a.Message == "" {
			return invalid("log action requires message")
		}
	case ActionSetField, ActionIncrementField, ActionAppendToArray:
		if a.Field == "" {
			return invalid(fmt.Sprintf("%s action requires field", a.Kind))
		}
	case ActionCreateFact:
		if len(a.NewFields) == 0 {
			return invalid("create_fact action requires new_fields")
		}
	case ActionUpdateFact, ActionDeleteFact:
		if a.TargetFactField == "" {
			return invalid(fmt.Sprintf("%s action requires target_fact_field", a.Kind))
		}
	case ActionFormula:
		if a.Expr == "" || a.Out == "" {
			return invalid("formula action requires expr and out")
		}
	case ActionCallCalculator:
		if a.CalculatorName == "" || a.Out == "" {
			return invalid("call_calculator action requires name and out")
		}
	case ActionTriggerAlert, ActionSendNotification:
		if a.Severity == "" {
			return invalid(fmt.Sprintf("%s action requires severity", a.Kind))
		}
	default:
		return invalid(fmt.Sprintf("unknown action kind %q", a.Kind))
	}
	return nil
}

func invalid(msg string) *engerr.EngineError {
	return engerr.New(engerr.Validation, "high", msg)
}

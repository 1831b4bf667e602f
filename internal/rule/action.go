package rule

import "github.com/rawblock/rete-engine/internal/factmodel"

// Action is a single side effect a rule requests when it fires. Exactly one
// of the Kind-specific fields below is populated for a given Kind; the
// action executor (internal/action) switches on Kind.
type Action struct {
	Kind ActionKind `json:"kind"`

	// Log
	Message string `json:"message,omitempty"`

	// SetField / IncrementField / AppendToArray
	Field string          `json:"field,omitempty"`
	Value factmodel.Value `json:"value,omitempty"` // SetField value, IncrementField delta, AppendToArray element

	// CreateFact
	NewFields map[string]factmodel.Value `json:"new_fields,omitempty"`

	// UpdateFact / DeleteFact
	TargetFactField string `json:"target_fact_field,omitempty"` // field on the triggering fact holding the target fact id

	// Formula
	Expr string `json:"expr,omitempty"`
	Out  string `json:"out,omitempty"`

	// CallCalculator
	CalculatorName string            `json:"calculator_name,omitempty"`
	InputMap       map[string]string `json:"input_map,omitempty"` // calculator input name -> triggering-fact field name

	// TriggerAlert / SendNotification
	Severity string `json:"severity,omitempty"`
	Channel  string `json:"channel,omitempty"`
}

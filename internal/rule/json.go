package rule

import (
	"encoding/json"
	"fmt"

	"github.com/rawblock/rete-engine/internal/factmodel"
)

// Condition is a closed interface over a handful of concrete types, so
// (de)serialising it needs a discriminator the way factmodel.Value's
// UnmarshalJSON infers a Kind from JSON shape — here made explicit as a
// "type" field since the shapes overlap too much to infer structurally
// (And and Or are identical but for meaning).
const (
	condSimple      = "simple"
	condAnd         = "and"
	condOr          = "or"
	condNot         = "not"
	condAggregation = "aggregation"
	condStream      = "stream"
)

// conditionWire is the on-the-wire envelope for every Condition variant;
// each variant's MarshalJSON populates only the fields it needs, and
// DecodeCondition reads only the fields its Type calls for.
type conditionWire struct {
	Type string `json:"type"`

	// Simple
	Field string          `json:"field,omitempty"`
	Op    Operator        `json:"op,omitempty"`
	Value factmodel.Value `json:"value,omitempty"`

	// And / Or
	Conditions []json.RawMessage `json:"conditions,omitempty"`

	// Not
	Condition json.RawMessage `json:"condition,omitempty"`

	// Aggregation
	Kind        AggregationKind `json:"kind,omitempty"`
	SourceField string          `json:"source_field,omitempty"`
	GroupBy     []string        `json:"group_by,omitempty"`
	Window      *WindowSpec     `json:"window,omitempty"`
	Having      json.RawMessage `json:"having,omitempty"`
	Percentile  float64         `json:"percentile,omitempty"`
	Alias       string          `json:"alias,omitempty"`

	// Stream
	Aggregation json.RawMessage `json:"aggregation,omitempty"`
	Filter      json.RawMessage `json:"filter,omitempty"`
}

// MarshalJSON implementations per concrete Condition type.

func (c Simple) MarshalJSON() ([]byte, error) {
	return json.Marshal(conditionWire{Type: condSimple, Field: c.Field, Op: c.Op, Value: c.Value})
}

func (c And) MarshalJSON() ([]byte, error) {
	raw, err := marshalConditions(c.Conditions)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionWire{Type: condAnd, Conditions: raw})
}

func (c Or) MarshalJSON() ([]byte, error) {
	raw, err := marshalConditions(c.Conditions)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionWire{Type: condOr, Conditions: raw})
}

func (c Not) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(c.Condition)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionWire{Type: condNot, Condition: raw})
}

func (c Aggregation) MarshalJSON() ([]byte, error) {
	w := conditionWire{
		Type:        condAggregation,
		Kind:        c.Kind,
		SourceField: c.SourceField,
		GroupBy:     c.GroupBy,
		Window:      c.Window,
		Percentile:  c.Percentile,
		Alias:       c.Alias,
	}
	if c.Having != nil {
		raw, err := json.Marshal(c.Having)
		if err != nil {
			return nil, err
		}
		w.Having = raw
	}
	return json.Marshal(w)
}

func (c Stream) MarshalJSON() ([]byte, error) {
	aggRaw, err := c.Aggregation.MarshalJSON()
	if err != nil {
		return nil, err
	}
	w := conditionWire{Type: condStream, Window: &c.Window, Aggregation: aggRaw, Alias: c.Alias}
	if c.Filter != nil {
		raw, err := json.Marshal(c.Filter)
		if err != nil {
			return nil, err
		}
		w.Filter = raw
	}
	if c.Having != nil {
		raw, err := json.Marshal(c.Having)
		if err != nil {
			return nil, err
		}
		w.Having = raw
	}
	return json.Marshal(w)
}

func marshalConditions(conds []Condition) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(conds))
	for i, c := range conds {
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}

// DecodeCondition decodes one JSON-encoded Condition, dispatching on its
// "type" discriminator and recursing into nested conditions.
func DecodeCondition(data []byte) (Condition, error) {
	var w conditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("rule: decoding condition: %w", err)
	}

	switch w.Type {
	case condSimple:
		return Simple{Field: w.Field, Op: w.Op, Value: w.Value}, nil

	case condAnd, condOr:
		subs := make([]Condition, len(w.Conditions))
		for i, raw := range w.Conditions {
			sub, err := DecodeCondition(raw)
			if err != nil {
				return nil, err
			}
			subs[i] = sub
		}
		if w.Type == condAnd {
			return And{Conditions: subs}, nil
		}
		return Or{Conditions: subs}, nil

	case condNot:
		sub, err := DecodeCondition(w.Condition)
		if err != nil {
			return nil, err
		}
		return Not{Condition: sub}, nil

	case condAggregation:
		agg := Aggregation{
			Kind:        w.Kind,
			SourceField: w.SourceField,
			GroupBy:     w.GroupBy,
			Window:      w.Window,
			Percentile:  w.Percentile,
			Alias:       w.Alias,
		}
		if len(w.Having) > 0 {
			having, err := DecodeCondition(w.Having)
			if err != nil {
				return nil, err
			}
			agg.Having = having
		}
		return agg, nil

	case condStream:
		if len(w.Aggregation) == 0 {
			return nil, fmt.Errorf("rule: stream condition missing aggregation")
		}
		aggCond, err := DecodeCondition(w.Aggregation)
		if err != nil {
			return nil, err
		}
		agg, ok := aggCond.(Aggregation)
		if !ok {
			return nil, fmt.Errorf("rule: stream condition's aggregation decoded as %T, not Aggregation", aggCond)
		}
		s := Stream{Aggregation: agg, Alias: w.Alias}
		if w.Window != nil {
			s.Window = *w.Window
		}
		if len(w.Filter) > 0 {
			filter, err := DecodeCondition(w.Filter)
			if err != nil {
				return nil, err
			}
			s.Filter = filter
		}
		if len(w.Having) > 0 {
			having, err := DecodeCondition(w.Having)
			if err != nil {
				return nil, err
			}
			s.Having = having
		}
		return s, nil

	default:
		return nil, fmt.Errorf("rule: unknown condition type %q", w.Type)
	}
}

// ruleWire is Rule's wire shape: Conditions stays as raw messages so it
// can be decoded through DecodeCondition after the envelope itself parses.
type ruleWire struct {
	ID         RuleID            `json:"id"`
	Name       string            `json:"name"`
	Conditions []json.RawMessage `json:"conditions"`
	Actions    []Action          `json:"actions"`
}

// MarshalJSON renders a Rule with its polymorphic Conditions expanded
// through each condition's own MarshalJSON.
func (r Rule) MarshalJSON() ([]byte, error) {
	condRaw, err := marshalConditions(r.Conditions)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ruleWire{ID: r.ID, Name: r.Name, Conditions: condRaw, Actions: r.Actions})
}

// UnmarshalJSON decodes a Rule, dispatching each condition through
// DecodeCondition.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("rule: decoding rule: %w", err)
	}

	conds := make([]Condition, len(w.Conditions))
	for i, raw := range w.Conditions {
		c, err := DecodeCondition(raw)
		if err != nil {
			return err
		}
		conds[i] = c
	}

	r.ID = w.ID
	r.Name = w.Name
	r.Conditions = conds
	r.Actions = w.Actions
	return nil
}

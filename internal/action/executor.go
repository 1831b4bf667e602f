package action

import (
	"fmt"
	"time"

	"github.com/rawblock/rete-engine/internal/calculator"
	"github.com/rawblock/rete-engine/internal/engerr"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// FactStore is the subset of internal/store.Store the executor needs. It
// is expressed as an interface so tests can exercise the executor against
// an in-memory fake without pulling in the full store package.
type FactStore interface {
	Get(id factmodel.FactID) (factmodel.Fact, bool)
	Insert(fact factmodel.Fact) factmodel.FactID
	Update(id factmodel.FactID, newFact factmodel.Fact) bool
	Remove(id factmodel.FactID) bool
}

// Executor runs a fired rule's actions against a FactStore, a calculator
// Evaluator, and a Sink.
type Executor struct {
	store FactStore
	calc  *calculator.Evaluator
	sink  Sink
}

// New constructs an Executor. sink may be NopSink{} when no side-channel
// consumer is wired.
func New(store FactStore, calc *calculator.Evaluator, sink Sink) *Executor {
	return &Executor{store: store, calc: calc, sink: sink}
}

// Result is what executing one activation's actions produced: any new
// fact ids (for the engine's cascade queue, spec.md §4.8 CreateFact) and
// every per-action error encountered (collected, never fatal to the
// batch).
type Result struct {
	CreatedFactIDs []factmodel.FactID
	Errors         []*engerr.EngineError
}

// Execute runs actions, in declaration order, against the fact that
// triggered ruleID. Every action is total: a failing action appends to
// Result.Errors and execution continues with the next action.
func (e *Executor) Execute(ruleID rule.RuleID, triggeringFactID factmodel.FactID, actions []rule.Action) Result {
	var result Result

	for i, a := range actions {
		if err := e.runOne(ruleID, triggeringFactID, a, &result); err != nil {
			err.WithContext("rule_id", ruleID).WithContext("action_index", i)
			result.Errors = append(result.Errors, err)
		}
	}

	return result
}

func (e *Executor) runOne(ruleID rule.RuleID, factID factmodel.FactID, a rule.Action, result *Result) *engerr.EngineError {
	switch a.Kind {
	case rule.ActionLog:
		e.sink.Log(LogEntry{Timestamp: time.Now(), RuleID: ruleID, FactID: factID, Message: a.Message})
		return nil

	case rule.ActionSetField:
		return e.withFact(factID, func(fact factmodel.Fact) *engerr.EngineError {
			updated := fact.WithFields(map[string]factmodel.Value{a.Field: a.Value})
			e.store.Update(factID, updated)
			return nil
		})

	case rule.ActionIncrementField:
		return e.withFact(factID, func(fact factmodel.Fact) *engerr.EngineError {
			current, ok := fact.Get(a.Field)
			base := 0.0
			if ok {
				n, numeric := current.ToNumeric()
				if !numeric {
					return reference(fmt.Sprintf("increment_field: field %q is not numeric", a.Field))
				}
				base = n
			}
			delta, ok := a.Value.ToNumeric()
			if !ok {
				return reference("increment_field: delta value is not numeric")
			}
			updated := fact.WithFields(map[string]factmodel.Value{a.Field: factmodel.Float(base + delta)})
			e.store.Update(factID, updated)
			return nil
		})

	case rule.ActionAppendToArray:
		return e.withFact(factID, func(fact factmodel.Fact) *engerr.EngineError {
			current, ok := fact.Get(a.Field)
			var elements []factmodel.Value
			if ok {
				arr, isArray := current.AsArray()
				if !isArray {
					return reference(fmt.Sprintf("append_to_array: field %q is not an array", a.Field))
				}
				elements = append(elements, arr...)
			}
			elements = append(elements, a.Value)
			updated := fact.WithFields(map[string]factmodel.Value{a.Field: factmodel.Array(elements)})
			e.store.Update(factID, updated)
			return nil
		})

	case rule.ActionCreateFact:
		newFact := factmodel.Fact{Timestamp: time.Now(), Fields: a.NewFields}
		id := e.store.Insert(newFact)
		result.CreatedFactIDs = append(result.CreatedFactIDs, id)
		return nil

	case rule.ActionUpdateFact:
		return e.withTarget(factID, a.TargetFactField, func(target factmodel.Fact, targetID factmodel.FactID) *engerr.EngineError {
			updated := target.WithFields(a.NewFields)
			e.store.Update(targetID, updated)
			return nil
		})

	case rule.ActionDeleteFact:
		return e.withTarget(factID, a.TargetFactField, func(_ factmodel.Fact, targetID factmodel.FactID) *engerr.EngineError {
			e.store.Remove(targetID)
			return nil
		})

	case rule.ActionFormula:
		return e.withFact(factID, func(fact factmodel.Fact) *engerr.EngineError {
			program, err := calculator.Compile(a.Expr)
			if err != nil {
				e.zeroOut(factID, fact, a.Out)
				return evaluation(fmt.Sprintf("formula: compile error: %v", err))
			}
			v, err := e.calc.Evaluate(program, calculator.Env(fact.Fields))
			if err != nil {
				e.zeroOut(factID, fact, a.Out)
				return evaluation(fmt.Sprintf("formula: evaluation error: %v", err))
			}
			updated := fact.WithFields(map[string]factmodel.Value{a.Out: v})
			e.store.Update(factID, updated)
			return nil
		})

	case rule.ActionCallCalculator:
		return e.withFact(factID, func(fact factmodel.Fact) *engerr.EngineError {
			inputs := make(map[string]factmodel.Value, len(a.InputMap))
			for calcInput, factField := range a.InputMap {
				v, ok := fact.Get(factField)
				if !ok {
					return reference(fmt.Sprintf("call_calculator: fact has no field %q", factField))
				}
				inputs[calcInput] = v
			}
			v, err := e.calc.CallNamed(a.CalculatorName, inputs)
			if err != nil {
				e.zeroOut(factID, fact, a.Out)
				return evaluation(fmt.Sprintf("call_calculator: %v", err))
			}
			updated := fact.WithFields(map[string]factmodel.Value{a.Out: v})
			e.store.Update(factID, updated)
			return nil
		})

	case rule.ActionTriggerAlert:
		e.sink.TriggerAlert(Alert{
			ID:        fmt.Sprintf("%d-%d-%s", ruleID, factID, a.Severity),
			Timestamp: time.Now(),
			Severity:  a.Severity,
			RuleID:    ruleID,
			FactID:    factID,
			Message:   a.Message,
		})
		return nil

	case rule.ActionSendNotification:
		e.sink.SendNotification(Notification{
			Timestamp: time.Now(),
			Severity:  a.Severity,
			Channel:   a.Channel,
			RuleID:    ruleID,
			FactID:    factID,
			Message:   a.Message,
		})
		return nil

	default:
		return engerr.New(engerr.Internal, "high", fmt.Sprintf("unknown action kind %q", a.Kind))
	}
}

// withFact resolves factID and hands the (copy-on-write) fact to fn,
// reporting a ReferenceError if the fact no longer exists.
func (e *Executor) withFact(factID factmodel.FactID, fn func(factmodel.Fact) *engerr.EngineError) *engerr.EngineError {
	fact, ok := e.store.Get(factID)
	if !ok {
		return reference(fmt.Sprintf("no fact with id %d", factID))
	}
	return fn(fact)
}

// withTarget resolves the integer id held in targetField on the
// triggering fact, then the target fact itself, per spec.md §4.8's
// "absent or non-integer id -> action fails with ReferenceError".
func (e *Executor) withTarget(factID factmodel.FactID, targetField string, fn func(factmodel.Fact, factmodel.FactID) *engerr.EngineError) *engerr.EngineError {
	return e.withFact(factID, func(fact factmodel.Fact) *engerr.EngineError {
		raw, ok := fact.Get(targetField)
		if !ok {
			return reference(fmt.Sprintf("no field %q to resolve target fact id", targetField))
		}
		idValue, ok := raw.AsInt()
		if !ok || idValue < 0 {
			return reference(fmt.Sprintf("field %q is not a valid fact id", targetField))
		}
		targetID := factmodel.FactID(idValue)
		target, ok := e.store.Get(targetID)
		if !ok {
			return reference(fmt.Sprintf("no fact with id %d", targetID))
		}
		return fn(target, targetID)
	})
}

// zeroOut sets out to null on best-effort basis when a Formula/
// CallCalculator action fails, per spec.md §4.8. Failure to write back is
// swallowed: the caller already has a more specific error to report.
func (e *Executor) zeroOut(factID factmodel.FactID, fact factmodel.Fact, out string) {
	if out == "" {
		return
	}
	updated := fact.WithFields(map[string]factmodel.Value{out: factmodel.Null()})
	e.store.Update(factID, updated)
}

func reference(msg string) *engerr.EngineError {
	return engerr.New(engerr.Reference, "medium", msg)
}

func evaluation(msg string) *engerr.EngineError {
	return engerr.New(engerr.Evaluation, "medium", msg)
}

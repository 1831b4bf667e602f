package rule

import (
	"testing"

	"github.com/rawblock/rete-engine/internal/engerr"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsZeroConditions(t *testing.T) {
	r := &Rule{ID: 1, Name: "empty", Conditions: nil}
	err := Validate(r)
	require.Error(t, err)
	var ee *engerr.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerr.Validation, ee.Category)
}

func TestValidateAcceptsSimpleRule(t *testing.T) {
	r := &Rule{
		ID:   1,
		Name: "student visa compliance",
		Conditions: []Condition{
			Simple{Field: "is_student_visa", Op: Eq, Value: factmodel.Bool(true)},
		},
		Actions: []Action{
			{Kind: ActionCallCalculator, CalculatorName: "threshold_checker", Out: "compliance_status",
				InputMap: map[string]string{"value": "weekly_hours", "threshold": "weekly_limit"}},
		},
	}
	assert.NoError(t, Validate(r))
}

func TestValidateRejectsUnknownOperator(t *testing.T) {
	r := &Rule{
		ID:   2,
		Name: "bad op",
		Conditions: []Condition{
			Simple{Field: "x", Op: Operator("nonsense"), Value: factmodel.Int(1)},
		},
	}
	assert.Error(t, Validate(r))
}

func TestValidateRejectsMalformedAction(t *testing.T) {
	r := &Rule{
		ID:   3,
		Name: "missing field",
		Conditions: []Condition{
			Simple{Field: "x", Op: Eq, Value: factmodel.Int(1)},
		},
		Actions: []Action{{Kind: ActionSetField}},
	}
	assert.Error(t, Validate(r))
}

func TestSimplePatternsSkipsNotAndAggregation(t *testing.T) {
	c := And{Conditions: []Condition{
		Simple{Field: "a", Op: Eq, Value: factmodel.Int(1)},
		Not{Condition: Simple{Field: "b", Op: Eq, Value: factmodel.Int(2)}},
		Aggregation{SourceField: "d", Having: Simple{Field: "e", Op: Eq, Value: factmodel.Int(4)}},
		Or{Conditions: []Condition{
			Simple{Field: "c", Op: Eq, Value: factmodel.Int(3)},
		}},
	}}
	patterns := SimplePatterns(c)
	require.Len(t, patterns, 2)
	assert.Equal(t, "a", patterns[0].Field)
	assert.Equal(t, "c", patterns[1].Field)
}

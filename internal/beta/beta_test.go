package beta

import (
	"testing"

	"github.com/rawblock/rete-engine/internal/alpha"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoConditionRule() *rule.Rule {
	return &rule.Rule{
		ID: 1,
		Conditions: []rule.Condition{
			rule.Simple{Field: "kind", Op: rule.Eq, Value: factmodel.String("order")},
			rule.Simple{Field: "status", Op: rule.Eq, Value: factmodel.String("paid")},
		},
	}
}

func TestSeedProducesConditionIndexOne(t *testing.T) {
	tok := Seed(1, 100)
	assert.Equal(t, 1, tok.ConditionIndex)
	assert.Equal(t, []factmodel.FactID{100}, tok.FactIDs)
}

func TestTokenKeyIsRuleAndFactConcatenation(t *testing.T) {
	tok := Seed(7, 3).Extend(9)
	assert.Equal(t, "7_3_9", tok.Key())
}

func TestBuildChainThenPropagateReachesTerminal(t *testing.T) {
	m := NewManager(0, nil, nil)
	r := twoConditionRule()
	alphaMemID := alpha.NodeID(42)

	terminalID, joinIDs := m.BuildChain(r, []alpha.NodeID{alphaMemID})
	require.Len(t, joinIDs, 1)
	require.NotZero(t, terminalID)

	facts := map[factmodel.FactID]*factmodel.Fact{
		100: {ID: 100, Fields: map[string]factmodel.Value{"kind": factmodel.String("order")}},
		200: {ID: 200, Fields: map[string]factmodel.Value{"status": factmodel.String("paid")}},
	}
	candidates := func(id alpha.NodeID) []factmodel.FactID {
		if id == alphaMemID {
			return []factmodel.FactID{200}
		}
		return nil
	}

	seed := Seed(r.ID, 100)
	activations := m.Propagate(seed, r, facts, candidates)
	require.Len(t, activations, 1)
	assert.Equal(t, []factmodel.FactID{100, 200}, activations[0].FactIDs)
	assert.True(t, activations[0].IsComplete(r))
}

func TestPropagateRejectsFactFailingJoinTest(t *testing.T) {
	m := NewManager(0, nil, nil)
	r := twoConditionRule()
	alphaMemID := alpha.NodeID(1)
	m.BuildChain(r, []alpha.NodeID{alphaMemID})
	m.AddJoinTest(r.ID, 1, JoinTest{
		CurrentField:           "order_id",
		PreviousField:          "order_id",
		PreviousConditionIndex: 0,
		Op:                     rule.Eq,
	})

	facts := map[factmodel.FactID]*factmodel.Fact{
		100: {ID: 100, Fields: map[string]factmodel.Value{"order_id": factmodel.Int(1)}},
		200: {ID: 200, Fields: map[string]factmodel.Value{"order_id": factmodel.Int(2)}},
	}
	candidates := func(alpha.NodeID) []factmodel.FactID { return []factmodel.FactID{200} }

	activations := m.Propagate(Seed(r.ID, 100), r, facts, candidates)
	assert.Empty(t, activations)
}

func TestRetractFactRemovesTokensAcrossMemories(t *testing.T) {
	m := NewManager(0, nil, nil)
	r := twoConditionRule()
	alphaMemID := alpha.NodeID(1)
	m.BuildChain(r, []alpha.NodeID{alphaMemID})

	facts := map[factmodel.FactID]*factmodel.Fact{
		100: {ID: 100, Fields: map[string]factmodel.Value{"kind": factmodel.String("order")}},
		200: {ID: 200, Fields: map[string]factmodel.Value{"status": factmodel.String("paid")}},
	}
	candidates := func(alpha.NodeID) []factmodel.FactID { return []factmodel.FactID{200} }
	m.Propagate(Seed(r.ID, 100), r, facts, candidates)

	removed := m.RetractFact(200)
	assert.Positive(t, removed)
}

func TestMemoryHighWaterMarkRejectsBeyondCapacity(t *testing.T) {
	mem := NewMemory(1, 1, nil)
	assert.True(t, mem.Add(Seed(1, 1)))
	assert.False(t, mem.Add(Seed(1, 2)))
	stats := mem.GetStats()
	assert.Equal(t, uint64(1), stats.DroppedOnInsert)
}

type recordingObserver struct {
	created     []NodeID
	propagated  [][2]NodeID
	consumed    []NodeID
	breakpoints []NodeID
}

func (o *recordingObserver) TokenCreated(nodeID NodeID, _ []factmodel.FactID) {
	o.created = append(o.created, nodeID)
}

func (o *recordingObserver) TokenPropagated(from, to NodeID, _ []factmodel.FactID) {
	o.propagated = append(o.propagated, [2]NodeID{from, to})
}

func (o *recordingObserver) TokenConsumed(nodeID NodeID, _ []factmodel.FactID) {
	o.consumed = append(o.consumed, nodeID)
}

func (o *recordingObserver) CheckBreakpoint(nodeID NodeID, _ rule.RuleID, _ factmodel.FactID) {
	o.breakpoints = append(o.breakpoints, nodeID)
}

func TestPropagateNotifiesObserverPerJoinStep(t *testing.T) {
	obs := &recordingObserver{}
	m := NewManager(0, nil, obs)
	r := twoConditionRule()
	alphaMemID := alpha.NodeID(42)

	terminalID, joinIDs := m.BuildChain(r, []alpha.NodeID{alphaMemID})
	joinID := joinIDs[0]
	m.AddJoinTest(r.ID, 1, JoinTest{
		CurrentField:           "order_id",
		PreviousField:          "order_id",
		PreviousConditionIndex: 0,
		Op:                     rule.Eq,
	})

	facts := map[factmodel.FactID]*factmodel.Fact{
		100: {ID: 100, Fields: map[string]factmodel.Value{"kind": factmodel.String("order"), "order_id": factmodel.Int(1)}},
		200: {ID: 200, Fields: map[string]factmodel.Value{"status": factmodel.String("paid"), "order_id": factmodel.Int(1)}},
		201: {ID: 201, Fields: map[string]factmodel.Value{"status": factmodel.String("paid"), "order_id": factmodel.Int(2)}},
	}
	candidates := func(id alpha.NodeID) []factmodel.FactID {
		if id == alphaMemID {
			return []factmodel.FactID{200, 201}
		}
		return nil
	}

	activations := m.Propagate(Seed(r.ID, 100), r, facts, candidates)
	require.Len(t, activations, 1)

	assert.Equal(t, []NodeID{joinID, joinID}, obs.breakpoints)
	require.Len(t, obs.created, 1)
	assert.Equal(t, joinID, obs.created[0])
	require.Len(t, obs.propagated, 1)
	assert.Equal(t, [2]NodeID{joinID, terminalID}, obs.propagated[0])
	require.Len(t, obs.consumed, 1)
	assert.Equal(t, terminalID, obs.consumed[0])
}

func TestManagerSnapshotCountsActivationsAndJoins(t *testing.T) {
	m := NewManager(0, nil, nil)
	r := twoConditionRule()
	alphaMemID := alpha.NodeID(1)
	m.BuildChain(r, []alpha.NodeID{alphaMemID})

	facts := map[factmodel.FactID]*factmodel.Fact{
		100: {ID: 100},
		200: {ID: 200},
	}
	candidates := func(alpha.NodeID) []factmodel.FactID { return []factmodel.FactID{200} }
	m.Propagate(Seed(r.ID, 100), r, facts, candidates)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.TotalActivations)
	assert.Equal(t, uint64(1), snap.TotalJoinsPerformed)
}

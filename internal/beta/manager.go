package beta

import (
	"sync"

	"github.com/rawblock/rete-engine/internal/alpha"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// Manager owns every node and memory in the beta network and propagates
// tokens through join chains until they complete at a terminal node
// (spec.md §4.6).
type Manager struct {
	mu sync.Mutex

	nodes    map[NodeID]*Node
	memories map[NodeID]*Memory
	rootID   NodeID
	nextID   uint64

	// Per-rule join chains built by BuildChain: chain[i] is the join node
	// handling condition index i+1 (condition 0 is absorbed by Seed).
	chains    map[rule.RuleID][]NodeID
	terminals map[rule.RuleID]NodeID

	highWaterMark int
	sink          BackpressureSink
	observer      JoinObserver

	totalTokensProcessed uint64
	totalJoinsPerformed  uint64
	totalActivations     uint64
	droppedActivations   uint64
}

// NewManager constructs a beta network manager and its root node.
// highWaterMark <= 0 means beta memories are unbounded. observer may be
// nil, in which case join processing is unobserved.
func NewManager(highWaterMark int, sink BackpressureSink, observer JoinObserver) *Manager {
	m := &Manager{
		nodes:         make(map[NodeID]*Node),
		memories:      make(map[NodeID]*Memory),
		nextID:        1,
		chains:        make(map[rule.RuleID][]NodeID),
		terminals:     make(map[rule.RuleID]NodeID),
		highWaterMark: highWaterMark,
		sink:          sink,
		observer:      observer,
	}
	m.rootID = m.createNode(newRootNode(m.allocID()))
	return m
}

func (m *Manager) allocID() NodeID {
	id := NodeID(m.nextID)
	m.nextID++
	return id
}

func (m *Manager) createNode(n *Node) NodeID {
	m.nodes[n.ID] = n
	m.memories[n.ID] = NewMemory(n.ID, m.highWaterMark, m.sink)
	return n.ID
}

func (m *Manager) connect(parentID, childID NodeID) {
	if parent, ok := m.nodes[parentID]; ok {
		parent.addChild(childID)
	}
	if child, ok := m.nodes[childID]; ok {
		p := parentID
		child.Parent = &p
	}
}

// BuildChain wires a fresh join-node chain for rule r, one join per
// condition beyond the first, each bound to the alpha memory handling
// that condition, and a terminal node at the end. alphaMemoryIDs must have
// len(r.Conditions)-1 entries, in condition order starting at index 1.
// Re-building a rule's chain replaces the previous one.
func (m *Manager) BuildChain(r *rule.Rule, alphaMemoryIDs []alpha.NodeID) (terminalID NodeID, joinIDs []NodeID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.rootID
	joinIDs = make([]NodeID, 0, len(alphaMemoryIDs))
	for i, memID := range alphaMemoryIDs {
		conditionIndex := i + 1
		joinID := m.createNode(newJoinNode(m.allocID(), memID, conditionIndex))
		m.connect(prev, joinID)
		joinIDs = append(joinIDs, joinID)
		prev = joinID
	}
	terminalID = m.createNode(newTerminalNode(m.allocID(), r.ID))
	m.connect(prev, terminalID)

	m.chains[r.ID] = joinIDs
	m.terminals[r.ID] = terminalID
	return terminalID, joinIDs
}

// AddJoinTest attaches a cross-fact comparison to the join node handling
// conditionIndex for ruleID. BuildChain must have run for ruleID first.
func (m *Manager) AddJoinTest(ruleID rule.RuleID, conditionIndex int, test JoinTest) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	chain := m.chains[ruleID]
	if conditionIndex-1 < 0 || conditionIndex-1 >= len(chain) {
		return false
	}
	node, ok := m.nodes[chain[conditionIndex-1]]
	if !ok {
		return false
	}
	node.Tests = append(node.Tests, test)
	return true
}

// FactSource resolves the fact ids currently held in an alpha memory, so
// joins never scan the whole fact store (spec.md §9 design note).
type FactSource func(alpha.NodeID) []factmodel.FactID

// Propagate drives token through r's join chain, testing candidate facts
// drawn only from each join's own alpha memory, and returns every
// resulting activation (a token that reached the terminal node).
func (m *Manager) Propagate(token Token, r *rule.Rule, facts map[factmodel.FactID]*factmodel.Fact, candidates FactSource) []Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalTokensProcessed++
	chain := m.chains[r.ID]

	var activations []Token
	pending := []Token{token}
	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if cur.IsComplete(r) {
			activations = append(activations, cur)
			m.totalActivations++
			if termID, ok := m.terminals[r.ID]; ok {
				if mem, ok := m.memories[termID]; ok {
					mem.RecordActivation()
				}
				if m.observer != nil {
					m.observer.TokenConsumed(termID, cur.FactIDs)
				}
			}
			continue
		}

		stepIdx := cur.ConditionIndex - 1
		if stepIdx < 0 || stepIdx >= len(chain) {
			continue // malformed chain for this token's position; drop silently
		}
		joinID := chain[stepIdx]
		node := m.nodes[joinID]
		mem := m.memories[joinID]

		for _, factID := range candidates(node.AlphaMemoryID) {
			fact, ok := facts[factID]
			if !ok {
				continue
			}
			node.JoinAttempts++
			node.TokensProcessed++
			if m.observer != nil {
				m.observer.CheckBreakpoint(joinID, r.ID, factID)
			}

			passed := true
			for _, test := range node.Tests {
				if !test.Evaluate(cur, fact, facts) {
					passed = false
					break
				}
			}
			if !passed {
				continue
			}

			extended := cur.Extend(factID)
			if !mem.Add(extended) {
				m.droppedActivations++
				continue
			}
			node.SuccessfulJoins++
			node.TokensPassed++
			m.totalJoinsPerformed++
			if m.observer != nil {
				m.observer.TokenCreated(joinID, extended.FactIDs)
				nextID := joinID
				if extended.IsComplete(r) {
					if termID, ok := m.terminals[r.ID]; ok {
						nextID = termID
					}
				} else if nextIdx := extended.ConditionIndex - 1; nextIdx >= 0 && nextIdx < len(chain) {
					nextID = chain[nextIdx]
				}
				m.observer.TokenPropagated(joinID, nextID, extended.FactIDs)
			}
			pending = append(pending, extended)
		}
	}
	return activations
}

// RetractFact removes every token across every beta memory whose fact list
// contains factID, returning the number of tokens removed.
func (m *Manager) RetractFact(factID factmodel.FactID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, mem := range m.memories {
		removed += mem.RemoveContaining(factID)
	}
	return removed
}

// ManagerStats is a point-in-time readout of the whole beta network.
type ManagerStats struct {
	TotalNodes           int
	TotalTokensProcessed uint64
	TotalJoinsPerformed  uint64
	TotalActivations     uint64
	DroppedActivations   uint64
}

func (m *Manager) Snapshot() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ManagerStats{
		TotalNodes:           len(m.nodes),
		TotalTokensProcessed: m.totalTokensProcessed,
		TotalJoinsPerformed:  m.totalJoinsPerformed,
		TotalActivations:     m.totalActivations,
		DroppedActivations:   m.droppedActivations,
	}
}

// NodeStats returns the stats for a single node, or false if it does not
// exist.
func (m *Manager) NodeStats(id NodeID) (*Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	return n, ok
}

// Chain returns the join-node ids built for ruleID by BuildChain, in
// condition order, so callers (diagnostics tooling, tests) can target a
// breakpoint at a specific join without reaching into network internals.
func (m *Manager) Chain(ruleID rule.RuleID) []NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NodeID(nil), m.chains[ruleID]...)
}

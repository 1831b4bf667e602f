package beta

import "github.com/rawblock/rete-engine/internal/factmodel"

// BackpressureSink is notified when a beta memory rejects a token because
// it is at its high-water mark. Optional; nil is a valid no-op sink.
type BackpressureSink interface {
	TokenRejected(node NodeID)
}

// Memory stores the tokens currently held at one beta node. A configurable
// high-water mark applies back-pressure: once reached, further inserts are
// rejected rather than corrupting or silently dropping existing matches
// (spec.md §4.6, §7 resource policy).
type Memory struct {
	tokens map[string]Token

	tokensAdded      uint64
	tokensRemoved    uint64
	totalActivations uint64
	droppedOnInsert  uint64
	highWaterMark    int // 0 means unbounded
	backpressureSink BackpressureSink
	owningNode       NodeID
}

// NewMemory constructs an empty beta memory. highWaterMark <= 0 means
// unbounded.
func NewMemory(owningNode NodeID, highWaterMark int, sink BackpressureSink) *Memory {
	return &Memory{
		tokens:           make(map[string]Token),
		highWaterMark:    highWaterMark,
		backpressureSink: sink,
		owningNode:       owningNode,
	}
}

// Add inserts token, returning false (and bumping the drop counter) if the
// memory is at capacity and token is not already present.
func (m *Memory) Add(token Token) bool {
	key := token.Key()
	if _, exists := m.tokens[key]; exists {
		return true
	}
	if m.highWaterMark > 0 && len(m.tokens) >= m.highWaterMark {
		m.droppedOnInsert++
		if m.backpressureSink != nil {
			m.backpressureSink.TokenRejected(m.owningNode)
		}
		return false
	}
	m.tokens[key] = token
	m.tokensAdded++
	return true
}

// Remove deletes the token with this key, returning true if it had been
// present.
func (m *Memory) Remove(token Token) bool {
	key := token.Key()
	if _, ok := m.tokens[key]; !ok {
		return false
	}
	delete(m.tokens, key)
	m.tokensRemoved++
	return true
}

// RemoveContaining deletes every token whose fact list contains factID,
// returning the count removed. Used to propagate fact retraction
// (spec.md §4.6).
func (m *Memory) RemoveContaining(factID factmodel.FactID) int {
	removed := 0
	for key, tok := range m.tokens {
		if tok.Contains(factID) {
			delete(m.tokens, key)
			m.tokensRemoved++
			removed++
		}
	}
	return removed
}

func (m *Memory) Tokens() []Token {
	out := make([]Token, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, t)
	}
	return out
}

func (m *Memory) Count() int { return len(m.tokens) }

func (m *Memory) RecordActivation() { m.totalActivations++ }

// Stats is a point-in-time readout of one beta memory.
type Stats struct {
	TokenCount       int
	TokensAdded      uint64
	TokensRemoved    uint64
	TotalActivations uint64
	DroppedOnInsert  uint64
}

func (m *Memory) GetStats() Stats {
	return Stats{
		TokenCount:       len(m.tokens),
		TokensAdded:      m.tokensAdded,
		TokensRemoved:    m.tokensRemoved,
		TotalActivations: m.totalActivations,
		DroppedOnInsert:  m.droppedOnInsert,
	}
}

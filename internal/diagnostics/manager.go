package diagnostics

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/rule"
)

// Config controls which hook classes run and how aggressively events are
// sampled, mirroring original_source's DebugConfig.
type Config struct {
	EnableRuleHooks    bool
	EnableTokenHooks   bool
	EnableEventTracing bool
	MaxEventBufferSize int
	TrackOverhead      bool
	EventSampleRate    float64 // 0..1, 1 = every event
}

// DefaultConfig matches original_source's DebugConfig::default().
func DefaultConfig() Config {
	return Config{
		EnableRuleHooks:    true,
		EnableTokenHooks:   true,
		EnableEventTracing: true,
		MaxEventBufferSize: 1000,
		TrackOverhead:      true,
		EventSampleRate:    1.0,
	}
}

// OverheadStats tracks time spent inside hook dispatch, so a caller can
// decide whether diagnostics is too expensive to keep enabled at current
// load.
type OverheadStats struct {
	TotalHookTime   time.Duration
	HookInvocations int
	AverageHookTime time.Duration
}

// Manager is the debug-hook/breakpoint/analytics root, analogous to
// original_source's DebugHookManager.
type Manager struct {
	mu sync.Mutex

	config Config

	eventHooks []EventHook
	ruleHooks  map[rule.RuleID][]RuleFireHook
	tokenHooks []TokenPropagationHook

	buffer    *ringBuffer
	analytics *Analytics
	overhead  OverheadStats

	breakpoints map[uuid.UUID]*Breakpoint
}

// New constructs a Manager with DefaultConfig.
func New() *Manager {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig constructs a Manager with an explicit Config.
func NewWithConfig(cfg Config) *Manager {
	return &Manager{
		config:      cfg,
		ruleHooks:   make(map[rule.RuleID][]RuleFireHook),
		buffer:      newRingBuffer(cfg.MaxEventBufferSize),
		analytics:   NewAnalytics(),
		breakpoints: make(map[uuid.UUID]*Breakpoint),
	}
}

// AddEventHook registers a hook invoked for every sampled event.
func (m *Manager) AddEventHook(h EventHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventHooks = append(m.eventHooks, h)
}

// AddRuleHook registers a hook invoked only for ruleID's lifecycle.
func (m *Manager) AddRuleHook(ruleID rule.RuleID, h RuleFireHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleHooks[ruleID] = append(m.ruleHooks[ruleID], h)
}

// AddTokenHook registers a hook invoked for every token lifecycle event.
func (m *Manager) AddTokenHook(h TokenPropagationHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenHooks = append(m.tokenHooks, h)
}

// SetBreakpoint installs a Breakpoint and returns its id.
func (m *Manager) SetBreakpoint(nodeID string, condition BreakpointCondition) uuid.UUID {
	bp := NewBreakpoint(nodeID, condition)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakpoints[bp.ID] = &bp
	return bp.ID
}

// RemoveBreakpoint deletes a previously-set breakpoint.
func (m *Manager) RemoveBreakpoint(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakpoints, id)
}

// CheckBreakpoints evaluates every enabled breakpoint at nodeID against a
// rule firing on factID, incrementing hit counts for matches and
// returning the breakpoints that fired.
func (m *Manager) CheckBreakpoints(nodeID string, firedRule rule.RuleID, factID factmodel.FactID) []Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	var hit []Breakpoint
	for _, bp := range m.breakpoints {
		if !bp.Enabled || bp.NodeID != nodeID {
			continue
		}
		bp.HitCount++
		if bp.Condition.Matches(firedRule, uint64(factID), bp.HitCount) {
			hit = append(hit, *bp)
		}
	}
	for _, bp := range hit {
		rid := firedRule
		fid := factID
		m.emit(Event{
			ID:          uuid.New(),
			Timestamp:   time.Now(),
			Type:        EventBreakpointHit,
			RuleID:      &rid,
			FactID:      &fid,
			Description: "breakpoint hit at " + nodeID,
			Data:        map[string]string{"node_id": nodeID, "breakpoint_id": bp.ID.String(), "hit_count": strconv.Itoa(bp.HitCount)},
			Severity:    SeverityWarn,
		})
	}
	return hit
}

// TriggerRuleEvaluationStarted fires before-evaluation rule hooks and
// records a debug event.
func (m *Manager) TriggerRuleEvaluationStarted(ruleID rule.RuleID, facts []factmodel.Fact) {
	if !m.config.EnableRuleHooks {
		return
	}
	start := time.Now()

	m.mu.Lock()
	hooks := append([]RuleFireHook(nil), m.ruleHooks[ruleID]...)
	m.mu.Unlock()
	for _, h := range hooks {
		h.BeforeRuleEvaluation(ruleID, facts)
	}

	rid := ruleID
	m.emit(Event{
		ID:          uuid.New(),
		Timestamp:   time.Now(),
		Type:        EventRuleEvaluationStarted,
		RuleID:      &rid,
		Description: "rule evaluation started",
		Data:        map[string]string{"fact_count": strconv.Itoa(len(facts))},
		Severity:    SeverityDebug,
	})
	m.trackOverhead(time.Since(start))
}

// TriggerRuleFired fires on-fired rule hooks and records a debug event.
func (m *Manager) TriggerRuleFired(ruleID rule.RuleID, inputFacts, outputFacts []factmodel.FactID) {
	if !m.config.EnableRuleHooks {
		return
	}
	start := time.Now()

	m.mu.Lock()
	hooks := append([]RuleFireHook(nil), m.ruleHooks[ruleID]...)
	m.mu.Unlock()
	for _, h := range hooks {
		h.OnRuleFired(ruleID, inputFacts, outputFacts)
	}

	rid := ruleID
	m.emit(Event{
		ID:          uuid.New(),
		Timestamp:   time.Now(),
		Type:        EventRuleFired,
		RuleID:      &rid,
		Description: "rule fired",
		Data: map[string]string{
			"input_fact_count":  strconv.Itoa(len(inputFacts)),
			"output_fact_count": strconv.Itoa(len(outputFacts)),
		},
		Severity: SeverityInfo,
	})
	m.trackOverhead(time.Since(start))
}

// TriggerTokenCreated fires token hooks and records a trace-level event.
func (m *Manager) TriggerTokenCreated(factIDs []factmodel.FactID, nodeID string) {
	if !m.config.EnableTokenHooks {
		return
	}
	start := time.Now()

	m.mu.Lock()
	hooks := append([]TokenPropagationHook(nil), m.tokenHooks...)
	m.mu.Unlock()
	for _, h := range hooks {
		h.OnTokenCreated(factIDs, nodeID)
	}

	m.emit(Event{
		ID:          uuid.New(),
		Timestamp:   time.Now(),
		Type:        EventTokenCreated,
		Description: "token created at " + nodeID,
		Data:        map[string]string{"node_id": nodeID, "fact_count": strconv.Itoa(len(factIDs))},
		Severity:    SeverityTrace,
	})
	m.trackOverhead(time.Since(start))
}

// TriggerTokenPropagated fires token hooks and records a trace-level
// event for a token moving between two beta nodes.
func (m *Manager) TriggerTokenPropagated(factIDs []factmodel.FactID, fromNode, toNode string) {
	if !m.config.EnableTokenHooks {
		return
	}
	start := time.Now()

	m.mu.Lock()
	hooks := append([]TokenPropagationHook(nil), m.tokenHooks...)
	m.mu.Unlock()
	for _, h := range hooks {
		h.OnTokenPropagated(factIDs, fromNode, toNode)
	}

	m.emit(Event{
		ID:          uuid.New(),
		Timestamp:   time.Now(),
		Type:        EventTokenPropagated,
		Description: "token propagated from " + fromNode + " to " + toNode,
		Data:        map[string]string{"from_node": fromNode, "to_node": toNode},
		Severity:    SeverityTrace,
	})
	m.trackOverhead(time.Since(start))
}

// TriggerTokenConsumed fires token hooks and records a trace-level event
// for a token reaching a terminal node and becoming an activation.
func (m *Manager) TriggerTokenConsumed(factIDs []factmodel.FactID, nodeID string) {
	if !m.config.EnableTokenHooks {
		return
	}
	start := time.Now()

	m.mu.Lock()
	hooks := append([]TokenPropagationHook(nil), m.tokenHooks...)
	m.mu.Unlock()
	for _, h := range hooks {
		h.OnTokenConsumed(factIDs, nodeID)
	}

	m.emit(Event{
		ID:          uuid.New(),
		Timestamp:   time.Now(),
		Type:        EventTokenConsumed,
		Description: "token consumed at " + nodeID,
		Data:        map[string]string{"node_id": nodeID, "fact_count": strconv.Itoa(len(factIDs))},
		Severity:    SeverityDebug,
	})
	m.trackOverhead(time.Since(start))
}

// RecentEvents returns up to limit buffered events, most recent first.
// limit <= 0 returns every buffered event.
func (m *Manager) RecentEvents(limit int) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.recent(limit)
}

// Analytics exposes the rolling analytics accumulator.
func (m *Manager) Analytics() *Analytics {
	return m.analytics
}

// OverheadStats returns a snapshot of hook-dispatch overhead.
func (m *Manager) OverheadStats() OverheadStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overhead
}

// emit samples, buffers, hands the event to registered EventHooks, and
// folds it into Analytics.
func (m *Manager) emit(e Event) {
	if m.config.EventSampleRate < 1.0 && rand.Float64() > m.config.EventSampleRate {
		return
	}

	m.mu.Lock()
	hooks := append([]EventHook(nil), m.eventHooks...)
	m.buffer.push(e)
	m.mu.Unlock()

	for _, h := range hooks {
		h.OnEvent(e)
	}
	m.analytics.Observe(e)
}

func (m *Manager) trackOverhead(d time.Duration) {
	if !m.config.TrackOverhead {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overhead.TotalHookTime += d
	m.overhead.HookInvocations++
	m.overhead.AverageHookTime = m.overhead.TotalHookTime / time.Duration(m.overhead.HookInvocations)
}

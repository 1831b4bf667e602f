// Package engine is the aggregate root wiring the fact store, alpha/beta
// network, optimizer, calculator, action executor, diagnostics and
// monitoring into the programmatic boundary described by spec.md §6:
// AddRule/UpdateRule/RemoveRule, ProcessFacts, GetStats.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rawblock/rete-engine/internal/action"
	"github.com/rawblock/rete-engine/internal/alpha"
	"github.com/rawblock/rete-engine/internal/beta"
	"github.com/rawblock/rete-engine/internal/calculator"
	"github.com/rawblock/rete-engine/internal/diagnostics"
	"github.com/rawblock/rete-engine/internal/engerr"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/monitor"
	"github.com/rawblock/rete-engine/internal/optimizer"
	"github.com/rawblock/rete-engine/internal/rule"
	"github.com/rawblock/rete-engine/internal/store"
)

// Config parameterises engine construction.
type Config struct {
	ExpectedFacts     uint
	CascadeDepthLimit int // default 8, per spec.md §5
	BetaHighWaterMark int // <= 0 means unbounded
}

// DefaultConfig matches spec.md §5's default generation depth limit.
func DefaultConfig() Config {
	return Config{ExpectedFacts: 4096, CascadeDepthLimit: 8, BetaHighWaterMark: 0}
}

// Engine is the single-writer-per-component aggregate root (spec.md §5
// "shared-resource discipline"): every mutation of store/alpha/beta state
// goes through the methods below, serialised by mu.
type Engine struct {
	mu sync.Mutex

	store     *store.Store
	alphaMgr  *alpha.Manager
	betaMgr   *beta.Manager
	optimizer *optimizer.Optimizer
	calc      *calculator.Evaluator
	executor  *action.Executor
	diag      *diagnostics.Manager
	counters  *monitor.Counters
	alerts    *monitor.AlertManager

	rules map[rule.RuleID]*ruleEntry

	cascadeDepthLimit int
	quarantined       bool
}

// backpressureSink adapts beta.BackpressureSink onto the engine's metrics
// and diagnostics surface, so a beta memory hitting its high-water mark is
// observable the way spec.md §5 requires ("dropped_activations") instead
// of silently vanishing.
type backpressureSink struct {
	counters *monitor.Counters
	diag     *diagnostics.Manager
}

func (s backpressureSink) TokenRejected(node beta.NodeID) {
	s.counters.IncDroppedActivations()
	s.diag.TriggerTokenPropagated(nil, fmt.Sprintf("node_%d", node), "rejected")
}

// joinObserver adapts beta.JoinObserver onto the diagnostics manager, so
// every token created/propagated/consumed during real join processing, and
// every candidate fact a join node attempts, reaches the same debug event
// stream and breakpoint machinery spec.md §4.10 describes, not just the
// coarser rule-evaluation/rule-fired events.
type joinObserver struct {
	diag *diagnostics.Manager
}

func betaNodeName(id beta.NodeID) string { return fmt.Sprintf("node_%d", id) }

func (o joinObserver) TokenCreated(nodeID beta.NodeID, factIDs []factmodel.FactID) {
	o.diag.TriggerTokenCreated(factIDs, betaNodeName(nodeID))
}

func (o joinObserver) TokenPropagated(fromNode, toNode beta.NodeID, factIDs []factmodel.FactID) {
	o.diag.TriggerTokenPropagated(factIDs, betaNodeName(fromNode), betaNodeName(toNode))
}

func (o joinObserver) TokenConsumed(nodeID beta.NodeID, factIDs []factmodel.FactID) {
	o.diag.TriggerTokenConsumed(factIDs, betaNodeName(nodeID))
}

func (o joinObserver) CheckBreakpoint(nodeID beta.NodeID, ruleID rule.RuleID, factID factmodel.FactID) {
	o.diag.CheckBreakpoints(betaNodeName(nodeID), ruleID, factID)
}

// New constructs an Engine. sink receives action side effects (Log,
// TriggerAlert, SendNotification); pass action.NopSink{} if nothing
// consumes them. diag may be nil, in which case a default
// diagnostics.Manager is constructed.
func New(cfg Config, sink action.Sink, diag *diagnostics.Manager) *Engine {
	if cfg.CascadeDepthLimit <= 0 {
		cfg.CascadeDepthLimit = DefaultConfig().CascadeDepthLimit
	}
	if sink == nil {
		sink = action.NopSink{}
	}
	if diag == nil {
		diag = diagnostics.New()
	}

	counters := monitor.NewCounters()
	st := store.New(cfg.ExpectedFacts)
	calc := calculator.NewEvaluator()

	e := &Engine{
		store:             st,
		alphaMgr:          alpha.NewManager(),
		optimizer:         optimizer.New(),
		calc:              calc,
		diag:              diag,
		counters:          counters,
		alerts:            monitor.NewAlertManager(monitor.DefaultThresholds()),
		rules:             make(map[rule.RuleID]*ruleEntry),
		cascadeDepthLimit: cfg.CascadeDepthLimit,
	}
	e.betaMgr = beta.NewManager(cfg.BetaHighWaterMark, backpressureSink{counters: counters, diag: diag}, joinObserver{diag: diag})
	e.executor = action.New(st, calc, sink)
	return e
}

// Calculator exposes the evaluator so callers can register custom
// functions and named calculators before rules relying on them fire.
func (e *Engine) Calculator() *calculator.Evaluator { return e.calc }

// Diagnostics exposes the diagnostics manager for hook/breakpoint
// installation and event streaming.
func (e *Engine) Diagnostics() *diagnostics.Manager { return e.diag }

// JoinNodeName resolves the diagnostics node id for ruleID's join node
// handling conditionIndex (1-based, matching rule.Condition indices beyond
// the seed condition), so a caller can target SetBreakpoint at a specific
// join in the live network. Returns false if ruleID has no chain built or
// conditionIndex is out of range.
func (e *Engine) JoinNodeName(ruleID rule.RuleID, conditionIndex int) (string, bool) {
	chain := e.betaMgr.Chain(ruleID)
	i := conditionIndex - 1
	if i < 0 || i >= len(chain) {
		return "", false
	}
	return betaNodeName(chain[i]), true
}

// Alerts exposes the alert manager so a monitoring loop can sample
// GetStats and evaluate thresholds on an interval.
func (e *Engine) Alerts() *monitor.AlertManager { return e.alerts }

// Counters exposes the raw metric counters for a sampling loop to read
// (e.g. to feed monitor.AlertManager.Evaluate) or update (gauges like
// memory usage and goroutine count).
func (e *Engine) Counters() *monitor.Counters { return e.counters }

// AddRule validates, optimizes, and wires r into the engine. Returns
// engerr.ErrConflictingID if r.ID is already registered.
func (e *Engine) AddRule(r rule.Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[r.ID]; exists {
		return engerr.New(engerr.Validation, "medium", fmt.Sprintf("rule id %d is already registered", r.ID)).
			WithContext("rule_id", r.ID).
			WithSuggestions("use UpdateRule to replace an existing rule").
			Wrap(engerr.ErrConflictingID)
	}
	return e.registerRuleLocked(r)
}

// UpdateRule atomically replaces the rule at r.ID, re-registering its
// alpha/beta dependencies from scratch (per SPEC_FULL.md §9's resolved
// update-rule ambiguity). Returns engerr.ErrUnknownRule if r.ID does not
// exist yet.
func (e *Engine) UpdateRule(r rule.Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[r.ID]; !exists {
		return engerr.New(engerr.Reference, "medium", fmt.Sprintf("unknown rule %d", r.ID)).
			WithContext("rule_id", r.ID).
			Wrap(engerr.ErrUnknownRule)
	}
	e.unregisterRuleLocked(r.ID)
	return e.registerRuleLocked(r)
}

// RemoveRule deregisters id and cleans up any alpha memory left with no
// remaining dependents.
func (e *Engine) RemoveRule(id rule.RuleID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[id]; !exists {
		return engerr.New(engerr.Reference, "medium", fmt.Sprintf("unknown rule %d", id)).
			WithContext("rule_id", id).
			Wrap(engerr.ErrUnknownRule)
	}
	e.unregisterRuleLocked(id)
	return nil
}

func (e *Engine) unregisterRuleLocked(id rule.RuleID) {
	delete(e.rules, id)
	e.alphaMgr.CleanupUnused()
}

func (e *Engine) registerRuleLocked(r rule.Rule) error {
	if err := rule.Validate(&r); err != nil {
		return err
	}

	result := e.optimizer.OptimizeRule(r)
	entry := newRuleEntry(result.Optimized)

	if isNetworked(entry.rule.Conditions) {
		entry.networked = true
		memories := make([]*alpha.Memory, 0, len(entry.rule.Conditions))
		alphaIDs := make([]alpha.NodeID, 0, len(entry.rule.Conditions)-1)
		for i, c := range entry.rule.Conditions {
			simple := c.(rule.Simple)
			pattern := alpha.FromSimple(simple)
			mem := e.alphaMgr.GetOrCreate(pattern)
			e.alphaMgr.RegisterRuleDependency(pattern, entry.rule.ID)
			memories = append(memories, mem)
			if i > 0 {
				alphaIDs = append(alphaIDs, mem.ID)
			}
		}
		entry.conditionMemories = memories
		terminalID, _ := e.betaMgr.BuildChain(&entry.rule, alphaIDs)
		entry.terminalID = terminalID
	} else {
		for _, c := range entry.rule.Conditions {
			switch c.(type) {
			case rule.Aggregation, rule.Stream:
				entry.catchAll = true
			default:
				for _, leaf := range rule.SimplePatterns(c) {
					pattern := alpha.FromSimple(leaf)
					e.alphaMgr.RegisterRuleDependency(pattern, entry.rule.ID)
					entry.triggerPatternKeys = append(entry.triggerPatternKeys, pattern.Key())
				}
			}
		}
	}

	e.rules[entry.rule.ID] = entry
	return nil
}

// ProcessResult is what one ProcessFacts call produced.
type ProcessResult struct {
	Activations          []Activation
	Stats                Stats
	Timeout              bool
	CascadeDepthExceeded bool
}

// Activation is one rule firing: the facts that completed its match and
// whatever its actions produced or failed on.
type Activation struct {
	RuleID         rule.RuleID
	Generation     int
	InputFactIDs   []factmodel.FactID
	CreatedFactIDs []factmodel.FactID
	Errors         []*engerr.EngineError
}

// ProcessFacts inserts facts, evaluates every registered rule against
// them, fires matching activations' actions, and follows any facts those
// actions create into successive generations (spec.md §5's generation
// queue) until either no new facts are produced, ctx is done, or
// cascadeDepthLimit generations have run.
func (e *Engine) ProcessFacts(ctx context.Context, facts []factmodel.Fact) ProcessResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var result ProcessResult
	if e.quarantined {
		result.Activations = nil
		return result
	}

	generation := facts
	depth := 0
	for len(generation) > 0 {
		select {
		case <-ctx.Done():
			result.Timeout = true
			e.counters.IncTimeouts()
			return e.finishLocked(result)
		default:
		}

		if depth >= e.cascadeDepthLimit {
			result.CascadeDepthExceeded = true
			e.counters.IncCascadeDepthExceeded()
			return e.finishLocked(result)
		}

		var next []factmodel.Fact
		for _, f := range generation {
			id := e.store.Insert(f)
			stored, _ := e.store.Get(id)
			e.counters.IncFactsProcessed()

			for _, act := range e.processOneFactLocked(&stored, depth) {
				result.Activations = append(result.Activations, act)
				for _, createdID := range act.CreatedFactIDs {
					if created, ok := e.store.Get(createdID); ok {
						next = append(next, created)
					}
				}
			}
		}
		generation = next
		depth++
	}
	return e.finishLocked(result)
}

func (e *Engine) finishLocked(result ProcessResult) ProcessResult {
	result.Stats = e.snapshotStatsLocked()
	return result
}

func (e *Engine) processOneFactLocked(f *factmodel.Fact, generation int) []Activation {
	matchedKeys := e.alphaMgr.ProcessFactAddition(f)
	matchedSet := make(map[string]struct{}, len(matchedKeys))
	for _, k := range matchedKeys {
		matchedSet[k] = struct{}{}
	}

	var activations []Activation
	for _, entry := range e.rules {
		e.counters.IncRulesEvaluated()
		var fired []Activation
		if entry.networked {
			fired = e.evaluateNetworkedLocked(entry, f, matchedSet)
		} else {
			fired = e.evaluateDirectLocked(entry, f, matchedSet)
		}
		for i := range fired {
			fired[i].Generation = generation
		}
		activations = append(activations, fired...)
	}
	return activations
}

func (e *Engine) evaluateNetworkedLocked(entry *ruleEntry, f *factmodel.Fact, matchedSet map[string]struct{}) []Activation {
	relevant := false
	for _, mem := range entry.conditionMemories {
		if _, ok := matchedSet[mem.Pattern.Key()]; ok {
			relevant = true
			break
		}
	}
	if !relevant {
		return nil
	}

	if _, ok := matchedSet[entry.conditionMemories[0].Pattern.Key()]; ok {
		entry.seeds[f.ID] = struct{}{}
	}
	if len(entry.seeds) == 0 {
		return nil
	}

	e.diag.TriggerRuleEvaluationStarted(entry.rule.ID, []factmodel.Fact{*f})

	allIDs := make(map[factmodel.FactID]struct{})
	for _, mem := range entry.conditionMemories {
		for id := range mem.MatchingFacts() {
			allIDs[id] = struct{}{}
		}
	}
	factsByID := e.factsForLocked(allIDs)

	candidates := func(nodeID alpha.NodeID) []factmodel.FactID {
		for _, mem := range entry.conditionMemories {
			if mem.ID == nodeID {
				ids := mem.MatchingFacts()
				out := make([]factmodel.FactID, 0, len(ids))
				for id := range ids {
					out = append(out, id)
				}
				return out
			}
		}
		return nil
	}

	var activations []Activation
	for seedID := range entry.seeds {
		token := beta.Seed(entry.rule.ID, seedID)
		for _, tok := range e.betaMgr.Propagate(token, &entry.rule, factsByID, candidates) {
			key := tok.Key()
			if _, seen := entry.firedTokens[key]; seen {
				continue
			}
			entry.firedTokens[key] = struct{}{}
			activations = append(activations, e.fireLocked(entry.rule, tok.FactIDs))
		}
	}
	return activations
}

func (e *Engine) evaluateDirectLocked(entry *ruleEntry, f *factmodel.Fact, matchedSet map[string]struct{}) []Activation {
	if !entry.catchAll {
		relevant := false
		for _, key := range entry.triggerPatternKeys {
			if _, ok := matchedSet[key]; ok {
				relevant = true
				break
			}
		}
		if !relevant {
			return nil
		}
	}

	e.diag.TriggerRuleEvaluationStarted(entry.rule.ID, []factmodel.Fact{*f})

	working := e.store.AllFacts()
	if !matchesAllDirect(entry.rule.Conditions, f, working) {
		return nil
	}

	tokenKey := fmt.Sprintf("direct_%d_%d", entry.rule.ID, f.ID)
	if _, seen := entry.firedTokens[tokenKey]; seen {
		return nil
	}
	entry.firedTokens[tokenKey] = struct{}{}
	return []Activation{e.fireLocked(entry.rule, []factmodel.FactID{f.ID})}
}

func (e *Engine) fireLocked(r rule.Rule, inputFactIDs []factmodel.FactID) Activation {
	e.counters.IncRulesFired()
	triggeringFactID := inputFactIDs[len(inputFactIDs)-1]
	res := e.executor.Execute(r.ID, triggeringFactID, r.Actions)
	if len(res.Errors) > 0 {
		e.counters.IncRuleEvaluationErrors()
	}
	e.diag.TriggerRuleFired(r.ID, inputFactIDs, res.CreatedFactIDs)
	return Activation{
		RuleID:         r.ID,
		InputFactIDs:   inputFactIDs,
		CreatedFactIDs: res.CreatedFactIDs,
		Errors:         res.Errors,
	}
}

func (e *Engine) factsForLocked(ids map[factmodel.FactID]struct{}) map[factmodel.FactID]*factmodel.Fact {
	out := make(map[factmodel.FactID]*factmodel.Fact, len(ids))
	for id := range ids {
		if f, ok := e.store.Get(id); ok {
			out[id] = &f
		}
	}
	return out
}

// RemoveFact retracts a fact from the store, alpha memories, beta tokens,
// and every rule's recorded seeds (spec.md §8 invariant 3).
func (e *Engine) RemoveFact(id factmodel.FactID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.Remove(id) {
		return false
	}
	e.alphaMgr.ProcessFactRemoval(id)
	e.betaMgr.RetractFact(id)
	for _, entry := range e.rules {
		delete(entry.seeds, id)
	}
	return true
}

// Quarantine puts the engine into the refuse-new-batches state spec.md §7
// describes for Internal errors (an invariant breach). There is
// deliberately no public unquarantine: recovering from a breach means
// building a fresh Engine.
func (e *Engine) Quarantine() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quarantined = true
}

// Quarantined reports whether the engine is refusing new batches.
func (e *Engine) Quarantined() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quarantined
}

// Stats is the Go realization of spec.md §6's EngineStats payload.
type Stats struct {
	RuleCount           int
	FactCount           int
	NodeCount           int
	MemoryUsageBytes    uint64
	CacheHits           uint64
	CacheMisses         uint64
	TotalFactsProcessed uint64
	TotalMatchesFound   uint64
	Timestamp           time.Time
}

// GetStats returns a stable snapshot, reading only atomic counters and
// copying map-backed stats (spec.md §5: "snapshotting is O(1) by reading
// atomic counters").
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotStatsLocked()
}

func (e *Engine) snapshotStatsLocked() Stats {
	storeSnap := e.store.Snapshot()
	alphaSnap := e.alphaMgr.Snapshot()
	betaSnap := e.betaMgr.Snapshot()
	counterSnap := e.counters.Snapshot()

	return Stats{
		RuleCount:           len(e.rules),
		FactCount:           storeSnap.FactCount,
		NodeCount:           alphaSnap.MemoryCount + betaSnap.TotalNodes,
		MemoryUsageBytes:    counterSnap.MemoryUsageBytes,
		CacheHits:           storeSnap.CacheHits,
		CacheMisses:         storeSnap.CacheMisses,
		TotalFactsProcessed: counterSnap.FactsProcessed,
		TotalMatchesFound:   alphaSnap.TotalMatches,
		Timestamp:           time.Now(),
	}
}

// Package store implements the fact store (spec.md §4.2): arena-backed
// fact ownership, per-field indexing via internal/indexer, a Bloom
// existence filter, and cache-stat counters.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rawblock/rete-engine/internal/factmodel"
	"github.com/rawblock/rete-engine/internal/indexer"
)

// Stats is a point-in-time, atomically-read snapshot of store activity.
type Stats struct {
	FactCount     int
	NextID        uint64
	CacheHits     uint64
	CacheMisses   uint64
	BloomNegatives uint64
	Inserts       uint64
	Removes       uint64
}

// Store owns every Fact for the lifetime of an engine. It is the only
// component that mutates fact state directly; every other component holds
// fact ids (weak references) per spec.md §3 lifecycle rules.
type Store struct {
	mu     sync.RWMutex
	facts  map[factmodel.FactID]*factmodel.Fact
	nextID uint64

	indexes *indexer.Manager
	bloom   *existenceFilter
	cache   *lru.Cache[factmodel.FactID, *factmodel.Fact]

	cacheHits   atomic.Uint64
	cacheMisses atomic.Uint64
	inserts     atomic.Uint64
	removes     atomic.Uint64
}

// New constructs a Store. expectedFacts sizes the Bloom filter and the
// read-cache; zero selects reasonable defaults.
func New(expectedFacts uint) *Store {
	cacheSize := int(expectedFacts)
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, _ := lru.New[factmodel.FactID, *factmodel.Fact](cacheSize)
	return &Store{
		facts:   make(map[factmodel.FactID]*factmodel.Fact),
		nextID:  1,
		indexes: indexer.NewManager(),
		bloom:   newExistenceFilter(expectedFacts, 0.01),
		cache:   cache,
	}
}

func idKey(id factmodel.FactID) []byte {
	return []byte(fmt.Sprintf("fact:%d", id))
}

// Insert assigns the next monotonic id to fact, indexes its fields, and
// returns the assigned id. Ids are never reused, even across removals.
func (s *Store) Insert(fact factmodel.Fact) factmodel.FactID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := factmodel.FactID(s.nextID)
	s.nextID++
	fact.ID = id

	stored := fact
	s.facts[id] = &stored
	s.cache.Add(id, &stored)
	s.bloom.add(idKey(id))

	for field, value := range stored.Fields {
		s.indexes.Add(field, value, id)
	}

	s.inserts.Add(1)
	return id
}

// Get returns the fact stored under id, or ok=false if no such fact exists
// (removed or never inserted). Reads are total — Get never errors.
func (s *Store) Get(id factmodel.FactID) (factmodel.Fact, bool) {
	if !s.bloom.mightContain(idKey(id)) {
		s.cacheMisses.Add(1)
		return factmodel.Fact{}, false
	}

	if cached, ok := s.cache.Get(id); ok {
		s.cacheHits.Add(1)
		return *cached, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[id]
	if !ok {
		s.cacheMisses.Add(1)
		return factmodel.Fact{}, false
	}
	s.cacheHits.Add(1)
	s.cache.Add(id, f)
	return *f, true
}

// Update replaces the fact at id with newFact (same id, possibly different
// fields), re-indexing the delta. It is the only legal way to "mutate" a
// fact — the store enforces immutability by always producing a fresh
// value, never editing one in place.
func (s *Store) Update(id factmodel.FactID, newFact factmodel.Fact) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.facts[id]
	if !ok {
		return false
	}
	for field, value := range old.Fields {
		s.indexes.Remove(field, value, id)
	}
	newFact.ID = id
	stored := newFact
	s.facts[id] = &stored
	s.cache.Add(id, &stored)
	for field, value := range stored.Fields {
		s.indexes.Add(field, value, id)
	}
	return true
}

// Remove deletes the fact at id from storage and every field index. Every
// field index and the alpha layer observe the removal before the next
// ProcessFacts call returns (spec.md §4.2 invariant): callers are expected
// to propagate removal to the alpha network synchronously after Remove
// returns, which engine.RemoveFact does.
func (s *Store) Remove(id factmodel.FactID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.facts[id]
	if !ok {
		return false
	}
	for field, value := range f.Fields {
		s.indexes.Remove(field, value, id)
	}
	delete(s.facts, id)
	s.cache.Remove(id)
	s.removes.Add(1)
	return true
}

// FindByField returns every fact id whose field equals value, ascending.
func (s *Store) FindByField(field string, value factmodel.Value) []factmodel.FactID {
	return s.indexes.Lookup(field, value)
}

// AllFacts returns a snapshot copy of every currently-live fact, keyed by
// id. Used by the aggregation/stream condition evaluator and the direct
// (non-networked) rule path, both of which genuinely need to see the
// whole working set rather than an alpha-memory-scoped subset.
func (s *Store) AllFacts() map[factmodel.FactID]*factmodel.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[factmodel.FactID]*factmodel.Fact, len(s.facts))
	for id, f := range s.facts {
		cp := *f
		out[id] = &cp
	}
	return out
}

// FindByCriteria returns the intersection of postings for every (field,
// value) pair, most-selective-first (spec.md §4.2).
func (s *Store) FindByCriteria(criteria []indexer.Criterion) []factmodel.FactID {
	return s.indexes.FindByCriteria(criteria)
}

// Optimize re-analyses and, where warranted, rebuilds field indexes
// (spec.md §4.3). It samples every currently-live fact.
func (s *Store) Optimize() []string {
	s.mu.RLock()
	samples := make(map[string][]indexer.FieldSample)
	for id, f := range s.facts {
		for field, value := range f.Fields {
			samples[field] = append(samples[field], indexer.FieldSample{Value: value, ID: id})
		}
	}
	s.mu.RUnlock()
	return s.indexes.Optimize(samples)
}

// Snapshot returns a stable, atomically-read Stats value.
func (s *Store) Snapshot() Stats {
	s.mu.RLock()
	count := len(s.facts)
	next := s.nextID
	s.mu.RUnlock()
	return Stats{
		FactCount:      count,
		NextID:         next,
		CacheHits:      s.cacheHits.Load(),
		CacheMisses:    s.cacheMisses.Load(),
		BloomNegatives: s.bloom.negativeShortCircuits(),
		Inserts:        s.inserts.Load(),
		Removes:        s.removes.Load(),
	}
}

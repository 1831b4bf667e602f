package indexer

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Backend is the storage-configuration recommendation a workload maps to
// (spec.md §4.4).
type Backend int

const (
	FastLookup Backend = iota
	MemoryEfficient
	Partitioned
	ReadOptimized
	WriteOptimized
)

func (b Backend) String() string {
	switch b {
	case FastLookup:
		return "fast_lookup"
	case MemoryEfficient:
		return "memory_efficient"
	case Partitioned:
		return "partitioned"
	case ReadOptimized:
		return "read_optimized"
	case WriteOptimized:
		return "write_optimized"
	default:
		return "unknown"
	}
}

// AccessPattern characterizes recent fact-id access locality.
type AccessPattern int

const (
	Recency AccessPattern = iota
	Random
	Historical
	Clustered
	Sequential
)

// Workload is the observed characteristics driving backend recommendation.
type Workload struct {
	FactCount      int
	MemoryBudget   int64
	ReadWriteRatio float64
	MissRate       float64
	GrowthRate     float64
	AccessPattern  AccessPattern
}

// BackendSelector recommends and migrates between backend configurations
// as workload characteristics drift (spec.md §4.4). It rate-limits
// adaptation by a minimum interval and a change threshold so noisy
// workloads don't thrash.
type BackendSelector struct {
	mu               sync.Mutex
	current          Backend
	lastWorkload     Workload
	lastAdaptedAt    time.Time
	minInterval      time.Duration
	recentAccesses   *lru.Cache[uint64, int] // id -> access order, used for pattern inference
	accessSeq        int
}

const (
	factCountChangeThreshold = 0.5
	memoryChangeThreshold    = 0.3
	rwRatioChangeThreshold   = 0.2
)

func NewBackendSelector(minInterval time.Duration) *BackendSelector {
	cache, _ := lru.New[uint64, int](4096)
	return &BackendSelector{
		current:        FastLookup,
		minInterval:    minInterval,
		recentAccesses: cache,
	}
}

// RecordAccess tracks a fact-id access for access-pattern inference.
func (s *BackendSelector) RecordAccess(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessSeq++
	s.recentAccesses.Add(id, s.accessSeq)
}

// InferAccessPattern derives the access pattern from the recently accessed
// ids: a high sequentiality ratio among consecutive accesses implies
// Sequential, a high recency ratio (repeated recent ids) implies Recency,
// tight numeric clustering implies Clustered, and otherwise Random or
// Historical based on how far access ids trail the max seen.
func (s *BackendSelector) InferAccessPattern() AccessPattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.recentAccesses.Keys()
	if len(keys) < 2 {
		return Random
	}

	sequential := 0
	clustered := 0
	var maxID, minID uint64
	maxID, minID = keys[0], keys[0]
	for i := 1; i < len(keys); i++ {
		diff := int64(keys[i]) - int64(keys[i-1])
		if diff == 1 || diff == -1 {
			sequential++
		}
		if diff > -8 && diff < 8 {
			clustered++
		}
		if keys[i] > maxID {
			maxID = keys[i]
		}
		if keys[i] < minID {
			minID = keys[i]
		}
	}
	n := len(keys) - 1
	sequentialRatio := float64(sequential) / float64(n)
	clusteredRatio := float64(clustered) / float64(n)

	recencyHits := 0
	for _, v := range s.recentAccesses.Values() {
		if v > s.accessSeq-len(keys) {
			recencyHits++
		}
	}
	recencyRatio := float64(recencyHits) / float64(len(keys))

	switch {
	case sequentialRatio > 0.6:
		return Sequential
	case recencyRatio > 0.7:
		return Recency
	case clusteredRatio > 0.5:
		return Clustered
	case maxID-minID > uint64(len(keys))*100:
		return Historical
	default:
		return Random
	}
}

// Recommend picks a Backend for the given workload without mutating state.
func Recommend(w Workload) Backend {
	switch {
	case w.ReadWriteRatio > 4 && w.AccessPattern == Recency:
		return ReadOptimized
	case w.ReadWriteRatio < 0.25:
		return WriteOptimized
	case w.MemoryBudget > 0 && int64(w.FactCount)*256 > w.MemoryBudget:
		return MemoryEfficient
	case w.AccessPattern == Clustered || w.AccessPattern == Sequential:
		return Partitioned
	default:
		return FastLookup
	}
}

// Adapt evaluates whether the workload has drifted enough, and often
// enough, to justify switching backends. It returns the backend in effect
// after the call and whether a migration occurred. Migration is all-or-
// nothing: Adapt never leaves partial state visible, mirroring spec.md
// §4.4's "no partial state is exposed".
func (s *BackendSelector) Adapt(now time.Time, w Workload) (Backend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastAdaptedAt.IsZero() && now.Sub(s.lastAdaptedAt) < s.minInterval {
		return s.current, false
	}

	if s.lastAdaptedAt.IsZero() {
		s.current = Recommend(w)
		s.lastWorkload = w
		s.lastAdaptedAt = now
		return s.current, true
	}

	if !s.crossedThreshold(w) {
		return s.current, false
	}

	recommended := Recommend(w)
	migrated := recommended != s.current
	s.current = recommended
	s.lastWorkload = w
	s.lastAdaptedAt = now
	return s.current, migrated
}

func (s *BackendSelector) crossedThreshold(w Workload) bool {
	prev := s.lastWorkload
	if relativeChange(float64(prev.FactCount), float64(w.FactCount)) > factCountChangeThreshold {
		return true
	}
	if relativeChange(float64(prev.MemoryBudget), float64(w.MemoryBudget)) > memoryChangeThreshold {
		return true
	}
	if absDiff(prev.ReadWriteRatio, w.ReadWriteRatio) > rwRatioChangeThreshold {
		return true
	}
	return false
}

func relativeChange(prev, next float64) float64 {
	if prev == 0 {
		if next == 0 {
			return 0
		}
		return 1
	}
	return absDiff(prev, next) / prev
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Current returns the backend currently in effect.
func (s *BackendSelector) Current() Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

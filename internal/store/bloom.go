package store

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// existenceFilter wraps bits-and-blooms BloomFilter with a mutex for writes;
// reads are safe concurrently with the underlying library's own locking
// model, the same division of labor as the pack's blocklist bloom adapter.
type existenceFilter struct {
	mu        sync.RWMutex
	bf        *bitsbloom.BloomFilter
	negatives uint64 // counts short-circuited negative lookups
}

// newExistenceFilter sizes a filter for expectedFacts items at the target
// false-positive rate (spec.md §4.2: "target FPR 1%").
func newExistenceFilter(expectedFacts uint, fpRate float64) *existenceFilter {
	if expectedFacts == 0 {
		expectedFacts = 1024
	}
	if fpRate <= 0 {
		fpRate = 0.01
	}
	return &existenceFilter{bf: bitsbloom.NewWithEstimates(expectedFacts, fpRate)}
}

func (f *existenceFilter) add(key []byte) {
	f.mu.Lock()
	f.bf.Add(key)
	f.mu.Unlock()
}

// mightContain returns false only when key is definitely absent, allowing
// callers to short-circuit a lookup that would otherwise miss.
func (f *existenceFilter) mightContain(key []byte) bool {
	present := f.bf.Test(key)
	if !present {
		f.mu.Lock()
		f.negatives++
		f.mu.Unlock()
	}
	return present
}

func (f *existenceFilter) negativeShortCircuits() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.negatives
}

package indexer

import (
	"sort"

	"github.com/rawblock/rete-engine/internal/factmodel"
)

// FieldIndex indexes the values of a single fact field so
// Store.FindByCriteria can intersect postings instead of scanning.
type FieldIndex interface {
	Add(value factmodel.Value, id factmodel.FactID)
	Remove(value factmodel.Value, id factmodel.FactID)
	// Lookup returns matching fact ids in ascending order.
	Lookup(value factmodel.Value) []factmodel.FactID
	Strategy() Strategy
	// Cardinality reports the number of distinct keys currently indexed,
	// used to re-evaluate the strategy during Optimize.
	Cardinality() int
}

func insertSorted(ids []factmodel.FactID, id factmodel.FactID) []factmodel.FactID {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return ids
	}
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

func removeSorted(ids []factmodel.FactID, id factmodel.FactID) []factmodel.FactID {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return append(ids[:i], ids[i+1:]...)
	}
	return ids
}

// highCardinalityIndex is a plain key -> sorted posting list, appropriate
// for fields whose values are mostly unique (spec.md §4.3 HighCardinality).
type highCardinalityIndex struct {
	postings map[string][]factmodel.FactID
}

func newHighCardinalityIndex() *highCardinalityIndex {
	return &highCardinalityIndex{postings: make(map[string][]factmodel.FactID)}
}

func (h *highCardinalityIndex) Add(value factmodel.Value, id factmodel.FactID) {
	k := value.ToKey()
	h.postings[k] = insertSorted(h.postings[k], id)
}

func (h *highCardinalityIndex) Remove(value factmodel.Value, id factmodel.FactID) {
	k := value.ToKey()
	if ids, ok := h.postings[k]; ok {
		h.postings[k] = removeSorted(ids, id)
		if len(h.postings[k]) == 0 {
			delete(h.postings, k)
		}
	}
}

func (h *highCardinalityIndex) Lookup(value factmodel.Value) []factmodel.FactID {
	return h.postings[value.ToKey()]
}

func (h *highCardinalityIndex) Strategy() Strategy { return HighCardinality }
func (h *highCardinalityIndex) Cardinality() int   { return len(h.postings) }

// lowCardinalityIndex keeps a bitset per distinct key, word-packed and
// sized to the highest fact id observed (spec.md §4.3 LowCardinality).
type lowCardinalityIndex struct {
	bitsets map[string]*bitset
	maxID   factmodel.FactID
}

func newLowCardinalityIndex() *lowCardinalityIndex {
	return &lowCardinalityIndex{bitsets: make(map[string]*bitset)}
}

func (l *lowCardinalityIndex) Add(value factmodel.Value, id factmodel.FactID) {
	k := value.ToKey()
	bs, ok := l.bitsets[k]
	if !ok {
		bs = newBitset()
		l.bitsets[k] = bs
	}
	bs.set(uint64(id))
	if id > l.maxID {
		l.maxID = id
	}
}

func (l *lowCardinalityIndex) Remove(value factmodel.Value, id factmodel.FactID) {
	if bs, ok := l.bitsets[value.ToKey()]; ok {
		bs.clear(uint64(id))
	}
}

func (l *lowCardinalityIndex) Lookup(value factmodel.Value) []factmodel.FactID {
	bs, ok := l.bitsets[value.ToKey()]
	if !ok {
		return nil
	}
	return bs.ids()
}

func (l *lowCardinalityIndex) Strategy() Strategy { return LowCardinality }
func (l *lowCardinalityIndex) Cardinality() int    { return len(l.bitsets) }

// bitset is a word-packed bitmap sized on demand as ids arrive.
type bitset struct {
	words []uint64
}

func newBitset() *bitset { return &bitset{} }

func (b *bitset) set(id uint64) {
	w := int(id / 64)
	for len(b.words) <= w {
		b.words = append(b.words, 0)
	}
	b.words[w] |= 1 << (id % 64)
}

func (b *bitset) clear(id uint64) {
	w := int(id / 64)
	if w >= len(b.words) {
		return
	}
	b.words[w] &^= 1 << (id % 64)
}

func (b *bitset) ids() []factmodel.FactID {
	var out []factmodel.FactID
	for w, word := range b.words {
		if word == 0 {
			continue
		}
		for bit := 0; bit < 64; bit++ {
			if word&(1<<uint(bit)) != 0 {
				out = append(out, factmodel.FactID(uint64(w)*64+uint64(bit)))
			}
		}
	}
	return out
}

// numericIndex is an ordered map (emulated with a sorted slice of buckets,
// merging ties) from numeric key to posting list (spec.md §4.3 Numeric).
type numericIndex struct {
	buckets []numericBucket
}

type numericBucket struct {
	key  float64
	ids  []factmodel.FactID
}

func newNumericIndex() *numericIndex { return &numericIndex{} }

func (n *numericIndex) find(key float64) int {
	return sort.Search(len(n.buckets), func(i int) bool { return n.buckets[i].key >= key })
}

func (n *numericIndex) Add(value factmodel.Value, id factmodel.FactID) {
	key, ok := value.ToNumeric()
	if !ok {
		return
	}
	i := n.find(key)
	if i < len(n.buckets) && n.buckets[i].key == key {
		n.buckets[i].ids = insertSorted(n.buckets[i].ids, id)
		return
	}
	n.buckets = append(n.buckets, numericBucket{})
	copy(n.buckets[i+1:], n.buckets[i:])
	n.buckets[i] = numericBucket{key: key, ids: []factmodel.FactID{id}}
}

func (n *numericIndex) Remove(value factmodel.Value, id factmodel.FactID) {
	key, ok := value.ToNumeric()
	if !ok {
		return
	}
	i := n.find(key)
	if i < len(n.buckets) && n.buckets[i].key == key {
		n.buckets[i].ids = removeSorted(n.buckets[i].ids, id)
		if len(n.buckets[i].ids) == 0 {
			n.buckets = append(n.buckets[:i], n.buckets[i+1:]...)
		}
	}
}

func (n *numericIndex) Lookup(value factmodel.Value) []factmodel.FactID {
	key, ok := value.ToNumeric()
	if !ok {
		return nil
	}
	i := n.find(key)
	if i < len(n.buckets) && n.buckets[i].key == key {
		return n.buckets[i].ids
	}
	return nil
}

// Range returns the union of postings whose key satisfies op against
// threshold, in ascending fact-id order. Used by alpha-memory range probes
// (spec.md §4.5).
func (n *numericIndex) Range(op string, threshold float64) []factmodel.FactID {
	var merged []factmodel.FactID
	for _, b := range n.buckets {
		match := false
		switch op {
		case "<":
			match = b.key < threshold
		case "<=":
			match = b.key <= threshold
		case ">":
			match = b.key > threshold
		case ">=":
			match = b.key >= threshold
		}
		if match {
			merged = mergeSorted(merged, b.ids)
		}
	}
	return merged
}

func mergeSorted(a, b []factmodel.FactID) []factmodel.FactID {
	out := make([]factmodel.FactID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func (n *numericIndex) Strategy() Strategy { return Numeric }
func (n *numericIndex) Cardinality() int   { return len(n.buckets) }

// hybridIndex pairs a primary high-cardinality index with a secondary map
// for alternate probes (spec.md §4.3 Hybrid).
type hybridIndex struct {
	primary   *highCardinalityIndex
	secondary map[string][]factmodel.FactID
}

func newHybridIndex() *hybridIndex {
	return &hybridIndex{primary: newHighCardinalityIndex(), secondary: make(map[string][]factmodel.FactID)}
}

func (h *hybridIndex) Add(value factmodel.Value, id factmodel.FactID) {
	h.primary.Add(value, id)
	k := value.ToKey()
	h.secondary[k] = insertSorted(h.secondary[k], id)
}

func (h *hybridIndex) Remove(value factmodel.Value, id factmodel.FactID) {
	h.primary.Remove(value, id)
	k := value.ToKey()
	if ids, ok := h.secondary[k]; ok {
		h.secondary[k] = removeSorted(ids, id)
		if len(h.secondary[k]) == 0 {
			delete(h.secondary, k)
		}
	}
}

func (h *hybridIndex) Lookup(value factmodel.Value) []factmodel.FactID {
	if ids := h.primary.Lookup(value); len(ids) > 0 {
		return ids
	}
	return h.secondary[value.ToKey()]
}

func (h *hybridIndex) Strategy() Strategy { return Hybrid }
func (h *hybridIndex) Cardinality() int   { return h.primary.Cardinality() }

// newFieldIndex constructs the FieldIndex implementation for a Strategy.
func newFieldIndex(s Strategy) FieldIndex {
	switch s {
	case LowCardinality:
		return newLowCardinalityIndex()
	case Numeric:
		return newNumericIndex()
	case Hybrid:
		return newHybridIndex()
	default:
		return newHighCardinalityIndex()
	}
}

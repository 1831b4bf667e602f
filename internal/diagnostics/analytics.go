package diagnostics

import "time"

// bucketWidth and retention implement spec.md §4.10's "5-minute buckets,
// 24h retention" analytics window.
const (
	bucketWidth = 5 * time.Minute
	retention   = 24 * time.Hour
)

// Bucket aggregates event counts for one bucketWidth-wide time window.
type Bucket struct {
	Start      time.Time
	TotalCount int
	BySeverity map[Severity]int
	ByType     map[EventType]int
}

// Analytics maintains rolling trend buckets and error-frequency counters
// over the event stream, evicting buckets older than retention.
type Analytics struct {
	buckets       map[time.Time]*Bucket
	errorsByType  map[EventType]int
	totalErrors   int
	totalObserved int
}

// NewAnalytics constructs an empty Analytics accumulator.
func NewAnalytics() *Analytics {
	return &Analytics{
		buckets:      make(map[time.Time]*Bucket),
		errorsByType: make(map[EventType]int),
	}
}

// Observe folds e into the current bucket and evicts stale buckets.
func (a *Analytics) Observe(e Event) {
	a.totalObserved++
	if e.Severity == SeverityError || e.Severity == SeverityWarn {
		a.totalErrors++
		a.errorsByType[e.Type]++
	}

	start := e.Timestamp.Truncate(bucketWidth)
	b, ok := a.buckets[start]
	if !ok {
		b = &Bucket{Start: start, BySeverity: make(map[Severity]int), ByType: make(map[EventType]int)}
		a.buckets[start] = b
	}
	b.TotalCount++
	b.BySeverity[e.Severity]++
	b.ByType[e.Type]++

	a.evict(e.Timestamp)
}

func (a *Analytics) evict(now time.Time) {
	cutoff := now.Add(-retention)
	for start := range a.buckets {
		if start.Before(cutoff) {
			delete(a.buckets, start)
		}
	}
}

// ErrorFrequency returns the fraction of observed events at warn/error
// severity, and the count broken down by event type.
func (a *Analytics) ErrorFrequency() (rate float64, byType map[EventType]int) {
	if a.totalObserved == 0 {
		return 0, map[EventType]int{}
	}
	byType = make(map[EventType]int, len(a.errorsByType))
	for k, v := range a.errorsByType {
		byType[k] = v
	}
	return float64(a.totalErrors) / float64(a.totalObserved), byType
}

// TrendBuckets returns the retained buckets ordered oldest to newest.
func (a *Analytics) TrendBuckets() []Bucket {
	out := make([]Bucket, 0, len(a.buckets))
	for _, b := range a.buckets {
		out = append(out, *b)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Start.Before(out[j-1].Start); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// DominantPattern returns the EventType with the highest count across all
// retained buckets — a minimal pattern-mining pass sufficient to surface
// "what's happening most" without a full frequent-itemset miner.
func (a *Analytics) DominantPattern() (EventType, int) {
	totals := make(map[EventType]int)
	for _, b := range a.buckets {
		for t, c := range b.ByType {
			totals[t] += c
		}
	}
	var best EventType
	bestCount := -1
	for t, c := range totals {
		if c > bestCount {
			best, bestCount = t, c
		}
	}
	if bestCount < 0 {
		bestCount = 0
	}
	return best, bestCount
}

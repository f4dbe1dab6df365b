// Package telemetry keeps in-memory query statistics for the status
// report. Nothing leaves the process.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one search as seen by the search service.
type QueryEvent struct {
	Query       string
	ResultCount int
	Latency     time.Duration
	Failed      bool
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer; capacity <= 0 means 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, b.size)
	if b.size < b.capacity {
		copy(out, b.items[:b.size])
		return out
	}
	copy(out, b.items[b.head:])
	copy(out[b.capacity-b.head:], b.items[:b.head])
	return out
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// ExtractTerms lower-cases query and keeps words of three or more bytes.
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	FailedQueries       int64                   `json:"failed_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ZeroResultQueries   []string                `json:"zero_result_queries,omitempty"`
	TopTerms            []TermCount             `json:"top_terms,omitempty"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Since               time.Time               `json:"since"`
}

// Config sizes the bounded collections.
type Config struct {
	TopTermsCapacity    int // default 100
	ZeroResultsCapacity int // default 50
}

// QueryMetrics collects query statistics. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	total       int64
	failed      int64
	zeroResults int64
	latencies   map[LatencyBucket]int64

	topTerms   *lru.Cache[string, int64]
	zeroRecent *CircularBuffer[string]
	since      time.Time
}

// NewQueryMetrics creates a collector.
func NewQueryMetrics(cfg Config) *QueryMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 50
	}
	terms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	return &QueryMetrics{
		latencies:  make(map[LatencyBucket]int64),
		topTerms:   terms,
		zeroRecent: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		since:      time.Now(),
	}
}

// Record adds one query. A nil receiver is a no-op.
func (m *QueryMetrics) Record(ev QueryEvent) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.latencies[LatencyToBucket(ev.Latency)]++
	if ev.Failed {
		m.failed++
		return
	}

	for _, term := range ExtractTerms(ev.Query) {
		n, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, n+1)
	}
	if ev.ResultCount == 0 {
		m.zeroResults++
		m.zeroRecent.Add(ev.Query)
	}
}

// Snapshot returns the current metrics with at most topN terms.
func (m *QueryMetrics) Snapshot(topN int) Snapshot {
	if m == nil {
		return Snapshot{LatencyDistribution: map[LatencyBucket]int64{}}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, k := range m.topTerms.Keys() {
		if n, ok := m.topTerms.Peek(k); ok {
			terms = append(terms, TermCount{Term: k, Count: n})
		}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if topN > 0 && len(terms) > topN {
		terms = terms[:topN]
	}

	lat := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		lat[k] = v
	}

	return Snapshot{
		TotalQueries:        m.total,
		FailedQueries:       m.failed,
		ZeroResultCount:     m.zeroResults,
		ZeroResultQueries:   m.zeroRecent.Items(),
		TopTerms:            terms,
		LatencyDistribution: lat,
		Since:               m.since,
	}
}

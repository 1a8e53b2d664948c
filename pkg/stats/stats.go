// Package stats implements the Statistics sink every protocol engine
// journals execute/commit events to: Prometheus counters for dashboards,
// a bounded in-memory journal.Ring for recent-event inspection, and a
// reservoir sample of commit latencies for percentile reporting without
// retaining every observation ever made.
package stats

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fluxledger/dcc/pkg/journal"
)

// sampleSize bounds the reservoir: large enough for stable percentiles
// on a long-running benchmark, small enough to stay O(1) memory.
const sampleSize = 1000

// Sink is the concrete Statistics implementation passed into
// sparkle.New/spectrum.New/aria.New. Safe for concurrent use: every
// counter is atomic or mutex-guarded, matching how the protocol engines
// call JournalExecute/JournalCommit from many worker goroutines at once.
type Sink struct {
	commits    atomic.Uint64
	executions atomic.Uint64

	mu       sync.Mutex
	rng      *rand.Rand
	sample   [sampleSize]int64
	filled   int
	ring     *journal.Ring
	registry *registry
}

// New builds a Sink backed by a journal ring of the given capacity and
// registers its Prometheus collectors. Protocol is used as a constant
// label so multiple engines (e.g. sparkle and spectrum run side by side
// in a comparison benchmark) can share one process's metrics registry.
func New(protocol string, journalCapacity int) *Sink {
	return &Sink{
		rng:      rand.New(rand.NewSource(1)),
		ring:     journal.NewRing(journalCapacity),
		registry: newRegistry(protocol),
	}
}

// JournalExecute records one transaction execution attempt.
func (s *Sink) JournalExecute() {
	s.executions.Add(1)
	s.registry.executionsTotal.Inc()
}

// JournalCommit records one committed transaction and its latency,
// reservoir-sampling the latency for later percentile reporting.
func (s *Sink) JournalCommit(latencyMicros int64) {
	n := s.commits.Add(1)
	s.ring.AppendLatency(n, latencyMicros)
	s.registry.commitsTotal.Inc()
	s.registry.commitLatencySeconds.Observe(float64(latencyMicros) / 1e6)
	s.sampleLatency(int(n-1), latencyMicros)
}

// sampleLatency implements reservoir sampling (algorithm R): the first
// sampleSize observations always enter the reservoir; afterwards,
// observation i replaces a uniformly random existing slot with
// probability sampleSize/i, keeping every observation equally likely to
// survive regardless of how many more arrive later.
func (s *Sink) sampleLatency(index int, latencyMicros int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < sampleSize {
		s.sample[index] = latencyMicros
		if s.filled <= index {
			s.filled = index + 1
		}
		return
	}
	j := s.rng.Intn(index + 1)
	if j < sampleSize {
		s.sample[j] = latencyMicros
	}
}

// Percentiles reports commit-latency percentiles (in microseconds) over
// the current reservoir sample, sorted ascending. Empty until the first
// commit is journaled.
type Percentiles struct {
	P50, P75, P95, P99 int64
}

func (s *Sink) Percentiles() Percentiles {
	s.mu.Lock()
	sorted := append([]int64(nil), s.sample[:s.filled]...)
	s.mu.Unlock()
	if len(sorted) == 0 {
		return Percentiles{}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	at := func(p int) int64 {
		idx := p * len(sorted) / 100
		if idx >= len(sorted) {
			idx = len(sorted) - 1
		}
		return sorted[idx]
	}
	return Percentiles{P50: at(50), P75: at(75), P95: at(95), P99: at(99)}
}

// Commits and Executions return the running totals.
func (s *Sink) Commits() uint64    { return s.commits.Load() }
func (s *Sink) Executions() uint64 { return s.executions.Load() }

// Recent returns the journal's currently retained records, oldest first.
func (s *Sink) Recent() []journal.Record { return s.ring.Snapshot() }

// String renders a human-readable summary, in the spirit of the
// original protocol prototype's own Statistics::Print.
func (s *Sink) String() string {
	p := s.Percentiles()
	return fmt.Sprintf(
		"commits %d\nexecutions %d\nlatency(p50) %dus\nlatency(p75) %dus\nlatency(p95) %dus\nlatency(p99) %dus\n",
		s.Commits(), s.Executions(), p.P50, p.P75, p.P95, p.P99,
	)
}

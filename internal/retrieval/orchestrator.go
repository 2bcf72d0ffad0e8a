// Package retrieval implements C5: given an endpoint and request/user
// shapes, it fingerprints the query, consults the cache, selects
// partitions via C4, fans out parallel searches against the knowledge-base
// collaborator, merges the results, and formats a context blob — caching
// the whole blob by fingerprint.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fitcore/aigateway/internal/cachemgr"
	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/namespace"
)

const chunkDelimiter = "\n---\n"

// FanoutBudget is the overall deadline for a retrieval fan-out (§5).
const FanoutBudget = 2 * time.Second

// PartitionTimeout bounds a single partition query within the fan-out
// budget (§5).
const PartitionTimeout = 1500 * time.Millisecond

// ContextBlob is the formatted, cacheable result of a retrieval.
type ContextBlob struct {
	Text       string
	Partitions []string
	ChunkCount int
	Degraded   bool
}

// Result is the structured, unformatted variant returned by GetChunks.
type Result struct {
	Chunks     []collaborators.Chunk
	Partitions []string
	Degraded   bool
}

// partitionErrorCounter lets the monitoring surface observe per-partition
// query/error counts without this package importing monitoring.
type partitionErrorCounter interface {
	ObserveQuery(partition string, err error, latency time.Duration)
}

// Orchestrator implements C5.
type Orchestrator struct {
	cache        *cachemgr.Manager
	selector     *namespace.Selector
	search       collaborators.SearchIndex
	counters     partitionErrorCounter
	fanoutBudget time.Duration
	kbVersion    func() int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPartitionCounters wires telemetry into the orchestrator's fan-out.
func WithPartitionCounters(c partitionErrorCounter) Option {
	return func(o *Orchestrator) { o.counters = c }
}

// WithFanoutBudget overrides the default 2s fan-out deadline (§5).
func WithFanoutBudget(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.fanoutBudget = d
		}
	}
}

// WithKnowledgeBaseVersion folds a version source into every retrieval
// cache key, so a single bump (C7's knowledge_base_updated event) makes
// every previously cached blob unreachable without a scan.
func WithKnowledgeBaseVersion(version func() int64) Option {
	return func(o *Orchestrator) { o.kbVersion = version }
}

// New builds an Orchestrator.
func New(cache *cachemgr.Manager, selector *namespace.Selector, search collaborators.SearchIndex, opts ...Option) *Orchestrator {
	o := &Orchestrator{cache: cache, selector: selector, search: search, fanoutBudget: FanoutBudget}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GetContextParams bundles GetContext's inputs.
type GetContextParams struct {
	Endpoint   string
	Query      string
	Request    namespace.RequestShape
	User       namespace.UserShape
	MaxChunks  int
	UseCache   bool
	TTL        time.Duration
}

// GetContext implements §4.5's get_context operation.
func (o *Orchestrator) GetContext(ctx context.Context, p GetContextParams) (ContextBlob, error) {
	fp := Fingerprint(p.Endpoint, p.Query, p.Request, p.User)
	cacheKey := fmt.Sprintf("%s:%s", p.Endpoint, fp)
	if o.kbVersion != nil {
		cacheKey = fmt.Sprintf("v%d:%s", o.kbVersion(), cacheKey)
	}

	if p.UseCache {
		if cached, err := o.cache.RetrievalContext.Get(ctx, cacheKey); err == nil {
			blob, ok := decodeBlob(cached)
			if ok {
				return blob, nil
			}
			// CacheCorruption (§7.6): treat as miss, delete, rebuild.
			_ = o.cache.RetrievalContext.Delete(ctx, cacheKey)
		}
	}

	result := o.fanoutAndMerge(ctx, p)
	blob := format(result, p.MaxChunks)

	if p.UseCache && !blob.Degraded {
		if encoded, ok := encodeBlob(blob); ok {
			_ = o.cache.RetrievalContext.Set(ctx, cacheKey, encoded, p.TTL)
		}
	}
	return blob, nil
}

// GetChunks implements the structured variant for callers that synthesize
// their own prompts.
func (o *Orchestrator) GetChunks(ctx context.Context, p GetContextParams) (Result, error) {
	return o.fanoutAndMerge(ctx, p), nil
}

type partitionOutcome struct {
	partition string
	chunks    []collaborators.Chunk
	err       error
}

func (o *Orchestrator) fanoutAndMerge(ctx context.Context, p GetContextParams) Result {
	partitions := o.selector.Select(p.Endpoint, p.Request, p.User)
	if len(partitions) == 0 || p.MaxChunks == 0 {
		return Result{Partitions: partitions}
	}

	fanoutCtx, cancel := context.WithTimeout(ctx, o.fanoutBudget)
	defer cancel()

	outcomes := make(chan partitionOutcome, len(partitions))
	var wg sync.WaitGroup
	for _, part := range partitions {
		wg.Add(1)
		go func(partition string) {
			defer wg.Done()
			o.queryOne(fanoutCtx, partition, p.Query, p.MaxChunks, outcomes)
		}(part)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	byPartition := make(map[string][]collaborators.Chunk, len(partitions))
	successCount := 0
	for oc := range outcomes {
		if oc.err != nil {
			continue
		}
		successCount++
		byPartition[oc.partition] = oc.chunks
	}

	degraded := successCount < len(partitions)
	if successCount == 0 {
		return Result{Partitions: partitions, Degraded: true}
	}

	// Order per-partition chunk lists by the selector's own partition
	// order, not channel-arrival order, so round-robin interleaving is
	// deterministic across runs.
	ordered := make([][]collaborators.Chunk, 0, len(partitions))
	for _, part := range partitions {
		if chunks, ok := byPartition[part]; ok {
			ordered = append(ordered, chunks)
		}
	}

	merged := merge(ordered, p.MaxChunks, o.search.ScoreComparable())
	return Result{Chunks: merged, Partitions: partitions, Degraded: degraded}
}

func (o *Orchestrator) queryOne(ctx context.Context, partition, query string, k int, out chan<- partitionOutcome) {
	start := time.Now()
	partCtx, cancel := context.WithTimeout(ctx, PartitionTimeout)
	defer cancel()

	chunks, err := o.search.Query(partCtx, partition, query, k)
	if o.counters != nil {
		o.counters.ObserveQuery(partition, err, time.Since(start))
	}
	out <- partitionOutcome{partition: partition, chunks: chunks, err: err}
}

// merge deduplicates by chunk ID and selects the top max ranked by score.
// If per-partition scores aren't comparable, it interleaves by rank
// position round-robin across partitions instead of trusting the score
// field (§4.5).
func merge(byPartition [][]collaborators.Chunk, max int, scoreComparable bool) []collaborators.Chunk {
	var ordered []collaborators.Chunk
	if scoreComparable {
		for _, chunks := range byPartition {
			ordered = append(ordered, chunks...)
		}
		ordered = dedup(ordered)
		sortByScoreDesc(ordered)
	} else {
		ordered = dedup(interleaveRoundRobin(byPartition))
	}

	if max > 0 && len(ordered) > max {
		ordered = ordered[:max]
	}
	return ordered
}

// interleaveRoundRobin takes one chunk from each partition in turn,
// advancing through each partition's own rank order, until every
// partition is exhausted.
func interleaveRoundRobin(byPartition [][]collaborators.Chunk) []collaborators.Chunk {
	var out []collaborators.Chunk
	for rank := 0; ; rank++ {
		added := false
		for _, chunks := range byPartition {
			if rank < len(chunks) {
				out = append(out, chunks[rank])
				added = true
			}
		}
		if !added {
			return out
		}
	}
}

func dedup(chunks []collaborators.Chunk) []collaborators.Chunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]collaborators.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

func sortByScoreDesc(chunks []collaborators.Chunk) {
	for i := 1; i < len(chunks); i++ {
		for j := i; j > 0 && chunks[j].Score > chunks[j-1].Score; j-- {
			chunks[j], chunks[j-1] = chunks[j-1], chunks[j]
		}
	}
}

func format(r Result, max int) ContextBlob {
	count := len(r.Chunks)
	if max > 0 && count > max {
		count = max
		r.Chunks = r.Chunks[:max]
	}

	header := fmt.Sprintf("partitions: %s | chunks: %d", strings.Join(r.Partitions, ","), count)
	if count == 0 {
		return ContextBlob{Text: header, Partitions: r.Partitions, ChunkCount: 0, Degraded: r.Degraded}
	}

	parts := make([]string, 0, count+1)
	parts = append(parts, header)
	for _, c := range r.Chunks {
		parts = append(parts, c.Text)
	}
	return ContextBlob{
		Text:       strings.Join(parts, chunkDelimiter),
		Partitions: r.Partitions,
		ChunkCount: count,
		Degraded:   r.Degraded,
	}
}

package kv

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

const shardCount = 32

type entry struct {
	value    []byte
	expireAt time.Time // zero means no expiry
}

type zsetEntry struct {
	scores   map[string]float64
	expireAt time.Time
}

type shard struct {
	mu    sync.Mutex
	items map[string]entry
	zsets map[string]*zsetEntry
}

// InMemoryStore is a RawStore backed by sharded, mutex-protected maps with
// a background sweep evicting expired entries. It never fails a well-formed
// call; it exists for local development, tests, and as the degrade target
// when no remote store is configured.
type InMemoryStore struct {
	shards [shardCount]*shard
	stop   chan struct{}
	once   sync.Once
}

// NewInMemoryStore starts an InMemoryStore with a background sweep running
// every interval. Call Close to stop the sweep goroutine.
func NewInMemoryStore(sweepInterval time.Duration) *InMemoryStore {
	s := &InMemoryStore{stop: make(chan struct{})}
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[string]entry), zsets: make(map[string]*zsetEntry)}
	}
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	go s.sweepLoop(sweepInterval)
	return s
}

func (s *InMemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *InMemoryStore) sweepLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			s.sweep(now)
		}
	}
}

func (s *InMemoryStore) sweep(now time.Time) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, e := range sh.items {
			if !e.expireAt.IsZero() && now.After(e.expireAt) {
				delete(sh.items, k)
			}
		}
		for k, z := range sh.zsets {
			if !z.expireAt.IsZero() && now.After(z.expireAt) {
				delete(sh.zsets, k)
			}
		}
		sh.mu.Unlock()
	}
}

func (s *InMemoryStore) shardFor(key string) *shard {
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return s.shards[h%shardCount]
}

func (s *InMemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expireAt.IsZero() && time.Now().After(e.expireAt) {
		delete(sh.items, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *InMemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	sh := s.shardFor(key)
	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}
	sh.mu.Lock()
	sh.items[key] = entry{value: append([]byte(nil), value...), expireAt: expireAt}
	sh.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.items, key)
	delete(sh.zsets, key)
	sh.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Incr(_ context.Context, key string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.items[key]
	var cur int64
	if ok && (e.expireAt.IsZero() || time.Now().Before(e.expireAt)) {
		cur, _ = strconv.ParseInt(string(e.value), 10, 64)
	}
	cur++
	sh.items[key] = entry{value: []byte(strconv.FormatInt(cur, 10)), expireAt: e.expireAt}
	return cur, nil
}

func (s *InMemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.items[key]
	if !ok {
		return nil
	}
	e.expireAt = time.Now().Add(ttl)
	sh.items[key] = e
	return nil
}

func (s *InMemoryStore) GetInt(ctx context.Context, key string) (int64, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return 0, nil
	}
	n, _ := strconv.ParseInt(string(v), 10, 64)
	return n, nil
}

func (s *InMemoryStore) ZAdd(_ context.Context, key, member string, score float64) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	z, ok := sh.zsets[key]
	if !ok {
		z = &zsetEntry{scores: make(map[string]float64)}
		sh.zsets[key] = z
	}
	z.scores[member] = score
	return nil
}

func (s *InMemoryStore) ZRange(_ context.Context, key string, min, max float64) ([]ScoredMember, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	z, ok := sh.zsets[key]
	if !ok {
		return nil, nil
	}
	out := make([]ScoredMember, 0, len(z.scores))
	for m, sc := range z.scores {
		if sc >= min && sc <= max {
			out = append(out, ScoredMember{Member: m, Score: sc})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	return out, nil
}

var _ RawStore = (*InMemoryStore)(nil)

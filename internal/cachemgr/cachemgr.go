// Package cachemgr implements C3: typed façades over the KV store for the
// three cache families (user-context, retrieval-context, model-response),
// each with its own key scheme and TTL, plus a request coalescer that
// collapses concurrent get_or_set calls for the same key into one producer
// invocation. Coalescing is a cost optimization, not a correctness
// mechanism — get_or_set itself is not atomic across processes, and
// producers must be idempotent.
package cachemgr

import (
	"context"
	"fmt"
	"time"

	"github.com/fitcore/aigateway/internal/kv"
)

// Family groups related Get/Set/Delete/GetOrSet calls under one key prefix
// and default TTL.
type Family struct {
	prefix     string
	defaultTTL time.Duration
	store      kv.Store
	coalescer  *RequestCoalescer
	onHit      func()
	onMiss     func()
	onSet      func()
	onDelete   func()
}

// Hooks lets the monitoring surface observe per-family cache events without
// the cache manager importing the monitoring package.
type Hooks struct {
	OnHit    func()
	OnMiss   func()
	OnSet    func()
	OnDelete func()
}

func newFamily(store kv.Store, prefix string, defaultTTL time.Duration, h Hooks) *Family {
	noop := func() {}
	f := &Family{
		prefix:     prefix,
		defaultTTL: defaultTTL,
		store:      store,
		coalescer:  NewRequestCoalescer(),
		onHit:      noop, onMiss: noop, onSet: noop, onDelete: noop,
	}
	if h.OnHit != nil {
		f.onHit = h.OnHit
	}
	if h.OnMiss != nil {
		f.onMiss = h.OnMiss
	}
	if h.OnSet != nil {
		f.onSet = h.OnSet
	}
	if h.OnDelete != nil {
		f.onDelete = h.OnDelete
	}
	return f
}

func (f *Family) key(id string) string {
	return fmt.Sprintf("%s%s", f.prefix, id)
}

// Get returns the cached value, or kv.ErrNotFound on miss.
func (f *Family) Get(ctx context.Context, id string) ([]byte, error) {
	v, err := f.store.Get(ctx, f.key(id))
	if err != nil {
		f.onMiss()
		return nil, err
	}
	f.onHit()
	return v, nil
}

// Set writes the value with ttl, or the family default if ttl <= 0.
func (f *Family) Set(ctx context.Context, id string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = f.defaultTTL
	}
	err := f.store.Set(ctx, f.key(id), value, ttl)
	f.onSet()
	return err
}

// Delete removes the cached value for id.
func (f *Family) Delete(ctx context.Context, id string) error {
	err := f.store.Delete(ctx, f.key(id))
	f.onDelete()
	return err
}

// Producer builds the value to cache on a miss.
type Producer func(ctx context.Context) ([]byte, error)

// GetOrSet returns the cached value on hit; on miss it coalesces concurrent
// callers for the same id, invokes producer once per coalesced group,
// caches the result, and returns it. Not atomic across processes: under
// cache stampede from multiple processes the producer may still run more
// than once. This is acceptable because producers are idempotent.
func (f *Family) GetOrSet(ctx context.Context, id string, ttl time.Duration, producer Producer) ([]byte, error) {
	if v, err := f.Get(ctx, id); err == nil {
		return v, nil
	}
	v, err := f.coalescer.Do(f.key(id), func() ([]byte, error) {
		produced, perr := producer(ctx)
		if perr != nil {
			return nil, perr
		}
		_ = f.Set(ctx, id, produced, ttl)
		return produced, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Manager composes the three cache families behind one construction point.
// Key prefixes are reserved per family so families never collide.
type Manager struct {
	UserContext      *Family
	RetrievalContext *Family
	ModelResponse    *Family
}

const (
	userContextPrefix      = "user_context:"
	retrievalContextPrefix = "rag:context:"
	modelResponsePrefix    = "ai:response:"
)

// New builds a Manager. hooks may be the zero value if no family needs
// telemetry callbacks wired in.
func New(store kv.Store, userTTL, retrievalTTL, modelTTL time.Duration, hooks map[string]Hooks) *Manager {
	return &Manager{
		UserContext:      newFamily(store, userContextPrefix, userTTL, hooks["user_context"]),
		RetrievalContext: newFamily(store, retrievalContextPrefix, retrievalTTL, hooks["retrieval_context"]),
		ModelResponse:    newFamily(store, modelResponsePrefix, modelTTL, hooks["model_response"]),
	}
}

// InvalidateUserContext deletes the cached profile for subject. Used by C7.
func (m *Manager) InvalidateUserContext(ctx context.Context, subject string) error {
	return m.UserContext.Delete(ctx, subject)
}

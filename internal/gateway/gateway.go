// Package gateway implements C9: the composition root that wires C1–C8
// into a single façade handlers depend on. There are no package-level
// globals or init()-constructed singletons — every dependency is
// constructed explicitly in New and threaded through the Gateway value.
package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fitcore/aigateway/internal/admission"
	"github.com/fitcore/aigateway/internal/cachemgr"
	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/config"
	"github.com/fitcore/aigateway/internal/invalidation"
	"github.com/fitcore/aigateway/internal/kv"
	"github.com/fitcore/aigateway/internal/logging"
	"github.com/fitcore/aigateway/internal/monitoring"
	"github.com/fitcore/aigateway/internal/namespace"
	"github.com/fitcore/aigateway/internal/ratelimit"
	"github.com/fitcore/aigateway/internal/retrieval"
)

// Collaborators bundles the external interfaces the gateway consumes,
// supplied by the caller at construction time.
type Collaborators struct {
	TokenVerifier collaborators.TokenVerifier
	SearchIndex   collaborators.SearchIndex
	Clock         collaborators.Clock
	Store         kv.RawStore // nil uses an in-memory store
	Logger        *logging.Logger // nil disables admission's correlation-scoped request logging
}

// Gateway is the constructed façade: admission, cache, retrieval,
// invalidation, and monitoring wired together over one KV adapter.
type Gateway struct {
	cfg         config.Config
	store       *kv.FailOpen
	limiter     *ratelimit.Limiter
	cache       *cachemgr.Manager
	selector    *namespace.Selector
	retrieval   *retrieval.Orchestrator
	admission   *admission.Middleware
	invalidation *invalidation.Coordinator
	monitoring  *monitoring.Surface
	memStore    *kv.InMemoryStore // non-nil only when no RawStore was supplied, for Close
}

// New constructs C1–C8 from cfg and deps and returns the composed façade.
func New(cfg config.Config, deps Collaborators) (*Gateway, error) {
	if deps.SearchIndex == nil {
		return nil, fmt.Errorf("gateway: SearchIndex collaborator is required")
	}

	var raw kv.RawStore
	var memStore *kv.InMemoryStore
	if deps.Store != nil {
		raw = deps.Store
	} else {
		memStore = kv.NewInMemoryStore(30 * time.Second)
		raw = memStore
	}
	store := kv.NewFailOpen(raw)

	monSurface := monitoring.New(store, deps.Clock)

	limiter := ratelimit.New(store, cfg.Quotas, deps.Clock, monSurface.ObserveFailOpen)

	hooks := map[string]cachemgr.Hooks{
		"user_context":      monSurface.CacheHooks("user_context"),
		"retrieval_context": monSurface.CacheHooks("retrieval_context"),
		"model_response":    monSurface.CacheHooks("model_response"),
	}
	cache := cachemgr.New(store, cfg.Cache.UserContextTTL, cfg.Cache.RetrievalContextTTL, cfg.Cache.ModelResponseTTL, hooks)

	invalidator := invalidation.New(cache, monSurface.ObserveInvalidationFailure)

	selector := namespace.New(namespace.DefaultRuleset())
	orchestrator := retrieval.New(cache, selector, deps.SearchIndex,
		retrieval.WithPartitionCounters(monSurface),
		retrieval.WithFanoutBudget(cfg.Retrieval.FanoutBudget),
		retrieval.WithKnowledgeBaseVersion(invalidator.RetrievalContextVersion),
	)

	var mw *admission.Middleware
	if cfg.Admission.Enabled {
		mw = admission.New(deps.TokenVerifier, limiter, admission.DefaultClassifier(), monSurface, deps.Logger)
	}

	return &Gateway{
		cfg:          cfg,
		store:        store,
		limiter:      limiter,
		cache:        cache,
		selector:     selector,
		retrieval:    orchestrator,
		admission:    mw,
		invalidation: invalidator,
		monitoring:   monSurface,
		memStore:     memStore,
	}, nil
}

// Close releases resources owned by the gateway (the in-memory store's
// sweep goroutine, if one was created).
func (g *Gateway) Close() {
	if g.memStore != nil {
		g.memStore.Close()
	}
}

// Admission returns the admission middleware, or nil if admission is
// disabled via config.
func (g *Gateway) Admission() *admission.Middleware { return g.admission }

// Cache exposes C3 to handlers.
func (g *Gateway) Cache() *cachemgr.Manager { return g.cache }

// Retrieval exposes C5 to handlers.
func (g *Gateway) Retrieval() *retrieval.Orchestrator { return g.retrieval }

// Invalidation exposes C7 to handlers.
func (g *Gateway) Invalidation() *invalidation.Coordinator { return g.invalidation }

// Monitoring exposes C8's HTTP handlers and snapshot.
func (g *Gateway) Monitoring() *monitoring.Surface { return g.monitoring }

// RateLimiter exposes C2 directly, for handlers that need status/reset
// outside the admission middleware (e.g. an admin endpoint).
func (g *Gateway) RateLimiter() *ratelimit.Limiter { return g.limiter }

// GetUserContext is the handler-facing cache.get -> SQL.get_profile ->
// cache.set orchestration for the user-context family (§2's documented
// flow), kept out of C3 itself per §9's dependency-inversion note: the
// cache manager knows nothing about builders.
func (g *Gateway) GetUserContext(ctx context.Context, subject string, sql collaborators.SQLClient) ([]byte, error) {
	return g.cache.UserContext.GetOrSet(ctx, subject, 0, func(ctx context.Context) ([]byte, error) {
		v, err := sql.GetProfile(ctx, subject)
		if err != nil {
			if reqLogger, ok := admission.LoggerFromContext(ctx); ok {
				reqLogger.Error("user context build failed", zap.String("subject", subject), zap.Error(err))
			}
		}
		return v, err
	})
}

package monitoring

import "github.com/fitcore/aigateway/internal/cachemgr"

// CacheHooks builds cachemgr.Hooks wired to this surface for one family
// name ("user_context", "retrieval_context", "model_response").
func (s *Surface) CacheHooks(family string) cachemgr.Hooks {
	h := cacheHookSet{surface: s, family: family}
	return cachemgr.Hooks{
		OnHit:    h.OnHit,
		OnMiss:   h.OnMiss,
		OnSet:    h.OnSet,
		OnDelete: h.OnDelete,
	}
}

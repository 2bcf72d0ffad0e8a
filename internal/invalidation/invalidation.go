// Package invalidation implements C7: named state-change events mapping
// to targeted cache deletions in C3. Invalidation is fire-and-forget from
// the triggering handler's perspective in the sense that failures never
// block it, but the delete itself is awaited synchronously — no
// fire-and-forget goroutine, to avoid lost-invalidation bugs.
package invalidation

import (
	"context"
	"fmt"

	"github.com/fitcore/aigateway/internal/cachemgr"
)

// FailureHook is invoked when a delete returns an error, for C8 telemetry.
// The error is logged at the call site; this hook exists purely for
// counters.
type FailureHook func(event string, err error)

// Coordinator implements C7 against a cache Manager. It holds no
// dependency on whatever builds cached values — handlers own that
// orchestration; the coordinator only knows cache keys.
type Coordinator struct {
	cache       *cachemgr.Manager
	onFailure   FailureHook
	kbVersion   *versionCounter
}

// New builds a Coordinator. onFailure may be nil.
func New(cache *cachemgr.Manager, onFailure FailureHook) *Coordinator {
	return &Coordinator{cache: cache, onFailure: onFailure, kbVersion: newVersionCounter()}
}

func (c *Coordinator) fail(event string, err error) {
	if err != nil && c.onFailure != nil {
		c.onFailure(event, err)
	}
}

// WorkoutLogged invalidates the cached profile after a workout log
// mutation. Idempotent: calling it twice has the same observable effect as
// calling it once.
func (c *Coordinator) WorkoutLogged(ctx context.Context, subject string) {
	c.fail("workout_logged", c.cache.InvalidateUserContext(ctx, subject))
}

// InjuryLogged invalidates the cached profile after an injury log mutation.
func (c *Coordinator) InjuryLogged(ctx context.Context, subject string) {
	c.fail("injury_logged", c.cache.InvalidateUserContext(ctx, subject))
}

// ProgramGenerated invalidates the cached profile after a program mutation.
func (c *Coordinator) ProgramGenerated(ctx context.Context, subject string) {
	c.fail("program_generated", c.cache.InvalidateUserContext(ctx, subject))
}

// ProfileUpdated invalidates the cached profile after a direct profile
// mutation.
func (c *Coordinator) ProfileUpdated(ctx context.Context, subject string) {
	c.fail("profile_updated", c.cache.InvalidateUserContext(ctx, subject))
}

// KnowledgeBaseUpdated invalidates all cached retrieval contexts. Rather
// than scanning and deleting every rag:context:* key, it bumps a version
// counter folded into the retrieval-context cache key prefix by callers
// (see RetrievalContextKeyPrefix), making every previously cached blob
// unreachable in O(1) instead of O(namespace count).
func (c *Coordinator) KnowledgeBaseUpdated(ctx context.Context) {
	c.kbVersion.bump()
}

// RetrievalContextVersion returns the current knowledge-base version,
// which callers fold into their retrieval-context cache keys so a
// KnowledgeBaseUpdated call invalidates every existing entry without a
// scan.
func (c *Coordinator) RetrievalContextVersion() int64 {
	return c.kbVersion.get()
}

// RetrievalContextKeyPrefix returns the version-scoped prefix callers
// should fold into their fingerprint-based cache key, e.g.
// fmt.Sprintf("%s:%s", coordinator.RetrievalContextKeyPrefix(), fingerprint).
func (c *Coordinator) RetrievalContextKeyPrefix() string {
	return fmt.Sprintf("v%d", c.kbVersion.get())
}

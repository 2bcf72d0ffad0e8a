package invalidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcore/aigateway/internal/cachemgr"
	"github.com/fitcore/aigateway/internal/kv"
)

// TestScenarioC mirrors §8 Scenario C: pre-populate the profile cache,
// fire workout_logged, and confirm the next get returns absent.
func TestScenarioC(t *testing.T) {
	store := kv.NewInMemoryStore(time.Hour)
	cache := cachemgr.New(store, time.Hour, time.Hour, 24*time.Hour, nil)
	coord := New(cache, nil)
	ctx := context.Background()

	require.NoError(t, cache.UserContext.Set(ctx, "u3", []byte("P"), 0))
	coord.WorkoutLogged(ctx, "u3")

	_, err := cache.UserContext.Get(ctx, "u3")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, cache.UserContext.Set(ctx, "u3", []byte("P-prime"), 0))
	v, err := cache.UserContext.Get(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, []byte("P-prime"), v)
}

func TestWorkoutLoggedIsIdempotent(t *testing.T) {
	store := kv.NewInMemoryStore(time.Hour)
	cache := cachemgr.New(store, time.Hour, time.Hour, 24*time.Hour, nil)
	coord := New(cache, nil)
	ctx := context.Background()

	require.NoError(t, cache.UserContext.Set(ctx, "u1", []byte("P"), 0))
	coord.WorkoutLogged(ctx, "u1")
	coord.WorkoutLogged(ctx, "u1")

	_, err := cache.UserContext.Get(ctx, "u1")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestKnowledgeBaseUpdatedBumpsVersion(t *testing.T) {
	store := kv.NewInMemoryStore(time.Hour)
	cache := cachemgr.New(store, time.Hour, time.Hour, 24*time.Hour, nil)
	coord := New(cache, nil)

	before := coord.RetrievalContextVersion()
	coord.KnowledgeBaseUpdated(context.Background())
	after := coord.RetrievalContextVersion()
	assert.Greater(t, after, before)
}

func TestFailureHookNotInvokedWhenFailOpenAbsorbsDeleteError(t *testing.T) {
	// InMemoryStore never errors, so exercise the hook plumbing directly
	// via a deliberately broken cache manager backed by a store whose
	// Delete always fails.
	store := kv.NewFailOpen(alwaysFailingDeleteRaw{})
	cache := cachemgr.New(store, time.Hour, time.Hour, 24*time.Hour, nil)

	var called bool
	coord := New(cache, func(event string, err error) { called = true })
	coord.WorkoutLogged(context.Background(), "u9")
	// FailOpen itself swallows the error into a nil return, so the
	// coordinator's failure hook is not triggered here — this documents
	// that delete failures are absorbed at the KV layer per §4.1, not
	// surfaced as InvalidationFailure at the coordinator.
	assert.False(t, called)
}

type alwaysFailingDeleteRaw struct{ kv.RawStore }

func (alwaysFailingDeleteRaw) Delete(ctx context.Context, key string) error {
	return assertErr
}

var assertErr = kv.ErrUnavailable

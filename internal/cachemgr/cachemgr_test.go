package cachemgr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcore/aigateway/internal/kv"
)

func newTestManager() *Manager {
	store := kv.NewInMemoryStore(time.Hour)
	return New(store, time.Hour, time.Hour, 24*time.Hour, nil)
}

func TestSetThenGetRoundTrips(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	require.NoError(t, m.UserContext.Set(ctx, "u1", []byte("profile-blob"), 0))

	v, err := m.UserContext.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("profile-blob"), v)
}

func TestFamilyPrefixesDoNotCollide(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	require.NoError(t, m.UserContext.Set(ctx, "x", []byte("a"), 0))
	require.NoError(t, m.RetrievalContext.Set(ctx, "x", []byte("b"), 0))
	require.NoError(t, m.ModelResponse.Set(ctx, "x", []byte("c"), 0))

	uv, _ := m.UserContext.Get(ctx, "x")
	rv, _ := m.RetrievalContext.Get(ctx, "x")
	mv, _ := m.ModelResponse.Get(ctx, "x")
	assert.Equal(t, []byte("a"), uv)
	assert.Equal(t, []byte("b"), rv)
	assert.Equal(t, []byte("c"), mv)
}

func TestInvalidateUserContextProducesMiss(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	require.NoError(t, m.UserContext.Set(ctx, "u3", []byte("P"), 0))
	require.NoError(t, m.InvalidateUserContext(ctx, "u3"))

	_, err := m.UserContext.Get(ctx, "u3")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestGetOrSetCoalescesConcurrentProducers(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	var calls int32
	producer := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return []byte("built"), nil
	}

	var wg sync.WaitGroup
	results := make([][]byte, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := m.RetrievalContext.GetOrSet(ctx, "fp1", 0, producer)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, []byte("built"), v)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrSetReturnsCachedValueOnSecondCall(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	var calls int32
	producer := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("v"), nil
	}

	v1, err := m.RetrievalContext.GetOrSet(ctx, "fp2", 0, producer)
	require.NoError(t, err)
	v2, err := m.RetrievalContext.GetOrSet(ctx, "fp2", 0, producer)
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

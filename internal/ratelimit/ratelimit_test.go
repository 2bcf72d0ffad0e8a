package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/config"
	"github.com/fitcore/aigateway/internal/kv"
)

func testQuotas() config.QuotaConfig {
	q := config.DefaultConfig().Quotas
	q.Free.Expensive = config.QuotaLimits{HourlyLimit: 600, PerMinuteLimit: 10}
	return q
}

// TestScenarioA mirrors §8 Scenario A: free tier, expensive endpoint,
// 10/min limit — 10 admissions succeed, the 11th is denied with
// retry_after=60, and after advancing one minute the limiter resets.
func TestScenarioA(t *testing.T) {
	store := kv.NewInMemoryStore(time.Hour)
	defer store.Close()
	failOpen := kv.NewFailOpen(store)
	clock := collaborators.NewFakeClock(time.Unix(0, 0))
	limiter := New(failOpen, testQuotas(), clock, nil)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		d := limiter.Check(ctx, "u1", collaborators.ClassExpensive, collaborators.TierFree)
		require.True(t, d.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 10-i, d.Remaining)
	}

	d := limiter.Check(ctx, "u1", collaborators.ClassExpensive, collaborators.TierFree)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 60, d.RetryAfterSeconds)

	clock.Advance(60 * time.Second)
	d = limiter.Check(ctx, "u1", collaborators.ClassExpensive, collaborators.TierFree)
	assert.True(t, d.Allowed)
	assert.Equal(t, 9, d.Remaining)
}

type alwaysFailingRaw struct{}

func (alwaysFailingRaw) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (alwaysFailingRaw) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (alwaysFailingRaw) Delete(context.Context, string) error { return errors.New("down") }
func (alwaysFailingRaw) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("down")
}
func (alwaysFailingRaw) Expire(context.Context, string, time.Duration) error {
	return errors.New("down")
}
func (alwaysFailingRaw) GetInt(context.Context, string) (int64, error) {
	return 0, errors.New("down")
}
func (alwaysFailingRaw) ZAdd(context.Context, string, string, float64) error {
	return errors.New("down")
}
func (alwaysFailingRaw) ZRange(context.Context, string, float64, float64) ([]kv.ScoredMember, error) {
	return nil, errors.New("down")
}

// TestScenarioD mirrors §8 Scenario D: KV outage, every admission
// fail-opens with remaining=-1 and the fail-open hook fires once per call.
func TestScenarioD(t *testing.T) {
	failOpen := kv.NewFailOpen(alwaysFailingRaw{})
	var failOpenCount int
	limiter := New(failOpen, testQuotas(), nil, func() { failOpenCount++ })
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		d := limiter.Check(ctx, "u4", collaborators.ClassExpensive, collaborators.TierFree)
		require.True(t, d.Allowed)
		assert.Equal(t, -1, d.Remaining)
		assert.True(t, d.FailedOpen)
	}
	assert.Equal(t, 1000, failOpenCount)
}

func TestUnknownTierCoercesToFree(t *testing.T) {
	store := kv.NewInMemoryStore(time.Hour)
	defer store.Close()
	failOpen := kv.NewFailOpen(store)
	limiter := New(failOpen, testQuotas(), nil, nil)
	ctx := context.Background()

	tier := collaborators.NormalizeTier("bogus")
	assert.Equal(t, collaborators.TierFree, tier)
	d := limiter.Check(ctx, "u5", collaborators.ClassExpensive, tier)
	assert.True(t, d.Allowed)
}

func TestAdminTierEffectivelyUnlimitedButCounts(t *testing.T) {
	store := kv.NewInMemoryStore(time.Hour)
	defer store.Close()
	failOpen := kv.NewFailOpen(store)
	limiter := New(failOpen, config.DefaultConfig().Quotas, nil, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		d := limiter.Check(ctx, "admin1", collaborators.ClassExpensive, collaborators.TierAdmin)
		require.True(t, d.Allowed)
	}
	status := limiter.Status(ctx, "admin1", collaborators.ClassExpensive, collaborators.TierAdmin)
	assert.Equal(t, 50, status.Minute.Used)
}

func TestResetClearsCounters(t *testing.T) {
	store := kv.NewInMemoryStore(time.Hour)
	defer store.Close()
	failOpen := kv.NewFailOpen(store)
	limiter := New(failOpen, testQuotas(), nil, nil)
	ctx := context.Background()

	limiter.Check(ctx, "u6", collaborators.ClassExpensive, collaborators.TierFree)
	require.NoError(t, limiter.Reset(ctx, "u6", collaborators.ClassExpensive))
	status := limiter.Status(ctx, "u6", collaborators.ClassExpensive, collaborators.TierFree)
	assert.Equal(t, 0, status.Minute.Used)
}

// Package ratelimit implements C2: two-window fixed-bucket admission
// counters per (subject, endpoint-class, tier), approximating a sliding
// window by keying counters on the integer floor of now/window and letting
// the KV store's TTL retire each bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/config"
	"github.com/fitcore/aigateway/internal/kv"
)

const (
	hourWindow   = time.Hour
	minuteWindow = time.Minute

	// AlgorithmFixedBucket is descriptive metadata attached to every
	// Decision; there is no alternative algorithm wired in, but callers
	// and telemetry consumers reference it by name rather than assuming it.
	AlgorithmFixedBucket = "fixed_bucket"
)

// Decision is the result of a Check call.
type Decision struct {
	Allowed           bool
	Remaining         int
	Limit             int
	RetryAfterSeconds int
	Algorithm         string
	FailedOpen        bool
}

// Status is the read-only view returned by Status.
type Status struct {
	Hourly  WindowStatus
	Minute  WindowStatus
}

// WindowStatus describes one window's utilization.
type WindowStatus struct {
	Used      int
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// FailOpenHook is invoked whenever Check degrades to allow-always because
// the KV store is unavailable, so the monitoring surface can count it.
type FailOpenHook func()

// Limiter implements C2 against a kv.Store.
type Limiter struct {
	store   kv.Store
	quotas  config.QuotaConfig
	clock   collaborators.Clock
	onFailOpen FailOpenHook
}

// New builds a Limiter. onFailOpen may be nil.
func New(store kv.Store, quotas config.QuotaConfig, clock collaborators.Clock, onFailOpen FailOpenHook) *Limiter {
	if clock == nil {
		clock = collaborators.SystemClock{}
	}
	return &Limiter{store: store, quotas: quotas, clock: clock, onFailOpen: onFailOpen}
}

func bucketKey(subject string, class collaborators.EndpointClass, window time.Duration, bucket int64) string {
	name := "h"
	if window == minuteWindow {
		name = "m"
	}
	return fmt.Sprintf("rl:%s:%s:%s:%d", subject, class, name, bucket)
}

func floorBucket(now time.Time, window time.Duration) int64 {
	return now.Unix() / int64(window.Seconds())
}

// Check performs the admission decision described in §4.2. Tier strings
// that do not match a known tier are coerced to free by the caller before
// this is invoked (collaborators.NormalizeTier); class must not be
// ClassExempt — exempt endpoints never reach the limiter.
func (l *Limiter) Check(ctx context.Context, subject string, class collaborators.EndpointClass, tier collaborators.Tier) Decision {
	limits := l.quotas.Limits(tier, class)
	now := l.clock.Now()

	hBucket := floorBucket(now, hourWindow)
	mBucket := floorBucket(now, minuteWindow)
	hKey := bucketKey(subject, class, hourWindow, hBucket)
	mKey := bucketKey(subject, class, minuteWindow, mBucket)

	hCount, hErr := l.store.Incr(ctx, hKey)
	if hErr == nil {
		if hCount == 1 {
			_ = l.store.Expire(ctx, hKey, hourWindow)
		}
	}
	mCount, mErr := l.store.Incr(ctx, mKey)
	if mErr == nil {
		if mCount == 1 {
			_ = l.store.Expire(ctx, mKey, minuteWindow)
		}
	}

	if hErr != nil || mErr != nil {
		if l.onFailOpen != nil {
			l.onFailOpen()
		}
		return Decision{Allowed: true, Remaining: -1, RetryAfterSeconds: 0, Algorithm: AlgorithmFixedBucket, FailedOpen: true}
	}

	hExceeded := limits.HourlyLimit > 0 && hCount > int64(limits.HourlyLimit)
	mExceeded := limits.PerMinuteLimit > 0 && mCount > int64(limits.PerMinuteLimit)

	if hExceeded || mExceeded {
		retry := 0
		if hExceeded {
			retry = retryAfter(now, hourWindow)
		}
		if mExceeded {
			if r := retryAfter(now, minuteWindow); r > retry {
				retry = r
			}
		}
		bindingLimit := limits.HourlyLimit
		if mExceeded {
			bindingLimit = limits.PerMinuteLimit
		}
		return Decision{Allowed: false, Remaining: 0, Limit: bindingLimit, RetryAfterSeconds: retry, Algorithm: AlgorithmFixedBucket}
	}

	remaining := remainingOf(limits.HourlyLimit, hCount)
	limit := limits.HourlyLimit
	if r := remainingOf(limits.PerMinuteLimit, mCount); r < remaining {
		remaining = r
		limit = limits.PerMinuteLimit
	}
	return Decision{Allowed: true, Remaining: remaining, Limit: limit, RetryAfterSeconds: 0, Algorithm: AlgorithmFixedBucket}
}

func remainingOf(limit int, count int64) int {
	if limit <= 0 {
		return 0
	}
	r := int64(limit) - count
	if r < 0 {
		r = 0
	}
	return int(r)
}

func retryAfter(now time.Time, window time.Duration) int {
	secs := int64(window.Seconds())
	mod := now.Unix() % secs
	return int(secs - mod)
}

// Status reports current utilization without incrementing counters.
func (l *Limiter) Status(ctx context.Context, subject string, class collaborators.EndpointClass, tier collaborators.Tier) Status {
	limits := l.quotas.Limits(tier, class)
	now := l.clock.Now()

	hBucket := floorBucket(now, hourWindow)
	mBucket := floorBucket(now, minuteWindow)
	hKey := bucketKey(subject, class, hourWindow, hBucket)
	mKey := bucketKey(subject, class, minuteWindow, mBucket)

	hCount, _ := l.store.GetInt(ctx, hKey)
	mCount, _ := l.store.GetInt(ctx, mKey)

	return Status{
		Hourly: WindowStatus{
			Used:      int(hCount),
			Remaining: remainingOf(limits.HourlyLimit, hCount),
			Limit:     limits.HourlyLimit,
			ResetAt:   now.Add(time.Duration(retryAfter(now, hourWindow)) * time.Second),
		},
		Minute: WindowStatus{
			Used:      int(mCount),
			Remaining: remainingOf(limits.PerMinuteLimit, mCount),
			Limit:     limits.PerMinuteLimit,
			ResetAt:   now.Add(time.Duration(retryAfter(now, minuteWindow)) * time.Second),
		},
	}
}

// Reset deletes both window counters for the current bucket, for
// administrative use only.
func (l *Limiter) Reset(ctx context.Context, subject string, class collaborators.EndpointClass) error {
	now := l.clock.Now()
	hKey := bucketKey(subject, class, hourWindow, floorBucket(now, hourWindow))
	mKey := bucketKey(subject, class, minuteWindow, floorBucket(now, minuteWindow))
	if err := l.store.Delete(ctx, hKey); err != nil {
		return err
	}
	return l.store.Delete(ctx, mKey)
}

package kv

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrUnavailable is surfaced by Incr and GetInt when the backing store
// could not be reached, so callers (the rate limiter in particular) can
// distinguish "adapter down" from "counter genuinely absent/zero" and
// fail open explicitly rather than guessing from a sentinel value.
var ErrUnavailable = errors.New("kv: store unavailable")

// FailOpen wraps a RawStore, converting every transport error into the
// degrade-gracefully contract §4.1 describes: reads return absent, writes
// silently succeed, Incr/GetInt surface ErrUnavailable so callers can fail
// open. A single healthy flag and consecutive-failure counter are
// maintained across all operations.
type FailOpen struct {
	raw     RawStore
	healthy int32 // atomic bool: 1 = healthy
	fails   int32 // atomic consecutive failure count
}

// NewFailOpen wraps raw in fail-open semantics. The adapter starts healthy.
func NewFailOpen(raw RawStore) *FailOpen {
	return &FailOpen{raw: raw, healthy: 1}
}

func (f *FailOpen) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, OpTimeout)
}

func (f *FailOpen) recordSuccess() {
	atomic.StoreInt32(&f.healthy, 1)
	atomic.StoreInt32(&f.fails, 0)
}

func (f *FailOpen) recordFailure() {
	atomic.StoreInt32(&f.healthy, 0)
	atomic.AddInt32(&f.fails, 1)
}

func (f *FailOpen) Healthy() bool { return atomic.LoadInt32(&f.healthy) == 1 }

func (f *FailOpen) ConsecutiveFailures() int { return int(atomic.LoadInt32(&f.fails)) }

func (f *FailOpen) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	v, err := f.raw.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// A genuine miss, not a backing-store failure — the adapter
			// reached the store and got a clean answer.
			f.recordSuccess()
			return nil, ErrNotFound
		}
		f.recordFailure()
		return nil, ErrNotFound
	}
	f.recordSuccess()
	return v, nil
}

func (f *FailOpen) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	if err := f.raw.Set(ctx, key, value, ttl); err != nil {
		f.recordFailure()
		return nil // writes silently succeed from the caller's perspective
	}
	f.recordSuccess()
	return nil
}

func (f *FailOpen) Delete(ctx context.Context, key string) error {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	if err := f.raw.Delete(ctx, key); err != nil {
		f.recordFailure()
		return nil
	}
	f.recordSuccess()
	return nil
}

func (f *FailOpen) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	v, err := f.raw.Incr(ctx, key)
	if err != nil {
		f.recordFailure()
		return 0, ErrUnavailable
	}
	f.recordSuccess()
	return v, nil
}

func (f *FailOpen) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	if err := f.raw.Expire(ctx, key, ttl); err != nil {
		f.recordFailure()
		return nil
	}
	f.recordSuccess()
	return nil
}

func (f *FailOpen) GetInt(ctx context.Context, key string) (int64, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	v, err := f.raw.GetInt(ctx, key)
	if err != nil {
		f.recordFailure()
		return 0, ErrUnavailable
	}
	f.recordSuccess()
	return v, nil
}

func (f *FailOpen) ZAdd(ctx context.Context, key, member string, score float64) error {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	if err := f.raw.ZAdd(ctx, key, member, score); err != nil {
		f.recordFailure()
		return nil
	}
	f.recordSuccess()
	return nil
}

func (f *FailOpen) ZRange(ctx context.Context, key string, min, max float64) ([]ScoredMember, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()
	v, err := f.raw.ZRange(ctx, key, min, max)
	if err != nil {
		f.recordFailure()
		return nil, nil
	}
	f.recordSuccess()
	return v, nil
}

var _ Store = (*FailOpen)(nil)

package kv

import (
	"context"
	"time"
)

// RawStore is the interface a concrete backing-store client implements.
// Unlike Store, every method may return a transport error; FailOpen wraps
// a RawStore and absorbs those errors into the fail-open contract.
type RawStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	GetInt(ctx context.Context, key string) (int64, error)
	ZAdd(ctx context.Context, key string, member string, score float64) error
	ZRange(ctx context.Context, key string, min, max float64) ([]ScoredMember, error)
}

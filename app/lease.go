package app

import (
	"context"
	"sync"
	"time"

	"broker-calls/cache"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lease guards a job against overlapping runs
type Lease interface {
	// Acquire returns a release func when the lease was taken, or ok=false
	// when another run holds it.
	Acquire(ctx context.Context) (release func(), ok bool)
}

// localLease is an in-process lease
type localLease struct {
	mu sync.Mutex
}

// NewLocalLease creates a lease that only guards this process
func NewLocalLease() Lease {
	return &localLease{}
}

func (l *localLease) Acquire(_ context.Context) (func(), bool) {
	if !l.mu.TryLock() {
		return nil, false
	}
	return l.mu.Unlock, true
}

// redisLease is shared by every process using the same Redis
type redisLease struct {
	redis    *cache.RedisClient
	key      string
	ttl      time.Duration
	fallback Lease
	logger   *zap.Logger
}

// NewRedisLease creates a lease backed by SET NX on key. When Redis errors the
// in-process lease is used instead so the job still cannot overlap locally.
func NewRedisLease(redis *cache.RedisClient, key string, ttl time.Duration, logger *zap.Logger) Lease {
	return &redisLease{
		redis:    redis,
		key:      key,
		ttl:      ttl,
		fallback: NewLocalLease(),
		logger:   logger,
	}
}

func (l *redisLease) Acquire(ctx context.Context) (func(), bool) {
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		l.logger.Warn("redis lease unavailable, using local lease", zap.String("key", l.key), zap.Error(err))
		return l.fallback.Acquire(ctx)
	}
	if !ok {
		return nil, false
	}
	return func() {
		released, err := l.redis.DeleteIfValue(context.Background(), l.key, token)
		if err != nil {
			l.logger.Warn("failed to release lease", zap.String("key", l.key), zap.Error(err))
			return
		}
		if !released {
			// The TTL ran out and another run owns the key now
			l.logger.Warn("lease expired before release", zap.String("key", l.key))
		}
	}, true
}

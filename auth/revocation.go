package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"broker-calls/cache"

	"go.uber.org/zap"
)

// TokenStore persists revoked token digests
type TokenStore interface {
	Revoke(ctx context.Context, digest string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, digest string, now time.Time) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Revocations is the logout blacklist. The store is the source of truth;
// Redis mirrors each entry with a TTL so hot lookups skip the database.
type Revocations struct {
	store  TokenStore
	redis  *cache.RedisClient
	logger *zap.Logger
	now    func() time.Time
}

// NewRevocations creates the revocation list. redis may be nil.
func NewRevocations(store TokenStore, redis *cache.RedisClient, logger *zap.Logger) *Revocations {
	return &Revocations{
		store:  store,
		redis:  redis,
		logger: logger,
		now:    time.Now,
	}
}

// Digest returns the hex sha256 of a token; raw tokens are never stored
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func revokedKey(digest string) string {
	return fmt.Sprintf("auth:revoked:%s", digest)
}

// Revoke blacklists a token until its natural expiry
func (r *Revocations) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	digest := Digest(token)
	if err := r.store.Revoke(ctx, digest, expiresAt); err != nil {
		return err
	}

	if r.redis != nil {
		if ttl := expiresAt.Sub(r.now()); ttl > 0 {
			if err := r.redis.Set(ctx, revokedKey(digest), 1, ttl); err != nil {
				r.logger.Warn("failed to mirror revoked token to redis", zap.Error(err))
			}
		}
	}
	return nil
}

// IsRevoked reports whether a token has been logged out
func (r *Revocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	digest := Digest(token)

	if r.redis != nil {
		if hit, err := r.redis.Exists(ctx, revokedKey(digest)); err == nil && hit {
			return true, nil
		}
	}

	return r.store.IsRevoked(ctx, digest, r.now())
}

// Purge deletes expired entries from the store
func (r *Revocations) Purge(ctx context.Context) (int64, error) {
	return r.store.PurgeExpired(ctx, r.now())
}

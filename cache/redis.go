package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the client was never connected
var ErrUnavailable = errors.New("redis client not initialized")

// RedisClient wraps redis.Client
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client. It returns nil when Redis is unreachable
// so callers can fall back to in-process behaviour.
func NewRedisClient(host, port, password string, logger *zap.Logger) *RedisClient {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0, // use default DB
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("failed to connect to redis", zap.String("addr", addr), zap.Error(err))
		client.Close()
		return nil
	}

	logger.Info("connected to redis", zap.String("addr", addr))
	return &RedisClient{client: client}
}

// Wrap adopts an existing go-redis client
func Wrap(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// IsMiss reports whether err means the key was absent
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Set stores a JSON-encoded value with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, key, jsonBytes, expiration).Err()
}

// Get decodes a JSON value into dest
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// SetNX stores value only if key does not exist yet. It reports whether the key was set.
func (r *RedisClient) SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error) {
	if r == nil || r.client == nil {
		return false, ErrUnavailable
	}
	return r.client.SetNX(ctx, key, value, expiration).Result()
}

// Incr increments a counter, starting its window on the first hit.
// It returns the new count and the time left in the window.
func (r *RedisClient) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if r == nil || r.client == nil {
		return 0, 0, ErrUnavailable
	}

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}

	left, err := r.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if left < 0 {
		// Counter lost its expiry; restart the window
		r.client.PExpire(ctx, key, window)
		left = window
	}
	return count, left, nil
}

// Decr decrements a counter without touching its expiry
func (r *RedisClient) Decr(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}
	return r.client.Decr(ctx, key).Err()
}

// Delete removes a key from Redis
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}
	return r.client.Del(ctx, key).Err()
}

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1]
var compareAndDelete = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// DeleteIfValue removes key only when its current value equals value.
// It reports whether the key was deleted.
func (r *RedisClient) DeleteIfValue(ctx context.Context, key, value string) (bool, error) {
	if r == nil || r.client == nil {
		return false, ErrUnavailable
	}
	n, err := compareAndDelete.Run(ctx, r.client, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Exists checks if a key exists in Redis
func (r *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil {
		return false, ErrUnavailable
	}

	result, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}

	return result > 0, nil
}

// Ping checks the connection
func (r *RedisClient) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrUnavailable
	}
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r != nil && r.client != nil {
		return r.client.Close()
	}
	return nil
}

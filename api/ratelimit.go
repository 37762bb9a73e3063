package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"broker-calls/apperr"
	"broker-calls/cache"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window limiter keyed by client IP. Counters live in
// Redis when available and in process memory otherwise.
type RateLimiter struct {
	name           string
	max            int
	window         time.Duration
	message        string
	skipSuccessful bool

	redis  *cache.RedisClient
	logger *zap.Logger
	now    func() time.Time

	mu         sync.Mutex
	local      map[string]*windowCount
	hits       int
	sweepEvery int
}

// defaultSweepEvery is how many local hits pass between sweeps of expired windows
const defaultSweepEvery = 256

type windowCount struct {
	count   int64
	resetAt time.Time
}

// NewRateLimiter creates a limiter. When skipSuccessful is set, responses
// below 400 do not count against the client.
func NewRateLimiter(name string, max int, window time.Duration, message string, skipSuccessful bool, redis *cache.RedisClient, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		name:           name,
		max:            max,
		window:         window,
		message:        message,
		skipSuccessful: skipSuccessful,
		redis:          redis,
		logger:         logger,
		now:            time.Now,
		local:          make(map[string]*windowCount),
		sweepEvery:     defaultSweepEvery,
	}
}

func (rl *RateLimiter) key(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ratelimit:" + rl.name + ":" + host
}

func (rl *RateLimiter) hit(ctx context.Context, key string) (int64, time.Duration) {
	count, left, err := rl.redis.Incr(ctx, key, rl.window)
	if err == nil {
		return count, left
	}
	if err != cache.ErrUnavailable {
		rl.logger.Warn("rate limit counter unavailable, using local window", zap.String("limiter", rl.name), zap.Error(err))
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.hits++
	if rl.hits%rl.sweepEvery == 0 {
		rl.sweep(now)
	}

	wc, ok := rl.local[key]
	if !ok || !now.Before(wc.resetAt) {
		wc = &windowCount{resetAt: now.Add(rl.window)}
		rl.local[key] = wc
	}
	wc.count++
	return wc.count, wc.resetAt.Sub(now)
}

// sweep drops windows that have ended. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, wc := range rl.local {
		if !now.Before(wc.resetAt) {
			delete(rl.local, key)
		}
	}
}

func (rl *RateLimiter) undo(ctx context.Context, key string) {
	if err := rl.redis.Decr(ctx, key); err == nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if wc, ok := rl.local[key]; ok && wc.count > 0 {
		wc.count--
	}
}

// Middleware enforces the limit
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)
		count, left := rl.hit(r.Context(), key)

		remaining := int64(rl.max) - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("RateLimit-Limit", strconv.Itoa(rl.max))
		w.Header().Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(int(left.Round(time.Second).Seconds())))

		if count > int64(rl.max) {
			w.Header().Set("Retry-After", strconv.Itoa(int(left.Round(time.Second).Seconds())))
			appErr := apperr.RateLimited(rl.message)
			writeJSON(w, appErr.Status(), map[string]interface{}{
				"status":  "fail",
				"message": appErr.Message,
			})
			return
		}

		if !rl.skipSuccessful {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if ww.Status() < http.StatusBadRequest {
			rl.undo(r.Context(), key)
		}
	})
}

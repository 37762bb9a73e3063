package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"broker-calls/market"
)

// QuoteSource fetches a live quote
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (*market.Quote, error)
}

// QuoteCache is a read-through cache in front of a QuoteSource.
// With a nil Redis client every call goes straight to the source.
type QuoteCache struct {
	redis  *RedisClient
	source QuoteSource
	ttl    time.Duration
}

// NewQuoteCache creates a new quote cache instance
func NewQuoteCache(redis *RedisClient, source QuoteSource, ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		redis:  redis,
		source: source,
		ttl:    ttl,
	}
}

func quoteKey(symbol string) string {
	return fmt.Sprintf("market:quote:%s", strings.ToUpper(symbol))
}

// Quote returns a cached quote when fresh, otherwise fetches and stores it
func (c *QuoteCache) Quote(ctx context.Context, symbol string) (*market.Quote, error) {
	if c.redis != nil {
		var cached market.Quote
		if err := c.redis.Get(ctx, quoteKey(symbol), &cached); err == nil {
			return &cached, nil
		}
	}

	q, err := c.source.Quote(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if c.redis != nil && c.ttl > 0 {
		// A failed write only costs a refetch next time
		_ = c.redis.Set(ctx, quoteKey(symbol), q, c.ttl)
	}
	return q, nil
}

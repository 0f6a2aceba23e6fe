package quote

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// Cached wraps a Source with a per-symbol TTL cache so bursts of
// commands against the same stock do not hammer the quote server.
// Prices are per symbol, not per user, so the symbol is the cache key.
type Cached struct {
	src   Source
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCached creates a caching decorator around src with the given TTL.
func NewCached(src Source, ttl time.Duration) (*Cached, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cached{src: src, cache: cache, ttl: ttl}, nil
}

func (c *Cached) GetQuote(ctx context.Context, userID, symbol string) (Quote, error) {
	if v, ok := c.cache.Get(symbol); ok {
		q := v.(Quote)
		q.UserID = userID
		return q, nil
	}
	q, err := c.src.GetQuote(ctx, userID, symbol)
	if err != nil {
		return Quote{}, err
	}
	c.cache.SetWithTTL(symbol, q, 1, c.ttl)
	return q, nil
}

package cache

import (
	"context"
	"time"

	"github.com/roach88/fitsync/internal/metrics"
)

// Fetch loads the authoritative value for a cache miss.
type Fetch[T any] func(ctx context.Context) (T, error)

// ReadThrough returns the live value under key, or runs fetch and stores
// its result for ttl under key and tags. A stored value of a different
// type is treated as a miss and replaced.
func ReadThrough[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, tags []string, fetch Fetch[T]) (T, error) {
	if v, ok := c.lookup(key); ok {
		if typed, ok := v.(T); ok {
			metrics.IncCacheLookup(true)
			return typed, nil
		}
	}
	metrics.IncCacheLookup(false)

	started := c.begin()
	value, err := fetch(ctx)
	if err != nil {
		c.abort(started)
		var zero T
		return zero, err
	}

	stored := c.fill(key, value, ttl, tags, started)
	metrics.IncCacheFill(stored)
	if !stored {
		c.logger.Debug("cache fill discarded", "key", key)
	}
	return value, nil
}

// Run sweeps expired entries every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("cache swept", "entries", n)
			}
		}
	}
}

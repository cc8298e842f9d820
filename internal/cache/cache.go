// Package cache is the tiered read cache: keyed, TTL-bounded entries that
// can also be dropped in groups by tag.
//
// A read goes through ReadThrough: a live entry is returned as is,
// otherwise the fetch runs and its result is stored under the key with an
// expiry and a set of tags. Writers never touch entries directly; they
// call Invalidate with the tags their mutation affects and the next read
// refetches.
//
// Invariants:
//   - An entry is served only while now < expiresAt.
//   - Invalidate(tag) removes every entry carrying tag, found through a
//     reverse index, so the cost is proportional to the affected entries.
//   - A fill whose fetch started before an invalidation of one of its tags
//     is handed to its caller but never stored.
//   - Fetch errors are returned and never cached.
//
// Concurrent misses on one key may each run the fetch; the last stored
// result wins.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/fitsync/internal/metrics"
)

type entry struct {
	value     any
	expiresAt time.Time
	tags      []string
}

// Cache is safe for concurrent use. Cached values are shared between
// callers and must be treated as read-only.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	byTag   map[string]map[string]struct{}

	// invalidatedAt is the stamp of the latest Invalidate per tag.
	invalidatedAt map[string]int64
	// inflight counts fill attempts per start stamp, so Sweep knows which
	// invalidation stamps can still matter.
	inflight map[int64]int

	stamps stamps
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithNow overrides the wall clock used for expiry.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger used for invalidation and sweep events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:       make(map[string]*entry),
		byTag:         make(map[string]map[string]struct{}),
		invalidatedAt: make(map[string]int64),
		inflight:      make(map[int64]int),
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lookup returns the live value under key. Expired entries are removed.
func (c *Cache) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.removeLocked(key, e)
		return nil, false
	}
	return e.value, true
}

// begin stamps the start of a fetch.
func (c *Cache) begin() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := c.stamps.take()
	c.inflight[started]++
	return started
}

// abort releases a fetch start that will not fill.
func (c *Cache) abort(started int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(started)
}

// fill stores value unless one of tags was invalidated after started.
// Reports whether the value was stored.
func (c *Cache) fill(key string, value any, ttl time.Duration, tags []string, started int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.releaseLocked(started)

	if ttl <= 0 {
		return false
	}
	for _, tag := range tags {
		if c.invalidatedAt[tag] > started {
			return false
		}
	}

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}

	e := &entry{
		value:     value,
		expiresAt: c.now().Add(ttl),
		tags:      dedupe(tags),
	}
	c.entries[key] = e
	for _, tag := range e.tags {
		keys, ok := c.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
	metrics.CacheEntries.Inc()
	return true
}

func (c *Cache) releaseLocked(started int64) {
	if c.inflight[started] <= 1 {
		delete(c.inflight, started)
		return
	}
	c.inflight[started]--
}

// removeLocked drops key and its reverse-index links.
func (c *Cache) removeLocked(key string, e *entry) {
	delete(c.entries, key)
	for _, tag := range e.tags {
		keys := c.byTag[tag]
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byTag, tag)
		}
	}
	metrics.CacheEntries.Dec()
}

// Invalidate removes every entry associated with tag and returns how many
// were removed. Fills already in flight for tag will not be stored.
func (c *Cache) Invalidate(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidatedAt[tag] = c.stamps.take()

	keys := c.byTag[tag]
	n := 0
	for key := range keys {
		if e, ok := c.entries[key]; ok {
			c.removeLocked(key, e)
			n++
		}
	}
	delete(c.byTag, tag)

	if n > 0 {
		metrics.CacheInvalidated.Add(float64(n))
		c.logger.Debug("cache invalidated", "tag", tag, "entries", n)
	}
	return n
}

// Has reports whether a live entry exists under key.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return ok && c.now().Before(e.expiresAt)
}

// Len returns the number of stored entries, expired ones included until
// they are swept or looked up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep removes expired entries and forgets invalidation stamps no
// in-flight fill can be compared against. Returns the entries removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			c.removeLocked(key, e)
			n++
		}
	}

	oldest := int64(-1)
	for started := range c.inflight {
		if oldest < 0 || started < oldest {
			oldest = started
		}
	}
	for tag, stamp := range c.invalidatedAt {
		if oldest < 0 || stamp < oldest {
			delete(c.invalidatedAt, tag)
		}
	}
	return n
}

func dedupe(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

package geocode

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/datavis-fr/geobatch/core"
)

// Cache stores resolved locations by query.
// Only successful lookups are cached.
type Cache interface {
	Get(ctx context.Context, query string) (Location, bool, error)
	Put(ctx context.Context, query string, loc Location) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Location
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Location)}
}

func (c *MemoryCache) Get(ctx context.Context, query string) (Location, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.entries[normalizeQuery(query)]
	return loc, ok, nil
}

func (c *MemoryCache) Put(ctx context.Context, query string, loc Location) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalizeQuery(query)] = loc
	return nil
}

// Len returns the number of cached queries.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CachedGeocoder consults a Cache before delegating to the next Geocoder.
// Concurrent misses for the same query share one upstream lookup.
//
// Cache read and write errors are logged and otherwise ignored: the cache
// never turns a resolvable address into a failure.
type CachedGeocoder struct {
	next   Geocoder
	cache  Cache
	logger core.Logger
	group  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

var _ Geocoder = (*CachedGeocoder)(nil)

// NewCachedGeocoder wraps next with cache. A nil logger discards logs.
func NewCachedGeocoder(next Geocoder, cache Cache, logger core.Logger) *CachedGeocoder {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &CachedGeocoder{next: next, cache: cache, logger: logger}
}

func (g *CachedGeocoder) Geocode(ctx context.Context, query string) (Location, error) {
	loc, ok, err := g.cache.Get(ctx, query)
	if err != nil {
		g.logger.Warn("geocode cache read failed", core.F("query", query), core.F("error", err.Error()))
	}
	if ok {
		g.hits.Add(1)
		return loc, nil
	}
	g.misses.Add(1)

	// The shared lookup outlives any one caller's cancellation; each caller
	// still stops waiting when its own ctx is done.
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(normalizeQuery(query), func() (any, error) {
		loc, err := g.next.Geocode(shared, query)
		if err != nil {
			return Location{}, err
		}
		if err := g.cache.Put(shared, query, loc); err != nil {
			g.logger.Warn("geocode cache write failed", core.F("query", query), core.F("error", err.Error()))
		}
		return loc, nil
	})

	select {
	case <-ctx.Done():
		return Location{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Location{}, res.Err
		}
		return res.Val.(Location), nil
	}
}

// CacheStats returns the hit and miss counters.
func (g *CachedGeocoder) CacheStats() (hits, misses int64) {
	return g.hits.Load(), g.misses.Load()
}

package geocode

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct{}

func (failingCache) Get(ctx context.Context, query string) (Location, bool, error) {
	return Location{}, false, errors.New("disk on fire")
}

func (failingCache) Put(ctx context.Context, query string, loc Location) error {
	return errors.New("disk on fire")
}

func TestMemoryCache_NormalizesKeys(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Put(ctx, "Lyon, Rhône", Location{Lat: 45.76, Lon: 4.83}))

	loc, ok, err := c.Get(ctx, "lyon,  RHÔNE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 45.76, loc.Lat, 1e-9)
	assert.Equal(t, 1, c.Len())
}

func TestCachedGeocoder_HitsSkipUpstream(t *testing.T) {
	var calls atomic.Int32
	upstream := GeocoderFunc(func(ctx context.Context, query string) (Location, error) {
		calls.Add(1)
		return Location{Lat: 47.22, Lon: -1.55}, nil
	})
	g := NewCachedGeocoder(upstream, NewMemoryCache(), nil)

	for range 4 {
		_, err := g.Geocode(context.Background(), "Nantes")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), calls.Load())
	hits, misses := g.CacheStats()
	assert.Equal(t, int64(3), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachedGeocoder_FailuresAreNotCached(t *testing.T) {
	var calls atomic.Int32
	upstream := GeocoderFunc(func(ctx context.Context, query string) (Location, error) {
		calls.Add(1)
		return Location{}, ErrNotFound
	})
	g := NewCachedGeocoder(upstream, NewMemoryCache(), nil)

	_, err1 := g.Geocode(context.Background(), "Atlantis")
	_, err2 := g.Geocode(context.Background(), "Atlantis")

	assert.ErrorIs(t, err1, ErrNotFound)
	assert.ErrorIs(t, err2, ErrNotFound)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedGeocoder_ConcurrentMissesShareLookup(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	upstream := GeocoderFunc(func(ctx context.Context, query string) (Location, error) {
		calls.Add(1)
		<-release
		return Location{Lat: 50.63, Lon: 3.06}, nil
	})
	g := NewCachedGeocoder(upstream, NewMemoryCache(), nil)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loc, err := g.Geocode(context.Background(), "Lille")
			assert.NoError(t, err)
			assert.InDelta(t, 50.63, loc.Lat, 1e-9)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedGeocoder_CancelledCallerDoesNotFailOthers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	upstream := GeocoderFunc(func(ctx context.Context, query string) (Location, error) {
		close(started)
		select {
		case <-release:
			return Location{Lat: 47.22, Lon: -1.55}, nil
		case <-ctx.Done():
			return Location{}, ctx.Err()
		}
	})
	g := NewCachedGeocoder(upstream, NewMemoryCache(), nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := g.Geocode(firstCtx, "Nantes")
		firstErr <- err
	}()
	<-started

	secondLoc := make(chan Location, 1)
	secondErr := make(chan error, 1)
	go func() {
		loc, err := g.Geocode(context.Background(), "Nantes")
		secondLoc <- loc
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.NoError(t, <-secondErr)
	assert.InDelta(t, 47.22, (<-secondLoc).Lat, 1e-9)

	_, cached, err := g.cache.Get(context.Background(), "Nantes")
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestCachedGeocoder_CacheErrorsDoNotFailLookups(t *testing.T) {
	upstream := GeocoderFunc(func(ctx context.Context, query string) (Location, error) {
		return Location{Lat: 1, Lon: 2}, nil
	})
	g := NewCachedGeocoder(upstream, failingCache{}, nil)

	loc, err := g.Geocode(context.Background(), "Anywhere")
	require.NoError(t, err)
	assert.Equal(t, Location{Lat: 1, Lon: 2}, loc)
}

package sqlitecache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datavis-fr/geobatch/geocode"
)

func TestCache_PutGetSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "geocode.db")

	c, err := Open(ctx, path)
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, "Lyon,Rhône,France")
	require.NoError(t, err)
	assert.False(t, ok)

	want := geocode.Location{Lat: 45.7578, Lon: 4.832, DisplayName: "Lyon"}
	require.NoError(t, c.Put(ctx, "Lyon,Rhône,France", want))
	require.NoError(t, c.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	got, ok, err := reopened.Get(ctx, "  lyon,rhône,FRANCE ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCache_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Put(ctx, "Brest", geocode.Location{Lat: 1, Lon: 1}))
	require.NoError(t, c.Put(ctx, "Brest", geocode.Location{Lat: 48.39, Lon: -4.49}))

	got, ok, err := c.Get(ctx, "Brest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 48.39, got.Lat, 1e-9)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_BacksCachedGeocoder(t *testing.T) {
	ctx := context.Background()
	c, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	calls := 0
	upstream := geocode.GeocoderFunc(func(ctx context.Context, query string) (geocode.Location, error) {
		calls++
		return geocode.Location{Lat: 43.6, Lon: 1.44}, nil
	})
	g := geocode.NewCachedGeocoder(upstream, c, nil)

	for range 3 {
		_, err := g.Geocode(ctx, "Toulouse,Haute-Garonne,France")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, calls)
	hits, misses := g.CacheStats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

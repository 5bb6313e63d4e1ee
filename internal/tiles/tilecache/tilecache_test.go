package tilecache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flyover/internal/tiles"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "tiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	c := testCache(t)
	tile := tiles.Tile{Z: 14, X: 8802, Y: 5373}

	_, ok, err := c.Get(tile)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(tile, []byte("png-bytes")))

	data, ok, err := c.Get(tile)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("png-bytes"), data)

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCachePutRefreshes(t *testing.T) {
	t.Parallel()

	c := testCache(t)
	tile := tiles.Tile{Z: 10, X: 1, Y: 2}

	require.NoError(t, c.Put(tile, []byte("v1")))
	require.NoError(t, c.Put(tile, []byte("v2")))

	data, ok, err := c.Get(tile)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), data)

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCachePrune(t *testing.T) {
	t.Parallel()

	c := testCache(t)
	require.NoError(t, c.Put(tiles.Tile{Z: 10, X: 1, Y: 1}, []byte("fresh")))

	// Nothing is older than an hour yet.
	removed, err := c.Prune(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// A negative age makes everything stale.
	removed, err = c.Prune(-time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestOpenIdempotentMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tiles.db")
	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(tiles.Tile{Z: 1, X: 0, Y: 0}, []byte("x")))
	require.NoError(t, c.Close())

	// Reopening an already-migrated cache is a no-op.
	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

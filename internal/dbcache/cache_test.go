package dbcache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	dir := t.TempDir()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := Open(&Config{
		DatabaseFileName:      filepath.Join(dir, "exports.db"),
		SkipMigrationDBBackup: true,
	}, log)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestExportCacheMissThenHit(t *testing.T) {
	store := testStore(t)
	cache := NewExportCache(store)
	ctx := context.Background()

	_, hit, err := cache.Lookup(ctx, "mesh/collections", "hash-v1")
	require.NoError(t, err)
	require.False(t, hit)

	payload := []byte(`{"exports":["List","Map"]}`)
	require.NoError(t, cache.Store(
		ctx, "mesh/collections", "hash-v1", payload, time.Unix(0, 0),
	))

	got, hit, err := cache.Lookup(ctx, "mesh/collections", "hash-v1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, payload, got)
}

func TestExportCacheInvalidatesOnHashChange(t *testing.T) {
	store := testStore(t)
	cache := NewExportCache(store)
	ctx := context.Background()

	require.NoError(t, cache.Store(
		ctx, "mesh/net", "hash-v1", []byte(`{}`), time.Unix(0, 0),
	))

	_, hit, err := cache.Lookup(ctx, "mesh/net", "hash-v2")
	require.NoError(t, err)
	require.False(t, hit, "a changed content hash must miss the cache")
}

func TestExportCacheInvalidate(t *testing.T) {
	store := testStore(t)
	cache := NewExportCache(store)
	ctx := context.Background()

	require.NoError(t, cache.Store(
		ctx, "mesh/io", "hash-v1", []byte(`{}`), time.Unix(0, 0),
	))

	require.NoError(t, cache.Invalidate(ctx, "mesh/io"))

	_, hit, err := cache.Lookup(ctx, "mesh/io", "hash-v1")
	require.NoError(t, err)
	require.False(t, hit)
}

func TestDefaultCachePath(t *testing.T) {
	path, err := DefaultCachePath()
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(path))

	_, err = os.Stat(filepath.Dir(path))
	// The .meshc directory may or may not exist on the test host; we only
	// care that DefaultCachePath composes a sane absolute path.
	_ = err
}

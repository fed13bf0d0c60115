package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightrec/internal/cache"
	"github.com/yegors/flightrec/pkg/logger"
)

var _ cache.Store = (*CacheStorage)(nil)

func newTestStorage(t *testing.T) (*CacheStorage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "flightrec.db")
	s, err := NewCacheStorage(path, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestCacheStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	_, ok, err := s.Get(ctx, cache.NamespaceFlights, "1700000000")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, cache.NamespaceFlights, "1700000000", []byte(`[]`), cache.NoExpiry))

	v, ok, err := s.Get(ctx, cache.NamespaceFlights, "1700000000")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[]`, string(v))
}

func TestCacheStorageExpiry(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)
	now := time.Unix(1_700_000_000, 0)
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Put(ctx, cache.NamespaceMETAR, "EDDF", []byte(`"EDDF 191220Z"`), time.Hour))

	_, ok, err := s.Get(ctx, cache.NamespaceMETAR, "EDDF")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Hour)
	_, ok, err = s.Get(ctx, cache.NamespaceMETAR, "EDDF")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	count, err := s.Count(ctx, cache.NamespaceMETAR)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCacheStoragePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStorage(t)

	require.NoError(t, s.Put(ctx, cache.NamespaceAircraft, "3c6444", []byte(`{"registration":"D-AIBL"}`), cache.NoExpiry))
	require.NoError(t, s.Close())

	reopened, err := NewCacheStorage(path, logger.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, cache.NamespaceAircraft, "3c6444")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"registration":"D-AIBL"}`, string(v))
}

func TestCacheStorageOverwrite(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t)

	require.NoError(t, s.Put(ctx, cache.NamespaceMETAR, "LOWW", []byte(`"old"`), time.Hour))
	require.NoError(t, s.Put(ctx, cache.NamespaceMETAR, "LOWW", []byte(`"new"`), cache.NoExpiry))

	v, ok, err := s.Get(ctx, cache.NamespaceMETAR, "LOWW")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `"new"`, string(v))
}

// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package translate

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/newbee/autofill/core/langdetect"
)

func TestSQLiteCachePersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache", "translations.db")

	cache, err := NewSQLiteCache(path)
	require.NoError(t, err)

	key := CacheKey("Hill Repeats", langdetect.English, langdetect.Chinese)

	_, ok := cache.Get(key)
	assert.False(t, ok)

	cache.Set(key, "坡道重复")
	cache.Set(key, "坡道重复跑")
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, CacheStats{Kind: "sqlite", Len: 1}, StatsOf(cache))
	require.NoError(t, cache.Close())

	reopened, err := NewSQLiteCache(path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = reopened.Close() })

	got, ok := reopened.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "坡道重复跑", got)
}

func TestResolverWithSQLiteCache(t *testing.T) {
	t.Parallel()

	cache, err := NewSQLiteCache(filepath.Join(t.TempDir(), "translations.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = cache.Close() })

	backend := &fakeBackend{answers: map[string]string{"Tuesday Hills": "周二山坡跑"}}
	resolver := newTestResolver(t, backend, cache)

	for range 2 {
		assert.Equal(t, "周二山坡跑", resolver.Translate(context.Background(), "Tuesday Hills", langdetect.English, langdetect.Chinese))
	}

	assert.Equal(t, 1, backend.callCount())
}

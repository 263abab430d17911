// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

package translate

import (
	"fmt"
	"sync"

	"codeberg.org/newbee/autofill/core/langdetect"
	"codeberg.org/newbee/autofill/core/translate/lrucache"
)

// Cache stores successful translations keyed by [CacheKey].
//
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// CacheKey returns the key for a trimmed text translated from one language to another,
// formatted as "{text}:{from}:{to}".
func CacheKey(trimmed string, from, to langdetect.Lang) string {
	return trimmed + ":" + string(from) + ":" + string(to)
}

// CacheStats describes a cache. Only the LRU cache counts hits and misses.
type CacheStats struct {
	Kind   string `json:"kind"`
	Len    int    `json:"len"`
	Size   int    `json:"size,omitempty"`
	Hits   uint64 `json:"hits,omitempty"`
	Misses uint64 `json:"misses,omitempty"`
}

// StatsOf reports the usage of c. Len is -1 when c cannot count its entries.
func StatsOf(c Cache) CacheStats {
	switch c := c.(type) {
	case *LRUCache:
		s := c.Stats()

		return CacheStats{Kind: "lru", Len: s.Len, Size: s.Size, Hits: s.Hits, Misses: s.Misses}
	case *SQLiteCache:
		return CacheStats{Kind: "sqlite", Len: c.Len()}
	case *MemoryCache:
		return CacheStats{Kind: "memory", Len: c.Len()}
	case nil:
		return CacheStats{Kind: "none"}
	default:
		return CacheStats{Kind: fmt.Sprintf("%T", c), Len: -1}
	}
}

// MemoryCache is an unbounded in-process cache. It lives as long as the process.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[key]

	return v, ok
}

func (c *MemoryCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = value
}

// Len returns the number of cached translations.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// LRUCache is a bounded Cache that evicts the least recently used translation.
type LRUCache struct {
	*lrucache.Cache
}

// NewLRUCache returns a Cache holding at most size translations,
// optionally zstd-compressed.
func NewLRUCache(size int, compress bool) (*LRUCache, error) {
	c, err := lrucache.New(size, compress)
	if err != nil {
		return nil, err
	}

	return &LRUCache{Cache: c}, nil
}

func (c *LRUCache) Set(key, value string) {
	c.Add(key, value)
}

// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package lrucache provides a thread-safe, fixed-capacity least-recently-used (LRU) cache
of strings, used to hold translations.

The cache evicts the least recently used entry when it reaches capacity.
When created with compression enabled via [New], values are stored zstd-compressed
whenever that is smaller, and are transparently decompressed by [Cache.Get].
*/
package lrucache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var ErrInvalidSize = errors.New("must provide a positive size")

// Cache is a fixed-capacity, least-recently-used string cache that is safe for concurrent use.
// Instances must be constructed with [New]; the zero value is not ready for use.
type Cache struct {
	size      int                      // Maximum number of entries
	evictList *list.List               // Front is the most recently used entry
	items     map[string]*list.Element // Key to list element
	lock      sync.Mutex

	zstdEnc *zstd.Encoder // nil unless compression is enabled
	zstdDec *zstd.Decoder

	hits, misses uint64
}

type entry struct {
	key string

	// Exactly one of plain and packed is meaningful, selected by compressed.
	plain      string
	packed     []byte
	compressed bool
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Len    int    `json:"len"`
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// New creates a cache holding at most size entries.
//
// If compress is true, values are stored zstd-compressed when this reduces space.
// Most translations are short phrases that do not shrink, so compression mainly
// pays off for long event descriptions.
//
// It returns an error if size is not a positive integer.
func New(size int, compress bool) (*Cache, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	c := &Cache{
		size:      size,
		evictList: list.New(),
		items:     make(map[string]*list.Element, size),
	}

	if compress {
		// A nil writer/reader allows stateless EncodeAll/DecodeAll.
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}

		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}

		c.zstdEnc = enc
		c.zstdDec = dec
	}

	return c, nil
}

// Add stores value under key and marks it as most recently used.
//
// If the cache is at capacity, the least recently used entry is evicted.
// Add reports whether an eviction occurred.
func (c *Cache) Add(key, value string) bool {
	// Compress outside the lock; EncodeAll is safe for concurrent use.
	ent := c.pack(key, value)

	c.lock.Lock()
	defer c.lock.Unlock()

	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)
		el.Value = ent

		return false
	}

	c.items[key] = c.evictList.PushFront(ent)

	evicted := c.evictList.Len() > c.size
	if evicted {
		c.removeElement(c.evictList.Back())
	}

	return evicted
}

// Get returns the value for key and marks it as most recently used.
func (c *Cache) Get(key string) (string, bool) {
	c.lock.Lock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		c.lock.Unlock()

		return "", false
	}

	c.hits++
	c.evictList.MoveToFront(el)
	ent, _ := el.Value.(*entry)

	c.lock.Unlock()

	return c.unpack(ent)
}

// Stats returns usage counters.
func (c *Cache) Stats() Stats {
	c.lock.Lock()
	defer c.lock.Unlock()

	return Stats{
		Len:    c.evictList.Len(),
		Size:   c.size,
		Hits:   c.hits,
		Misses: c.misses,
	}
}

func (c *Cache) removeElement(el *list.Element) {
	c.evictList.Remove(el)

	if ent, ok := el.Value.(*entry); ok {
		delete(c.items, ent.key)
	}
}

// pack builds an entry for value, compressing it only when that saves space.
func (c *Cache) pack(key, value string) *entry {
	if c.zstdEnc != nil && value != "" {
		packed := c.zstdEnc.EncodeAll([]byte(value), nil)
		if len(packed) < len(value) {
			return &entry{key: key, packed: packed, compressed: true}
		}
	}

	return &entry{key: key, plain: value}
}

// unpack returns the stored string. A value that fails to decompress is reported as missing.
func (c *Cache) unpack(ent *entry) (string, bool) {
	if ent == nil {
		return "", false
	}

	if !ent.compressed {
		return ent.plain, true
	}

	if c.zstdDec == nil {
		return "", false
	}

	decoded, err := c.zstdDec.DecodeAll(ent.packed, nil)
	if err != nil {
		return "", false
	}

	return string(decoded), true
}

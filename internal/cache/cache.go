// Package cache stores OCR results keyed by image fingerprint.
//
// LRU is an in-process, size-bounded cache. It has no internal locking; a
// caller sharing one across goroutines must serialize access itself.
// RedisStore shares results between processes.
package cache

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/ironsheep/ocrpipe/internal/result"
)

// DefaultCapacity is the number of results an LRU keeps by default.
const DefaultCapacity = 10

// Store is a result cache keyed by fingerprint.
type Store interface {
	// Get returns the cached result for key. A miss returns ok == false and
	// a nil error.
	Get(ctx context.Context, key string) (res *result.GroupedResult, ok bool, err error)

	// Set stores res under key.
	Set(ctx context.Context, key string, res *result.GroupedResult) error
}

// LRU is a least-recently-used result cache.
type LRU struct {
	lru *simplelru.LRU[string, *result.GroupedResult]
}

// NewLRU returns an LRU holding up to capacity results. A capacity of zero or
// less uses DefaultCapacity.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// NewLRU only fails for a non-positive size.
	l, _ := simplelru.NewLRU[string, *result.GroupedResult](capacity, nil)
	return &LRU{lru: l}
}

// Get returns the result for key and marks it most recently used.
func (c *LRU) Get(_ context.Context, key string) (*result.GroupedResult, bool, error) {
	res, ok := c.lru.Get(key)
	return res, ok, nil
}

// Set inserts or refreshes key, evicting the least recently used entry when
// the cache is full.
func (c *LRU) Set(_ context.Context, key string, res *result.GroupedResult) error {
	c.lru.Add(key, res)
	return nil
}

// Len returns the number of cached results.
func (c *LRU) Len() int {
	return c.lru.Len()
}

// Keys returns the cached keys from least to most recently used.
func (c *LRU) Keys() []string {
	return c.lru.Keys()
}

// Purge removes every entry.
func (c *LRU) Purge() {
	c.lru.Purge()
}

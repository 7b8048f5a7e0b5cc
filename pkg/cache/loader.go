// Package cache provides a bounded LRU cache whose misses are filled by a loader,
// with concurrent misses for one key coalesced into a single load.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Loader fills a cache miss.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Loading caches loader results by key. Failed loads are not cached.
type Loading[K comparable, V any] struct {
	entries *lru.Cache[string, V]
	flight  singleflight.Group
	keyFunc func(K) string
}

// NewLoading creates a cache holding at most size entries. keyFunc maps keys to their
// cache identity, e.g. to fold case or whitespace so equivalent keys share an entry.
func NewLoading[K comparable, V any](size int, keyFunc func(K) string) (*Loading[K, V], error) {
	entries, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}

	return &Loading[K, V]{entries: entries, keyFunc: keyFunc}, nil
}

// Get returns the cached value for key or loads it. hit reports whether the value came from the cache.
// While one load for a key runs, other callers for the same key wait and share its result.
func (c *Loading[K, V]) Get(ctx context.Context, key K, load Loader[K, V]) (value V, hit bool, err error) {
	id := c.keyFunc(key)
	if v, ok := c.entries.Get(id); ok {
		return v, true, nil
	}

	res, err, _ := c.flight.Do(id, func() (any, error) {
		v, loadErr := load(ctx, key)
		if loadErr != nil {
			return nil, loadErr
		}

		c.entries.Add(id, v)

		return v, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}

	return res.(V), false, nil
}

// Remove drops the entry for key.
func (c *Loading[K, V]) Remove(key K) {
	c.entries.Remove(c.keyFunc(key))
}

// Purge drops every entry.
func (c *Loading[K, V]) Purge() {
	c.entries.Purge()
}

// Len returns the number of cached entries.
func (c *Loading[K, V]) Len() int {
	return c.entries.Len()
}

// Package cache implements the bounded LRU page cache shared by all
// B-tree traversals (spec §4.F): a read-through accelerator that parses
// and caches pages by number, evicting least-recently-used entries once
// at capacity. Correctness of any caller must never depend on the cache
// being present — a miss always falls through to the loader.
package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/abelmoreno/sqlitereader/internal/page"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 2048

// Loader parses the page at pageNumber from the backing image.
type Loader func(pageNumber int) (*page.Page, error)

// Cache is a read-through LRU cache of parsed pages keyed by page number.
// It is owned by a single database instance and is never shared across
// instances (spec §5).
type Cache struct {
	mu     sync.Mutex
	lru    *lru.Cache
	loader Loader
	hits   uint64
	misses uint64
}

// New creates a cache with the given capacity (pages) backed by loader.
func New(capacity int, loader Loader) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		lru:    lru.New(capacity),
		loader: loader,
	}
}

// Get returns the parsed page for pageNumber, consulting the cache first
// and falling through to the loader on a miss. A hit moves the entry to
// the most-recently-used position.
func (c *Cache) Get(pageNumber int) (*page.Page, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(pageNumber); ok {
		c.hits++
		c.mu.Unlock()
		return v.(*page.Page), nil
	}
	c.misses++
	c.mu.Unlock()

	pg, err := c.loader(pageNumber)
	if err != nil {
		return nil, err
	}
	if pg == nil {
		return nil, nil
	}

	c.mu.Lock()
	c.lru.Add(pageNumber, pg)
	c.mu.Unlock()
	return pg, nil
}

// Len reports the number of pages currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats reports cumulative hit/miss counters, useful for diagnostics.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear empties the cache, e.g. when the caller knows the backing image
// may have changed underneath it.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru = lru.New(c.lru.MaxEntries)
}

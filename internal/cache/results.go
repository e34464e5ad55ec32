package cache

import (
	"strconv"
	"time"

	"capext/internal/core"
)

// Result is a projected roster ready to be downloaded.
type Result struct {
	RunID      int64
	OutputName string
	Content    string
}

// ResultCache keeps recent projection results keyed by run ID so downloads
// right after a projection do not hit the run store.
type ResultCache struct {
	lru *LRUCache[Result]
}

// NewResultCache creates a result cache holding at most size entries for ttl.
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	return &ResultCache{lru: NewLRUCache[Result](size, ttl)}
}

// Put caches the downloadable part of run.
func (c *ResultCache) Put(run core.Run) {
	c.lru.Set(runKey(run.ID), Result{
		RunID:      run.ID,
		OutputName: run.OutputName,
		Content:    run.Content,
	})
}

// Lookup returns the cached result for a run ID.
func (c *ResultCache) Lookup(id int64) (Result, bool) {
	return c.lru.Get(runKey(id))
}

// CleanExpired implements Cleaner.
func (c *ResultCache) CleanExpired() int {
	return c.lru.CleanExpired()
}

// Size returns the number of cached results.
func (c *ResultCache) Size() int {
	return c.lru.Size()
}

func runKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

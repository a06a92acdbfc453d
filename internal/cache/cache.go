// Package cache memoizes evaluator output keyed by snapshot version, key,
// and context fingerprint. Entries from superseded snapshots are orphaned by
// their version component and reclaimed by bounded LRU-style eviction,
// never swept eagerly.
package cache

import (
	"strconv"

	"github.com/banderole-io/banderole/internal/domain"
	"github.com/dgraph-io/ristretto"
)

// EvaluationCache wraps Ristretto for memoized evaluation results. Safe for
// concurrent use; concurrent misses for the same entry may compute twice,
// which is acceptable, but callers always observe a coherent result.
type EvaluationCache struct {
	cache *ristretto.Cache
}

// DefaultMaxEntries bounds the cache when the caller does not configure it.
const DefaultMaxEntries = 65536

// New creates an evaluation cache holding at most maxEntries results.
func New(maxEntries int64) (*EvaluationCache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &EvaluationCache{cache: cache}, nil
}

// GetOrEvaluate returns the memoized result for (snapshotVersion, key,
// fingerprint), calling compute on a miss and storing its result. Errors
// from compute are returned as-is and never cached.
func (c *EvaluationCache) GetOrEvaluate(snapshotVersion, key string, fingerprint uint64, compute func() (*domain.EvaluationResult, error)) (*domain.EvaluationResult, error) {
	cacheKey := entryKey(snapshotVersion, key, fingerprint)

	if value, found := c.cache.Get(cacheKey); found {
		if result, ok := value.(*domain.EvaluationResult); ok {
			return result, nil
		}
	}

	result, err := compute()
	if err != nil {
		return nil, err
	}

	c.cache.Set(cacheKey, result, 1)
	return result, nil
}

// Wait blocks until pending writes are applied. Test helper; production
// callers tolerate the write buffer's eventual visibility.
func (c *EvaluationCache) Wait() {
	c.cache.Wait()
}

// Clear drops every entry.
func (c *EvaluationCache) Clear() {
	c.cache.Clear()
}

// Close releases the cache's resources.
func (c *EvaluationCache) Close() {
	c.cache.Close()
}

// Metrics exposes hit/miss counters for telemetry.
func (c *EvaluationCache) Metrics() *ristretto.Metrics {
	return c.cache.Metrics
}

func entryKey(snapshotVersion, key string, fingerprint uint64) string {
	return snapshotVersion + "/" + key + "/" + strconv.FormatUint(fingerprint, 16)
}

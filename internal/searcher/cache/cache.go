// Package cache stores resolved query results in Redis. Keys are derived
// from the index name and the normalised query terms, so queries that
// differ only in case, punctuation, stop-words or term order share an entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/redis"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, index, query string) (*resolver.Result, bool) {
	key := BuildKey(index, query)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result resolver.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "index", index, "query", query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, index, query string, result *resolver.Result) {
	key := BuildKey(index, query)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result or computes, stores and returns a
// fresh one. Concurrent misses for the same key share one computation.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	index, query string,
	computeFn func() (*resolver.Result, error),
) (*resolver.Result, bool, error) {
	if result, ok := c.Get(ctx, index, query); ok {
		return result, true, nil
	}
	key := BuildKey(index, query)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, index, query, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*resolver.Result), false, nil
}

func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the cache key for a query against index.
func BuildKey(index, query string) string {
	raw := index + "|" + normalizeQuery(query)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery reduces query to its sorted, de-duplicated terms. AND
// semantics make term order and repetition irrelevant.
func normalizeQuery(query string) string {
	terms := tokenizer.Terms(query)
	sort.Strings(terms)
	unique := terms[:0]
	for i, t := range terms {
		if i == 0 || t != terms[i-1] {
			unique = append(unique, t)
		}
	}
	return strings.Join(unique, ",")
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/redis"
)

type mapStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.ErrNil
	}
	return v, nil
}

func (m *mapStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *mapStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = make(map[string]string)
	return n, nil
}

func newTestHandler(t *testing.T, maxResults int) *Handler {
	t.Helper()
	return New(newTestResolver(t), nil, nil, maxResults)
}

func newTestResolver(t *testing.T) *resolver.Resolver {
	t.Helper()
	b := indexer.NewBuilder(config.IndexerConfig{Workers: 1, LockShards: 4}, nil)
	for _, rec := range []ingestion.Record{
		{
			"url":              "https://shop.example/product/11?variant=blue",
			"title":            "Blue Widget",
			"product_features": map[string]any{"brand": "Acme"},
			"product_reviews":  []any{map[string]any{"rating": 4.0}, map[string]any{"rating": 5.0}},
		},
		{"url": "https://shop.example/product/12", "title": "Red Widget"},
	} {
		_, err := b.Ingest(rec)
		require.NoError(t, err)
	}
	return resolver.New(b.Freeze(), nil)
}

func get(t *testing.T, fn http.HandlerFunc, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSearch(t *testing.T) {
	h := newTestHandler(t, 100)

	rec, _ := get(t, h.Search, "/api/v1/search?index=title&q=widget")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalHits)
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, "11", resp.Hits[0].ProductID)
	assert.Equal(t, "blue", resp.Hits[0].Variant)
	require.NotNil(t, resp.Hits[0].Reviews)
	assert.Equal(t, 4.5, resp.Hits[0].Reviews.MeanMark)
	assert.Equal(t, "12", resp.Hits[1].ProductID)
	assert.False(t, resp.CacheHit)
}

func TestSearchCacheHitEchoesRequestTerms(t *testing.T) {
	qc := cache.New(&mapStore{data: make(map[string]string)}, time.Minute, nil)
	h := New(newTestResolver(t), qc, nil, 100)

	rec, _ := get(t, h.Search, "/api/v1/search?index=title&q=blue+widget")
	require.Equal(t, http.StatusOK, rec.Code)
	var first SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.False(t, first.CacheHit)
	assert.Equal(t, []string{"blue", "widget"}, first.Terms)

	rec, _ = get(t, h.Search, "/api/v1/search?index=title&q=Widget+BLUE")
	require.Equal(t, http.StatusOK, rec.Code)
	var second SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.CacheHit)
	assert.Equal(t, "Widget BLUE", second.Query)
	assert.Equal(t, []string{"widget", "blue"}, second.Terms)
	assert.Equal(t, first.TotalHits, second.TotalHits)
}

func TestSearchLimit(t *testing.T) {
	h := newTestHandler(t, 1)

	rec, body := get(t, h.Search, "/api/v1/search?index=title&q=widget")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["total_hits"])
	assert.EqualValues(t, 1, body["returned"])

	rec, _ = get(t, h.Search, "/api/v1/search?index=title&q=widget&limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEmptyQuery(t *testing.T) {
	h := newTestHandler(t, 100)
	rec, body := get(t, h.Search, "/api/v1/search?index=brand&q=the")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["total_hits"])
	assert.Empty(t, body["hits"])
}

func TestSearchErrors(t *testing.T) {
	h := newTestHandler(t, 100)

	rec, body := get(t, h.Search, "/api/v1/search?q=widget")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "index")

	rec, _ = get(t, h.Search, "/api/v1/search?index=colour&q=blue")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviews(t *testing.T) {
	h := newTestHandler(t, 100)

	rec, body := get(t, h.Reviews, "/api/v1/reviews?url=https://shop.example/product/11%3Fvariant%3Dblue")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["total_reviews"])
	assert.EqualValues(t, 4.5, body["mean_mark"])
	assert.EqualValues(t, 5, body["last_rating"])
	assert.Equal(t, "11", body["product_id"])

	rec, _ = get(t, h.Reviews, "/api/v1/reviews?url=https://shop.example/product/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = get(t, h.Reviews, "/api/v1/reviews")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexes(t *testing.T) {
	h := newTestHandler(t, 100)
	rec, body := get(t, h.Indexes, "/api/v1/indexes")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 2, summary["documents"])
	assert.EqualValues(t, 1, summary["brand_terms"])
}

func TestCacheEndpointsWithoutCache(t *testing.T) {
	h := newTestHandler(t, 100)

	rec, body := get(t, h.CacheStats, "/api/v1/cache/stats")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", body["status"])

	rec = httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

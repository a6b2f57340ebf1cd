// Package handler exposes the frozen catalog indexes over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/reviews"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/searcher/resolver"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/metrics"
)

type SearchService interface {
	Execute(ctx context.Context, name, query string) (*resolver.Result, error)
	Review(docID string) (reviews.Stats, bool)
	Summary() indexer.Summary
}

// Hit is one matching document, annotated with the product identity
// parsed from its URL and its review summary.
type Hit struct {
	URL       string         `json:"url"`
	ProductID string         `json:"product_id,omitempty"`
	Variant   string         `json:"variant,omitempty"`
	Reviews   *reviews.Stats `json:"reviews,omitempty"`
}

type SearchResponse struct {
	Index     string   `json:"index"`
	Query     string   `json:"query"`
	Terms     []string `json:"terms"`
	TotalHits int      `json:"total_hits"`
	Returned  int      `json:"returned"`
	Hits      []Hit    `json:"hits"`
	CacheHit  bool     `json:"cache_hit"`
	LatencyMs int64    `json:"latency_ms"`
}

type ReviewResponse struct {
	URL       string `json:"url"`
	ProductID string `json:"product_id,omitempty"`
	Variant   string `json:"variant,omitempty"`
	reviews.Stats
}

type Handler struct {
	service    SearchService
	cache      *cache.QueryCache
	metrics    *metrics.Metrics
	maxResults int
	logger     *slog.Logger
}

// New creates a Handler. queryCache and m may be nil.
func New(service SearchService, queryCache *cache.QueryCache, m *metrics.Metrics, maxResults int) *Handler {
	return &Handler{
		service:    service,
		cache:      queryCache,
		metrics:    m,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	name := r.URL.Query().Get("index")
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'index' is required")
		return
	}
	query := r.URL.Query().Get("q")

	limit := h.maxResults
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if h.maxResults <= 0 || parsed < h.maxResults {
			limit = parsed
		}
	}

	var (
		result   *resolver.Result
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, name, query, func() (*resolver.Result, error) {
			return h.service.Execute(ctx, name, query)
		})
	} else {
		result, err = h.service.Execute(ctx, name, query)
	}
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("search failed", "index", name, "query", query, "error", err)
			h.writeError(w, status, "search failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}

	docIDs := result.DocIDs
	if limit > 0 && len(docIDs) > limit {
		docIDs = docIDs[:limit]
	}
	hits := make([]Hit, 0, len(docIDs))
	for _, docID := range docIDs {
		hit := Hit{URL: docID}
		hit.ProductID, hit.Variant = ingestion.ParseProductURL(docID)
		if stats, ok := h.service.Review(docID); ok {
			hit.Reviews = &stats
		}
		hits = append(hits, hit)
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	}
	log.Info("search completed",
		"index", name,
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(hits),
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)

	h.writeJSON(w, http.StatusOK, &SearchResponse{
		Index:     result.Index,
		Query:     query,
		Terms:     tokenizer.Terms(query),
		TotalHits: result.TotalHits,
		Returned:  len(hits),
		Hits:      hits,
		CacheHit:  cacheHit,
		LatencyMs: elapsed.Milliseconds(),
	})
}

func (h *Handler) Reviews(w http.ResponseWriter, r *http.Request) {
	docID := r.URL.Query().Get("url")
	if docID == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'url' is required")
		return
	}
	stats, ok := h.service.Review(docID)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("no indexed document for url %q", docID))
		return
	}
	resp := ReviewResponse{URL: docID, Stats: stats}
	resp.ProductID, resp.Variant = ingestion.ParseProductURL(docID)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Indexes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"indexes": indexer.IndexNames,
		"summary": h.service.Summary(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

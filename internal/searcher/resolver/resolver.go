// Package resolver answers boolean AND queries against a frozen catalog
// index. Query text goes through the same tokenizer as indexing, so
// normalisation can never drift between the two sides.
package resolver

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/reviews"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/metrics"
)

// Resolve returns the sorted IDs of documents that contain every token of
// query. A query with no surviving tokens, or with any token missing from
// idx, matches nothing.
func Resolve(query string, idx index.Lookup) []string {
	terms := tokenizer.Terms(query)
	if len(terms) == 0 {
		return []string{}
	}
	var candidates map[string]struct{}
	for _, term := range terms {
		docIDs, ok := idx.DocIDs(term)
		if !ok {
			return []string{}
		}
		if candidates == nil {
			candidates = make(map[string]struct{}, len(docIDs))
			for _, id := range docIDs {
				candidates[id] = struct{}{}
			}
		} else {
			candidates = intersect(candidates, docIDs)
		}
		if len(candidates) == 0 {
			return []string{}
		}
	}
	result := make([]string, 0, len(candidates))
	for id := range candidates {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

func intersect(candidates map[string]struct{}, docIDs []string) map[string]struct{} {
	next := make(map[string]struct{}, min(len(candidates), len(docIDs)))
	for _, id := range docIDs {
		if _, ok := candidates[id]; ok {
			next[id] = struct{}{}
		}
	}
	return next
}

// Result is the answer to a named-index query.
type Result struct {
	Index     string   `json:"index"`
	Query     string   `json:"query"`
	Terms     []string `json:"terms"`
	TotalHits int      `json:"total_hits"`
	DocIDs    []string `json:"doc_ids"`
}

// Resolver serves queries against one frozen Snapshot.
type Resolver struct {
	snap    *indexer.Snapshot
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Resolver over snap. m may be nil.
func New(snap *indexer.Snapshot, m *metrics.Metrics) *Resolver {
	return &Resolver{
		snap:    snap,
		metrics: m,
		logger:  slog.Default().With("component", "query-resolver"),
	}
}

// Execute resolves query against the index called name.
func (r *Resolver) Execute(ctx context.Context, name, query string) (*Result, error) {
	start := time.Now()
	idx, err := r.snap.Index(name)
	if err != nil {
		r.count(name, "error")
		return nil, err
	}
	docIDs := Resolve(query, idx)
	result := &Result{
		Index:     name,
		Query:     query,
		Terms:     tokenizer.Terms(query),
		TotalHits: len(docIDs),
		DocIDs:    docIDs,
	}
	if len(docIDs) == 0 {
		r.count(name, "zero_result")
	} else {
		r.count(name, "hit")
	}
	r.logger.DebugContext(ctx, "query executed",
		"index", name,
		"query", query,
		"terms", result.Terms,
		"results", result.TotalHits,
		"elapsed", time.Since(start),
	)
	return result, nil
}

// Review returns the review stats of docID.
func (r *Resolver) Review(docID string) (reviews.Stats, bool) {
	return r.snap.Review(docID)
}

// Summary describes the served snapshot.
func (r *Resolver) Summary() indexer.Summary {
	return r.snap.Summary()
}

func (r *Resolver) count(name, resultType string) {
	if r.metrics != nil {
		r.metrics.SearchQueriesTotal.WithLabelValues(name, resultType).Inc()
	}
}

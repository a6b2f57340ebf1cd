package index

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/shard"
)

type categoricalShard struct {
	mu    sync.Mutex
	terms map[string]map[string]struct{}
}

// CategoricalIndex accumulates term -> set of documents for an attribute
// field such as brand or origin.
type CategoricalIndex struct {
	router *shard.Router
	shards []*categoricalShard
}

// NewCategoricalIndex creates an empty index striped over numShards locks.
func NewCategoricalIndex(numShards int) *CategoricalIndex {
	router := shard.NewRouter(numShards)
	shards := make([]*categoricalShard, router.NumShards())
	for i := range shards {
		shards[i] = &categoricalShard{terms: make(map[string]map[string]struct{})}
	}
	return &CategoricalIndex{router: router, shards: shards}
}

// Add inserts docID into the set for term. Repeated adds are no-ops.
func (c *CategoricalIndex) Add(term, docID string) {
	if term == "" {
		return
	}
	s := c.shards[c.router.Route(term)]
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.terms[term]
	if !ok {
		docs = make(map[string]struct{})
		s.terms[term] = docs
	}
	docs[docID] = struct{}{}
}

// Snapshot materialises every set as a sorted slice. The order carries no
// meaning beyond making exports reproducible.
func (c *CategoricalIndex) Snapshot() CategoricalSnapshot {
	snap := make(CategoricalSnapshot)
	for _, s := range c.shards {
		s.mu.Lock()
		for term, docs := range s.terms {
			ids := make([]string, 0, len(docs))
			for docID := range docs {
				ids = append(ids, docID)
			}
			sort.Strings(ids)
			snap[term] = ids
		}
		s.mu.Unlock()
	}
	return snap
}

package index

import (
	"sync"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/tokenizer"
)

type positionalShard struct {
	mu    sync.Mutex
	terms map[string]Postings
}

// PositionalIndex accumulates term -> document -> positions for one
// free-text field. Terms are striped across lock shards.
type PositionalIndex struct {
	router *shard.Router
	shards []*positionalShard
}

// NewPositionalIndex creates an empty index striped over numShards locks.
func NewPositionalIndex(numShards int) *PositionalIndex {
	router := shard.NewRouter(numShards)
	shards := make([]*positionalShard, router.NumShards())
	for i := range shards {
		shards[i] = &positionalShard{terms: make(map[string]Postings)}
	}
	return &PositionalIndex{router: router, shards: shards}
}

// Add appends position to the sequence of (term, docID), creating the term
// and the document entry on first use.
func (p *PositionalIndex) Add(term, docID string, position int) {
	s := p.shards[p.router.Route(term)]
	s.mu.Lock()
	s.postings(term).add(docID, position)
	s.mu.Unlock()
}

// AddTokens indexes one field of one document. Tokens are applied in slice
// order, which keeps positions of a repeated term ascending.
func (p *PositionalIndex) AddTokens(docID string, tokens []tokenizer.Token) {
	for _, token := range tokens {
		if token.Term == "" {
			continue
		}
		p.Add(token.Term, docID, token.Position)
	}
}

// Snapshot deep-copies the index into a PositionalSnapshot. Later writes to
// the builder do not affect the returned value.
func (p *PositionalIndex) Snapshot() PositionalSnapshot {
	snap := make(PositionalSnapshot)
	for _, s := range p.shards {
		s.mu.Lock()
		for term, docs := range s.terms {
			copied := make(Postings, len(docs))
			for docID, positions := range docs {
				copied[docID] = append([]int(nil), positions...)
			}
			snap[term] = copied
		}
		s.mu.Unlock()
	}
	return snap
}

// postings returns the entry for term, inserting an empty one if needed.
// Callers must hold s.mu.
func (s *positionalShard) postings(term string) Postings {
	docs, ok := s.terms[term]
	if !ok {
		docs = make(Postings)
		s.terms[term] = docs
	}
	return docs
}

func (ps Postings) add(docID string, position int) {
	positions, ok := ps[docID]
	if !ok {
		positions = make([]int, 0, 4)
	}
	ps[docID] = append(positions, position)
}

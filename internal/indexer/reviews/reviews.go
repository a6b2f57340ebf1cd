// Package reviews aggregates product reviews into per-document statistics
// and keeps them in a concurrency-safe table keyed by document ID.
package reviews

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Stats is the review summary stored for every indexed document.
type Stats struct {
	TotalReviews int     `json:"total_reviews"`
	MeanMark     float64 `json:"mean_mark"`
	LastRating   float64 `json:"last_rating"`
}

// Aggregate summarises ratings given in input order. An empty slice yields
// the zero Stats. LastRating is the final element, not the largest.
func Aggregate(ratings []float64) Stats {
	if len(ratings) == 0 {
		return Stats{}
	}
	return Stats{
		TotalReviews: len(ratings),
		MeanMark:     Mean(ratings),
		LastRating:   ratings[len(ratings)-1],
	}
}

// Mean returns the arithmetic mean of ratings rounded to two decimal places,
// halves rounded away from zero. Each rating is taken at its shortest
// decimal form and the division is carried out exactly, so a halfway mean
// such as 2.225 always becomes 2.23.
func Mean(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, r := range ratings {
		sum = sum.Add(decimal.NewFromFloat(r))
	}
	count := decimal.NewFromInt(int64(len(ratings)))

	// sum = count*q + rem with q truncated to cents; |rem| < count/100.
	q, rem := sum.QuoRem(count, 2)
	if rem.Abs().GreaterThanOrEqual(count.Mul(halfCent)) {
		q = q.Add(decimal.New(int64(sum.Sign()), -2))
	}
	return q.InexactFloat64()
}

var halfCent = decimal.New(5, -3)

// Table maps document IDs to their Stats. A later Put for the same ID
// overwrites the earlier one.
type Table struct {
	mu    sync.RWMutex
	stats map[string]Stats
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{stats: make(map[string]Stats)}
}

// Put stores s for docID.
func (t *Table) Put(docID string, s Stats) {
	t.mu.Lock()
	t.stats[docID] = s
	t.mu.Unlock()
}

// Snapshot returns a copy of the table.
func (t *Table) Snapshot() map[string]Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Stats, len(t.stats))
	for k, v := range t.stats {
		out[k] = v
	}
	return out
}

package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/tokenizer"
)

func TestPositionalIndexRecordsPositionsInOrder(t *testing.T) {
	idx := NewPositionalIndex(4)
	idx.AddTokens("u1", tokenizer.Tokenize("red shoe red hat"))

	snap := idx.Snapshot()
	assert.Equal(t, []int{0, 2}, snap.Positions("red", "u1"))
	assert.Equal(t, []int{1}, snap.Positions("shoe", "u1"))
	assert.Equal(t, []string{"hat", "red", "shoe"}, snap.Terms())
}

func TestPositionalIndexMergesRepeatedDocuments(t *testing.T) {
	idx := NewPositionalIndex(4)
	idx.Add("blue", "u1", 0)
	idx.Add("blue", "u1", 3)
	idx.Add("blue", "u2", 1)

	snap := idx.Snapshot()
	assert.Equal(t, []int{0, 3}, snap.Positions("blue", "u1"))
	ids, ok := snap.DocIDs("blue")
	require.True(t, ok)
	assert.Equal(t, []string{"u1", "u2"}, ids)

	_, ok = snap.DocIDs("green")
	assert.False(t, ok)
}

func TestPositionalSnapshotIsDetached(t *testing.T) {
	idx := NewPositionalIndex(2)
	idx.Add("lamp", "u1", 0)
	snap := idx.Snapshot()

	idx.Add("lamp", "u1", 5)
	idx.Add("desk", "u2", 0)

	assert.Equal(t, []int{0}, snap.Positions("lamp", "u1"))
	assert.NotContains(t, snap, "desk")
}

func TestPositionalIndexConcurrentDocuments(t *testing.T) {
	idx := NewPositionalIndex(8)
	tokens := tokenizer.Tokenize("steel bottle steel lid bottle")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			idx.AddTokens(fmt.Sprintf("doc-%d", n), tokens)
		}(i)
	}
	wg.Wait()

	snap := idx.Snapshot()
	require.Len(t, snap["steel"], 50)
	for docID, positions := range snap["steel"] {
		assert.Equal(t, []int{0, 2}, positions, docID)
	}
	assert.Equal(t, []int{1, 4}, snap.Positions("bottle", "doc-7"))
}

func TestCategoricalIndexIsASet(t *testing.T) {
	idx := NewCategoricalIndex(4)
	idx.Add("acme", "u2")
	idx.Add("acme", "u1")
	idx.Add("acme", "u2")
	idx.Add("", "u3")

	snap := idx.Snapshot()
	assert.Equal(t, []string{"u1", "u2"}, snap["acme"])
	assert.Len(t, snap, 1)

	ids, ok := snap.DocIDs("acme")
	require.True(t, ok)
	assert.Len(t, ids, 2)
	_, ok = snap.DocIDs("globex")
	assert.False(t, ok)
}

func TestCategoricalIndexConcurrentAdds(t *testing.T) {
	idx := NewCategoricalIndex(4)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				idx.Add(fmt.Sprintf("term-%d", j), fmt.Sprintf("doc-%d", n))
				idx.Add(fmt.Sprintf("term-%d", j), fmt.Sprintf("doc-%d", n))
			}
		}(i)
	}
	wg.Wait()

	snap := idx.Snapshot()
	assert.Len(t, snap, 10)
	for _, term := range snap.Terms() {
		assert.Len(t, snap[term], 20, term)
	}
}

func BenchmarkPositionalIndexAdd(b *testing.B) {
	idx := NewPositionalIndex(32)
	tokens := tokenizer.Tokenize("this is a benchmark product description with several terms for testing the indexing performance")
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.AddTokens(fmt.Sprintf("doc-%d", i), tokens)
	}
}

func BenchmarkPositionalIndexAddParallel(b *testing.B) {
	idx := NewPositionalIndex(32)
	tokens := tokenizer.Tokenize("waterproof hiking boot with leather upper and rubber sole")
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			idx.AddTokens(fmt.Sprintf("doc-%p-%d", pb, i), tokens)
			i++
		}
	})
}

func BenchmarkPositionalIndexSnapshot(b *testing.B) {
	idx := NewPositionalIndex(32)
	for i := 0; i < 5000; i++ {
		idx.AddTokens(fmt.Sprintf("doc-%d", i), tokenizer.Tokenize("snapshot benchmark with multiple terms and documents"))
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Snapshot()
	}
}

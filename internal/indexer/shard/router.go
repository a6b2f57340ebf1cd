// Package shard provides hash-based routing of index keys onto a fixed
// number of shards. Index builders use it to stripe their locks by term, and
// the build pipeline uses it to pin every URL to one worker.
package shard

import "github.com/cespare/xxhash/v2"

// DefaultShards is used when a caller asks for a non-positive shard count.
const DefaultShards = 32

// Router maps string keys to shard IDs in the range [0, NumShards).
type Router struct {
	numShards uint64
}

// NewRouter creates a Router over numShards shards.
func NewRouter(numShards int) *Router {
	if numShards <= 0 {
		numShards = DefaultShards
	}
	return &Router{numShards: uint64(numShards)}
}

// Route returns the shard responsible for key. The mapping is stable for
// the lifetime of the process.
func (r *Router) Route(key string) int {
	return int(xxhash.Sum64String(key) % r.numShards)
}

// NumShards returns the number of shards managed by this router.
func (r *Router) NumShards() int {
	return int(r.numShards)
}

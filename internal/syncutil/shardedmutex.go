// Package syncutil provides synchronization helpers for per-segment state.
package syncutil

import "sync"

// ShardedMutex provides a fixed-size pool of mutexes keyed by segment id.
// Unlike sync.Map-based per-key locks, this uses bounded memory regardless
// of how many segments are seen, at the cost of occasional false sharing
// between ids that hash to the same shard.
type ShardedMutex struct {
	shards [256]sync.Mutex
}

// Lock acquires the mutex for the given segment id and returns an unlock function.
func (s *ShardedMutex) Lock(id int64) func() {
	mu := s.shard(id)
	mu.Lock()
	return mu.Unlock
}

func (s *ShardedMutex) shard(id int64) *sync.Mutex {
	// fnv-1a over the 8 little-endian bytes of the id
	h := uint64(14695981039346656037)
	for i := 0; i < 8; i++ {
		h ^= uint64(byte(id >> (8 * i)))
		h *= 1099511628211
	}
	return &s.shards[h%256]
}

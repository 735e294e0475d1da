package ratelimit

import (
	"hash/maphash"
	"sync"
	"time"
)

const shardCount = 32

type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
}

// shardedMap spreads keys over independently locked shards. All access to a
// key goes through the shard returned by lock, so check-and-mutate sequences
// on one key are serialized.
type shardedMap[K comparable, V any] struct {
	seed   maphash.Seed
	shards [shardCount]shard[K, V]
}

func newShardedMap[K comparable, V any]() *shardedMap[K, V] {
	m := &shardedMap[K, V]{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].entries = make(map[K]V)
	}
	return m
}

func (m *shardedMap[K, V]) lock(key K) *shard[K, V] {
	s := &m.shards[maphash.Comparable(m.seed, key)%shardCount]
	s.mu.Lock()
	return s
}

// sweep deletes every entry for which stale reports true and returns the
// number of removed entries.
func (m *shardedMap[K, V]) sweep(stale func(V) bool) int {
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.entries {
			if stale(v) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (m *shardedMap[K, V]) len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Clock returns the current time. Every primitive carries one so tests can
// move time forward without sleeping.
type Clock func() time.Time

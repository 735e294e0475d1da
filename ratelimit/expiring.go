package ratelimit

import "time"

type expiringEntry struct {
	count   int64
	resetAt time.Time
}

// ExpiringTokenBucket grants up to Max units per key. The allowance is not
// replenished gradually: once ExpiresIn has elapsed since the bucket was last
// reset it is treated as full again.
type ExpiringTokenBucket[K comparable] struct {
	max       int64
	expiresIn time.Duration
	now       Clock
	entries   *shardedMap[K, expiringEntry]
}

// NewExpiringTokenBucket returns a bucket of size max whose allowance is
// restored expiresIn after the first consume of a window.
func NewExpiringTokenBucket[K comparable](max int64, expiresIn time.Duration) *ExpiringTokenBucket[K] {
	return &ExpiringTokenBucket[K]{
		max:       max,
		expiresIn: expiresIn,
		now:       time.Now,
		entries:   newShardedMap[K, expiringEntry](),
	}
}

// WithClock replaces the time source. It must be called before the bucket is shared.
func (b *ExpiringTokenBucket[K]) WithClock(now Clock) *ExpiringTokenBucket[K] {
	b.now = now
	return b
}

// Max returns the bucket size.
func (b *ExpiringTokenBucket[K]) Max() int64 { return b.max }

func (b *ExpiringTokenBucket[K]) expired(e expiringEntry, now time.Time) bool {
	return now.Sub(e.resetAt) >= b.expiresIn
}

// Check reports whether cost units are available for key without consuming them.
func (b *ExpiringTokenBucket[K]) Check(key K, cost int64) bool {
	if cost > b.max {
		return false
	}
	s := b.entries.lock(key)
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || b.expired(e, b.now()) {
		return true
	}
	return e.count >= cost
}

// Consume takes cost units for key. It returns false, leaving the bucket
// untouched, when fewer than cost units remain.
func (b *ExpiringTokenBucket[K]) Consume(key K, cost int64) bool {
	if cost > b.max {
		return false
	}
	s := b.entries.lock(key)
	defer s.mu.Unlock()

	now := b.now()
	e, ok := s.entries[key]
	if !ok || b.expired(e, now) {
		s.entries[key] = expiringEntry{count: b.max - cost, resetAt: now}
		return true
	}
	if e.count < cost {
		return false
	}
	e.count -= cost
	s.entries[key] = e
	return true
}

// Reset forgets key entirely.
func (b *ExpiringTokenBucket[K]) Reset(key K) {
	s := b.entries.lock(key)
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep drops expired buckets, which are indistinguishable from absent ones.
func (b *ExpiringTokenBucket[K]) Sweep() int {
	now := b.now()
	return b.entries.sweep(func(e expiringEntry) bool { return b.expired(e, now) })
}

// Len returns the number of tracked keys.
func (b *ExpiringTokenBucket[K]) Len() int { return b.entries.len() }

package ratelimit

import "time"

type refillingEntry struct {
	count      int64
	refilledAt time.Time
}

// RefillingTokenBucket grants up to Max units per key and regains one unit
// for every whole refill interval, never exceeding Max.
type RefillingTokenBucket[K comparable] struct {
	max            int64
	refillInterval time.Duration
	now            Clock
	entries        *shardedMap[K, refillingEntry]
}

func NewRefillingTokenBucket[K comparable](max int64, refillInterval time.Duration) *RefillingTokenBucket[K] {
	return &RefillingTokenBucket[K]{
		max:            max,
		refillInterval: refillInterval,
		now:            time.Now,
		entries:        newShardedMap[K, refillingEntry](),
	}
}

// WithClock replaces the time source. It must be called before the bucket is shared.
func (b *RefillingTokenBucket[K]) WithClock(now Clock) *RefillingTokenBucket[K] {
	b.now = now
	return b
}

func (b *RefillingTokenBucket[K]) Max() int64 { return b.max }

// refill credits whole elapsed intervals. The timestamp only moves by the
// credited intervals so partial progress toward the next token is kept.
func (b *RefillingTokenBucket[K]) refill(e refillingEntry, now time.Time) refillingEntry {
	elapsed := now.Sub(e.refilledAt)
	if elapsed < b.refillInterval {
		return e
	}
	intervals := int64(elapsed / b.refillInterval)
	e.refilledAt = e.refilledAt.Add(time.Duration(intervals) * b.refillInterval)
	if intervals >= b.max-e.count {
		e.count = b.max
	} else {
		e.count += intervals
	}
	return e
}

// Check reports whether cost units are available for key. It never mutates state.
func (b *RefillingTokenBucket[K]) Check(key K, cost int64) bool {
	if cost > b.max {
		return false
	}
	s := b.entries.lock(key)
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return true
	}
	return b.refill(e, b.now()).count >= cost
}

// Consume takes cost units for key. State is only written when it succeeds.
func (b *RefillingTokenBucket[K]) Consume(key K, cost int64) bool {
	if cost > b.max {
		return false
	}
	s := b.entries.lock(key)
	defer s.mu.Unlock()

	now := b.now()
	e, ok := s.entries[key]
	if !ok {
		s.entries[key] = refillingEntry{count: b.max - cost, refilledAt: now}
		return true
	}
	e = b.refill(e, now)
	if e.count < cost {
		return false
	}
	e.count -= cost
	s.entries[key] = e
	return true
}

func (b *RefillingTokenBucket[K]) Reset(key K) {
	s := b.entries.lock(key)
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep drops buckets that have refilled completely.
func (b *RefillingTokenBucket[K]) Sweep() int {
	now := b.now()
	return b.entries.sweep(func(e refillingEntry) bool { return b.refill(e, now).count >= b.max })
}

func (b *RefillingTokenBucket[K]) Len() int { return b.entries.len() }

package ratelimit

import "time"

type throttleEntry struct {
	index     int
	updatedAt time.Time
}

// Throttler enforces an escalating wait between allowed attempts. The first
// attempt for a key is always allowed; each later attempt must wait at least
// the delay at the current step, and every allowed attempt moves one step
// further along the ladder until the last delay repeats.
type Throttler[K comparable] struct {
	delays    []time.Duration
	retention time.Duration
	now       Clock
	entries   *shardedMap[K, throttleEntry]
}

// NewThrottler builds a throttler over delays, which must not be empty.
// Entries idle for longer than the largest delay are eligible for Sweep.
func NewThrottler[K comparable](delays []time.Duration) *Throttler[K] {
	ladder := append([]time.Duration(nil), delays...)
	if len(ladder) == 0 {
		ladder = []time.Duration{0}
	}
	var longest time.Duration
	for _, d := range ladder {
		longest = max(longest, d)
	}
	return &Throttler[K]{
		delays:    ladder,
		retention: longest,
		now:       time.Now,
		entries:   newShardedMap[K, throttleEntry](),
	}
}

// WithClock replaces the time source. It must be called before the throttler is shared.
func (t *Throttler[K]) WithClock(now Clock) *Throttler[K] {
	t.now = now
	return t
}

// WithRetention overrides how long an idle entry is kept before Sweep may drop it.
func (t *Throttler[K]) WithRetention(d time.Duration) *Throttler[K] {
	t.retention = d
	return t
}

func (t *Throttler[K]) step(index int) int {
	return min(index+1, len(t.delays)-1)
}

// Consume records an attempt for key and reports whether it is allowed.
// A denied attempt leaves the entry unchanged.
func (t *Throttler[K]) Consume(key K) bool {
	s := t.entries.lock(key)
	defer s.mu.Unlock()

	now := t.now()
	e, ok := s.entries[key]
	if !ok {
		s.entries[key] = throttleEntry{index: t.step(0), updatedAt: now}
		return true
	}
	if now.Sub(e.updatedAt) < t.delays[e.index] {
		return false
	}
	s.entries[key] = throttleEntry{index: t.step(e.index), updatedAt: now}
	return true
}

// Reset restores immediate allowance for key.
func (t *Throttler[K]) Reset(key K) {
	s := t.entries.lock(key)
	delete(s.entries, key)
	s.mu.Unlock()
}

// Sweep drops entries idle for longer than the retention period.
func (t *Throttler[K]) Sweep() int {
	now := t.now()
	return t.entries.sweep(func(e throttleEntry) bool { return now.Sub(e.updatedAt) > t.retention })
}

func (t *Throttler[K]) Len() int { return t.entries.len() }

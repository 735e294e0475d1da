package webauthn

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChallengeSet remembers issued challenges until they are consumed or expire.
type ChallengeSet interface {
	Add(ctx context.Context, challenge []byte) error
	// Consume removes challenge and reports whether it was present.
	Consume(ctx context.Context, challenge []byte) (bool, error)
}

// MemoryChallengeSet is a process-local ChallengeSet.
type MemoryChallengeSet struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

func NewMemoryChallengeSet(ttl time.Duration) *MemoryChallengeSet {
	return &MemoryChallengeSet{ttl: ttl, now: time.Now, entries: make(map[string]time.Time)}
}

func (s *MemoryChallengeSet) WithClock(now func() time.Time) *MemoryChallengeSet {
	s.now = now
	return s
}

func (s *MemoryChallengeSet) Add(_ context.Context, challenge []byte) error {
	s.mu.Lock()
	s.entries[hex.EncodeToString(challenge)] = s.now().Add(s.ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryChallengeSet) Consume(_ context.Context, challenge []byte) (bool, error) {
	key := hex.EncodeToString(challenge)
	s.mu.Lock()
	defer s.mu.Unlock()
	expiresAt, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	delete(s.entries, key)
	return s.now().Before(expiresAt), nil
}

// Sweep drops expired challenges and returns how many were removed.
func (s *MemoryChallengeSet) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *MemoryChallengeSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisChallengeSet shares challenges between processes. Keys expire on
// their own, so nothing needs sweeping.
type RedisChallengeSet struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisChallengeSet(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisChallengeSet {
	if prefix == "" {
		prefix = "authgate:webauthn:challenge"
	}
	return &RedisChallengeSet{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisChallengeSet) key(challenge []byte) string {
	return s.prefix + ":" + hex.EncodeToString(challenge)
}

func (s *RedisChallengeSet) Add(ctx context.Context, challenge []byte) error {
	if err := s.rdb.SetNX(ctx, s.key(challenge), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return nil
}

func (s *RedisChallengeSet) Consume(ctx context.Context, challenge []byte) (bool, error) {
	n, err := s.rdb.Del(ctx, s.key(challenge)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return n == 1, nil
}

package limiters

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testConfig(backend string) Config {
	p := Policy{Max: 2, Period: time.Minute}
	return Config{
		Backend:               backend,
		LoginIP:               p,
		SignupIP:              p,
		ForgotPasswordIP:      p,
		ForgotPasswordUser:    p,
		WebAuthnChallengeIP:   p,
		TOTPUpdate:            p,
		TOTP:                  p,
		RecoveryCode:          p,
		VerifyEmail:           p,
		SendVerificationEmail: p,
		VerifyResetEmail:      p,
		PasswordUpdate:        p,
		LoginThrottle:         []time.Duration{0, time.Second},
	}
}

func exhaust(t *testing.T, s *Set) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := s.TOTP.Consume(ctx, "u1", 1)
		if err != nil || !ok {
			t.Fatalf("consume %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	ok, err := s.TOTP.Consume(ctx, "u1", 1)
	if err != nil {
		t.Fatalf("Consume() error: %v", err)
	}
	if ok {
		t.Fatal("expected totp bucket to be exhausted")
	}
	// Buckets are independent of each other.
	ok, err = s.RecoveryCode.Consume(ctx, "u1", 1)
	if err != nil || !ok {
		t.Fatalf("recovery bucket should be untouched: ok=%v err=%v", ok, err)
	}
}

func TestMemorySet(t *testing.T) {
	s, err := New(testConfig(BackendMemory), nil, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	exhaust(t, s)
	if len(s.sweepers) != 13 {
		t.Fatalf("expected every memory limiter to be sweepable, got %d", len(s.sweepers))
	}
}

func TestRedisSet(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig(BackendRedis)
	cfg.RedisPrefix = "test:rl"
	s, err := New(cfg, rdb, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	exhaust(t, s)
	if !mr.Exists("test:rl:totp:u1") {
		t.Fatal("expected totp bucket key under the configured prefix")
	}
	if s.Sweep() != 0 {
		t.Fatal("redis backend has nothing to sweep")
	}
}

func TestNewRejectsBadBackend(t *testing.T) {
	if _, err := New(testConfig(BackendRedis), nil, nil); err == nil {
		t.Fatal("expected error for redis backend without client")
	}
	if _, err := New(testConfig("etcd"), nil, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

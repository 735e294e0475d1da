package limiters

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authgate/ratelimit"
	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Policy sizes one bucket. Period is the window for expiring buckets and the
// refill interval for refilling buckets.
type Policy struct {
	Max    int64
	Period time.Duration
}

// Config selects the backend and sizes every named bucket.
type Config struct {
	Backend     string
	RedisPrefix string

	// Refilling buckets.
	LoginIP             Policy
	SignupIP            Policy
	ForgotPasswordIP    Policy
	ForgotPasswordUser  Policy
	WebAuthnChallengeIP Policy
	TOTPUpdate          Policy

	// Expiring buckets.
	TOTP                  Policy
	RecoveryCode          Policy
	VerifyEmail           Policy
	SendVerificationEmail Policy
	VerifyResetEmail      Policy
	PasswordUpdate        Policy

	LoginThrottle     []time.Duration
	ThrottleRetention time.Duration
}

// Set holds one limiter per protected operation.
type Set struct {
	LoginIP               ratelimit.Bucket
	LoginUser             ratelimit.Backoff
	SignupIP              ratelimit.Bucket
	ForgotPasswordIP      ratelimit.Bucket
	ForgotPasswordUser    ratelimit.Bucket
	WebAuthnChallengeIP   ratelimit.Bucket
	TOTP                  ratelimit.Bucket
	TOTPUpdate            ratelimit.Bucket
	RecoveryCode          ratelimit.Bucket
	VerifyEmail           ratelimit.Bucket
	SendVerificationEmail ratelimit.Bucket
	VerifyResetEmail      ratelimit.Bucket
	PasswordUpdate        ratelimit.Bucket

	sweepers []ratelimit.Sweeper
}

// New builds the limiter set. rdb is required for the redis backend and
// ignored otherwise. A nil now uses time.Now.
func New(cfg Config, rdb redis.UniversalClient, now ratelimit.Clock) (*Set, error) {
	if now == nil {
		now = time.Now
	}
	var b builder
	switch cfg.Backend {
	case "", BackendMemory:
		b = &memoryBuilder{now: now}
	case BackendRedis:
		if rdb == nil {
			return nil, errors.New("limiters: redis backend requires a redis client")
		}
		prefix := cfg.RedisPrefix
		if prefix == "" {
			prefix = "authgate:rl"
		}
		b = &redisBuilder{rdb: rdb, prefix: prefix, now: now}
	default:
		return nil, fmt.Errorf("limiters: unknown backend %q", cfg.Backend)
	}

	s := &Set{
		LoginIP:               b.refilling("login-ip", cfg.LoginIP),
		LoginUser:             b.throttler("login-user", cfg.LoginThrottle, cfg.ThrottleRetention),
		SignupIP:              b.refilling("signup-ip", cfg.SignupIP),
		ForgotPasswordIP:      b.refilling("forgot-ip", cfg.ForgotPasswordIP),
		ForgotPasswordUser:    b.refilling("forgot-user", cfg.ForgotPasswordUser),
		WebAuthnChallengeIP:   b.refilling("webauthn-challenge-ip", cfg.WebAuthnChallengeIP),
		TOTP:                  b.expiring("totp", cfg.TOTP),
		TOTPUpdate:            b.refilling("totp-update", cfg.TOTPUpdate),
		RecoveryCode:          b.expiring("recovery-code", cfg.RecoveryCode),
		VerifyEmail:           b.expiring("verify-email", cfg.VerifyEmail),
		SendVerificationEmail: b.expiring("send-verification-email", cfg.SendVerificationEmail),
		VerifyResetEmail:      b.expiring("verify-reset-email", cfg.VerifyResetEmail),
		PasswordUpdate:        b.expiring("password-update", cfg.PasswordUpdate),
	}
	if m, ok := b.(*memoryBuilder); ok {
		s.sweepers = m.sweepers
	}
	return s, nil
}

// Sweep drops idle in-memory state and returns the number of removed keys.
// It is a no-op for the redis backend, where keys carry their own TTL.
func (s *Set) Sweep() int {
	n := 0
	for _, sw := range s.sweepers {
		n += sw.Sweep()
	}
	return n
}

type builder interface {
	expiring(name string, p Policy) ratelimit.Bucket
	refilling(name string, p Policy) ratelimit.Bucket
	throttler(name string, delays []time.Duration, retention time.Duration) ratelimit.Backoff
}

type memoryBuilder struct {
	now      ratelimit.Clock
	sweepers []ratelimit.Sweeper
}

func (m *memoryBuilder) track(v any) {
	if sw, ok := v.(ratelimit.Sweeper); ok {
		m.sweepers = append(m.sweepers, sw)
	}
}

func (m *memoryBuilder) expiring(_ string, p Policy) ratelimit.Bucket {
	b := ratelimit.Local(ratelimit.NewExpiringTokenBucket[string](p.Max, p.Period).WithClock(m.now))
	m.track(b)
	return b
}

func (m *memoryBuilder) refilling(_ string, p Policy) ratelimit.Bucket {
	b := ratelimit.Local(ratelimit.NewRefillingTokenBucket[string](p.Max, p.Period).WithClock(m.now))
	m.track(b)
	return b
}

func (m *memoryBuilder) throttler(_ string, delays []time.Duration, retention time.Duration) ratelimit.Backoff {
	t := ratelimit.NewThrottler[string](delays).WithClock(m.now)
	if retention > 0 {
		t = t.WithRetention(retention)
	}
	b := ratelimit.LocalBackoff(t)
	m.track(b)
	return b
}

type redisBuilder struct {
	rdb    redis.UniversalClient
	prefix string
	now    ratelimit.Clock
}

func (r *redisBuilder) key(name string) string { return r.prefix + ":" + name }

func (r *redisBuilder) expiring(name string, p Policy) ratelimit.Bucket {
	return ratelimit.NewRedisExpiringBucket(r.rdb, r.key(name), p.Max, p.Period).WithClock(r.now)
}

func (r *redisBuilder) refilling(name string, p Policy) ratelimit.Bucket {
	return ratelimit.NewRedisRefillingBucket(r.rdb, r.key(name), p.Max, p.Period).WithClock(r.now)
}

func (r *redisBuilder) throttler(name string, delays []time.Duration, retention time.Duration) ratelimit.Backoff {
	return ratelimit.NewRedisThrottler(r.rdb, r.key(name), delays, retention).WithClock(r.now)
}

package authgate

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authgate/internal/audit"
	"github.com/MrEthical07/authgate/internal/crypt"
	"github.com/MrEthical07/authgate/internal/limiters"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/session"
	"github.com/MrEthical07/authgate/store"
	"github.com/MrEthical07/authgate/twofactor"
	"github.com/MrEthical07/authgate/verification"
	"github.com/MrEthical07/authgate/webauthn"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be used for one Build call.
type Builder struct {
	config Config
	store  store.Store
	redis  redis.UniversalClient
	logger *zap.Logger
	mailer Mailer

	auditSink AuditSink
	breaches  password.BreachChecker
	now       func() time.Time

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistence backend. Required.
func (b *Builder) WithStore(st store.Store) *Builder {
	b.store = st
	return b
}

// WithRedis supplies the client used by the redis rate-limit and challenge
// backends.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithPasswordChecker overrides the breach lookup used by the strength check.
func (b *Builder) WithPasswordChecker(c password.BreachChecker) *Builder {
	b.breaches = c
	return b
}

// WithClock replaces the time source of every component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}
	needsRedis := cfg.RateLimit.Backend == limiters.BackendRedis || cfg.WebAuthn.ChallengeBackend == "redis"
	if needsRedis && b.redis == nil {
		return nil, errors.New("redis client required by the configured backends")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mailer := b.mailer
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}

	// -------- SECRETS --------
	key, err := hex.DecodeString(cfg.Security.EncryptionKey)
	if err != nil {
		return nil, errors.New("Security EncryptionKey must be hex encoded")
	}
	sealer, err := crypt.New(key)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(cfg.argon2Config())
	if err != nil {
		return nil, err
	}
	breaches := b.breaches
	if breaches == nil && cfg.Password.CheckPwned {
		breaches = password.NewPwnedChecker(cfg.pwnedConfig())
	}

	ids, err := snowflake.NewNode(cfg.IDs.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}

	// -------- RATE LIMITS --------
	limits, err := limiters.New(cfg.limiterConfig(), b.redis, now)
	if err != nil {
		return nil, err
	}

	// -------- WEBAUTHN --------
	var (
		challenges   webauthn.ChallengeSet
		memChallenge *webauthn.MemoryChallengeSet
	)
	if cfg.WebAuthn.ChallengeBackend == "redis" {
		challenges = webauthn.NewRedisChallengeSet(b.redis, cfg.WebAuthn.ChallengePrefix, cfg.WebAuthn.ChallengeTTL)
	} else {
		memChallenge = webauthn.NewMemoryChallengeSet(cfg.WebAuthn.ChallengeTTL).WithClock(now)
		challenges = memChallenge
	}

	paths, resetPaths := cfg.gatePaths()

	e := &Engine{
		config:   cfg,
		store:    b.store,
		sessions: session.NewManager(b.store, session.Config{Lifetime: cfg.Session.Lifetime, RefreshWindow: cfg.Session.RefreshWindow}).WithClock(now),
		resets: session.NewResetManager(b.store, session.ResetConfig{
			Lifetime:   cfg.PasswordReset.Lifetime,
			CodeDigits: cfg.PasswordReset.CodeDigits,
		}).WithClock(now),
		verifications: verification.NewManager(b.store, verification.Config{
			Lifetime:   cfg.EmailVerification.Lifetime,
			CodeDigits: cfg.EmailVerification.CodeDigits,
		}).WithClock(now),
		gate:          twofactor.NewGate(paths, resetPaths),
		webauthn:      webauthn.NewVerifier(webauthn.Config{RPID: cfg.WebAuthn.RPID, Origin: cfg.WebAuthn.Origin}, challenges),
		memChallenges: memChallenge,
		limits:        limits,
		hasher:        hasher,
		strength:      password.NewStrengthChecker(breaches),
		sealer:        sealer,
		totp:          newTOTPManager(cfg.TOTP),
		ids:           ids,
		mailer:        mailer,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink, logger),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
		stop:    make(chan struct{}),
	}

	e.sessions.WithHooks(session.Hooks{
		Refreshed: func() { e.metricInc(MetricSessionRefreshed) },
		Expired:   func() { e.metricInc(MetricSessionExpired) },
	})

	if cfg.RateLimit.SweepInterval > 0 {
		e.startSweeper(cfg.RateLimit.SweepInterval)
	}

	b.built = true
	return e, nil
}

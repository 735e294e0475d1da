package authgate

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authgate/internal"
	"github.com/MrEthical07/authgate/internal/audit"
	"github.com/MrEthical07/authgate/internal/crypt"
	"github.com/MrEthical07/authgate/internal/limiters"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/ratelimit"
	"github.com/MrEthical07/authgate/session"
	"github.com/MrEthical07/authgate/store"
	"github.com/MrEthical07/authgate/twofactor"
	"github.com/MrEthical07/authgate/verification"
	"github.com/MrEthical07/authgate/webauthn"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Redirect targets outside the two-factor gate.
const (
	PathHome              = "/"
	PathLogin             = "/login"
	PathVerifyEmail       = "/verify-email"
	PathResetVerifyEmail  = "/reset-password/verify-email"
	PathResetPassword     = "/reset-password"
	PathRecoveryCode      = "/recovery-code"
	PathTwoFactorSettings = "/settings"
)

// Engine runs every authentication flow. Build one with New().Build(); it is
// safe for concurrent use and must be closed to stop its background workers.
type Engine struct {
	config        Config
	store         store.Store
	sessions      *session.Manager
	resets        *session.ResetManager
	verifications *verification.Manager
	gate          *twofactor.Gate
	webauthn      *webauthn.Verifier
	memChallenges *webauthn.MemoryChallengeSet
	limits        *limiters.Set
	hasher        *password.Argon2
	strength      *password.StrengthChecker
	sealer        *crypt.Sealer
	totp          *totpManager
	ids           *snowflake.Node
	mailer        Mailer
	audit         *audit.Dispatcher
	metrics       *Metrics
	logger        *zap.Logger
	now           func() time.Time

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// AuthResult is what a flow hands back to the HTTP layer. Token is set only
// when a new session was issued; the caller stores it with Cookies.SetSession.
type AuthResult struct {
	Token             string
	Session           *store.Session
	User              *store.User
	Next              twofactor.Step
	Redirect          string
	EmailVerification *store.EmailVerificationRequest
}

// Close stops the sweeper and flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		close(e.stop)
		e.wg.Wait()
		if e.audit != nil {
			e.audit.Close()
		}
	})
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Cookies returns the cookie writer matching the deployment mode.
func (e *Engine) Cookies() Cookies {
	return Cookies{Secure: e.config.Security.ProductionMode}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) startSweeper(interval time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-e.stop:
				return
			case <-t.C:
				n := e.limits.Sweep()
				if e.memChallenges != nil {
					n += e.memChallenges.Sweep()
				}
				if n > 0 {
					e.logger.Debug("swept idle limiter state", zap.Int("removed", n))
				}
			}
		}
	}()
}

/*
====================================
SESSIONS
====================================
*/

// ValidateSessionToken resolves a session cookie value. An unknown or expired
// token yields ErrAuthenticationRequired.
func (e *Engine) ValidateSessionToken(ctx context.Context, token string) (*store.Session, *store.User, error) {
	if e == nil {
		return nil, nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}
	if token == "" {
		return nil, nil, ErrAuthenticationRequired
	}
	s, u, err := e.sessions.Validate(ctx, token)
	if err != nil {
		return nil, nil, internalError(err)
	}
	if s == nil {
		return nil, nil, ErrAuthenticationRequired
	}
	return s, u, nil
}

// ValidatePasswordResetToken resolves a password reset cookie value.
func (e *Engine) ValidatePasswordResetToken(ctx context.Context, token string) (*store.PasswordResetSession, *store.User, error) {
	if token == "" {
		return nil, nil, ErrAuthenticationRequired
	}
	s, u, err := e.resets.Validate(ctx, token)
	if err != nil {
		return nil, nil, internalError(err)
	}
	if s == nil {
		return nil, nil, ErrAuthenticationRequired
	}
	return s, u, nil
}

func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if err := e.sessions.Invalidate(ctx, sessionID); err != nil {
		return internalError(err)
	}
	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogoutSession, true, 0, sessionID, nil, nil)
	return nil
}

func (e *Engine) LogoutAll(ctx context.Context, userID int64) error {
	if err := e.sessions.InvalidateAll(ctx, userID); err != nil {
		return internalError(err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)
	return nil
}

// NextStep reports where a signed-in user must go before reaching the app.
func (e *Engine) NextStep(s *store.Session, u *store.User) (twofactor.Step, string) {
	step := twofactor.NextStep(s, u)
	return step, e.redirectFor(step, u)
}

func (e *Engine) redirectFor(step twofactor.Step, u *store.User) string {
	switch step {
	case twofactor.StepVerifyEmail:
		return PathVerifyEmail
	case twofactor.StepSetup:
		return e.gate.Redirect(u)
	case twofactor.StepVerify:
		return e.gate.Redirect(u)
	default:
		return PathHome
	}
}

// TwoFactorRedirect is the verification page for u.
func (e *Engine) TwoFactorRedirect(u *store.User) string { return e.gate.Redirect(u) }

// ResetTwoFactorRedirect is the verification page for u inside a password reset.
func (e *Engine) ResetTwoFactorRedirect(u *store.User) string { return e.gate.ResetRedirect(u) }

// newSession issues a session token for u and fills in the next step.
func (e *Engine) newSession(ctx context.Context, u *store.User, twoFactorVerified bool) (*AuthResult, error) {
	token, err := session.GenerateToken()
	if err != nil {
		return nil, internalError(err)
	}
	s, err := e.sessions.Create(ctx, token, u.ID, session.Flags{TwoFactorVerified: twoFactorVerified})
	if err != nil {
		return nil, internalError(err)
	}
	e.metricInc(MetricSessionCreated)
	step, redirect := e.NextStep(s, u)
	return &AuthResult{Token: token, Session: s, User: u, Next: step, Redirect: redirect}, nil
}

/*
====================================
GATES
====================================
*/

func requireSession(s *store.Session, u *store.User) error {
	if s == nil || u == nil {
		return ErrAuthenticationRequired
	}
	return nil
}

func requireEmailVerified(u *store.User) error {
	if !u.EmailVerified {
		return ErrEmailNotVerified
	}
	return nil
}

// require2FA passes when the user has no second factor or the session has
// already passed one.
func require2FA(s *store.Session, u *store.User) error {
	if u.Registered2FA() && !s.TwoFactorVerified {
		return ErrTwoFactorNotVerified
	}
	return nil
}

// requireVerified2FA demands a registered and verified second factor.
func requireVerified2FA(s *store.Session, u *store.User) error {
	if !u.Registered2FA() {
		return ErrTwoFactorNotEnabled
	}
	if !s.TwoFactorVerified {
		return ErrTwoFactorNotVerified
	}
	return nil
}

/*
====================================
BUCKETS
====================================
*/

func ipKey(ctx context.Context) string { return clientIPFromContext(ctx) }

func userKey(id int64) string { return userIDString(id) }

// check peeks at a bucket. An empty key is never limited.
func (e *Engine) check(ctx context.Context, b ratelimit.Bucket, scope, key string, userID int64) error {
	if key == "" {
		return nil
	}
	ok, err := b.Check(ctx, key, 1)
	if err != nil {
		return internalError(err)
	}
	if !ok {
		e.emitRateLimit(ctx, scope, userID)
		return rateLimited(nil)
	}
	return nil
}

// consume takes one token from a bucket. An empty key is never limited.
func (e *Engine) consume(ctx context.Context, b ratelimit.Bucket, scope, key string, userID int64) error {
	if key == "" {
		return nil
	}
	ok, err := b.Consume(ctx, key, 1)
	if err != nil {
		return internalError(err)
	}
	if !ok {
		e.emitRateLimit(ctx, scope, userID)
		return rateLimited(nil)
	}
	return nil
}

// reset clears a bucket after a success. Failures are logged only.
func (e *Engine) reset(ctx context.Context, b interface {
	Reset(context.Context, string) error
}, scope, key string) {
	if key == "" {
		return
	}
	if err := b.Reset(ctx, key); err != nil {
		e.logger.Warn("rate limit reset failed", zap.String("scope", scope), zap.Error(err))
	}
}

/*
====================================
RECOVERY CODE SECRETS
====================================
*/

func (e *Engine) newEncryptedRecoveryCode() (string, []byte, error) {
	code, err := internal.NewRecoveryCode()
	if err != nil {
		return "", nil, err
	}
	sealed, err := e.sealer.EncryptString(code)
	if err != nil {
		return "", nil, err
	}
	return code, sealed, nil
}

package authgate

import (
	"context"
	"errors"

	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/store"
	"go.uber.org/zap"
)

// Login checks email and password and starts a session that still has to pass
// the two-factor gate. Attempts are paced per IP and throttled per account.
func (e *Engine) Login(ctx context.Context, email, pw string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	values := map[string]string{"email": email}
	ip := ipKey(ctx)

	if err := e.check(ctx, e.limits.LoginIP, "login_ip", ip, 0); err != nil {
		return nil, e.loginFailed(ctx, 0, err)
	}
	if email == "" || pw == "" {
		return nil, e.loginFailed(ctx, 0, fail(ErrMissingCredentials, nil, values))
	}
	if !ValidEmail(email) {
		return nil, e.loginFailed(ctx, 0, fail(ErrInvalidEmail, nil, values))
	}

	u, err := e.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, e.loginFailed(ctx, 0, fail(ErrAccountNotFound, nil, values))
	}
	if err != nil {
		return nil, e.loginFailed(ctx, 0, internalError(err))
	}

	if err := e.consume(ctx, e.limits.LoginIP, "login_ip", ip, u.ID); err != nil {
		return nil, e.loginFailed(ctx, u.ID, err)
	}
	uk := userKey(u.ID)
	ok, err := e.limits.LoginUser.Consume(ctx, uk)
	if err != nil {
		return nil, e.loginFailed(ctx, u.ID, internalError(err))
	}
	if !ok {
		e.emitRateLimit(ctx, "login_user", u.ID)
		return nil, e.loginFailed(ctx, u.ID, rateLimited(values))
	}

	hash, err := e.store.GetPasswordHash(ctx, u.ID)
	if err != nil {
		return nil, e.loginFailed(ctx, u.ID, internalError(err))
	}
	valid, err := e.verifyPassword(pw, hash)
	if err != nil {
		return nil, e.loginFailed(ctx, u.ID, internalError(err))
	}
	if !valid {
		return nil, e.loginFailed(ctx, u.ID, fail(ErrIncorrectPassword, nil, values))
	}
	e.reset(ctx, e.limits.LoginUser, "login_user", uk)
	e.upgradeHash(ctx, u.ID, pw, hash)

	res, err := e.newSession(ctx, u, false)
	if err != nil {
		return nil, e.loginFailed(ctx, u.ID, err)
	}
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, u.ID, res.Session.ID, nil, nil)
	return res, nil
}

func (e *Engine) loginFailed(ctx context.Context, userID int64, err error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", err, nil)
	return err
}

// verifyPassword counts input longer than the hasher accepts as a mismatch.
func (e *Engine) verifyPassword(pw, hash string) (bool, error) {
	ok, err := e.hasher.Verify(pw, hash)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return false, nil
	}
	return ok, err
}

// upgradeHash rehashes pw when the stored hash uses weaker parameters.
func (e *Engine) upgradeHash(ctx context.Context, userID int64, pw, hash string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	stale, err := e.hasher.NeedsUpgrade(hash)
	if err != nil || !stale {
		return
	}
	upgraded, err := e.hasher.Hash(pw)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.Error(err))
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, userID, upgraded); err != nil {
		e.logger.Warn("password rehash not stored", zap.Error(err))
	}
}

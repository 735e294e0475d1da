package authgate

import (
	"context"

	"github.com/MrEthical07/authgate/store"
)

// UpdatePassword changes the password of a signed-in user. All sessions and
// pending password resets of the user end, and a new session is issued that
// keeps the current 2FA state.
func (e *Engine) UpdatePassword(ctx context.Context, s *store.Session, u *store.User, current, next string) (*AuthResult, error) {
	if err := requireSession(s, u); err != nil {
		return nil, err
	}
	if err := require2FA(s, u); err != nil {
		return nil, err
	}
	if err := e.check(ctx, e.limits.PasswordUpdate, "password_update", s.ID, u.ID); err != nil {
		return nil, e.passwordChangeFailed(ctx, u.ID, s.ID, err)
	}
	if current == "" || next == "" {
		return nil, e.passwordChangeFailed(ctx, u.ID, s.ID, ErrValidationFailed)
	}
	if err := e.checkStrength(ctx, next, ErrWeakPassword, nil); err != nil {
		return nil, e.passwordChangeFailed(ctx, u.ID, s.ID, err)
	}
	if err := e.consume(ctx, e.limits.PasswordUpdate, "password_update", s.ID, u.ID); err != nil {
		return nil, e.passwordChangeFailed(ctx, u.ID, s.ID, err)
	}

	hash, err := e.store.GetPasswordHash(ctx, u.ID)
	if err != nil {
		return nil, internalError(err)
	}
	ok, err := e.verifyPassword(current, hash)
	if err != nil {
		return nil, internalError(err)
	}
	if !ok {
		return nil, e.passwordChangeFailed(ctx, u.ID, s.ID, ErrIncorrectPassword)
	}
	e.reset(ctx, e.limits.PasswordUpdate, "password_update", s.ID)

	if err := e.sessions.InvalidateAll(ctx, u.ID); err != nil {
		return nil, internalError(err)
	}
	if err := e.resets.InvalidateAll(ctx, u.ID); err != nil {
		return nil, internalError(err)
	}
	newHash, err := e.hasher.Hash(next)
	if err != nil {
		return nil, internalError(err)
	}
	if err := e.store.UpdatePasswordHash(ctx, u.ID, newHash); err != nil {
		return nil, internalError(err)
	}

	res, err := e.newSession(ctx, u, s.TwoFactorVerified)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, u.ID, res.Session.ID, nil, nil)
	return res, nil
}

func (e *Engine) passwordChangeFailed(ctx context.Context, userID int64, sessionID string, err error) error {
	e.metricInc(MetricPasswordChangeFailure)
	e.emitAudit(ctx, auditEventPasswordChange, false, userID, sessionID, err, nil)
	return err
}

// UpdateProfile sets the display name and username. It returns the updated
// user; u is left untouched.
func (e *Engine) UpdateProfile(ctx context.Context, s *store.Session, u *store.User, name, username string) (*store.User, error) {
	if err := requireSession(s, u); err != nil {
		return nil, err
	}
	if err := require2FA(s, u); err != nil {
		return nil, err
	}
	values := map[string]string{"name": name, "username": username}
	if !ValidUsername(username) {
		return nil, e.profileUpdateFailed(ctx, u.ID, s.ID, fail(ErrInvalidUsername, nil, values))
	}
	if !ValidName(name) {
		return nil, e.profileUpdateFailed(ctx, u.ID, s.ID, fail(ErrInvalidName, nil, values))
	}
	if err := e.store.UpdateProfile(ctx, u.ID, name, username); err != nil {
		return nil, e.profileUpdateFailed(ctx, u.ID, s.ID, internalError(err))
	}
	updated := *u
	updated.Name = name
	updated.Username = username
	e.emitAudit(ctx, auditEventProfileUpdate, true, u.ID, s.ID, nil, nil)
	return &updated, nil
}

func (e *Engine) profileUpdateFailed(ctx context.Context, userID int64, sessionID string, err error) error {
	e.emitAudit(ctx, auditEventProfileUpdate, false, userID, sessionID, err, nil)
	return err
}

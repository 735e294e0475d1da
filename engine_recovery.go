package authgate

import (
	"context"
	"crypto/subtle"

	"github.com/MrEthical07/authgate/store"
)

// ResetTwoFactorWithRecoveryCode removes every second factor of u when code
// matches the stored recovery code. The code is rotated in the same
// transaction, so of two concurrent calls with the same code only one wins.
// The returned path is the 2FA setup page.
func (e *Engine) ResetTwoFactorWithRecoveryCode(ctx context.Context, s *store.Session, u *store.User, code string) (string, error) {
	if err := requireSession(s, u); err != nil {
		return "", err
	}
	if err := requireEmailVerified(u); err != nil {
		return "", err
	}
	if !u.Registered2FA() {
		return "", ErrTwoFactorNotEnabled
	}
	if s.TwoFactorVerified {
		return "", ErrForbidden
	}
	if err := e.useRecoveryCode(ctx, u, s.ID, code); err != nil {
		return "", err
	}

	cleared := *u
	cleared.RegisteredTOTP = false
	cleared.RegisteredPasskey = false
	cleared.RegisteredSecurityKey = false
	return e.gate.Redirect(&cleared), nil
}

// ResetPasswordWithRecoveryCode is the recovery-code path through the second
// factor of a password reset.
func (e *Engine) ResetPasswordWithRecoveryCode(ctx context.Context, rs *store.PasswordResetSession, u *store.User, code string) error {
	if err := requireResetEmailVerified(rs, u); err != nil {
		return err
	}
	if err := e.useRecoveryCode(ctx, u, "", code); err != nil {
		return err
	}
	if err := e.resets.SetTwoFactorVerified(ctx, rs.ID); err != nil {
		return internalError(err)
	}
	return nil
}

// useRecoveryCode consumes a bucket token, compares code with the stored
// one and runs the conditional 2FA reset.
func (e *Engine) useRecoveryCode(ctx context.Context, u *store.User, sessionID, code string) error {
	uk := userKey(u.ID)
	if err := e.check(ctx, e.limits.RecoveryCode, "recovery_code", uk, u.ID); err != nil {
		return err
	}
	if code == "" {
		return ErrMissingCode
	}
	if err := e.consume(ctx, e.limits.RecoveryCode, "recovery_code", uk, u.ID); err != nil {
		return err
	}

	sealed, err := e.store.GetRecoveryCode(ctx, u.ID)
	if err != nil {
		return internalError(err)
	}
	stored, err := e.sealer.DecryptString(sealed)
	if err != nil {
		return internalError(err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return e.recoveryFailed(ctx, u.ID, sessionID)
	}

	_, replacement, err := e.newEncryptedRecoveryCode()
	if err != nil {
		return internalError(err)
	}
	ok, err := e.store.ResetTwoFactorWithRecoveryCode(ctx, u.ID, sealed, replacement)
	if err != nil {
		return internalError(err)
	}
	if !ok {
		return e.recoveryFailed(ctx, u.ID, sessionID)
	}
	e.reset(ctx, e.limits.RecoveryCode, "recovery_code", uk)

	e.metricInc(MetricRecoveryCodeUsed)
	e.emitAudit(ctx, auditEventRecoveryCodeUsed, true, u.ID, sessionID, nil, nil)
	return nil
}

func (e *Engine) recoveryFailed(ctx context.Context, userID int64, sessionID string) error {
	e.metricInc(MetricRecoveryCodeFailed)
	e.emitAudit(ctx, auditEventRecoveryCodeUsed, false, userID, sessionID, ErrInvalidRecoveryCode, nil)
	return ErrInvalidRecoveryCode
}

// RecoveryCode reveals the current recovery code.
func (e *Engine) RecoveryCode(ctx context.Context, s *store.Session, u *store.User) (string, error) {
	if err := e.requireRecoveryAccess(s, u); err != nil {
		return "", err
	}
	sealed, err := e.store.GetRecoveryCode(ctx, u.ID)
	if err != nil {
		return "", internalError(err)
	}
	code, err := e.sealer.DecryptString(sealed)
	if err != nil {
		return "", internalError(err)
	}
	return code, nil
}

// RegenerateRecoveryCode replaces the recovery code and returns the new one.
func (e *Engine) RegenerateRecoveryCode(ctx context.Context, s *store.Session, u *store.User) (string, error) {
	if err := e.requireRecoveryAccess(s, u); err != nil {
		return "", err
	}
	code, sealed, err := e.newEncryptedRecoveryCode()
	if err != nil {
		return "", internalError(err)
	}
	if err := e.store.SetRecoveryCode(ctx, u.ID, sealed); err != nil {
		return "", internalError(err)
	}
	e.metricInc(MetricRecoveryCodeRegenerated)
	e.emitAudit(ctx, auditEventRecoveryCodeRegenerated, true, u.ID, s.ID, nil, nil)
	return code, nil
}

func (e *Engine) requireRecoveryAccess(s *store.Session, u *store.User) error {
	if err := requireSession(s, u); err != nil {
		return err
	}
	if err := requireEmailVerified(u); err != nil {
		return err
	}
	return requireVerified2FA(s, u)
}

package authgate

import (
	"context"
	"errors"

	"github.com/MrEthical07/authgate/session"
	"github.com/MrEthical07/authgate/store"
	"github.com/MrEthical07/authgate/verification"
)

// ResetStart is the outcome of ForgotPassword. Token goes into the password
// reset cookie.
type ResetStart struct {
	Token   string
	Session *store.PasswordResetSession
}

// ForgotPassword mails a reset code to the account of email and opens a reset
// session. Older reset sessions of the account are dropped.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (*ResetStart, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	values := map[string]string{"email": email}
	ip := ipKey(ctx)

	if err := e.check(ctx, e.limits.ForgotPasswordIP, "forgot_password_ip", ip, 0); err != nil {
		return nil, err
	}
	if !ValidEmail(email) {
		return nil, fail(ErrInvalidEmail, nil, values)
	}
	u, err := e.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrAccountNotFound, nil, values)
	}
	if err != nil {
		return nil, internalError(err)
	}
	if err := e.consume(ctx, e.limits.ForgotPasswordIP, "forgot_password_ip", ip, u.ID); err != nil {
		return nil, err
	}
	if err := e.consume(ctx, e.limits.ForgotPasswordUser, "forgot_password_user", userKey(u.ID), u.ID); err != nil {
		return nil, err
	}

	token, err := session.GenerateToken()
	if err != nil {
		return nil, internalError(err)
	}
	rs, err := e.resets.Create(ctx, token, u.ID, u.Email)
	if err != nil {
		return nil, internalError(err)
	}
	e.sendPasswordResetEmail(ctx, rs.Email, rs.Code)

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, u.ID, "", nil, nil)
	return &ResetStart{Token: token, Session: rs}, nil
}

func requireResetSession(rs *store.PasswordResetSession, u *store.User) error {
	if rs == nil || u == nil {
		return ErrAuthenticationRequired
	}
	return nil
}

// VerifyPasswordResetEmail checks the mailed code. The account email is
// marked verified only if it still equals the address the code went to.
// The returned path is the next page of the reset flow.
func (e *Engine) VerifyPasswordResetEmail(ctx context.Context, rs *store.PasswordResetSession, u *store.User, code string) (string, error) {
	if err := requireResetSession(rs, u); err != nil {
		return "", err
	}
	if rs.EmailVerified {
		return "", ErrForbidden
	}
	uk := userKey(u.ID)
	if err := e.check(ctx, e.limits.VerifyResetEmail, "verify_reset_email", uk, u.ID); err != nil {
		return "", err
	}
	if code == "" {
		return "", ErrMissingCode
	}
	if err := e.consume(ctx, e.limits.VerifyResetEmail, "verify_reset_email", uk, u.ID); err != nil {
		return "", err
	}
	if !verification.CodeMatches(rs.Code, code) {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetEmailVerified, false, u.ID, "", ErrIncorrectCode, nil)
		return "", ErrIncorrectCode
	}
	e.reset(ctx, e.limits.VerifyResetEmail, "verify_reset_email", uk)

	if err := e.resets.SetEmailVerified(ctx, rs.ID); err != nil {
		return "", internalError(err)
	}
	matched, err := e.store.SetEmailVerifiedIfMatches(ctx, u.ID, rs.Email)
	if err != nil {
		return "", internalError(err)
	}
	if !matched {
		return "", fail(ErrForbidden, errors.New("account email changed during reset"), nil)
	}
	e.emitAudit(ctx, auditEventPasswordResetEmailVerified, true, u.ID, "", nil, nil)

	if u.Registered2FA() {
		return e.gate.ResetRedirect(u), nil
	}
	return PathResetPassword, nil
}

// requireResetEmailVerified guards the 2FA steps of the reset flow.
func requireResetEmailVerified(rs *store.PasswordResetSession, u *store.User) error {
	if err := requireResetSession(rs, u); err != nil {
		return err
	}
	if !rs.EmailVerified {
		return ErrEmailNotVerified
	}
	if !u.Registered2FA() {
		return ErrTwoFactorNotEnabled
	}
	if rs.TwoFactorVerified {
		return ErrForbidden
	}
	return nil
}

// VerifyPasswordResetTOTP passes the reset session's second factor with a
// TOTP code.
func (e *Engine) VerifyPasswordResetTOTP(ctx context.Context, rs *store.PasswordResetSession, u *store.User, code string) error {
	if err := requireResetEmailVerified(rs, u); err != nil {
		return err
	}
	if err := e.verifyTOTPCode(ctx, u, code); err != nil {
		return err
	}
	if err := e.resets.SetTwoFactorVerified(ctx, rs.ID); err != nil {
		return internalError(err)
	}
	return nil
}

// ResetPassword sets a new password at the end of the reset flow. Every reset
// session and login session of the user is invalidated and a fresh session
// is issued carrying the reset session's 2FA flag.
func (e *Engine) ResetPassword(ctx context.Context, rs *store.PasswordResetSession, u *store.User, newPassword string) (*AuthResult, error) {
	if err := requireResetSession(rs, u); err != nil {
		return nil, err
	}
	if !rs.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if u.Registered2FA() && !rs.TwoFactorVerified {
		return nil, ErrTwoFactorNotVerified
	}
	if err := e.checkStrength(ctx, newPassword, ErrWeakPassword, nil); err != nil {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, false, u.ID, "", err, nil)
		return nil, err
	}

	if err := e.resets.InvalidateAll(ctx, u.ID); err != nil {
		return nil, internalError(err)
	}
	if err := e.sessions.InvalidateAll(ctx, u.ID); err != nil {
		return nil, internalError(err)
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return nil, internalError(err)
	}
	if err := e.store.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return nil, internalError(err)
	}

	res, err := e.newSession(ctx, u, rs.TwoFactorVerified)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, u.ID, res.Session.ID, nil, nil)
	return res, nil
}

package authgate

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/MrEthical07/authgate/store"
)

// TOTPKey is a freshly generated authenticator secret. Encoded is what the
// setup form posts back; URI feeds the QR code.
type TOTPKey struct {
	Key     []byte
	Encoded string
	URI     string
}

// GenerateTOTPKey creates a new key for u. Nothing is stored until SetupTOTP.
func (e *Engine) GenerateTOTPKey(u *store.User) (*TOTPKey, error) {
	if u == nil {
		return nil, ErrAuthenticationRequired
	}
	raw, uri, err := e.totp.GenerateKey(u.Username)
	if err != nil {
		return nil, internalError(err)
	}
	return &TOTPKey{Key: raw, Encoded: base64.StdEncoding.EncodeToString(raw), URI: uri}, nil
}

// SetupTOTP registers or replaces the user's authenticator key once code
// proves the authenticator holds it. The session counts as 2FA-verified
// afterwards.
func (e *Engine) SetupTOTP(ctx context.Context, s *store.Session, u *store.User, encodedKey, code string) error {
	if err := requireSession(s, u); err != nil {
		return err
	}
	if err := requireEmailVerified(u); err != nil {
		return err
	}
	if err := require2FA(s, u); err != nil {
		return err
	}
	uk := userKey(u.ID)
	if err := e.check(ctx, e.limits.TOTPUpdate, "totp_update", uk, u.ID); err != nil {
		return err
	}
	if encodedKey == "" || code == "" {
		return ErrMissingCode
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil || len(key) != e.config.TOTP.KeyBytes {
		return ErrInvalidTOTPKey
	}
	if err := e.consume(ctx, e.limits.TOTPUpdate, "totp_update", uk, u.ID); err != nil {
		return err
	}
	if !e.totp.Verify(key, code, e.now()) {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPEnabled, false, u.ID, s.ID, ErrIncorrectCode, nil)
		return ErrIncorrectCode
	}

	sealed, err := e.sealer.Encrypt(key)
	if err != nil {
		return internalError(err)
	}
	if err := e.store.ReplaceTOTPKey(ctx, u.ID, sealed); err != nil {
		return internalError(err)
	}
	if err := e.sessions.SetTwoFactorVerified(ctx, s.ID); err != nil {
		return internalError(err)
	}
	e.metricInc(MetricTOTPEnabled)
	e.emitAudit(ctx, auditEventTOTPEnabled, true, u.ID, s.ID, nil, nil)
	return nil
}

// VerifyTOTP passes the session's second factor with a code from the
// registered authenticator.
func (e *Engine) VerifyTOTP(ctx context.Context, s *store.Session, u *store.User, code string) error {
	if err := requireSession(s, u); err != nil {
		return err
	}
	if err := requireEmailVerified(u); err != nil {
		return err
	}
	if !u.RegisteredTOTP {
		return ErrTwoFactorNotEnabled
	}
	if err := e.verifyTOTPCode(ctx, u, code); err != nil {
		e.emitAudit(ctx, auditEventTOTPVerify, false, u.ID, s.ID, err, nil)
		return err
	}
	if err := e.sessions.SetTwoFactorVerified(ctx, s.ID); err != nil {
		return internalError(err)
	}
	e.emitAudit(ctx, auditEventTOTPVerify, true, u.ID, s.ID, nil, nil)
	return nil
}

// DeleteTOTP removes the authenticator key. The session must have passed 2FA.
func (e *Engine) DeleteTOTP(ctx context.Context, s *store.Session, u *store.User) error {
	if err := requireSession(s, u); err != nil {
		return err
	}
	if err := requireVerified2FA(s, u); err != nil {
		return err
	}
	if !u.RegisteredTOTP {
		return ErrTwoFactorNotEnabled
	}
	if err := e.store.DeleteTOTPKey(ctx, u.ID); err != nil {
		return internalError(err)
	}
	e.metricInc(MetricTOTPDisabled)
	e.emitAudit(ctx, auditEventTOTPDisabled, true, u.ID, s.ID, nil, nil)
	return nil
}

// verifyTOTPCode runs the TOTP bucket and the code check shared by the login
// gate and the reset flow. The bucket token is taken before the code is
// compared and returned on success.
func (e *Engine) verifyTOTPCode(ctx context.Context, u *store.User, code string) error {
	if !u.RegisteredTOTP {
		return ErrTwoFactorNotEnabled
	}
	uk := userKey(u.ID)
	if err := e.check(ctx, e.limits.TOTP, "totp", uk, u.ID); err != nil {
		return err
	}
	if code == "" {
		return ErrMissingCode
	}
	if err := e.consume(ctx, e.limits.TOTP, "totp", uk, u.ID); err != nil {
		return err
	}

	sealed, err := e.store.GetTOTPKey(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTwoFactorNotEnabled
	}
	if err != nil {
		return internalError(err)
	}
	key, err := e.sealer.Decrypt(sealed)
	if err != nil {
		return internalError(err)
	}
	if !e.totp.Verify(key, code, e.now()) {
		e.metricInc(MetricTOTPFailure)
		return ErrIncorrectCode
	}
	e.reset(ctx, e.limits.TOTP, "totp", uk)
	e.metricInc(MetricTOTPSuccess)
	return nil
}

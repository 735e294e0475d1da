package authgate

import (
	"context"

	"github.com/MrEthical07/authgate/store"
	"github.com/MrEthical07/authgate/twofactor"
	"github.com/MrEthical07/authgate/verification"
)

// VerifyEmail confirms the address of the pending request requestID with
// code. On success the request is deleted, every password reset session of
// the user is dropped and the address becomes the verified email.
//
// An expired request is replaced: the new request is returned in
// AuthResult.EmailVerification together with ErrVerificationCodeExpired so
// the caller can update the cookie.
func (e *Engine) VerifyEmail(ctx context.Context, s *store.Session, u *store.User, requestID, code string) (*AuthResult, error) {
	if err := requireSession(s, u); err != nil {
		return nil, err
	}
	if err := require2FA(s, u); err != nil {
		return nil, err
	}
	uk := userKey(u.ID)
	if err := e.check(ctx, e.limits.VerifyEmail, "verify_email", uk, u.ID); err != nil {
		return nil, err
	}

	req, err := e.verifications.Get(ctx, u.ID, requestID)
	if err != nil {
		return nil, internalError(err)
	}
	if req == nil {
		return nil, ErrAuthenticationRequired
	}
	if code == "" {
		return nil, ErrMissingCode
	}
	if err := e.consume(ctx, e.limits.VerifyEmail, "verify_email", uk, u.ID); err != nil {
		return nil, err
	}

	if e.verifications.Expired(req) {
		fresh, err := e.verifications.Create(ctx, u.ID, req.Email)
		if err != nil {
			return nil, internalError(err)
		}
		e.sendVerificationEmail(ctx, fresh.Email, fresh.Code)
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, u.ID, s.ID, ErrVerificationCodeExpired, nil)
		return &AuthResult{User: u, Session: s, EmailVerification: fresh}, ErrVerificationCodeExpired
	}
	if !verification.CodeMatches(req.Code, code) {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, u.ID, s.ID, ErrIncorrectCode, nil)
		return nil, ErrIncorrectCode
	}

	if err := e.verifications.DeleteAll(ctx, u.ID); err != nil {
		return nil, internalError(err)
	}
	if err := e.resets.InvalidateAll(ctx, u.ID); err != nil {
		return nil, internalError(err)
	}
	if err := e.store.UpdateEmailAndVerify(ctx, u.ID, req.Email); err != nil {
		return nil, internalError(err)
	}
	e.reset(ctx, e.limits.VerifyEmail, "verify_email", uk)

	verified := *u
	verified.Email = req.Email
	verified.EmailVerified = true

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, u.ID, s.ID, nil, nil)

	redirect := PathHome
	if !verified.Registered2FA() {
		redirect = e.gate.Redirect(&verified)
	}
	return &AuthResult{Session: s, User: &verified, Next: twofactor.NextStep(s, &verified), Redirect: redirect}, nil
}

// ResendVerificationEmail replaces the pending request with a new code. With
// no pending request a code is sent to the current address, unless it is
// already verified.
func (e *Engine) ResendVerificationEmail(ctx context.Context, s *store.Session, u *store.User, requestID string) (*store.EmailVerificationRequest, error) {
	if err := requireSession(s, u); err != nil {
		return nil, err
	}
	if err := require2FA(s, u); err != nil {
		return nil, err
	}
	uk := userKey(u.ID)
	if err := e.check(ctx, e.limits.SendVerificationEmail, "send_verification_email", uk, u.ID); err != nil {
		return nil, err
	}

	req, err := e.verifications.Get(ctx, u.ID, requestID)
	if err != nil {
		return nil, internalError(err)
	}
	address := u.Email
	if req != nil {
		address = req.Email
	} else if u.EmailVerified {
		return nil, ErrForbidden
	}

	if err := e.consume(ctx, e.limits.SendVerificationEmail, "send_verification_email", uk, u.ID); err != nil {
		return nil, err
	}
	fresh, err := e.verifications.Create(ctx, u.ID, address)
	if err != nil {
		return nil, internalError(err)
	}
	e.sendVerificationEmail(ctx, fresh.Email, fresh.Code)
	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, u.ID, s.ID, nil, nil)
	return fresh, nil
}

// UpdateEmail starts a change of address. The new address is only stored
// once VerifyEmail succeeds with the code sent to it.
func (e *Engine) UpdateEmail(ctx context.Context, s *store.Session, u *store.User, email string) (*store.EmailVerificationRequest, error) {
	if err := requireSession(s, u); err != nil {
		return nil, err
	}
	if err := require2FA(s, u); err != nil {
		return nil, err
	}
	values := map[string]string{"email": email}
	uk := userKey(u.ID)
	if err := e.check(ctx, e.limits.SendVerificationEmail, "send_verification_email", uk, u.ID); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, fail(ErrValidationFailed, nil, values)
	}
	if !ValidEmail(email) {
		return nil, fail(ErrInvalidEmail, nil, values)
	}
	available, err := e.store.EmailAvailable(ctx, email)
	if err != nil {
		return nil, internalError(err)
	}
	if !available {
		return nil, fail(ErrEmailInUse, nil, values)
	}
	if err := e.consume(ctx, e.limits.SendVerificationEmail, "send_verification_email", uk, u.ID); err != nil {
		return nil, err
	}

	req, err := e.verifications.Create(ctx, u.ID, email)
	if err != nil {
		return nil, internalError(err)
	}
	e.sendVerificationEmail(ctx, req.Email, req.Code)
	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventEmailChangeRequest, true, u.ID, s.ID, nil, nil)
	return req, nil
}

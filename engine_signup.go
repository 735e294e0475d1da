package authgate

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/MrEthical07/authgate/store"
	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^.+@.+\..+$`)

// ValidEmail accepts addresses shorter than 256 bytes of the form a@b.c.
func ValidEmail(email string) bool {
	return len(email) < 256 && emailPattern.MatchString(email)
}

// ValidUsername accepts 4 to 31 bytes without leading or trailing spaces.
func ValidUsername(username string) bool {
	return len(username) > 3 && len(username) < 32 && strings.TrimSpace(username) == username
}

// ValidName accepts an empty display name or up to 64 bytes without leading
// or trailing spaces.
func ValidName(name string) bool {
	return len(name) <= 64 && strings.TrimSpace(name) == name
}

type SignupInput struct {
	Email    string
	Username string
	Password string
}

// Signup creates an account, sends the first verification code and signs the
// user in. The new session has not passed a second factor.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	values := map[string]string{"email": in.Email, "username": in.Username}
	ip := ipKey(ctx)

	if err := e.check(ctx, e.limits.SignupIP, "signup_ip", ip, 0); err != nil {
		return nil, e.signupFailed(ctx, err)
	}

	if in.Email == "" || in.Username == "" || in.Password == "" {
		return nil, e.signupFailed(ctx, fail(ErrValidationFailed, nil, values))
	}
	if !ValidEmail(in.Email) {
		return nil, e.signupFailed(ctx, fail(ErrInvalidEmail, nil, values))
	}
	available, err := e.store.EmailAvailable(ctx, in.Email)
	if err != nil {
		return nil, e.signupFailed(ctx, internalError(err))
	}
	if !available {
		return nil, e.signupFailed(ctx, fail(ErrEmailInUse, nil, values))
	}
	if !ValidUsername(in.Username) {
		return nil, e.signupFailed(ctx, fail(ErrInvalidUsername, nil, values))
	}
	if err := e.checkStrength(ctx, in.Password, ErrWeakPassword, values); err != nil {
		return nil, e.signupFailed(ctx, err)
	}

	if err := e.consume(ctx, e.limits.SignupIP, "signup_ip", ip, 0); err != nil {
		return nil, e.signupFailed(ctx, err)
	}

	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return nil, e.signupFailed(ctx, internalError(err))
	}
	_, sealed, err := e.newEncryptedRecoveryCode()
	if err != nil {
		return nil, e.signupFailed(ctx, internalError(err))
	}
	u, err := e.store.CreateUser(ctx, store.NewUser{
		ID:           e.ids.Generate().Int64(),
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		RecoveryCode: sealed,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, e.signupFailed(ctx, fail(ErrEmailInUse, nil, values))
	}
	if err != nil {
		return nil, e.signupFailed(ctx, internalError(err))
	}

	req, err := e.verifications.Create(ctx, u.ID, u.Email)
	if err != nil {
		return nil, e.signupFailed(ctx, internalError(err))
	}
	e.sendVerificationEmail(ctx, req.Email, req.Code)

	res, err := e.newSession(ctx, u, false)
	if err != nil {
		return nil, e.signupFailed(ctx, err)
	}
	res.EmailVerification = req

	e.metricInc(MetricSignupSuccess)
	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEventSignupSuccess, true, u.ID, res.Session.ID, nil, nil)
	return res, nil
}

func (e *Engine) signupFailed(ctx context.Context, err error) error {
	e.metricInc(MetricSignupFailure)
	e.emitAudit(ctx, auditEventSignupFailure, false, 0, "", err, nil)
	return err
}

// checkStrength maps a weak password to weak, and lookup failures to internal.
func (e *Engine) checkStrength(ctx context.Context, pw string, weak *Error, values map[string]string) error {
	strong, err := e.strength.Strong(ctx, pw)
	if err != nil {
		return internalError(err)
	}
	if !strong {
		return fail(weak, nil, values)
	}
	return nil
}

// sendVerificationEmail delivers a code. Delivery failures are logged; the
// user can ask for another code.
func (e *Engine) sendVerificationEmail(ctx context.Context, address, code string) {
	if err := e.mailer.SendVerificationEmail(ctx, address, code); err != nil {
		e.logger.Warn("verification email not sent", zap.Error(err))
	}
}

func (e *Engine) sendPasswordResetEmail(ctx context.Context, address, code string) {
	if err := e.mailer.SendPasswordResetEmail(ctx, address, code); err != nil {
		e.logger.Warn("password reset email not sent", zap.Error(err))
	}
}

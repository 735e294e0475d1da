package authgate

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/authgate/internal/audit"
)

const (
	auditEventSignupSuccess              = "signup_success"
	auditEventSignupFailure              = "signup_failure"
	auditEventLoginSuccess               = "login_success"
	auditEventLoginFailure               = "login_failure"
	auditEventLogoutSession              = "logout_session"
	auditEventLogoutAll                  = "logout_all"
	auditEventEmailVerificationRequest   = "email_verification_request"
	auditEventEmailVerificationConfirm   = "email_verification_confirm"
	auditEventPasswordResetRequest       = "password_reset_request"
	auditEventPasswordResetEmailVerified = "password_reset_email_verified"
	auditEventPasswordResetConfirm       = "password_reset_confirm"
	auditEventPasswordChange             = "password_change"
	auditEventEmailChangeRequest         = "email_change_request"
	auditEventProfileUpdate              = "profile_update"
	auditEventTOTPEnabled                = "totp_enabled"
	auditEventTOTPDisabled               = "totp_disabled"
	auditEventTOTPVerify                 = "totp_verify"
	auditEventWebAuthnRegister           = "webauthn_register"
	auditEventWebAuthnVerify             = "webauthn_verify"
	auditEventWebAuthnDelete             = "webauthn_delete"
	auditEventRecoveryCodeUsed           = "recovery_code_used"
	auditEventRecoveryCodeRegenerated    = "recovery_code_regenerated"
	auditEventRateLimitTriggered         = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrAuthRequired        AuditErrorCode = "authentication_required"
	auditErrForbidden           AuditErrorCode = "forbidden"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrInvalidInput        AuditErrorCode = "invalid_input"
	auditErrWeakPassword        AuditErrorCode = "weak_password"
	auditErrInvalidPassword     AuditErrorCode = "invalid_password"
	auditErrInvalidCode         AuditErrorCode = "invalid_code"
	auditErrCodeExpired         AuditErrorCode = "code_expired"
	auditErrInvalidWebAuthn     AuditErrorCode = "invalid_webauthn_data"
	auditErrUnsupportedAlg      AuditErrorCode = "unsupported_algorithm"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrCredentialLimit     AuditErrorCode = "credential_limit"
	auditErrNotFound            AuditErrorCode = "not_found"
	auditErrConflict            AuditErrorCode = "conflict"
	auditErrInvalidRecoveryCode AuditErrorCode = "invalid_recovery_code"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func userIDString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := audit.NewEvent(eventType, success)
	event.Timestamp = e.now().UTC()
	event.UserID = userIDString(userID)
	event.SessionID = sessionID
	event.IP = clientIPFromContext(ctx)
	event.UserAgent = userAgentFromContext(ctx)
	if metadataBuilder != nil {
		event.Metadata = metadataBuilder()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// emitRateLimit records a denied bucket. scope names the bucket.
func (e *Engine) emitRateLimit(ctx context.Context, scope string, userID int64) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, userID, "", ErrRateLimited, func() map[string]string {
		return map[string]string{"scope": scope}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrWeakPassword):
		return auditErrWeakPassword
	case errors.Is(err, ErrIncorrectPassword):
		return auditErrInvalidPassword
	case errors.Is(err, ErrIncorrectCode), errors.Is(err, ErrMissingCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrVerificationCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrInvalidWebAuthnData):
		return auditErrInvalidWebAuthn
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return auditErrUnsupportedAlg
	case errors.Is(err, ErrInvalidCredentialData), errors.Is(err, ErrEmailInUse):
		return auditErrDuplicate
	case errors.Is(err, ErrTooManyCredentials):
		return auditErrCredentialLimit
	case errors.Is(err, ErrInvalidRecoveryCode):
		return auditErrInvalidRecoveryCode
	}

	switch KindOf(err) {
	case KindAuthenticationRequired:
		return auditErrAuthRequired
	case KindForbidden:
		return auditErrForbidden
	case KindRateLimited:
		return auditErrRateLimited
	case KindValidationFailed:
		return auditErrInvalidInput
	case KindNotFound:
		return auditErrNotFound
	case KindConflict:
		return auditErrConflict
	default:
		return auditErrInternal
	}
}

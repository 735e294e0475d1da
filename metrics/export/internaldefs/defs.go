package internaldefs

import (
	"github.com/MrEthical07/authgate"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in export order.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricSignupSuccess, Name: "authgate_signup_success_total", Help: "Successful signups."},
	{ID: authgate.MetricSignupFailure, Name: "authgate_signup_failure_total", Help: "Rejected signups."},
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful login attempts."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed login attempts."},
	{ID: authgate.MetricSessionCreated, Name: "authgate_session_created_total", Help: "Created sessions."},
	{ID: authgate.MetricSessionRefreshed, Name: "authgate_session_refreshed_total", Help: "Sessions extended inside the refresh window."},
	{ID: authgate.MetricSessionExpired, Name: "authgate_session_expired_total", Help: "Expired sessions deleted on validation."},
	{ID: authgate.MetricSessionInvalidated, Name: "authgate_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Single-session logout operations."},
	{ID: authgate.MetricLogoutAll, Name: "authgate_logout_all_total", Help: "Logout-all operations."},
	{ID: authgate.MetricEmailVerificationRequest, Name: "authgate_email_verification_request_total", Help: "Email verification requests."},
	{ID: authgate.MetricEmailVerificationSuccess, Name: "authgate_email_verification_success_total", Help: "Successful email verifications."},
	{ID: authgate.MetricEmailVerificationFailure, Name: "authgate_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: authgate.MetricPasswordResetRequest, Name: "authgate_password_reset_request_total", Help: "Password reset requests."},
	{ID: authgate.MetricPasswordResetSuccess, Name: "authgate_password_reset_success_total", Help: "Completed password resets."},
	{ID: authgate.MetricPasswordResetFailure, Name: "authgate_password_reset_failure_total", Help: "Failed password reset steps."},
	{ID: authgate.MetricPasswordChangeSuccess, Name: "authgate_password_change_success_total", Help: "Successful password changes."},
	{ID: authgate.MetricPasswordChangeFailure, Name: "authgate_password_change_failure_total", Help: "Rejected password changes."},
	{ID: authgate.MetricTOTPSuccess, Name: "authgate_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: authgate.MetricTOTPFailure, Name: "authgate_totp_failure_total", Help: "Failed TOTP verifications."},
	{ID: authgate.MetricTOTPEnabled, Name: "authgate_totp_enabled_total", Help: "TOTP authenticators registered."},
	{ID: authgate.MetricTOTPDisabled, Name: "authgate_totp_disabled_total", Help: "TOTP authenticators removed."},
	{ID: authgate.MetricWebAuthnChallengeIssued, Name: "authgate_webauthn_challenge_issued_total", Help: "WebAuthn challenges issued."},
	{ID: authgate.MetricWebAuthnRegistered, Name: "authgate_webauthn_registered_total", Help: "WebAuthn credentials registered."},
	{ID: authgate.MetricWebAuthnRejected, Name: "authgate_webauthn_rejected_total", Help: "WebAuthn registrations rejected."},
	{ID: authgate.MetricWebAuthnSuccess, Name: "authgate_webauthn_success_total", Help: "Successful WebAuthn assertions."},
	{ID: authgate.MetricWebAuthnFailure, Name: "authgate_webauthn_failure_total", Help: "Failed WebAuthn assertions."},
	{ID: authgate.MetricRecoveryCodeUsed, Name: "authgate_recovery_code_used_total", Help: "Successful recovery-code resets."},
	{ID: authgate.MetricRecoveryCodeFailed, Name: "authgate_recovery_code_failed_total", Help: "Rejected recovery codes."},
	{ID: authgate.MetricRecoveryCodeRegenerated, Name: "authgate_recovery_code_regenerated_total", Help: "Recovery-code regenerations."},
	{ID: authgate.MetricRateLimitHit, Name: "authgate_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs lists every histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricValidateLatency, Name: "authgate_validate_latency_seconds", Help: "Session validation latency."},
}

// HistogramBounds are the upper bounds of the eight latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

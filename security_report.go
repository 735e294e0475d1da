package authgate

import "github.com/MrEthical07/authgate/internal/security"

type (
	SecurityReport       = security.Report
	PasswordConfigReport = security.PasswordReport
)

// SecurityReport summarizes the running configuration. replicas is the
// number of processes sharing the store; it only affects warnings.
func (e *Engine) SecurityReport(replicas int) SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config
	return security.BuildReport(security.ReportInput{
		ProductionMode:  c.Security.ProductionMode,
		SessionLifetime: c.Session.Lifetime,
		RefreshWindow:   c.Session.RefreshWindow,
		Password: PasswordConfigReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		BreachCheck:      c.Password.CheckPwned,
		TOTPDigits:       c.TOTP.Digits,
		TOTPSkew:         c.TOTP.Skew,
		RateLimitBackend: c.RateLimit.Backend,
		ChallengeBackend: c.WebAuthn.ChallengeBackend,
		MaxSecurityKeys:  c.WebAuthn.MaxSecurityKeys,
		MaxPasskeys:      c.WebAuthn.MaxPasskeys,
		AuditEnabled:     c.Audit.Enabled,
		Replicas:         replicas,
	})
}

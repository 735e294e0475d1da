package security

import "time"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Report is a read-only summary of the settings that affect account safety.
type Report struct {
	ProductionMode   bool
	SessionLifetime  time.Duration
	RefreshWindow    time.Duration
	Argon2           PasswordReport
	BreachCheck      bool
	TOTPDigits       int
	TOTPSkew         uint
	RateLimitBackend string
	ChallengeBackend string
	MaxSecurityKeys  int
	PasskeysCapped   bool
	AuditEnabled     bool
	Warnings         []string
}

type ReportInput struct {
	ProductionMode   bool
	SessionLifetime  time.Duration
	RefreshWindow    time.Duration
	Password         PasswordReport
	BreachCheck      bool
	TOTPDigits       int
	TOTPSkew         uint
	RateLimitBackend string
	ChallengeBackend string
	MaxSecurityKeys  int
	MaxPasskeys      int
	AuditEnabled     bool
	// Replicas > 1 means several processes share the store.
	Replicas int
}

// Argon2 memory below this is flagged.
const recommendedArgonMemory = 19 * 1024

func BuildReport(input ReportInput) Report {
	r := Report{
		ProductionMode:   input.ProductionMode,
		SessionLifetime:  input.SessionLifetime,
		RefreshWindow:    input.RefreshWindow,
		Argon2:           input.Password,
		BreachCheck:      input.BreachCheck,
		TOTPDigits:       input.TOTPDigits,
		TOTPSkew:         input.TOTPSkew,
		RateLimitBackend: orDefault(input.RateLimitBackend, "memory"),
		ChallengeBackend: orDefault(input.ChallengeBackend, "memory"),
		MaxSecurityKeys:  input.MaxSecurityKeys,
		PasskeysCapped:   input.MaxPasskeys > 0,
		AuditEnabled:     input.AuditEnabled,
	}

	if !r.ProductionMode {
		r.Warnings = append(r.Warnings, "cookies are not marked Secure")
	}
	if r.Argon2.Memory < recommendedArgonMemory {
		r.Warnings = append(r.Warnings, "argon2 memory is below 19 MiB")
	}
	if r.TOTPSkew > 1 {
		r.Warnings = append(r.Warnings, "TOTP accepts codes more than one period away")
	}
	if input.Replicas > 1 && r.RateLimitBackend == "memory" {
		r.Warnings = append(r.Warnings, "in-memory rate limits are per process")
	}
	if input.Replicas > 1 && r.ChallengeBackend == "memory" {
		r.Warnings = append(r.Warnings, "in-memory WebAuthn challenges are per process")
	}
	return r
}

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

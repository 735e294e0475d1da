package authgate

import (
	"strings"
	"testing"
)

func TestSecurityReportReflectsPosture(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Security.ProductionMode = true
		cfg.WebAuthn.MaxPasskeys = 10
	})

	report := env.engine.SecurityReport(1)
	if !report.ProductionMode {
		t.Fatal("expected ProductionMode=true in report")
	}
	if !report.PasskeysCapped || report.MaxSecurityKeys != 5 {
		t.Fatalf("unexpected credential caps %+v", report)
	}
	if report.TOTPSkew != 0 || report.TOTPDigits != 6 {
		t.Fatalf("unexpected totp settings %+v", report)
	}
	if report.RateLimitBackend != "memory" {
		t.Fatalf("expected memory backend, got %q", report.RateLimitBackend)
	}
	// The test config runs argon2 with 8 MiB.
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "argon2") {
		t.Fatalf("expected only the argon2 warning, got %v", report.Warnings)
	}
}

func TestSecurityReportWarnsForSharedMemoryState(t *testing.T) {
	env := newTestEnv(t, nil)

	report := env.engine.SecurityReport(3)
	var perProcess int
	for _, w := range report.Warnings {
		if strings.Contains(w, "per process") {
			perProcess++
		}
	}
	if perProcess != 2 {
		t.Fatalf("expected two per-process warnings, got %v", report.Warnings)
	}
}

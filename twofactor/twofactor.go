// Package twofactor decides where a user must go to satisfy or set up a
// second factor. Decisions are pure functions of the user's registered
// credentials and the session state.
//
// Priority is fixed: passkey, then security key, then TOTP. A user with none
// of them is sent to setup.
package twofactor

import "github.com/MrEthical07/authgate/store"

// Paths lists the destinations the gate can choose. Zero fields fall back to
// DefaultPaths.
type Paths struct {
	Passkey     string
	SecurityKey string
	TOTP        string
	Setup       string
}

var DefaultPaths = Paths{
	Passkey:     "/settings/authentication/passkey",
	SecurityKey: "/settings/authentication/security-key",
	TOTP:        "/settings/authentication/totp",
	Setup:       "/settings/authentication/setup",
}

var DefaultResetPaths = Paths{
	Passkey:     "/reset-password/2fa/passkey",
	SecurityKey: "/reset-password/2fa/security-key",
	TOTP:        "/reset-password/2fa/totp",
	Setup:       "/settings/authentication/setup",
}

func (p Paths) withDefaults(d Paths) Paths {
	if p.Passkey == "" {
		p.Passkey = d.Passkey
	}
	if p.SecurityKey == "" {
		p.SecurityKey = d.SecurityKey
	}
	if p.TOTP == "" {
		p.TOTP = d.TOTP
	}
	if p.Setup == "" {
		p.Setup = d.Setup
	}
	return p
}

// Pick returns the destination for u within p.
func (p Paths) Pick(u *store.User) string {
	switch {
	case u.RegisteredPasskey:
		return p.Passkey
	case u.RegisteredSecurityKey:
		return p.SecurityKey
	case u.RegisteredTOTP:
		return p.TOTP
	default:
		return p.Setup
	}
}

// Redirect is the verification page for a signed-in user.
func Redirect(u *store.User) string {
	return DefaultPaths.Pick(u)
}

// ResetRedirect is the verification page inside the password reset flow.
func ResetRedirect(u *store.User) string {
	return DefaultResetPaths.Pick(u)
}

// Step is what a signed-in user must do next before reaching the app.
type Step uint8

const (
	StepDone Step = iota
	StepVerifyEmail
	StepSetup
	StepVerify
)

func (s Step) String() string {
	switch s {
	case StepDone:
		return "done"
	case StepVerifyEmail:
		return "verify_email"
	case StepSetup:
		return "setup_2fa"
	case StepVerify:
		return "verify_2fa"
	default:
		return "unknown"
	}
}

// NextStep applies the gates in order: verified email, a registered second
// factor, then a session that has passed it.
func NextStep(s *store.Session, u *store.User) Step {
	switch {
	case !u.EmailVerified:
		return StepVerifyEmail
	case !u.Registered2FA():
		return StepSetup
	case !s.TwoFactorVerified:
		return StepVerify
	default:
		return StepDone
	}
}

// Gate holds configured paths for both flows.
type Gate struct {
	paths      Paths
	resetPaths Paths
}

func NewGate(paths, resetPaths Paths) *Gate {
	return &Gate{paths: paths.withDefaults(DefaultPaths), resetPaths: resetPaths.withDefaults(DefaultResetPaths)}
}

func (g *Gate) Redirect(u *store.User) string      { return g.paths.Pick(u) }
func (g *Gate) ResetRedirect(u *store.User) string { return g.resetPaths.Pick(u) }

package store

import "time"

type User struct {
	ID                    int64
	Email                 string
	Username              string
	Name                  string
	EmailVerified         bool
	RegisteredTOTP        bool
	RegisteredPasskey     bool
	RegisteredSecurityKey bool
}

// Registered2FA reports whether the user has at least one second factor.
func (u *User) Registered2FA() bool {
	return u.RegisteredTOTP || u.RegisteredPasskey || u.RegisteredSecurityKey
}

// NewUser carries the columns written at signup.
type NewUser struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	RecoveryCode []byte
}

// Session is a login session. ID is the hex SHA-256 of the bearer token.
type Session struct {
	ID                string
	UserID            int64
	ExpiresAt         time.Time
	TwoFactorVerified bool
}

// PasswordResetSession is a short-lived session scoped to one password reset.
type PasswordResetSession struct {
	ID                string
	UserID            int64
	Email             string
	Code              string
	ExpiresAt         time.Time
	EmailVerified     bool
	TwoFactorVerified bool
}

type EmailVerificationRequest struct {
	ID        string
	UserID    int64
	Email     string
	Code      string
	ExpiresAt time.Time
}

// CredentialKind distinguishes the two WebAuthn credential tables.
type CredentialKind uint8

const (
	Passkey CredentialKind = iota + 1
	SecurityKey
)

func (k CredentialKind) String() string {
	switch k {
	case Passkey:
		return "passkey"
	case SecurityKey:
		return "security_key"
	default:
		return "unknown"
	}
}

// WebAuthnCredential is a registered public key. PublicKey holds the SEC1
// uncompressed point for ES256 and the PKCS#1 DER key for RS256.
type WebAuthnCredential struct {
	ID        []byte
	UserID    int64
	Name      string
	Algorithm int
	PublicKey []byte
}

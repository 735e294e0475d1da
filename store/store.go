package store

import (
	"context"
	"time"
)

type Users interface {
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	EmailAvailable(ctx context.Context, email string) (bool, error)
	GetPasswordHash(ctx context.Context, userID int64) (string, error)
	UpdatePasswordHash(ctx context.Context, userID int64, hash string) error
	UpdateProfile(ctx context.Context, userID int64, name, username string) error
	// UpdateEmailAndVerify sets a new address and marks it verified.
	UpdateEmailAndVerify(ctx context.Context, userID int64, email string) error
	// SetEmailVerifiedIfMatches marks the address verified only when it still
	// equals email, and reports whether a row changed.
	SetEmailVerifiedIfMatches(ctx context.Context, userID int64, email string) (bool, error)
	GetRecoveryCode(ctx context.Context, userID int64) ([]byte, error)
	SetRecoveryCode(ctx context.Context, userID int64, encrypted []byte) error
	// ResetTwoFactorWithRecoveryCode atomically replaces the recovery code,
	// clears the 2FA flag of every session of the user and removes every
	// second factor, provided the stored code still equals old. It returns
	// false without changing anything when another caller won the race.
	ResetTwoFactorWithRecoveryCode(ctx context.Context, userID int64, old, replacement []byte) (bool, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, s Session) error
	// GetSessionWithUser loads a session and its user in one read.
	GetSessionWithUser(ctx context.Context, id string) (*Session, *User, error)
	UpdateSessionExpiry(ctx context.Context, id string, expiresAt time.Time) error
	SetSessionTwoFactorVerified(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID int64) error
}

type PasswordResets interface {
	CreatePasswordResetSession(ctx context.Context, s PasswordResetSession) error
	GetPasswordResetSessionWithUser(ctx context.Context, id string) (*PasswordResetSession, *User, error)
	SetPasswordResetEmailVerified(ctx context.Context, id string) error
	SetPasswordResetTwoFactorVerified(ctx context.Context, id string) error
	DeletePasswordResetSession(ctx context.Context, id string) error
	DeleteUserPasswordResetSessions(ctx context.Context, userID int64) error
}

type EmailVerifications interface {
	// ReplaceEmailVerificationRequest deletes any request of the user and
	// stores r in the same transaction.
	ReplaceEmailVerificationRequest(ctx context.Context, r EmailVerificationRequest) error
	GetUserEmailVerificationRequest(ctx context.Context, userID int64, id string) (*EmailVerificationRequest, error)
	DeleteUserEmailVerificationRequests(ctx context.Context, userID int64) error
}

type TOTPCredentials interface {
	GetTOTPKey(ctx context.Context, userID int64) ([]byte, error)
	// ReplaceTOTPKey removes any existing key of the user and stores key.
	ReplaceTOTPKey(ctx context.Context, userID int64, key []byte) error
	DeleteTOTPKey(ctx context.Context, userID int64) error
}

type WebAuthnCredentials interface {
	ListCredentials(ctx context.Context, kind CredentialKind, userID int64) ([]WebAuthnCredential, error)
	GetCredential(ctx context.Context, kind CredentialKind, userID int64, credentialID []byte) (*WebAuthnCredential, error)
	// CreateCredential inserts c unless the user already holds limit
	// credentials of that kind (ErrCredentialLimit) or the id is taken
	// (ErrDuplicate). A non-positive limit means unlimited.
	CreateCredential(ctx context.Context, kind CredentialKind, c WebAuthnCredential, limit int) error
	DeleteCredential(ctx context.Context, kind CredentialKind, userID int64, credentialID []byte) (bool, error)
}

// Store is the full data-access contract.
type Store interface {
	Users
	Sessions
	PasswordResets
	EmailVerifications
	TOTPCredentials
	WebAuthnCredentials
}

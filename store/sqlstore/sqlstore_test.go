package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/authgate/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "auth.db")})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	// Running twice must be harmless.
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}
	return New(db)
}

func createUser(t *testing.T, s *Store, id int64, email string) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), store.NewUser{
		ID:           id,
		Email:        email,
		Username:     fmt.Sprintf("user%d", id),
		PasswordHash: "$argon2id$stub",
		RecoveryCode: []byte("code-" + email),
	})
	if err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	return u
}

func TestUsersLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "a@example.com")

	if _, err := s.CreateUser(ctx, store.NewUser{ID: 2, Email: "a@example.com", Username: "x", PasswordHash: "h", RecoveryCode: []byte{1}}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	ok, err := s.EmailAvailable(ctx, "a@example.com")
	if err != nil || ok {
		t.Fatalf("EmailAvailable() = %v, %v", ok, err)
	}

	u, err := s.GetUserByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error: %v", err)
	}
	if u.EmailVerified || u.Registered2FA() {
		t.Fatalf("fresh user should be unverified without 2FA: %+v", u)
	}
	if _, err := s.GetUser(ctx, 99); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	changed, err := s.SetEmailVerifiedIfMatches(ctx, 1, "other@example.com")
	if err != nil || changed {
		t.Fatalf("mismatched email must not verify: %v %v", changed, err)
	}
	changed, err = s.SetEmailVerifiedIfMatches(ctx, 1, "a@example.com")
	if err != nil || !changed {
		t.Fatalf("matching email should verify: %v %v", changed, err)
	}

	if err := s.UpdatePasswordHash(ctx, 1, "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash() error: %v", err)
	}
	hash, err := s.GetPasswordHash(ctx, 1)
	if err != nil || hash != "new-hash" {
		t.Fatalf("GetPasswordHash() = %q, %v", hash, err)
	}
}

func TestSessionJoinCarriesDerivedFlags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "a@example.com")

	exp := time.Unix(time.Now().Add(time.Hour).Unix(), 0)
	if err := s.CreateSession(ctx, store.Session{ID: "sid", UserID: 1, ExpiresAt: exp}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}
	if err := s.ReplaceTOTPKey(ctx, 1, []byte("k")); err != nil {
		t.Fatalf("ReplaceTOTPKey() error: %v", err)
	}

	sess, u, err := s.GetSessionWithUser(ctx, "sid")
	if err != nil {
		t.Fatalf("GetSessionWithUser() error: %v", err)
	}
	if !sess.ExpiresAt.Equal(exp) || sess.UserID != 1 || sess.TwoFactorVerified {
		t.Fatalf("unexpected session %+v", sess)
	}
	if !u.RegisteredTOTP || u.RegisteredPasskey || !u.Registered2FA() {
		t.Fatalf("unexpected flags %+v", u)
	}

	if err := s.SetSessionTwoFactorVerified(ctx, "sid"); err != nil {
		t.Fatalf("SetSessionTwoFactorVerified() error: %v", err)
	}
	if err := s.DeleteUserSessions(ctx, 1); err != nil {
		t.Fatalf("DeleteUserSessions() error: %v", err)
	}
	if _, _, err := s.GetSessionWithUser(ctx, "sid"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEmailVerificationReplacement(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "a@example.com")
	exp := time.Now().Add(10 * time.Minute)

	first := store.EmailVerificationRequest{ID: "first", UserID: 1, Email: "a@example.com", Code: "11111111", ExpiresAt: exp}
	second := store.EmailVerificationRequest{ID: "second", UserID: 1, Email: "a@example.com", Code: "22222222", ExpiresAt: exp}
	if err := s.ReplaceEmailVerificationRequest(ctx, first); err != nil {
		t.Fatalf("ReplaceEmailVerificationRequest() error: %v", err)
	}
	if err := s.ReplaceEmailVerificationRequest(ctx, second); err != nil {
		t.Fatalf("ReplaceEmailVerificationRequest() error: %v", err)
	}
	if _, err := s.GetUserEmailVerificationRequest(ctx, 1, "first"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("first request should be gone, got %v", err)
	}
	got, err := s.GetUserEmailVerificationRequest(ctx, 1, "second")
	if err != nil || got.Code != "22222222" {
		t.Fatalf("GetUserEmailVerificationRequest() = %+v, %v", got, err)
	}
}

func TestCredentialCapAndDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "a@example.com")

	for i := 0; i < 5; i++ {
		c := store.WebAuthnCredential{ID: []byte{byte(i)}, UserID: 1, Name: fmt.Sprintf("key %d", i), Algorithm: -7, PublicKey: []byte{4}}
		if err := s.CreateCredential(ctx, store.SecurityKey, c, 5); err != nil {
			t.Fatalf("CreateCredential(%d) error: %v", i, err)
		}
	}
	sixth := store.WebAuthnCredential{ID: []byte{9}, UserID: 1, Name: "sixth", Algorithm: -7, PublicKey: []byte{4}}
	if err := s.CreateCredential(ctx, store.SecurityKey, sixth, 5); !errors.Is(err, store.ErrCredentialLimit) {
		t.Fatalf("expected ErrCredentialLimit, got %v", err)
	}
	list, err := s.ListCredentials(ctx, store.SecurityKey, 1)
	if err != nil || len(list) != 5 {
		t.Fatalf("ListCredentials() = %d, %v", len(list), err)
	}

	dup := store.WebAuthnCredential{ID: []byte{0}, UserID: 1, Name: "dup", Algorithm: -7, PublicKey: []byte{4}}
	if err := s.CreateCredential(ctx, store.Passkey, dup, 0); err != nil {
		t.Fatalf("passkey table is independent: %v", err)
	}
	if err := s.CreateCredential(ctx, store.Passkey, dup, 0); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	deleted, err := s.DeleteCredential(ctx, store.Passkey, 2, []byte{0})
	if err != nil || deleted {
		t.Fatalf("other users cannot delete: %v %v", deleted, err)
	}
	deleted, err = s.DeleteCredential(ctx, store.Passkey, 1, []byte{0})
	if err != nil || !deleted {
		t.Fatalf("DeleteCredential() = %v, %v", deleted, err)
	}
}

func TestRecoveryResetIsSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, 1, "a@example.com")
	old := []byte("code-a@example.com")

	if err := s.ReplaceTOTPKey(ctx, 1, []byte("k")); err != nil {
		t.Fatalf("ReplaceTOTPKey() error: %v", err)
	}
	if err := s.CreateCredential(ctx, store.Passkey, store.WebAuthnCredential{ID: []byte{1}, UserID: 1, Name: "p", Algorithm: -7, PublicKey: []byte{4}}, 0); err != nil {
		t.Fatalf("CreateCredential() error: %v", err)
	}
	if err := s.CreateSession(ctx, store.Session{ID: "sid", UserID: 1, ExpiresAt: time.Now().Add(time.Hour), TwoFactorVerified: true}); err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.ResetTwoFactorWithRecoveryCode(ctx, 1, old, []byte(fmt.Sprintf("new-%d", i)))
			if err != nil {
				t.Errorf("ResetTwoFactorWithRecoveryCode() error: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}

	sess, u, err := s.GetSessionWithUser(ctx, "sid")
	if err != nil {
		t.Fatalf("GetSessionWithUser() error: %v", err)
	}
	if sess.TwoFactorVerified || u.Registered2FA() {
		t.Fatalf("2FA state should be cleared: session=%+v user=%+v", sess, u)
	}
}

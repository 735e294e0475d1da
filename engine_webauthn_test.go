package authgate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/MrEthical07/authgate/twofactor"
)

const (
	flagsPresent  byte = 0x01
	flagsVerified byte = 0x05
)

func TestSecurityKeyCap(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.verifiedUser(t, "yara@example.com")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		a := newTestAuthenticator(t, fmt.Sprintf("key-%d", i))
		s, u := env.validate(t, res.Token)
		if err := env.engine.RegisterSecurityKey(ctx, s, u, a.register(t, env, flagsPresent)); err != nil {
			t.Fatalf("RegisterSecurityKey(%d) error: %v", i, err)
		}
	}

	s, u := env.validate(t, res.Token)
	if !s.TwoFactorVerified || !u.RegisteredSecurityKey {
		t.Fatal("expected registered security key and verified session")
	}
	err := env.engine.RegisterSecurityKey(ctx, s, u, newTestAuthenticator(t, "key-6").register(t, env, flagsPresent))
	if !errors.Is(err, ErrTooManyCredentials) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected credential cap conflict, got %v", err)
	}
	if HTTPStatus(KindOf(err)) != http.StatusConflict {
		t.Fatalf("expected 409, got %d", HTTPStatus(KindOf(err)))
	}
	keys, err := env.engine.ListSecurityKeys(ctx, u)
	if err != nil {
		t.Fatalf("ListSecurityKeys() error: %v", err)
	}
	if len(keys) != 5 {
		t.Fatalf("expected 5 stored keys, got %d", len(keys))
	}
}

func TestRegisterDuplicateCredentialID(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.verifiedUser(t, "zoe@example.com")
	ctx := context.Background()
	a := newTestAuthenticator(t, "dup")

	s, u := env.validate(t, res.Token)
	if err := env.engine.RegisterPasskey(ctx, s, u, a.register(t, env, flagsVerified)); err != nil {
		t.Fatalf("RegisterPasskey() error: %v", err)
	}
	s, u = env.validate(t, res.Token)
	err := env.engine.RegisterPasskey(ctx, s, u, a.register(t, env, flagsVerified))
	if !errors.Is(err, ErrInvalidCredentialData) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
	var ae *Error
	if !errors.As(err, &ae) || ae.Message != "Invalid data" {
		t.Fatalf("unexpected message %+v", ae)
	}
}

func TestRegisterPasskeyRequiresUserVerification(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.verifiedUser(t, "abe@example.com")
	s, u := env.validate(t, res.Token)

	err := env.engine.RegisterPasskey(context.Background(), s, u, newTestAuthenticator(t, "p").register(t, env, flagsPresent))
	if !errors.Is(err, ErrInvalidWebAuthnData) {
		t.Fatalf("expected invalid data, got %v", err)
	}
	if env.metric(MetricWebAuthnRejected) != 1 {
		t.Fatalf("expected rejected metric, got %d", env.metric(MetricWebAuthnRejected))
	}
}

func TestVerifySecurityKeyAfterLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.verifiedUser(t, "bea@example.com")
	ctx := context.Background()
	a := newTestAuthenticator(t, "sk")

	s, u := env.validate(t, res.Token)
	if err := env.engine.RegisterSecurityKey(ctx, s, u, a.register(t, env, flagsPresent)); err != nil {
		t.Fatalf("RegisterSecurityKey() error: %v", err)
	}

	login, err := env.engine.Login(ctx, "bea@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if login.Next != twofactor.StepVerify || login.Redirect != twofactor.DefaultPaths.SecurityKey {
		t.Fatalf("expected security key verification, got %v %q", login.Next, login.Redirect)
	}
	s, u = env.validate(t, login.Token)

	if err := env.engine.VerifyPasskey(ctx, s, u, a.assert(t, env, flagsVerified)); !errors.Is(err, ErrTwoFactorNotEnabled) {
		t.Fatalf("expected passkey path to be closed, got %v", err)
	}
	unknown := newTestAuthenticator(t, "other").assert(t, env, flagsPresent)
	if err := env.engine.VerifySecurityKey(ctx, s, u, unknown); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected unknown credential, got %v", err)
	}

	assertion := a.assert(t, env, flagsPresent)
	if err := env.engine.VerifySecurityKey(ctx, s, u, assertion); err != nil {
		t.Fatalf("VerifySecurityKey() error: %v", err)
	}
	if err := env.engine.VerifySecurityKey(ctx, s, u, assertion); !errors.Is(err, ErrInvalidWebAuthnData) {
		t.Fatalf("expected replayed challenge to be rejected, got %v", err)
	}
	s, _ = env.validate(t, login.Token)
	if !s.TwoFactorVerified {
		t.Fatal("expected verified session")
	}
}

func TestPasskeyTakesPriorityInGate(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.verifiedUser(t, "cal@example.com")
	env.enableTOTP(t, res.Token)
	ctx := context.Background()

	s, u := env.validate(t, res.Token)
	if err := env.engine.RegisterPasskey(ctx, s, u, newTestAuthenticator(t, "pk").register(t, env, flagsVerified)); err != nil {
		t.Fatalf("RegisterPasskey() error: %v", err)
	}
	login, err := env.engine.Login(ctx, "cal@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if login.Redirect != twofactor.DefaultPaths.Passkey {
		t.Fatalf("expected passkey page, got %q", login.Redirect)
	}
}

func TestDeleteSecurityKey(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.verifiedUser(t, "dan@example.com")
	ctx := context.Background()
	a := newTestAuthenticator(t, "del")

	s, u := env.validate(t, res.Token)
	if err := env.engine.RegisterSecurityKey(ctx, s, u, a.register(t, env, flagsPresent)); err != nil {
		t.Fatalf("RegisterSecurityKey() error: %v", err)
	}
	s, u = env.validate(t, res.Token)
	if err := env.engine.DeleteSecurityKey(ctx, s, u, a.id); err != nil {
		t.Fatalf("DeleteSecurityKey() error: %v", err)
	}
	if err := env.engine.DeleteSecurityKey(ctx, s, u, a.id); !errors.Is(err, ErrCredentialNotFound) {
		t.Fatalf("expected missing credential, got %v", err)
	}
}

func TestWebAuthnChallengeIPBucket(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RateLimit.WebAuthnChallengeIP = BucketPolicy{Max: 2, Period: 10 * time.Second}
	})
	ctx := WithClientIP(context.Background(), "203.0.113.9")

	for i := 0; i < 2; i++ {
		if _, err := env.engine.IssueWebAuthnChallenge(ctx); err != nil {
			t.Fatalf("challenge %d error: %v", i, err)
		}
	}
	if _, err := env.engine.IssueWebAuthnChallenge(ctx); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	// Without a known client address the bucket does not apply.
	if _, err := env.engine.IssueWebAuthnChallenge(context.Background()); err != nil {
		t.Fatalf("challenge without ip error: %v", err)
	}
	env.clock.Advance(10 * time.Second)
	if _, err := env.engine.IssueWebAuthnChallenge(ctx); err != nil {
		t.Fatalf("challenge after refill error: %v", err)
	}
}

package authgate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authgate/twofactor"
)

func TestLoginSuccessNextStep(t *testing.T) {
	env := newTestEnv(t, nil)
	env.verifiedUser(t, "bob@example.com")

	res, err := env.engine.Login(context.Background(), "bob@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if res.Next != twofactor.StepSetup {
		t.Fatalf("expected setup step, got %v", res.Next)
	}
	if res.Redirect != twofactor.DefaultPaths.Setup {
		t.Fatalf("expected setup redirect, got %q", res.Redirect)
	}
	if res.Session.TwoFactorVerified {
		t.Fatal("login must start without 2FA")
	}
	if env.metric(MetricLoginSuccess) != 1 {
		t.Fatalf("expected one login success, got %d", env.metric(MetricLoginSuccess))
	}
}

func TestLoginErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signup(t, "carol@example.com")
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, "", testPassword); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "carol", testPassword); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected invalid email, got %v", err)
	}
	_, err := env.engine.Login(ctx, "nobody@example.com", testPassword)
	if !errors.Is(err, ErrAccountNotFound) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
	if _, err := env.engine.Login(ctx, "carol@example.com", "wrong password"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("expected incorrect password, got %v", err)
	}
}

func TestLoginOverlongPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signup(t, "kim@example.com")

	_, err := env.engine.Login(context.Background(), "kim@example.com", strings.Repeat("x", 300))
	if !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("expected incorrect password, got %v", err)
	}
	if got := HTTPStatus(KindOf(err)); got != 400 {
		t.Fatalf("expected status 400, got %d", got)
	}
}

func TestLoginThrottlePerAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signup(t, "dave@example.com")
	ctx := context.Background()

	if _, err := env.engine.Login(ctx, "dave@example.com", "wrong password"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("first attempt: expected incorrect password, got %v", err)
	}
	// Second attempt inside the 1s delay is refused before the password is checked.
	if _, err := env.engine.Login(ctx, "dave@example.com", testPassword); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second attempt: expected rate limit, got %v", err)
	}

	env.clock.Advance(time.Second)
	if _, err := env.engine.Login(ctx, "dave@example.com", "wrong password"); !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("third attempt: expected incorrect password, got %v", err)
	}
	env.clock.Advance(time.Second)
	if _, err := env.engine.Login(ctx, "dave@example.com", testPassword); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("fourth attempt: expected 2s delay, got %v", err)
	}
	env.clock.Advance(time.Second)
	if _, err := env.engine.Login(ctx, "dave@example.com", testPassword); err != nil {
		t.Fatalf("fifth attempt error: %v", err)
	}

	// Success resets the throttle.
	if _, err := env.engine.Login(ctx, "dave@example.com", testPassword); err != nil {
		t.Fatalf("login after reset error: %v", err)
	}
}

func TestLoginIPBucket(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RateLimit.LoginIP = BucketPolicy{Max: 2, Period: time.Second}
	})
	env.signup(t, "erin@example.com")
	ctx := WithClientIP(context.Background(), "192.0.2.10")

	for i := 0; i < 2; i++ {
		if _, err := env.engine.Login(ctx, "erin@example.com", testPassword); err != nil {
			t.Fatalf("login %d error: %v", i, err)
		}
	}
	if _, err := env.engine.Login(ctx, "erin@example.com", testPassword); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if env.metric(MetricRateLimitHit) == 0 {
		t.Fatal("expected rate limit metric")
	}

	// Another address has its own bucket.
	if _, err := env.engine.Login(WithClientIP(context.Background(), "192.0.2.11"), "erin@example.com", testPassword); err != nil {
		t.Fatalf("login from other ip error: %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	res := env.signup(t, "fay@example.com")
	ctx := context.Background()

	if err := env.engine.Logout(ctx, res.Session.ID); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if _, _, err := env.engine.ValidateSessionToken(ctx, res.Token); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected logged-out token to be rejected, got %v", err)
	}
}

func TestLogoutAllInvalidatesEverySession(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.signup(t, "gus@example.com")
	second, err := env.engine.Login(context.Background(), "gus@example.com", testPassword)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	if err := env.engine.LogoutAll(context.Background(), first.User.ID); err != nil {
		t.Fatalf("LogoutAll() error: %v", err)
	}
	for _, token := range []string{first.Token, second.Token} {
		if _, _, err := env.engine.ValidateSessionToken(context.Background(), token); !errors.Is(err, ErrAuthenticationRequired) {
			t.Fatalf("expected token to be rejected, got %v", err)
		}
	}
}

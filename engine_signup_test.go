package authgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authgate/twofactor"
)

func TestSignupStartsUnverifiedSession(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.signup(t, "alice@example.com")
	if res.Token == "" || res.Session == nil {
		t.Fatal("expected a session token")
	}
	if res.Next != twofactor.StepVerifyEmail || res.Redirect != PathVerifyEmail {
		t.Fatalf("expected verify-email step, got %v %q", res.Next, res.Redirect)
	}
	if res.Session.TwoFactorVerified {
		t.Fatal("new session must not be 2FA verified")
	}
	if res.EmailVerification == nil || res.EmailVerification.Email != "alice@example.com" {
		t.Fatalf("expected verification request for the signup address, got %+v", res.EmailVerification)
	}
	if got := env.mail.verificationCode("alice@example.com"); got != res.EmailVerification.Code {
		t.Fatalf("mailed code %q does not match request code", got)
	}
	if res.User.ID == 0 {
		t.Fatal("expected generated user id")
	}
	if env.metric(MetricSignupSuccess) != 1 {
		t.Fatalf("expected one signup success, got %d", env.metric(MetricSignupSuccess))
	}
}

func TestSignupRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signup(t, "taken@example.com")

	cases := []struct {
		name string
		in   SignupInput
		want error
	}{
		{"missing field", SignupInput{Email: "a@example.com", Username: "alice"}, ErrValidationFailed},
		{"bad email", SignupInput{Email: "not-an-email", Username: "alice", Password: testPassword}, ErrInvalidEmail},
		{"email taken", SignupInput{Email: "taken@example.com", Username: "alice", Password: testPassword}, ErrEmailInUse},
		{"short username", SignupInput{Email: "b@example.com", Username: "abc", Password: testPassword}, ErrInvalidUsername},
		{"padded username", SignupInput{Email: "b@example.com", Username: " alice", Password: testPassword}, ErrInvalidUsername},
		{"weak password", SignupInput{Email: "b@example.com", Username: "alice", Password: "short"}, ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.Signup(context.Background(), tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Signup() error = %v, want %v", err, tc.want)
			}
			var ae *Error
			if !errors.As(err, &ae) || ae.Values["email"] != tc.in.Email {
				t.Fatalf("expected form values to be echoed, got %+v", ae)
			}
		})
	}
}

func TestSignupIPBucket(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := WithClientIP(context.Background(), "198.51.100.4")

	// Rejected input does not spend the bucket.
	for i := 0; i < 5; i++ {
		if _, err := env.engine.Signup(ctx, SignupInput{Email: "bad"}); errors.Is(err, ErrRateLimited) {
			t.Fatalf("attempt %d: rejected input must not consume the bucket", i)
		}
	}
	for i, email := range []string{"a1@example.com", "a2@example.com", "a3@example.com"} {
		if _, err := env.engine.Signup(ctx, SignupInput{Email: email, Username: "alice", Password: testPassword}); err != nil {
			t.Fatalf("signup %d error: %v", i, err)
		}
	}
	_, err := env.engine.Signup(ctx, SignupInput{Email: "a4@example.com", Username: "alice", Password: testPassword})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}

	env.clock.Advance(10 * time.Second)
	if _, err := env.engine.Signup(ctx, SignupInput{Email: "a4@example.com", Username: "alice", Password: testPassword}); err != nil {
		t.Fatalf("signup after refill error: %v", err)
	}
}

func TestValidEmailAndUsername(t *testing.T) {
	if !ValidEmail("a@b.co") || ValidEmail("a@b") || ValidEmail("") {
		t.Fatal("unexpected email validation result")
	}
	long := make([]byte, 250)
	for i := range long {
		long[i] = 'a'
	}
	if ValidEmail(string(long) + "@b.com") {
		t.Fatal("expected 256-byte email to be rejected")
	}
	if !ValidUsername("abcd") || ValidUsername("abc") || ValidUsername("abcd ") || ValidUsername(string(long[:32])) {
		t.Fatal("unexpected username validation result")
	}
}

package authgate

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCookiesSetSession(t *testing.T) {
	rec := httptest.NewRecorder()
	expires := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	Cookies{Secure: true}.SetSession(rec, "tok", expires)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || c.Value != "tok" {
		t.Fatalf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.Path != "/" || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected attributes %+v", c)
	}
	if !c.Expires.Equal(expires) {
		t.Fatalf("expected expiry %v, got %v", expires, c.Expires)
	}
}

func TestCookiesDelete(t *testing.T) {
	rec := httptest.NewRecorder()
	Cookies{}.DeletePasswordReset(rec)

	c := rec.Result().Cookies()[0]
	if c.Name != PasswordResetCookieName || c.Value != "" || c.MaxAge >= 0 {
		t.Fatalf("expected a clearing cookie, got %+v", c)
	}
	if c.Secure {
		t.Fatal("expected non-secure cookie outside production")
	}
}

func TestCookieReaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "s"})
	req.AddCookie(&http.Cookie{Name: EmailVerificationCookieName, Value: "v"})

	if SessionToken(req) != "s" {
		t.Fatalf("unexpected session token %q", SessionToken(req))
	}
	if EmailVerificationID(req) != "v" {
		t.Fatalf("unexpected verification id %q", EmailVerificationID(req))
	}
	if PasswordResetToken(req) != "" {
		t.Fatal("expected missing cookie to read as empty")
	}
}

func TestEngineCookiesFollowProductionMode(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Security.ProductionMode = true
	})
	if !env.engine.Cookies().Secure {
		t.Fatal("expected secure cookies in production mode")
	}
}

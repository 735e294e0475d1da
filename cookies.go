package authgate

import (
	"net/http"
	"time"
)

const (
	SessionCookieName           = "session"
	PasswordResetCookieName     = "password_reset_session"
	EmailVerificationCookieName = "email_verification"
)

// Cookies writes the three auth cookies. Every cookie is HttpOnly, scoped to
// "/" and SameSite=Lax; Secure follows the field.
type Cookies struct {
	Secure bool
}

func (c Cookies) set(w http.ResponseWriter, name, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c Cookies) SetSession(w http.ResponseWriter, token string, expiresAt time.Time) {
	c.set(w, SessionCookieName, token, expiresAt)
}

func (c Cookies) DeleteSession(w http.ResponseWriter) {
	c.clear(w, SessionCookieName)
}

func (c Cookies) SetPasswordReset(w http.ResponseWriter, token string, expiresAt time.Time) {
	c.set(w, PasswordResetCookieName, token, expiresAt)
}

func (c Cookies) DeletePasswordReset(w http.ResponseWriter) {
	c.clear(w, PasswordResetCookieName)
}

// SetEmailVerification stores the id of the pending verification request.
func (c Cookies) SetEmailVerification(w http.ResponseWriter, requestID string, expiresAt time.Time) {
	c.set(w, EmailVerificationCookieName, requestID, expiresAt)
}

func (c Cookies) DeleteEmailVerification(w http.ResponseWriter) {
	c.clear(w, EmailVerificationCookieName)
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// SessionToken returns the session cookie value or "".
func SessionToken(r *http.Request) string { return cookieValue(r, SessionCookieName) }

// PasswordResetToken returns the password reset cookie value or "".
func PasswordResetToken(r *http.Request) string { return cookieValue(r, PasswordResetCookieName) }

// EmailVerificationID returns the verification request cookie value or "".
func EmailVerificationID(r *http.Request) string {
	return cookieValue(r, EmailVerificationCookieName)
}

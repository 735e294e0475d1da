package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/store"
	"github.com/MrEthical07/authgate/twofactor"
)

type sessionContextKey struct{}

type current struct {
	session *store.Session
	user    *store.User
}

// SessionFromContext returns the session resolved by Session. ok is false for
// anonymous requests.
func SessionFromContext(ctx context.Context) (*store.Session, *store.User, bool) {
	c, ok := ctx.Value(sessionContextKey{}).(current)
	if !ok || c.session == nil {
		return nil, nil, false
	}
	return c.session, c.user, true
}

// ClientIP attaches the remote address to the request context. With
// trustForwarded the first X-Forwarded-For entry wins; enable it only behind a
// proxy that overwrites the header.
func ClientIP(trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authgate.WithClientIP(r.Context(), remoteIP(r, trustForwarded))
			ctx = authgate.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func remoteIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Session validates the session cookie. A valid session is stored in the
// request context; an invalid cookie is deleted and the request continues
// anonymously. On GET requests the cookie is rewritten with the current
// expiry so sliding refreshes reach the browser.
func Session(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := authgate.SessionToken(r)
			if token == "" || engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			cookies := engine.Cookies()
			s, u, err := engine.ValidateSessionToken(r.Context(), token)
			switch {
			case err == nil:
			case authgate.KindOf(err) == authgate.KindAuthenticationRequired:
				cookies.DeleteSession(w)
				next.ServeHTTP(w, r)
				return
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			if r.Method == http.MethodGet {
				cookies.SetSession(w, token, s.ExpiresAt)
			}
			ctx := context.WithValue(r.Context(), sessionContextKey{}, current{session: s, user: u})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession answers 401 when Session resolved nothing.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := SessionFromContext(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTwoFactor lets a request through only when the user has a verified
// email, a registered second factor and a session that passed it. Anything
// else is redirected to the page of the missing step; anonymous requests go
// to the login page.
func RequireTwoFactor(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, u, ok := SessionFromContext(r.Context())
			if !ok {
				http.Redirect(w, r, authgate.PathLogin, http.StatusSeeOther)
				return
			}
			step, redirect := engine.NextStep(s, u)
			if step != twofactor.StepDone {
				http.Redirect(w, r, redirect, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

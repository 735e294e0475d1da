package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/store"
)

type resetContextKey struct{}

type currentReset struct {
	session *store.PasswordResetSession
	user    *store.User
}

// ResetSessionFromContext returns the password reset session resolved by
// PasswordResetSession.
func ResetSessionFromContext(ctx context.Context) (*store.PasswordResetSession, *store.User, bool) {
	c, ok := ctx.Value(resetContextKey{}).(currentReset)
	if !ok || c.session == nil {
		return nil, nil, false
	}
	return c.session, c.user, true
}

// PasswordResetSession resolves the password reset cookie. Without a valid
// reset session the cookie is cleared and the request is answered 401.
func PasswordResetSession(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			rs, u, err := engine.ValidatePasswordResetToken(r.Context(), authgate.PasswordResetToken(r))
			if err != nil {
				if authgate.KindOf(err) != authgate.KindAuthenticationRequired {
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				engine.Cookies().DeletePasswordReset(w)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), resetContextKey{}, currentReset{session: rs, user: u})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Package authgate implements server-side authentication for web
// applications: email and password accounts, opaque session cookies,
// email verification, password reset, and a second factor through TOTP,
// passkeys or security keys with a recovery code as the way back in.
//
// # Architecture boundaries
//
// The Engine is the only entry point. It owns the rate limiters, the WebAuthn
// challenge set and the audit dispatcher, and it talks to persistence only
// through store.Store. HTTP concerns stay at the edge: Cookies writes the
// three auth cookies and the middleware package resolves sessions per
// request.
//
// Every flow takes the caller's context. Attach the client address with
// WithClientIP so per-IP buckets apply; an empty address skips them.
//
// # Errors
//
// Operations return *Error. Match a whole class with the kind sentinels
// (ErrRateLimited, ErrForbidden, ...) or a precise outcome with the specific
// ones (ErrIncorrectCode, ErrTooManyCredentials, ...). HTTPStatus maps a kind
// to a response code.
//
// # What this package must NOT do
//
//   - Store a password, code or session token in clear text. Sessions are
//     keyed by the SHA-256 of the token; TOTP keys and recovery codes are
//     encrypted at rest.
//   - Compare a submitted secret before a rate-limit token has been taken
//     for it.
//   - Render pages or send mail itself. Mail goes through Mailer.
package authgate

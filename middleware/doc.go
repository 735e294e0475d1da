// Package middleware adapts authgate.Engine session handling to net/http.
//
// # Middleware
//
//   - [ClientIP] stores the caller's address for per-IP rate limits and audit.
//   - [Session] resolves the session cookie once per request and keeps the
//     cookie in step with the stored expiry.
//   - [RequireSession] rejects requests without a session.
//   - [RequireTwoFactor] redirects until the user passed every gate.
//   - [PasswordResetSession] resolves the password reset cookie.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself; session validity and gate decisions come from
// the Engine.
//
// # What this package must NOT do
//
//   - Hash tokens or read the store directly (delegates to Engine).
//   - Consume rate-limit buckets.
//   - Render pages. Rejections are bare status codes or redirects.
package middleware

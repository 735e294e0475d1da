// Package limiters wires one ratelimit bucket per protected operation.
//
// # Buckets
//
//   - Refilling, keyed by IP: login, signup, forgot password, WebAuthn challenge.
//   - Refilling, keyed by user: forgot password, TOTP key update.
//   - Expiring, keyed by user or session: TOTP, recovery code, email codes,
//     password update.
//   - Throttler, keyed by user: login backoff.
//
// The backend ("memory" or "redis") is chosen once for the whole [Set].
//
// # What this package must NOT do
//
//   - Decide what a denial means. The engine maps it to an error and an audit event.
//   - Import the root authgate package.
package limiters

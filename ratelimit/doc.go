// Package ratelimit provides the token buckets and the backoff throttler used
// to defend every sensitive authentication endpoint.
//
// # Primitives
//
//   - ExpiringTokenBucket: a fixed allowance per key that is restored in full
//     once the window since the last reset has elapsed.
//   - RefillingTokenBucket: a capped allowance that regains one token per
//     whole refill interval.
//   - Throttler: an escalating delay ladder between allowed attempts.
//
// Each primitive has an in-process implementation (sharded maps, one mutex per
// shard) and a Redis implementation (one Lua script per operation, so the
// read-modify-write on a key is atomic across processes).
//
// # What this package must NOT do
//
//   - Decide which endpoint uses which bucket (that lives in internal/limiters).
//   - Read the wall clock directly in a way tests cannot replace.
package ratelimit
